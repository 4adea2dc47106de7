// Package ws bridges websocket connections onto lobby inboxes. Each
// connection gets a reader (this handler) and one writer goroutine
// draining the outbox the lobby broadcasts into.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/OrtheSnowJames/capture-flag-io/internal/hub"
	"github.com/OrtheSnowJames/capture-flag-io/internal/lobby"
	"github.com/OrtheSnowJames/capture-flag-io/internal/types"
)

const (
	outboxSize   = 32
	writeTimeout = 5 * time.Second
)

func Handler(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	log := logger.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("lobby")
		if path == "" {
			http.Error(w, "missing lobby parameter", http.StatusBadRequest)
			return
		}

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Path: path, Reply: reply}
		lb := <-reply
		if lb == nil {
			http.Error(w, "no such lobby", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			log.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusInternalError, "connection closed")

		connID := uuid.NewString()
		outbox := make(chan []byte, outboxSize)
		lb.Inbox() <- lobby.Subscribe{ConnID: connID, Outbox: outbox}
		defer func() {
			lb.Inbox() <- lobby.Unsubscribe{ConnID: connID}
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer: drains the outbox until the lobby closes it, which is
		// how the lobby drops a slow connection. The ctx.Done arm covers
		// a lobby that shut down before processing the Subscribe: its
		// outbox is never closed, and the writer must not outlive the
		// handler waiting on it.
		go func() {
			defer cancel()
			for {
				select {
				case frame, ok := <-outbox:
					if !ok {
						conn.Close(websocket.StatusPolicyViolation, "client too slow")
						return
					}
					wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
					err := conn.Write(wctx, websocket.MessageText, frame)
					wcancel()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		player := ""
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				log.Debug("connection closed", zap.String("conn", connID), zap.Error(err))
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				log.Debug("malformed frame dropped", zap.String("conn", connID), zap.Error(err))
				continue
			}

			msg, name, ok := decode(connID, player, cm)
			if !ok {
				log.Debug("payload rejected",
					zap.String("conn", connID), zap.String("event", cm.Event))
				continue
			}
			if name != "" {
				player = name
			}
			lb.Inbox() <- msg
		}
	}
}

// decode maps a client frame onto a lobby message. The name the client
// joined with is echoed back so the reader can attribute later frames.
func decode(connID, player string, cm types.ClientMessage) (lobby.Msg, string, bool) {
	switch cm.Event {
	case types.EventName:
		var p types.NamePayload
		if json.Unmarshal(cm.Data, &p) != nil || p.Name == "" {
			return nil, "", false
		}
		return lobby.SetName{ConnID: connID, Name: p.Name}, p.Name, true

	case types.EventMove:
		var p types.MovePayload
		if json.Unmarshal(cm.Data, &p) != nil {
			return nil, "", false
		}
		return lobby.Move{Name: p.Name, X: p.X, Y: p.Y, Dash: p.Dash}, "", true

	case types.EventMessage:
		var p types.MessagePayload
		if json.Unmarshal(cm.Data, &p) != nil {
			return nil, "", false
		}
		return lobby.ChatMessage{ConnID: connID, Text: p.Text}, "", true

	case types.EventKill:
		var p types.KillPayload
		if json.Unmarshal(cm.Data, &p) != nil {
			return nil, "", false
		}
		return lobby.AdminKill{Name: p.Name, Killer: p.Killer}, "", true

	case types.EventVote:
		var p types.VotePayload
		if json.Unmarshal(cm.Data, &p) != nil {
			return nil, "", false
		}
		return lobby.CastVote{Player: p.Player, Map: p.Map}, "", true

	case types.EventChangeMap:
		var p types.ChangeMapPayload
		if json.Unmarshal(cm.Data, &p) != nil {
			return nil, "", false
		}
		return lobby.ChangeMap{MapName: p.MapName, From: player}, "", true

	case types.EventOp:
		var p types.OpPayload
		if json.Unmarshal(cm.Data, &p) != nil || p.Action == "" {
			return nil, "", false
		}
		return lobby.OpCommand{ConnID: connID, Action: p.Action, Args: p.Args}, "", true
	}
	return nil, "", false
}
