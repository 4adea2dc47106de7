// Package hub owns the only collection of lobbies and routes joining
// clients to a session with capacity. Lobbies push status updates here;
// the hub never reaches into a session's state.
package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"go.uber.org/zap"

	"github.com/OrtheSnowJames/capture-flag-io/internal/lobby"
	"github.com/OrtheSnowJames/capture-flag-io/internal/maps"
)

var (
	ErrNoCapacity = errors.New("all lobbies are full")
	ErrNotFound   = errors.New("lobby not found")
	ErrBadCode    = errors.New("invalid access code")
)

type Msg interface{ isHubMsg() }

// AcquireLobby asks for any public lobby with room that is not in
// maintenance.
type AcquireLobby struct{ Reply chan AcquireReply }

type AcquireReply struct {
	Path string
	Err  error
}

// CreatePrivate allocates a fresh private lobby with an access code.
type CreatePrivate struct{ Reply chan PrivateReply }

type PrivateReply struct {
	Path string
	Code string
	Err  error
}

// DeletePrivate tears down a private lobby, access code required.
type DeletePrivate struct {
	Path  string
	Code  string
	Reply chan error
}

type GetLobby struct {
	Path  string
	Reply chan *lobby.Lobby
}

type ShutdownHub struct{}

// lobbyStatus is the internal feed from sessions back to the pool.
type lobbyStatus struct {
	path   string
	status lobby.Status
}

func (AcquireLobby) isHubMsg()  {}
func (CreatePrivate) isHubMsg() {}
func (DeletePrivate) isHubMsg() {}
func (GetLobby) isHubMsg()      {}
func (ShutdownHub) isHubMsg()   {}
func (lobbyStatus) isHubMsg()   {}

type Options struct {
	PublicLobbies int
	Capacity      int
	RoundSeconds  int
	VoteSeconds   int
	Operators     []string
	Catalog       *maps.Catalog
	Logger        *zap.Logger
}

type entry struct {
	lb      *lobby.Lobby
	seq     int
	private bool
	code    string
	status  lobby.Status
}

type Hub struct {
	inbox   chan Msg
	lobbies map[string]*entry
	seq     int
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	if opts.PublicLobbies <= 0 {
		opts.PublicLobbies = 2
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan Msg, 64),
		lobbies: make(map[string]*entry),
		opts:    opts,
		log:     opts.Logger.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < opts.PublicLobbies; i++ {
		h.addLobby(false, "")
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case AcquireLobby:
				msg.Reply <- h.acquire()

			case CreatePrivate:
				code, err := generateCode()
				if err != nil {
					msg.Reply <- PrivateReply{Err: err}
					break
				}
				e := h.addLobby(true, code)
				msg.Reply <- PrivateReply{Path: e.lb.Path(), Code: code}

			case DeletePrivate:
				msg.Reply <- h.deletePrivate(msg.Path, msg.Code)

			case GetLobby:
				if e, ok := h.lobbies[msg.Path]; ok {
					msg.Reply <- e.lb
				} else {
					msg.Reply <- nil
				}

			case lobbyStatus:
				e, ok := h.lobbies[msg.path]
				if !ok {
					break
				}
				e.status = msg.status
				if msg.status.PendingDelete {
					h.log.Info("private lobby emptied, removing", zap.String("path", msg.path))
					e.lb.Inbox() <- lobby.Shutdown{}
					delete(h.lobbies, msg.path)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) addLobby(private bool, code string) *entry {
	h.seq++
	path := fmt.Sprintf("/lobby%d", h.seq)
	lb := lobby.NewLobby(h.ctx, lobby.Options{
		Path:         path,
		Private:      private,
		RoundSeconds: h.opts.RoundSeconds,
		VoteSeconds:  h.opts.VoteSeconds,
		Capacity:     h.opts.Capacity,
		Operators:    h.opts.Operators,
		Catalog:      h.opts.Catalog,
		Logger:       h.opts.Logger,
		OnStatus: func(st lobby.Status) {
			h.inbox <- lobbyStatus{path: path, status: st}
		},
	})
	e := &entry{lb: lb, seq: h.seq, private: private, code: code}
	h.lobbies[path] = e
	h.log.Info("lobby created", zap.String("path", path), zap.Bool("private", private))
	return e
}

// acquire scans lobbies in creation order, so the lowest-numbered open
// lobby wins regardless of how the paths sort as strings.
func (h *Hub) acquire() AcquireReply {
	entries := make([]*entry, 0, len(h.lobbies))
	for _, e := range h.lobbies {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	for _, e := range entries {
		if e.private || e.status.Maintenance || e.status.PendingDelete {
			continue
		}
		if e.status.Players < h.opts.Capacity {
			return AcquireReply{Path: e.lb.Path()}
		}
	}
	return AcquireReply{Err: ErrNoCapacity}
}

func (h *Hub) deletePrivate(path, code string) error {
	e, ok := h.lobbies[path]
	if !ok || !e.private {
		return ErrNotFound
	}
	if e.code != code {
		return ErrBadCode
	}
	e.lb.Inbox() <- lobby.Shutdown{}
	delete(h.lobbies, path)
	h.log.Info("private lobby deleted", zap.String("path", path))
	return nil
}

func (h *Hub) shutdown() {
	for path, e := range h.lobbies {
		e.lb.Inbox() <- lobby.Shutdown{}
		delete(h.lobbies, path)
	}
	h.cancel()
}

// generateCode builds a short random access code for private lobbies.
func generateCode() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	code := make([]byte, 13)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}
