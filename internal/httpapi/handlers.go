package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/OrtheSnowJames/capture-flag-io/internal/hub"
	"github.com/OrtheSnowJames/capture-flag-io/internal/lobby"
	"github.com/OrtheSnowJames/capture-flag-io/internal/names"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// GetLobbyHandler returns the path of a public lobby with room, or 503
// when every lobby is full or in maintenance.
func GetLobbyHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan hub.AcquireReply, 1)
		h.Inbox() <- hub.AcquireLobby{Reply: reply}
		res := <-reply
		if res.Err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"message": "All lobbies are full",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"path": res.Path})
	}
}

// CheckNameHandler validates a prospective name against the global
// rules and the target lobby's roster.
func CheckNameHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		path := r.URL.Query().Get("lobby")

		if err := names.Validate(name); err != nil {
			body := map[string]any{"available": false}
			if errors.Is(err, names.ErrWhitespace) {
				body["reason"] = "Name cannot contain spaces"
			}
			writeJSON(w, http.StatusOK, body)
			return
		}

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Path: path, Reply: reply}
		lb := <-reply
		if lb == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"available": false})
			return
		}

		check := make(chan error, 1)
		lb.Inbox() <- lobby.CheckName{Name: name, Reply: check}
		writeJSON(w, http.StatusOK, map[string]any{"available": <-check == nil})
	}
}

// NewLobbyHandler creates a private lobby and hands back its path and
// access code. The code is shown once; keep it to delete the lobby.
func NewLobbyHandler(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan hub.PrivateReply, 1)
		h.Inbox() <- hub.CreatePrivate{Reply: reply}
		res := <-reply
		if res.Err != nil {
			logger.Error("private lobby creation failed", zap.Error(res.Err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"message": "Could not create lobby",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"path":     res.Path,
			"privcode": res.Code,
		})
	}
}

// DeleteLobbyHandler tears down a private lobby when the caller holds
// its access code.
func DeleteLobbyHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("lobby")
		code := r.URL.Query().Get("privcode")

		reply := make(chan error, 1)
		h.Inbox() <- hub.DeletePrivate{Path: path, Code: code, Reply: reply}
		switch err := <-reply; {
		case errors.Is(err, hub.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Lobby not found"})
		case errors.Is(err, hub.ErrBadCode):
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid access code"})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"message": "Lobby deleted"})
		}
	}
}

func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
