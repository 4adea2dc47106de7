// Package httpapi exposes the REST surface for lobby discovery and
// private lobby management, plus the websocket upgrade endpoint.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/OrtheSnowJames/capture-flag-io/internal/hub"
	"github.com/OrtheSnowJames/capture-flag-io/internal/ws"
)

func Routes(h *hub.Hub, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", HealthzHandler)
	r.Get("/lobby", GetLobbyHandler(h))
	r.Get("/check-name", CheckNameHandler(h))
	r.Get("/lobby/newlobby", NewLobbyHandler(h, logger))
	r.Get("/lobby/deletelobby", DeleteLobbyHandler(h))
	r.Get("/ws", ws.Handler(h, logger))

	return r
}
