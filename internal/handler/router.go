package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	botservice "github.com/parleyhq/parley/internal/bot"
	chathandler "github.com/parleyhq/parley/internal/handler/chat"
	wshandler "github.com/parleyhq/parley/internal/handler/ws"
	middlewarePkg "github.com/parleyhq/parley/internal/middleware"
	"github.com/parleyhq/parley/internal/orchestrator"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/socket"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(store *session.Store, bots *botservice.Registry, sessions *orchestrator.SessionRegistry, sock *socket.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chathandler.New(store, bots, sessions)
	wsHandler := wshandler.New(sock)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
