package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/suggestbox/internal/feed"
	"github.com/viralforge/suggestbox/internal/ports"
)

// IdentityFactory mints a fresh identity provider for one logical client
// session. Each websocket connection and each REST sign-in gets its own
// anonymous principal, never a shared one.
type IdentityFactory func() ports.IdentityProvider

// Handler is the HTTP adapter entrypoint for the suggestion feed.
// It depends only on ports and the feed core, keeping adapter boundaries clean.
type Handler struct {
	cfg         feed.Config
	store       ports.LiveStore
	repo        ports.SuggestionRepository
	newProvider IdentityFactory
	signer      ports.TokenSigner
}

// NewHandler constructs the HTTP handler for the feed surface.
func NewHandler(cfg feed.Config, store ports.LiveStore, repo ports.SuggestionRepository, newProvider IdentityFactory, signer ports.TokenSigner) *Handler {
	return &Handler{
		cfg:         cfg,
		store:       store,
		repo:        repo,
		newProvider: newProvider,
		signer:      signer,
	}
}

// NewRouter registers feed HTTP routes and the middleware stack.
// Centralizing routes here keeps auth and error behavior consistent across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/feed/v1", func(r chi.Router) {
		r.Post("/identity/anonymous", handler.signInAnonymously)
		r.Get("/suggestions", handler.listSuggestions)
		r.Get("/ws", handler.liveSession)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/suggestions", handler.submitSuggestion)
		})
	})

	return r
}
