package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(h *Handler, authEnabled bool, token string) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/*", h.GetDocument)
	r.Get("/toc/*", h.GetTOC)
	r.Get("/locate", h.Locate)

	// Search and link graph.
	r.Get("/search", h.Search)
	r.Get("/backlinks/*", h.Backlinks)

	// Cache control.
	r.Post("/cache/clear", h.ClearCache)

	return r
}
