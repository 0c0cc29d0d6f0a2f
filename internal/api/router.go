package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notevault/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Files.
	r.Post("/files", h.CreateFile)
	r.Get("/files/*", h.GetFile)
	r.Put("/files/*", h.UpdateFile)
	r.Patch("/files/*", h.PatchFile)
	r.Delete("/files/*", h.DeleteFile)
	r.Post("/trash/*", h.TrashFile)

	r.Get("/daily-note", h.DailyNote)

	// Search.
	r.Get("/search/content", h.SearchContent)
	r.Get("/search/filename", h.SearchFilename)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
