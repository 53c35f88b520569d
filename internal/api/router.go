package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/diary"
	"github.com/starford/dagaz/internal/transcribe"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *diary.Service, transcriber transcribe.Transcriber, language string, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, transcriber, language)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Entry processing.
	r.Post("/entries", h.CreateEntry)
	r.Post("/recordings", h.CreateRecording)

	// Pages.
	r.Get("/pages", h.ListPages)
	r.Get("/pages/{date}", func(w http.ResponseWriter, req *http.Request) {
		h.GetPage(w, req, chi.URLParam(req, "date"))
	})

	// Journal.
	r.Get("/recordings", h.ListRecordings)

	// Maintenance.
	r.Post("/dedupe", h.Dedupe)
	r.Post("/repair", h.Repair)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
