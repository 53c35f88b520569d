package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/diary"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/transcribe"
)

// Handler holds API route handlers.
type Handler struct {
	svc         *diary.Service
	transcriber transcribe.Transcriber
	language    string
}

// NewHandler creates a new Handler. transcriber may be nil when audio
// uploads are not configured.
func NewHandler(svc *diary.Service, transcriber transcribe.Transcriber, language string) *Handler {
	return &Handler{svc: svc, transcriber: transcriber, language: language}
}

// CreateEntry handles POST /entries: resolve, format, locate, then
// merge into the day's page or create it.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	res, err := h.svc.ProcessEntry(r.Context(), req.Text, models.SourceAPI, req.Tags)
	if err != nil {
		h.writeStoreError(w, "process entry", err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// CreateRecording handles POST /recordings: multipart audio upload,
// transcription, then the same pipeline as a text entry.
func (h *Handler) CreateRecording(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("transcription is not configured"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 50<<20)
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("multipart field 'audio' is required"))
		return
	}
	defer file.Close()

	text, err := h.transcriber.Transcribe(r.Context(), file, header.Filename, h.language)
	if err != nil {
		slog.Error("transcription failed",
			slog.String("file", header.Filename),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("transcription failed"))
		return
	}

	res, err := h.svc.ProcessEntry(r.Context(), text, models.SourceAPI, nil)
	if err != nil {
		h.writeStoreError(w, "process recording", err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// GetPage handles GET /pages/{date}: look up the diary page for one
// calendar date (YYYY-MM-DD).
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request, rawDate string) {
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("date must be YYYY-MM-DD"))
		return
	}
	page, err := h.svc.FindByDate(r.Context(), date)
	if err != nil {
		h.writeStoreError(w, "get page", err)
		return
	}
	if page == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListPages handles GET /pages.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.svc.ListPages(r.Context())
	if err != nil {
		h.writeStoreError(w, "list pages", err)
		return
	}
	if pages == nil {
		pages = []models.DiaryPage{}
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: pages, Total: len(pages)})
}

// ListRecordings handles GET /recordings.
func (h *Handler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	recs, total, err := h.svc.ListRecordings(limit, offset)
	if err != nil {
		slog.Error("list recordings failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, RecordingListResponse{Recordings: recs, Total: total})
}

// Dedupe handles POST /dedupe: the batch consolidation run.
func (h *Handler) Dedupe(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Dedupe(r.Context())
	if err != nil {
		h.writeStoreError(w, "dedupe", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Repair handles POST /repair: resync date properties with titles.
func (h *Handler) Repair(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.svc.RepairDates(r.Context())
	if err != nil {
		h.writeStoreError(w, "repair", err)
		return
	}
	writeJSON(w, http.StatusOK, RepairResponse{FixedCount: fixed})
}

// writeStoreError maps the apperr taxonomy onto HTTP statuses. Rate
// limiting is reported as 503 with Retry-After so callers can back off.
func (h *Handler) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrMissingCredential):
		slog.Error(op+" failed: store credential missing")
		writeJSON(w, http.StatusInternalServerError, errorBody("document store credential is not configured"))
	case errors.Is(err, apperr.ErrUnauthorized):
		slog.Error(op+" failed: store rejected credential")
		writeJSON(w, http.StatusBadGateway, errorBody("document store rejected credential"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrRateLimited):
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusServiceUnavailable, errorBody("document store rate limited"))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
