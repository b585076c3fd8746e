package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/dashboardr/internal/cache"
	"github.com/gyaneshwarpardhi/dashboardr/internal/event"
	"github.com/gyaneshwarpardhi/dashboardr/internal/metrics"
)

const maxBodyBytes = 1 << 20

// Handler holds all HTTP handler dependencies.
type Handler struct {
	store  cache.Store
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(store cache.Store, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{store: store, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /api/getAll", h.getAll)
	h.mux.HandleFunc("POST /api/add", h.add)
	h.mux.HandleFunc("POST /api/delete", h.delete)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(logger, h.mux)
}

// GET /api/getAll: every stored event.
func (h *Handler) getAll(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.GetAll(r.Context())
	if err != nil {
		h.logger.Error("listing events failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not list events")
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	metrics.StoredEvents.Set(float64(len(events)))
	writeJSON(w, http.StatusOK, events)
}

// POST /api/add: upsert one event; an event without id gets a UUID.
func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if ev.ID == "" {
		ev.ID = event.ID(uuid.NewString())
	}
	if err := h.store.PutAll(r.Context(), []event.Event{ev}); err != nil {
		h.logger.Error("storing event failed", "id", ev.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not store event")
		return
	}
	h.logger.Info("event stored", "id", ev.ID, "request_id", r.Header.Get("X-Request-ID"))
	writeJSON(w, http.StatusOK, ev)
}

type deleteRequest struct {
	ID event.ID `json:"id"`
}

// POST /api/delete: remove one event by id.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := h.store.DeleteByID(r.Context(), req.ID); err != nil {
		h.logger.Error("deleting event failed", "id", req.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not delete event")
		return
	}
	h.logger.Info("event deleted", "id", req.ID, "request_id", r.Header.Get("X-Request-ID"))
	writeJSON(w, http.StatusOK, map[string]string{"deleted": string(req.ID)})
}

// GET /healthz: always 200. Clients probe it to detect connectivity.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
