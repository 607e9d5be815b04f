// Package api provides HTTP handlers for the queue daemon.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/drift/internal/domain"
	"github.com/phrazzld/drift/internal/queue"
)

// EnqueueResponse is returned after a successful enqueue.
type EnqueueResponse struct {
	ID string `json:"id"`
}

// QueueHandler exposes a set of named queue engines over HTTP.
type QueueHandler struct {
	engines map[string]*queue.Engine
	logger  *slog.Logger
}

// NewQueueHandler creates a new QueueHandler over the given engines,
// keyed by queue name as it appears in the URL.
func NewQueueHandler(engines map[string]*queue.Engine, logger *slog.Logger) *QueueHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for QueueHandler")
	}

	return &QueueHandler{
		engines: engines,
		logger:  logger.With(slog.String("component", "queue_handler")),
	}
}

// Routes mounts the handler's endpoints on a chi router.
func (h *QueueHandler) Routes(r chi.Router) {
	r.Route("/queues/{name}", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/items", h.ListItems)
		r.Post("/items", h.Enqueue)
		r.Delete("/items", h.Clear)
		r.Delete("/items/{id}", h.Cancel)
		r.Post("/sync", h.ForceSync)
	})
}

// engine resolves the engine named in the URL, writing a 404 if the
// queue does not exist.
func (h *QueueHandler) engine(w http.ResponseWriter, r *http.Request) (*queue.Engine, bool) {
	name := chi.URLParam(r, "name")
	eng, ok := h.engines[name]
	if !ok {
		h.logger.Debug("unknown queue requested", slog.String("queue", name))
		RespondWithError(w, r, http.StatusNotFound, "Queue not found")
		return nil, false
	}
	return eng, true
}

// GetStatus handles GET /queues/{name}/status requests.
func (h *QueueHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	RespondWithJSON(w, r, http.StatusOK, eng.Status())
}

// ListItems handles GET /queues/{name}/items requests. It returns the
// current pending items, including items waiting on a retry delay.
func (h *QueueHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	items := eng.Items()
	if items == nil {
		items = []domain.QueueItem{}
	}
	RespondWithJSON(w, r, http.StatusOK, items)
}

// Enqueue handles POST /queues/{name}/items requests. The body is a
// task descriptor; on success it returns the new item's ID.
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	var desc domain.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		h.logger.Debug("malformed enqueue request body", slog.String("error", err.Error()))
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := eng.Enqueue(r.Context(), desc)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrInvalidItem) {
			RespondWithError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("enqueue failed", slog.String("error", err.Error()))
		RespondWithError(w, r, http.StatusInternalServerError, "Failed to enqueue item")
		return
	}

	RespondWithJSON(w, r, http.StatusCreated, EnqueueResponse{ID: id})
}

// Cancel handles DELETE /queues/{name}/items/{id} requests.
func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if !eng.Cancel(id) {
		RespondWithError(w, r, http.StatusNotFound, "Item not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /queues/{name}/items requests, removing every
// pending item from the queue.
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	if err := eng.Clear(r.Context()); err != nil {
		h.logger.Error("clear failed", slog.String("error", err.Error()))
		RespondWithError(w, r, http.StatusInternalServerError, "Failed to clear queue")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ForceSync handles POST /queues/{name}/sync requests. It triggers a
// drain pass and waits for it to complete before responding with the
// resulting queue status. If the client disconnects first, the pass
// still runs to completion in the background.
func (h *QueueHandler) ForceSync(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	done := eng.ForceSync(r.Context())
	select {
	case <-done:
		RespondWithJSON(w, r, http.StatusOK, eng.Status())
	case <-r.Context().Done():
		RespondWithJSON(w, r, http.StatusAccepted, eng.Status())
	}
}

// HealthCheck handles GET /health requests.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
