package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/hweng-dev/adsplice/internal/domain/model"
	"github.com/hweng-dev/adsplice/internal/domain/repository"
)

// PrewarmRequest asks for variants of every active creative in one
// target format to be built in the background.
type PrewarmRequest struct {
	FPS    int `json:"fps"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PrewarmResponse reports how many tasks were queued.
type PrewarmResponse struct {
	Format      string `json:"format"`
	TasksQueued int    `json:"tasks_queued"`
}

// PrewarmHandler queues variant pre-warm tasks for active creatives.
type PrewarmHandler struct {
	catalog repository.AdCatalog
	queue   repository.MessageQueue
}

// NewPrewarmHandler creates a new PrewarmHandler.
func NewPrewarmHandler(catalog repository.AdCatalog, queue repository.MessageQueue) *PrewarmHandler {
	return &PrewarmHandler{catalog: catalog, queue: queue}
}

// Trigger handles POST /v1/prewarm.
func (h *PrewarmHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req PrewarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	format := model.VideoFormat{FPS: req.FPS, Width: req.Width, Height: req.Height}
	if format.FPS <= 0 || format.Width <= 0 || format.Height <= 0 {
		Error(w, http.StatusBadRequest, "invalid_format", "fps, width and height must be positive")
		return
	}

	creatives, err := h.catalog.ListActive(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	queued := 0
	for _, creative := range creatives {
		task := repository.PrewarmTask{
			TaskID:     uuid.New(),
			CreativeID: creative.ID,
			Format:     format,
		}
		if err := h.queue.PublishPrewarmTask(r.Context(), task); err != nil {
			Error(w, http.StatusBadGateway, "queue_unavailable", "Failed to publish prewarm task")
			return
		}
		queued++
	}

	JSON(w, http.StatusAccepted, PrewarmResponse{
		Format:      format.Key(),
		TasksQueued: queued,
	})
}
