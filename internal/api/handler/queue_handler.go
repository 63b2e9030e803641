package handler

import (
	"net/http"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/queue"
)

// QueueHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type QueueHandler struct {
	q *queue.Queue
}

func NewQueueHandler(q *queue.Queue) *QueueHandler {
	return &QueueHandler{q: q}
}

// GetQueue handles GET /api/v1/queue
//
// @Summary  Real-time queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]int
// @Router   /api/v1/queue [get]
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int{
		"depth": h.q.Depth(),
	})
}
