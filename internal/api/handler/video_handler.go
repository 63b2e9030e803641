package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/Prodelaya/youtube-AIsummary-sub001/internal/api/middleware"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/service"
)

// VideoHandler handles video submission and summary read endpoints.
type VideoHandler struct {
	svc    *service.SummaryService
	logger *zap.Logger
}

func NewVideoHandler(svc *service.SummaryService, logger *zap.Logger) *VideoHandler {
	return &VideoHandler{svc: svc, logger: logger}
}

// Submit handles POST /api/v1/videos
//
// @Summary  Register a video for processing
// @Tags     videos
// @Accept   json
// @Produce  json
// @Param    body  body      domain.SubmitVideoRequest  true  "Video payload"
// @Success  201   {object}  domain.Video
// @Success  200   {object}  domain.Video  "Duplicate: returned existing video"
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/videos [post]
func (h *VideoHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	v, isDuplicate, err := h.svc.SubmitVideo(r.Context(), req)
	if err != nil {
		h.logger.Warn("submit video failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	status := http.StatusCreated
	if isDuplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, v)
}

// GetByID handles GET /api/v1/videos/{id}
//
// @Summary  Get a video and its processing status
// @Tags     videos
// @Produce  json
// @Param    id   path      string  true  "Video UUID"
// @Success  200  {object}  domain.Video
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/videos/{id} [get]
func (h *VideoHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := h.svc.GetVideo(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// GetSummary handles GET /api/v1/videos/{id}/summary
//
// @Summary  Get the summary produced for a video
// @Tags     videos
// @Produce  json
// @Param    id   path      string  true  "Video UUID"
// @Success  200  {object}  domain.Summary
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/videos/{id}/summary [get]
func (h *VideoHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.svc.SummaryByVideo(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// Requeue handles POST /api/v1/videos/{id}/requeue
//
// @Summary  Reset a failed video to pending and process it again
// @Tags     videos
// @Produce  json
// @Param    id   path      string  true  "Video UUID"
// @Success  202  {object}  map[string]string
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/videos/{id}/requeue [post]
func (h *VideoHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Requeue(r.Context(), id); err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "requeued"})
}

// Recent handles GET /api/v1/sources/{id}/summaries
//
// @Summary  List the latest summaries for a source
// @Tags     sources
// @Produce  json
// @Param    id     path      string  true   "Source ID"
// @Param    limit  query     int     false  "Max items (default 10, max 50)"
// @Success  200    {object}  map[string]any
// @Router   /api/v1/sources/{id}/summaries [get]
func (h *VideoHandler) Recent(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	summaries, err := h.svc.Recent(r.Context(), sourceID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list summaries")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  summaries,
		"count": len(summaries),
	})
}

// Stats handles GET /api/v1/stats
//
// @Summary  Per-status video counts
// @Tags     system
// @Produce  json
// @Success  200  {object}  service.Stats
// @Router   /api/v1/stats [get]
func (h *VideoHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.ProcessingStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
