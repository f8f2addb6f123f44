package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/followread/backend/internal/auth"
	"github.com/followread/backend/internal/db"
	"github.com/followread/backend/internal/download"
	apperrors "github.com/followread/backend/internal/errors"
	"github.com/followread/backend/internal/validators"
	"github.com/followread/backend/internal/video"
	"github.com/followread/backend/internal/ytdlp"
)

type DownloadHandlers struct {
	downloadService *download.Service
	videoService    *video.Service
	invoker         ytdlp.Invoker
	registry        *validators.Registry
}

func NewDownloadHandlers(downloadService *download.Service, videoService *video.Service, invoker ytdlp.Invoker, registry *validators.Registry) *DownloadHandlers {
	return &DownloadHandlers{
		downloadService: downloadService,
		videoService:    videoService,
		invoker:         invoker,
		registry:        registry,
	}
}

type createTaskRequest struct {
	VideoID      int64  `json:"video_id"`
	DownloadType string `json:"download_type"`
	Quality      string `json:"quality,omitempty"`
	FormatID     string `json:"format_id,omitempty"`
}

type quickDownloadRequest struct {
	URL          string `json:"url"`
	DownloadType string `json:"download_type"`
	Quality      string `json:"quality,omitempty"`
}

type taskResponse struct {
	TaskID       string `json:"task_id"`
	VideoID      int64  `json:"video_id"`
	DownloadType string `json:"download_type"`
	Quality      string `json:"quality,omitempty"`
	FormatID     string `json:"format_id,omitempty"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	Speed        string `json:"speed,omitempty"`
	ETA          string `json:"eta,omitempty"`
	TotalSize    string `json:"total_size,omitempty"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

func toTaskResponse(t *db.DownloadTask) taskResponse {
	resp := taskResponse{
		TaskID:       t.ID.String(),
		VideoID:      t.VideoID,
		DownloadType: t.DownloadType,
		Quality:      t.Quality,
		FormatID:     t.FormatID,
		Status:       t.Status,
		Progress:     t.Progress,
		Speed:        t.Speed,
		ETA:          t.ETA,
		TotalSize:    t.TotalSize,
		Error:        t.ErrorMessage,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}
	if t.StartedAt != nil {
		resp.StartedAt = t.StartedAt.Format(time.RFC3339)
	}
	if t.CompletedAt != nil {
		resp.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func pathTaskID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("task_id"))
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("task_id must be a UUID")
	}
	return id, nil
}

// CreateTask handles POST /api/v1/downloads
func (h *DownloadHandlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	var req createTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.VideoID <= 0 {
		writeError(w, r, apperrors.ValidationError("video_id is required"))
		return
	}

	task, err := h.downloadService.CreateTask(r.Context(), download.TaskRequest{
		VideoID:      req.VideoID,
		DownloadType: req.DownloadType,
		Quality:      req.Quality,
		FormatID:     req.FormatID,
		CreatedBy:    &userCtx.UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toTaskResponse(task))
}

// QuickDownload handles POST /api/v1/downloads/quick: registers the
// video if needed and starts the task in one call.
func (h *DownloadHandlers) QuickDownload(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	var req quickDownloadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	result := h.registry.Validate(req.URL)
	if !result.Valid {
		writeError(w, r, apperrors.UnsupportedSource(result.Error))
		return
	}

	v, err := h.videoService.Add(r.Context(), result.Canonical, &userCtx.UserID)
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok && appErr.Code == apperrors.CodeVideoExists {
			v, err = h.videoService.GetByExternalID(r.Context(), result.VideoID)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	task, err := h.downloadService.CreateTask(r.Context(), download.TaskRequest{
		VideoID:      v.ID,
		DownloadType: req.DownloadType,
		Quality:      req.Quality,
		CreatedBy:    &userCtx.UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toTaskResponse(task))
}

// GetTask handles GET /api/v1/downloads/{task_id}
func (h *DownloadHandlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathTaskID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.downloadService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toTaskResponse(task))
}

// ListTasks handles GET /api/v1/downloads
func (h *DownloadHandlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	limit := queryInt(r, "limit", 50, 200)
	offset := queryInt(r, "offset", 0, 0)

	tasks, err := h.downloadService.ListByCreator(r.Context(), userCtx.UserID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	responses := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		responses = append(responses, toTaskResponse(&tasks[i]))
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"tasks":  responses,
		"limit":  limit,
		"offset": offset,
	})
}

// ListVideoTasks handles GET /api/v1/videos/{id}/downloads
func (h *DownloadHandlers) ListVideoTasks(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	tasks, err := h.downloadService.ListByVideo(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	responses := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		responses = append(responses, toTaskResponse(&tasks[i]))
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"video_id": id,
		"tasks":    responses,
	})
}

// ListFormats handles GET /api/v1/videos/{id}/formats
func (h *DownloadHandlers) ListFormats(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.videoService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	formats, err := h.invoker.ListFormats(r.Context(), v.SourceURL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"video_id": id,
		"formats":  formats,
	})
}

// ServeFile handles GET /api/v1/downloads/{task_id}/file
func (h *DownloadHandlers) ServeFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathTaskID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.downloadService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if task.Status != string(download.StatusSuccess) || task.OutputPath == "" {
		writeError(w, r, apperrors.Conflict("download is not finished"))
		return
	}

	// ServeFile handles range requests for media scrubbing
	http.ServeFile(w, r, task.OutputPath)
}

// DeleteTask handles DELETE /api/v1/downloads/{task_id}
func (h *DownloadHandlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathTaskID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.downloadService.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}
