package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/followread/backend/internal/auth"
	"github.com/followread/backend/internal/db"
	apperrors "github.com/followread/backend/internal/errors"
	"github.com/followread/backend/internal/validators"
	"github.com/followread/backend/internal/video"
)

type VideoHandlers struct {
	videoService *video.Service
	registry     *validators.Registry
}

func NewVideoHandlers(videoService *video.Service, registry *validators.Registry) *VideoHandlers {
	return &VideoHandlers{
		videoService: videoService,
		registry:     registry,
	}
}

type addVideoRequest struct {
	URL string `json:"url"`
}

type parseRequest struct {
	Language   string `json:"language,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

type videoResponse struct {
	ID               int64   `json:"id"`
	ExternalID       string  `json:"external_id"`
	SourceURL        string  `json:"source_url"`
	Title            string  `json:"title,omitempty"`
	Duration         float64 `json:"duration,omitempty"`
	Channel          string  `json:"channel,omitempty"`
	Thumbnail        string  `json:"thumbnail,omitempty"`
	HasSubtitles     bool    `json:"has_subtitles"`
	SubtitleLanguage string  `json:"subtitle_language,omitempty"`
	Status           string  `json:"status"`
	ProgressMessage  string  `json:"progress_message,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	SentenceCount    int     `json:"sentence_count"`
	CreatedAt        string  `json:"created_at"`
	CompletedAt      string  `json:"completed_at,omitempty"`
}

func toVideoResponse(v *db.Video) videoResponse {
	resp := videoResponse{
		ID:               v.ID,
		ExternalID:       v.ExternalID,
		SourceURL:        v.SourceURL,
		Title:            v.Title,
		Duration:         v.Duration,
		Channel:          v.Channel,
		Thumbnail:        v.Thumbnail,
		HasSubtitles:     v.HasSubtitles,
		SubtitleLanguage: v.SubtitleLanguage,
		Status:           v.Status,
		ProgressMessage:  v.ProgressMessage,
		ErrorMessage:     v.ErrorMessage,
		SentenceCount:    v.SentenceCount,
		CreatedAt:        v.CreatedAt.Format(time.RFC3339),
	}
	if v.CompletedAt != nil {
		resp.CompletedAt = v.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

type sentenceResponse struct {
	Order      int     `json:"order"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Text       string  `json:"text"`
	Difficulty string  `json:"difficulty"`
}

// AddVideo handles POST /api/v1/videos
func (h *VideoHandlers) AddVideo(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	var req addVideoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, r, apperrors.ValidationError("url is required"))
		return
	}

	result := h.registry.Validate(req.URL)
	if !result.Valid {
		writeError(w, r, apperrors.UnsupportedSource(result.Error))
		return
	}

	v, err := h.videoService.Add(r.Context(), result.Canonical, &userCtx.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toVideoResponse(v))
}

// ListVideos handles GET /api/v1/videos
func (h *VideoHandlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	limit := queryInt(r, "limit", 50, 200)
	offset := queryInt(r, "offset", 0, 0)

	videos, err := h.videoService.List(r.Context(), userCtx.UserID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	responses := make([]videoResponse, 0, len(videos))
	for i := range videos {
		responses = append(responses, toVideoResponse(&videos[i]))
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"videos": responses,
		"limit":  limit,
		"offset": offset,
	})
}

// GetVideo handles GET /api/v1/videos/{id}
func (h *VideoHandlers) GetVideo(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, r, http.StatusOK, toVideoResponse(v))
}

// GetSentences handles GET /api/v1/videos/{id}/sentences
func (h *VideoHandlers) GetSentences(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	sentences, err := h.videoService.Sentences(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	responses := make([]sentenceResponse, 0, len(sentences))
	for _, s := range sentences {
		responses = append(responses, sentenceResponse{
			Order:      s.Order,
			StartTime:  s.StartTime,
			EndTime:    s.EndTime,
			Text:       s.Text,
			Difficulty: s.Difficulty,
		})
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"video_id":  id,
		"sentences": responses,
	})
}

// ParseSubtitles handles POST /api/v1/videos/{id}/parse
func (h *VideoHandlers) ParseSubtitles(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req parseRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	videoID, err := h.videoService.ParseSubtitlesAsync(r.Context(), id, req.Language, req.Difficulty)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusAccepted, map[string]interface{}{
		"video_id": videoID,
		"status":   "parsing",
	})
}

// ListSources handles GET /api/v1/videos/sources
func (h *VideoHandlers) ListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"sources": h.registry.GetSupportedSources(),
	})
}

// DeleteVideo handles DELETE /api/v1/videos/{id}
func (h *VideoHandlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.videoService.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}
