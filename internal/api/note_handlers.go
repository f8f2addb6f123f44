package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/followread/backend/internal/auth"
	"github.com/followread/backend/internal/db"
	apperrors "github.com/followread/backend/internal/errors"
)

type NoteHandlers struct {
	notes *db.NoteRepository
}

func NewNoteHandlers(notes *db.NoteRepository) *NoteHandlers {
	return &NoteHandlers{notes: notes}
}

type noteRequest struct {
	VideoExternalID string `json:"video_external_id"`
	Content         string `json:"content"`
}

type noteResponse struct {
	ID              int64  `json:"id"`
	VideoExternalID string `json:"video_external_id"`
	Content         string `json:"content"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toNoteResponse(n *db.StudyNote) noteResponse {
	return noteResponse{
		ID:              n.ID,
		VideoExternalID: n.ExternalID,
		Content:         n.Content,
		CreatedAt:       n.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       n.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateNote handles POST /api/v1/notes
func (h *NoteHandlers) CreateNote(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	var req noteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.VideoExternalID = strings.TrimSpace(req.VideoExternalID)
	if req.VideoExternalID == "" {
		writeError(w, r, apperrors.ValidationError("video_external_id is required"))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, r, apperrors.ValidationError("content is required"))
		return
	}

	note := &db.StudyNote{
		ExternalID: req.VideoExternalID,
		UserID:     userCtx.UserID,
		Content:    req.Content,
	}
	if err := h.notes.Create(r.Context(), note); err != nil {
		writeError(w, r, apperrors.DatabaseError("failed to create note").WithCause(err))
		return
	}

	writeJSON(w, r, http.StatusCreated, toNoteResponse(note))
}

// ListNotes handles GET /api/v1/notes?video={external_id}
func (h *NoteHandlers) ListNotes(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	externalID := strings.TrimSpace(r.URL.Query().Get("video"))
	if externalID == "" {
		writeError(w, r, apperrors.ValidationError("video query parameter is required"))
		return
	}

	notes, err := h.notes.ListByVideo(r.Context(), externalID, userCtx.UserID)
	if err != nil {
		writeError(w, r, apperrors.DatabaseError("failed to list notes").WithCause(err))
		return
	}

	responses := make([]noteResponse, 0, len(notes))
	for i := range notes {
		responses = append(responses, toNoteResponse(&notes[i]))
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"video_external_id": externalID,
		"notes":             responses,
	})
}

// UpdateNote handles PUT /api/v1/notes/{id}
func (h *NoteHandlers) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req noteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, r, apperrors.ValidationError("content is required"))
		return
	}

	if err := h.notes.Update(r.Context(), id, userCtx.UserID, req.Content); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, db.ErrNoteNotFound) {
			writeError(w, r, apperrors.NoteNotFound())
			return
		}
		writeError(w, r, apperrors.DatabaseError("failed to update note").WithCause(err))
		return
	}

	note, err := h.notes.GetByID(r.Context(), id, userCtx.UserID)
	if err != nil {
		writeError(w, r, apperrors.NoteNotFound())
		return
	}

	writeJSON(w, r, http.StatusOK, toNoteResponse(note))
}

// DeleteNote handles DELETE /api/v1/notes/{id}
func (h *NoteHandlers) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		writeError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.notes.Delete(r.Context(), id, userCtx.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, db.ErrNoteNotFound) {
			writeError(w, r, apperrors.NoteNotFound())
			return
		}
		writeError(w, r, apperrors.DatabaseError("failed to delete note").WithCause(err))
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}
