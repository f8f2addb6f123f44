package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNoteNotFound = errors.New("study note not found")

type StudyNote struct {
	ID         int64
	ExternalID string
	UserID     uuid.UUID
	Content    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type NoteRepository struct {
	db *DB
}

func NewNoteRepository(db *DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Create(ctx context.Context, note *StudyNote) error {
	query := `
		INSERT INTO study_notes (external_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRowContext(ctx, query, note.ExternalID, note.UserID, note.Content).
		Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
}

func (r *NoteRepository) GetByID(ctx context.Context, id int64, userID uuid.UUID) (*StudyNote, error) {
	query := `
		SELECT id, external_id, user_id, content, created_at, updated_at
		FROM study_notes
		WHERE id = $1 AND user_id = $2
	`

	note := &StudyNote{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&note.ID, &note.ExternalID, &note.UserID, &note.Content, &note.CreatedAt, &note.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}

	return note, nil
}

func (r *NoteRepository) ListByVideo(ctx context.Context, externalID string, userID uuid.UUID) ([]StudyNote, error) {
	query := `
		SELECT id, external_id, user_id, content, created_at, updated_at
		FROM study_notes
		WHERE external_id = $1 AND user_id = $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, externalID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []StudyNote
	for rows.Next() {
		var n StudyNote
		if err := rows.Scan(&n.ID, &n.ExternalID, &n.UserID, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r *NoteRepository) Update(ctx context.Context, id int64, userID uuid.UUID, content string) error {
	query := `
		UPDATE study_notes
		SET content = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, userID, content)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrNoteNotFound)
}

func (r *NoteRepository) Delete(ctx context.Context, id int64, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM study_notes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrNoteNotFound)
}
