package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrVideoNotFound = errors.New("video not found")
var ErrVideoExists = errors.New("video already exists")

type Video struct {
	ID               int64
	ExternalID       string
	SourceURL        string
	Title            string
	Duration         float64
	Channel          string
	Thumbnail        string
	HasSubtitles     bool
	SubtitleLanguage string
	Status           string
	ProgressMessage  string
	ErrorMessage     string
	SentenceCount    int
	CreatedBy        *uuid.UUID
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

type VideoRepository struct {
	db *DB
}

func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, external_id, source_url, title, duration, channel, thumbnail,
	has_subtitles, subtitle_language, status, progress_message, error_message,
	sentence_count, created_by, created_at, completed_at`

func scanVideo(row interface{ Scan(...any) error }) (*Video, error) {
	v := &Video{}
	err := row.Scan(
		&v.ID, &v.ExternalID, &v.SourceURL, &v.Title, &v.Duration, &v.Channel, &v.Thumbnail,
		&v.HasSubtitles, &v.SubtitleLanguage, &v.Status, &v.ProgressMessage, &v.ErrorMessage,
		&v.SentenceCount, &v.CreatedBy, &v.CreatedAt, &v.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return v, nil
}

// Create inserts a new video record. One record per external id; a second
// insert for the same id returns ErrVideoExists.
func (r *VideoRepository) Create(ctx context.Context, v *Video) error {
	query := `
		INSERT INTO videos (external_id, source_url, title, duration, channel, thumbnail,
			has_subtitles, subtitle_language, status, progress_message, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		v.ExternalID, v.SourceURL, v.Title, v.Duration, v.Channel, v.Thumbnail,
		v.HasSubtitles, v.SubtitleLanguage, v.Status, v.ProgressMessage, v.CreatedBy,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrVideoExists
		}
		return err
	}

	return nil
}

func (r *VideoRepository) GetByID(ctx context.Context, id int64) (*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	return scanVideo(r.db.QueryRowContext(ctx, query, id))
}

func (r *VideoRepository) GetByExternalID(ctx context.Context, externalID string) (*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE external_id = $1`
	return scanVideo(r.db.QueryRowContext(ctx, query, externalID))
}

func (r *VideoRepository) ListByCreator(ctx context.Context, createdBy uuid.UUID, limit, offset int) ([]Video, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT ` + videoColumns + `
		FROM videos
		WHERE created_by = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, createdBy, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// UpdateStatus writes the lifecycle fields mutated by the acquisition
// orchestrator.
func (r *VideoRepository) UpdateStatus(ctx context.Context, id int64, status, progressMessage, errorMessage string) error {
	query := `
		UPDATE videos
		SET status = $2, progress_message = $3, error_message = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, progressMessage, errorMessage)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrVideoNotFound)
}

// UpdateMetadata persists fetched metadata fields
func (r *VideoRepository) UpdateMetadata(ctx context.Context, v *Video) error {
	query := `
		UPDATE videos
		SET title = $2, duration = $3, channel = $4, thumbnail = $5,
			has_subtitles = $6, subtitle_language = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		v.ID, v.Title, v.Duration, v.Channel, v.Thumbnail, v.HasSubtitles, v.SubtitleLanguage,
	)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrVideoNotFound)
}

// Complete marks a successful parse: detected language, sentence count,
// completion timestamp.
func (r *VideoRepository) Complete(ctx context.Context, id int64, language string, sentenceCount int) error {
	query := `
		UPDATE videos
		SET status = 'completed', subtitle_language = $2, sentence_count = $3,
			progress_message = '', error_message = '', completed_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, language, sentenceCount)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrVideoNotFound)
}

func (r *VideoRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrVideoNotFound)
}

func checkAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
