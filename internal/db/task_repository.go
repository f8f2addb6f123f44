package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrTaskNotFound = errors.New("download task not found")
var ErrDuplicateSuccess = errors.New("a successful download already exists for this video and type")

type DownloadTask struct {
	ID           uuid.UUID
	VideoID      int64
	DownloadType string
	Quality      string
	FormatID     string
	Status       string
	Progress     int
	Speed        string
	ETA          string
	TotalSize    string
	OutputPath   string
	ErrorMessage string
	CreatedBy    *uuid.UUID
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

type TaskRepository struct {
	db *DB
}

func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, video_id, download_type, quality, format_id, status, progress,
	speed, eta, total_size, output_path, error_message, created_by,
	created_at, started_at, completed_at`

func scanTask(row interface{ Scan(...any) error }) (*DownloadTask, error) {
	t := &DownloadTask{}
	err := row.Scan(
		&t.ID, &t.VideoID, &t.DownloadType, &t.Quality, &t.FormatID, &t.Status, &t.Progress,
		&t.Speed, &t.ETA, &t.TotalSize, &t.OutputPath, &t.ErrorMessage, &t.CreatedBy,
		&t.CreatedAt, &t.StartedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return t, nil
}

// Create inserts a task inside a transaction that first checks for an
// existing successful task of the same (video, type) pair. The check and
// insert run atomically, and the partial unique index on successful tasks
// backs the same rule at the storage level, so two racing creations
// cannot both pass.
func (r *TaskRepository) Create(ctx context.Context, task *DownloadTask) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM download_tasks
			WHERE video_id = $1 AND download_type = $2 AND status = 'success'
		)
	`, task.VideoID, task.DownloadType).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateSuccess
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO download_tasks (id, video_id, download_type, quality, format_id,
			status, progress, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, task.ID, task.VideoID, task.DownloadType, task.Quality, task.FormatID,
		task.Status, task.Progress, task.CreatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSuccess
		}
		return err
	}

	return tx.Commit()
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*DownloadTask, error) {
	query := `SELECT ` + taskColumns + ` FROM download_tasks WHERE id = $1`
	return scanTask(r.db.QueryRowContext(ctx, query, id))
}

func (r *TaskRepository) ListByCreator(ctx context.Context, createdBy uuid.UUID, limit, offset int) ([]DownloadTask, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT ` + taskColumns + `
		FROM download_tasks
		WHERE created_by = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryTasks(ctx, query, createdBy, limit, offset)
}

func (r *TaskRepository) ListByVideo(ctx context.Context, videoID int64) ([]DownloadTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM download_tasks
		WHERE video_id = $1
		ORDER BY created_at DESC
	`
	return r.queryTasks(ctx, query, videoID)
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]DownloadTask, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []DownloadTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateStatus transitions a task's lifecycle fields. Started and
// completed timestamps are set when the matching status is written.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	query := `
		UPDATE download_tasks
		SET status = $2,
			error_message = $3,
			started_at = CASE WHEN $2 = 'downloading' AND started_at IS NULL THEN NOW() ELSE started_at END,
			completed_at = CASE WHEN $2 IN ('success', 'failed') THEN NOW() ELSE completed_at END
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, errorMessage)
	if err != nil {
		// the partial unique index rejects a second success for the same
		// (video_id, download_type) pair
		if isUniqueViolation(err) {
			return ErrDuplicateSuccess
		}
		return err
	}
	return checkAffected(result, ErrTaskNotFound)
}

// UpdateProgress persists one progress observation
func (r *TaskRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, speed, eta, totalSize string) error {
	query := `
		UPDATE download_tasks
		SET progress = $2, speed = $3, eta = $4, total_size = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, progress, speed, eta, totalSize)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrTaskNotFound)
}

// SetOutputPath records where the downloaded file landed
func (r *TaskRepository) SetOutputPath(ctx context.Context, id uuid.UUID, path string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE download_tasks SET output_path = $2 WHERE id = $1`, id, path)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrTaskNotFound)
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM download_tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(result, ErrTaskNotFound)
}
