package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/followread/backend/internal/db"
	apperrors "github.com/followread/backend/internal/errors"
	"github.com/followread/backend/internal/logger"
	"github.com/followread/backend/internal/metrics"
	"github.com/followread/backend/internal/storage"
	"github.com/followread/backend/internal/websocket"
	"github.com/followread/backend/internal/ytdlp"
)

// TaskStore is the persistence surface for download tasks
type TaskStore interface {
	Create(ctx context.Context, task *db.DownloadTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.DownloadTask, error)
	ListByCreator(ctx context.Context, createdBy uuid.UUID, limit, offset int) ([]db.DownloadTask, error)
	ListByVideo(ctx context.Context, videoID int64) ([]db.DownloadTask, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int, speed, eta, totalSize string) error
	SetOutputPath(ctx context.Context, id uuid.UUID, path string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// VideoLookup resolves the video a task downloads
type VideoLookup interface {
	GetByID(ctx context.Context, id int64) (*db.Video, error)
}

// Broadcaster pushes task events to live subscribers
type Broadcaster interface {
	Broadcast(event *websocket.TaskEvent)
}

// Archiver copies finished downloads to object storage
type Archiver interface {
	Archive(ctx context.Context, filePath string, meta storage.ArchiveMetadata) (string, error)
}

// Service runs download tasks with bounded concurrency. A permit pool
// gates the downloading phase; tasks wait in queued status until a
// permit frees.
type Service struct {
	tasks    TaskStore
	videos   VideoLookup
	invoker  ytdlp.Invoker
	hub      Broadcaster
	permits  *PermitPool
	archiver Archiver
	log      *logger.Logger

	mu      sync.Mutex
	running map[uuid.UUID]bool
}

func NewService(tasks TaskStore, videos VideoLookup, invoker ytdlp.Invoker, hub Broadcaster, permits *PermitPool) *Service {
	return &Service{
		tasks:   tasks,
		videos:  videos,
		invoker: invoker,
		hub:     hub,
		permits: permits,
		log:     logger.Default().WithComponent("download"),
		running: make(map[uuid.UUID]bool),
	}
}

// SetArchiver enables copying finished downloads to object storage
func (s *Service) SetArchiver(a Archiver) {
	s.archiver = a
}

// TaskRequest describes a download task creation
type TaskRequest struct {
	VideoID      int64
	DownloadType string
	Quality      string
	FormatID     string
	CreatedBy    *uuid.UUID
}

// CreateTask creates and starts a download task. Duplicate-success pairs
// are rejected by the transactional check-and-insert before any
// subprocess is spawned. The returned task id is the handle callers poll
// or subscribe with.
func (s *Service) CreateTask(ctx context.Context, req TaskRequest) (*db.DownloadTask, error) {
	if req.DownloadType != TypeVideo && req.DownloadType != TypeAudio {
		return nil, apperrors.ValidationError("download type must be video or audio")
	}

	video, err := s.videos.GetByID(ctx, req.VideoID)
	if err != nil {
		if errors.Is(err, db.ErrVideoNotFound) {
			return nil, apperrors.VideoNotFound()
		}
		return nil, apperrors.DatabaseError("failed to load video").WithCause(err)
	}

	task := &db.DownloadTask{
		ID:           uuid.New(),
		VideoID:      req.VideoID,
		DownloadType: req.DownloadType,
		Quality:      req.Quality,
		FormatID:     req.FormatID,
		Status:       string(StatusQueued),
		Progress:     0,
		CreatedBy:    req.CreatedBy,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		if errors.Is(err, db.ErrDuplicateSuccess) {
			return nil, apperrors.DuplicateSuccess(req.DownloadType)
		}
		return nil, apperrors.DatabaseError("failed to create task").WithCause(err)
	}

	s.mu.Lock()
	s.running[task.ID] = true
	s.mu.Unlock()
	s.updateQueueGauge()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.running, task.ID)
			s.mu.Unlock()
			s.updateQueueGauge()
		}()
		bg, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		s.runTask(bg, task, video)
	}()

	return task, nil
}

// runTask drives one task through its lifecycle. Nothing escapes as a
// panic; every failure is captured into the task record.
func (s *Service) runTask(ctx context.Context, task *db.DownloadTask, video *db.Video) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(ctx, "panic during download", nil, map[string]interface{}{
				"task_id": task.ID.String(),
				"panic":   fmt.Sprint(r),
			})
			s.fail(ctx, task, video, fmt.Sprintf("internal error: %v", r))
		}
	}()

	// queued until a permit frees
	if err := s.permits.Acquire(ctx); err != nil {
		s.fail(ctx, task, video, "timed out waiting for a download slot")
		return
	}
	metrics.Default().SetPermitsInUse(int64(s.permits.InUse()))
	s.updateQueueGauge()
	defer func() {
		s.permits.Release()
		metrics.Default().SetPermitsInUse(int64(s.permits.InUse()))
	}()

	if err := s.transition(ctx, task, video, StatusParsing, ""); err != nil {
		return
	}
	s.publishProgress(ctx, task, video, progressSetup, "", "", "")

	if err := s.transition(ctx, task, video, StatusDownloading, ""); err != nil {
		return
	}

	events := make(chan ytdlp.ProgressEvent, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		// events from one sequential read loop arrive in order, and the
		// monotonic guard holds the published value steady across the
		// floor.
		last := progressFloor
		for ev := range events {
			p := MapProgress(ev.Percent)
			if p < last {
				p = last
			}
			last = p
			s.publishProgress(ctx, task, video, p, ev.Speed, ev.ETA, ev.TotalSize)
		}
	}()

	spec := ytdlp.DownloadSpec{
		Type:     task.DownloadType,
		FormatID: task.FormatID,
		Quality:  task.Quality,
		Title:    video.Title,
	}

	path, err := s.invoker.Download(ctx, video.SourceURL, spec, events)
	close(events)
	<-done

	if err != nil {
		s.fail(ctx, task, video, downloadErrorMessage(err))
		return
	}

	if err := s.tasks.SetOutputPath(ctx, task.ID, path); err != nil {
		s.log.Warn(ctx, "failed to store output path", map[string]interface{}{
			"task_id": task.ID.String(),
			"error":   err.Error(),
		})
	}
	task.OutputPath = path

	s.publishProgress(ctx, task, video, progressComplete, "", "", "")
	if err := s.transition(ctx, task, video, StatusSuccess, ""); err != nil {
		// a racing task for the same (video, type) can record success
		// first; the task must still reach a terminal status
		msg := "failed to record success: " + err.Error()
		if errors.Is(err, db.ErrDuplicateSuccess) {
			msg = apperrors.DuplicateSuccess(task.DownloadType).Message
		}
		s.fail(ctx, task, video, msg)
		return
	}

	s.log.Info(ctx, "download completed", map[string]interface{}{
		"task_id": task.ID.String(),
		"video":   video.ExternalID,
		"path":    path,
	})

	if s.archiver != nil {
		key, err := s.archiver.Archive(ctx, path, storage.ArchiveMetadata{
			ExternalID:   video.ExternalID,
			Title:        video.Title,
			DownloadType: task.DownloadType,
			SourceURL:    video.SourceURL,
		})
		if err != nil {
			s.log.Warn(ctx, "archive upload failed", map[string]interface{}{
				"task_id": task.ID.String(),
				"error":   err.Error(),
			})
		} else {
			s.log.Info(ctx, "download archived", map[string]interface{}{
				"task_id": task.ID.String(),
				"key":     key,
			})
		}
	}
}

// downloadErrorMessage distinguishes permission walls from generic
// download failures.
func downloadErrorMessage(err error) string {
	switch {
	case errors.Is(err, ytdlp.ErrPermissionRequired):
		return apperrors.PermissionRequired().Message
	case errors.Is(err, ytdlp.ErrNotFound):
		return "video not found at source"
	case errors.Is(err, ytdlp.ErrNetwork):
		return "network failure while downloading"
	default:
		return "download failed: " + err.Error()
	}
}

// ErrorCode maps a task failure message back to an error code for the
// API layer.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ytdlp.ErrPermissionRequired):
		return apperrors.CodePermissionRequired
	default:
		return apperrors.CodeDownloadFailed
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*db.DownloadTask, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrTaskNotFound) {
			return nil, apperrors.TaskNotFound()
		}
		return nil, apperrors.DatabaseError("failed to load task").WithCause(err)
	}
	return task, nil
}

func (s *Service) ListByCreator(ctx context.Context, createdBy uuid.UUID, limit, offset int) ([]db.DownloadTask, error) {
	tasks, err := s.tasks.ListByCreator(ctx, createdBy, limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list tasks").WithCause(err)
	}
	return tasks, nil
}

func (s *Service) ListByVideo(ctx context.Context, videoID int64) ([]db.DownloadTask, error) {
	tasks, err := s.tasks.ListByVideo(ctx, videoID)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list tasks").WithCause(err)
	}
	return tasks, nil
}

// Delete removes a task record and its on-disk output
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		return apperrors.DatabaseError("failed to delete task").WithCause(err)
	}

	if task.OutputPath != "" {
		if err := os.Remove(task.OutputPath); err != nil && !os.IsNotExist(err) {
			s.log.Warn(ctx, "failed to remove downloaded file", map[string]interface{}{
				"task_id": id.String(),
				"path":    task.OutputPath,
				"error":   err.Error(),
			})
		}
	}

	return nil
}

// ActiveDownloads returns the number of permits currently held
func (s *Service) ActiveDownloads() int {
	return s.permits.InUse()
}

// updateQueueGauge publishes the number of tasks waiting for a permit
func (s *Service) updateQueueGauge() {
	s.mu.Lock()
	waiting := len(s.running) - s.permits.InUse()
	s.mu.Unlock()
	if waiting < 0 {
		waiting = 0
	}
	metrics.Default().SetQueuedDownloads(int64(waiting))
}

// transition validates and persists a status change, then broadcasts it
func (s *Service) transition(ctx context.Context, task *db.DownloadTask, video *db.Video, to Status, errorMessage string) error {
	from := Status(task.Status)
	if err := ValidateTransition(from, to); err != nil {
		s.log.Error(ctx, "rejected task transition", err, map[string]interface{}{
			"task_id": task.ID.String(),
		})
		return err
	}

	if err := s.tasks.UpdateStatus(ctx, task.ID, string(to), errorMessage); err != nil {
		s.log.Error(ctx, "failed to persist task status", err, map[string]interface{}{
			"task_id": task.ID.String(),
		})
		return err
	}
	task.Status = string(to)
	task.ErrorMessage = errorMessage

	switch to {
	case StatusSuccess:
		metrics.Default().IncCounter("download_success")
	case StatusFailed:
		metrics.Default().IncCounter("download_failed")
	}

	s.hub.Broadcast(&websocket.TaskEvent{
		Type:     "task_update",
		TaskID:   task.ID,
		VideoID:  task.VideoID,
		Status:   string(to),
		Progress: task.Progress,
		Error:    errorMessage,
		Title:    video.Title,
	})
	return nil
}

func (s *Service) fail(ctx context.Context, task *db.DownloadTask, video *db.Video, message string) {
	if Status(task.Status).IsTerminal() {
		return
	}
	s.transition(ctx, task, video, StatusFailed, message)
}

// publishProgress persists and republishes one progress observation
func (s *Service) publishProgress(ctx context.Context, task *db.DownloadTask, video *db.Video, progress int, speed, eta, totalSize string) {
	if progress < task.Progress {
		progress = task.Progress
	}
	task.Progress = progress

	if err := s.tasks.UpdateProgress(ctx, task.ID, progress, speed, eta, totalSize); err != nil {
		s.log.Warn(ctx, "failed to persist progress", map[string]interface{}{
			"task_id": task.ID.String(),
			"error":   err.Error(),
		})
	}

	s.hub.Broadcast(&websocket.TaskEvent{
		Type:      "task_progress",
		TaskID:    task.ID,
		VideoID:   task.VideoID,
		Status:    task.Status,
		Progress:  progress,
		Speed:     speed,
		ETA:       eta,
		TotalSize: totalSize,
		Title:     video.Title,
	})
}
