package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/followread/backend/internal/db"
	apperrors "github.com/followread/backend/internal/errors"
	"github.com/followread/backend/internal/websocket"
	"github.com/followread/backend/internal/ytdlp"
)

type fakeTaskStore struct {
	mu              sync.Mutex
	tasks           map[uuid.UUID]*db.DownloadTask
	successPresent  bool
	successWriteErr error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]*db.DownloadTask)}
}

func (f *fakeTaskStore) Create(_ context.Context, task *db.DownloadTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.successPresent {
		return db.ErrDuplicateSuccess
	}
	for _, t := range f.tasks {
		if t.VideoID == task.VideoID && t.DownloadType == task.DownloadType && t.Status == string(StatusSuccess) {
			return db.ErrDuplicateSuccess
		}
	}
	clone := *task
	f.tasks[task.ID] = &clone
	return nil
}

func (f *fakeTaskStore) GetByID(_ context.Context, id uuid.UUID) (*db.DownloadTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, db.ErrTaskNotFound
	}
	clone := *t
	return &clone, nil
}

func (f *fakeTaskStore) ListByCreator(_ context.Context, createdBy uuid.UUID, _, _ int) ([]db.DownloadTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.DownloadTask
	for _, t := range f.tasks {
		if t.CreatedBy != nil && *t.CreatedBy == createdBy {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) ListByVideo(_ context.Context, videoID int64) ([]db.DownloadTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.DownloadTask
	for _, t := range f.tasks {
		if t.VideoID == videoID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) UpdateStatus(_ context.Context, id uuid.UUID, status, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == string(StatusSuccess) && f.successWriteErr != nil {
		return f.successWriteErr
	}
	t, ok := f.tasks[id]
	if !ok {
		return db.ErrTaskNotFound
	}
	t.Status = status
	t.ErrorMessage = errorMessage
	return nil
}

func (f *fakeTaskStore) UpdateProgress(_ context.Context, id uuid.UUID, progress int, speed, eta, totalSize string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return db.ErrTaskNotFound
	}
	t.Progress = progress
	t.Speed = speed
	t.ETA = eta
	t.TotalSize = totalSize
	return nil
}

func (f *fakeTaskStore) SetOutputPath(_ context.Context, id uuid.UUID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return db.ErrTaskNotFound
	}
	t.OutputPath = path
	return nil
}

func (f *fakeTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return db.ErrTaskNotFound
	}
	delete(f.tasks, id)
	return nil
}

type fakeVideoLookup struct {
	video *db.Video
}

func (f *fakeVideoLookup) GetByID(_ context.Context, id int64) (*db.Video, error) {
	if f.video == nil || f.video.ID != id {
		return nil, db.ErrVideoNotFound
	}
	clone := *f.video
	return &clone, nil
}

type fakeHub struct {
	mu     sync.Mutex
	events []*websocket.TaskEvent
}

func (f *fakeHub) Broadcast(event *websocket.TaskEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeHub) progressSequence(taskID uuid.UUID) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int
	for _, ev := range f.events {
		if ev.TaskID == taskID && ev.Type == "task_progress" {
			out = append(out, ev.Progress)
		}
	}
	return out
}

// fakeDownloader counts calls and can block, emit progress, or fail
type fakeDownloader struct {
	calls    atomic.Int32
	active   atomic.Int32
	maxSeen  atomic.Int32
	percents []float64
	err      error
	block    chan struct{}
	dir      string
}

func (f *fakeDownloader) FetchMetadata(context.Context, string) (*ytdlp.Metadata, error) {
	return nil, ytdlp.ErrNetwork
}

func (f *fakeDownloader) FetchSubtitles(context.Context, string, string, string) (string, error) {
	return "", ytdlp.ErrNoSubtitles
}

func (f *fakeDownloader) FetchAnySubtitles(context.Context, string, string) (string, error) {
	return "", ytdlp.ErrNoSubtitles
}

func (f *fakeDownloader) ListFormats(context.Context, string) ([]ytdlp.Format, error) {
	return nil, nil
}

func (f *fakeDownloader) Download(ctx context.Context, _ string, spec ytdlp.DownloadSpec, events chan<- ytdlp.ProgressEvent) (string, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	for {
		max := f.maxSeen.Load()
		if n <= max || f.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}
	defer f.active.Add(-1)

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	for _, p := range f.percents {
		events <- ytdlp.ProgressEvent{Percent: p, Speed: "1MiB/s", ETA: "00:10", TotalSize: "10MiB"}
	}

	if f.err != nil {
		return "", f.err
	}

	path := filepath.Join(f.dir, ytdlp.SanitizeFilename(spec.Title)+".mp4")
	if err := os.WriteFile(path, []byte("media"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func testVideo() *db.Video {
	return &db.Video{ID: 1, ExternalID: "abc123def45", SourceURL: "https://youtu.be/abc123def45", Title: "Test Video"}
}

func waitForStatus(t *testing.T, store *fakeTaskStore, id uuid.UUID, want Status) *db.DownloadTask {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			task, _ := store.GetByID(context.Background(), id)
			t.Fatalf("task never reached %s, last state %+v", want, task)
			return nil
		case <-time.After(10 * time.Millisecond):
			task, err := store.GetByID(context.Background(), id)
			if err == nil && task.Status == string(want) {
				return task
			}
		}
	}
}

func TestCreateTaskRunsToSuccess(t *testing.T) {
	store := newFakeTaskStore()
	hub := &fakeHub{}
	inv := &fakeDownloader{dir: t.TempDir(), percents: []float64{10, 50, 100}}
	svc := NewService(store, &fakeVideoLookup{video: testVideo()}, inv, hub, NewPermitPool(3))

	task, err := svc.CreateTask(context.Background(), TaskRequest{VideoID: 1, DownloadType: TypeVideo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := waitForStatus(t, store, task.ID, StatusSuccess)
	if final.Progress != 100 {
		t.Errorf("final progress = %d, want 100", final.Progress)
	}
	if final.OutputPath == "" {
		t.Error("output path not recorded")
	}

	seq := hub.progressSequence(task.ID)
	if len(seq) == 0 {
		t.Fatal("no progress events broadcast")
	}
	for i := 1; i < len(seq); i++ {
		if seq[i] < seq[i-1] {
			t.Errorf("progress regressed: %v", seq)
			break
		}
	}
}

func TestCreateTaskRejectsDuplicateSuccess(t *testing.T) {
	store := newFakeTaskStore()
	store.successPresent = true
	inv := &fakeDownloader{dir: t.TempDir()}
	svc := NewService(store, &fakeVideoLookup{video: testVideo()}, inv, &fakeHub{}, NewPermitPool(3))

	_, err := svc.CreateTask(context.Background(), TaskRequest{VideoID: 1, DownloadType: TypeVideo})

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeDuplicateSuccess {
		t.Fatalf("got %v, want DUPLICATE_SUCCESS", err)
	}
	if inv.calls.Load() != 0 {
		t.Error("subprocess was spawned despite duplicate rejection")
	}
}

// Two tasks for the same (video, type) can race to the success write;
// the loser's write is rejected and the task must still end terminal.
func TestSuccessWriteRaceEndsFailed(t *testing.T) {
	store := newFakeTaskStore()
	store.successWriteErr = db.ErrDuplicateSuccess
	hub := &fakeHub{}
	inv := &fakeDownloader{dir: t.TempDir(), percents: []float64{50, 100}}
	svc := NewService(store, &fakeVideoLookup{video: testVideo()}, inv, hub, NewPermitPool(1))

	task, err := svc.CreateTask(context.Background(), TaskRequest{VideoID: 1, DownloadType: TypeVideo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := waitForStatus(t, store, task.ID, StatusFailed)
	if want := apperrors.DuplicateSuccess(TypeVideo).Message; final.ErrorMessage != want {
		t.Errorf("error message = %q, want %q", final.ErrorMessage, want)
	}

	hub.mu.Lock()
	var sawTerminal bool
	for _, ev := range hub.events {
		if ev.TaskID == task.ID && ev.Type == "task_update" && ev.Status == string(StatusFailed) {
			sawTerminal = true
		}
	}
	hub.mu.Unlock()
	if !sawTerminal {
		t.Error("no terminal task_update broadcast")
	}
}

func TestCreateTaskRejectsUnknownType(t *testing.T) {
	store := newFakeTaskStore()
	svc := NewService(store, &fakeVideoLookup{video: testVideo()}, &fakeDownloader{dir: t.TempDir()}, &fakeHub{}, NewPermitPool(3))

	_, err := svc.CreateTask(context.Background(), TaskRequest{VideoID: 1, DownloadType: "torrent"})
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeValidationError {
		t.Errorf("got %v, want VALIDATION_ERROR", err)
	}
}

func TestAdmissionControl(t *testing.T) {
	store := newFakeTaskStore()
	block := make(chan struct{})
	inv := &fakeDownloader{dir: t.TempDir(), block: block}
	pool := NewPermitPool(2)
	svc := NewService(store, &fakeVideoLookup{video: testVideo()}, inv, &fakeHub{}, pool)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		task, err := svc.CreateTask(context.Background(), TaskRequest{VideoID: 1, DownloadType: TypeVideo})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, task.ID)
	}

	// wait for the pool to fill
	deadline := time.After(5 * time.Second)
	for pool.InUse() < 2 {
		select {
		case <-deadline:
			t.Fatal("pool never filled")
		case <-time.After(10 * time.Millisecond):
		}
	}

	time.Sleep(50 * time.Millisecond)
	if got := inv.maxSeen.Load(); got > 2 {
		t.Fatalf("%d concurrent downloads, want at most 2", got)
	}

	queued := 0
	for _, id := range ids {
		task, _ := store.GetByID(context.Background(), id)
		if task.Status == string(StatusQueued) {
			queued++
		}
	}
	if queued != 3 {
		t.Errorf("%d tasks queued, want 3", queued)
	}

	close(block)
	for _, id := range ids {
		waitForStatus(t, store, id, StatusSuccess)
	}
	if got := inv.maxSeen.Load(); got > 2 {
		t.Errorf("%d concurrent downloads after release, want at most 2", got)
	}
}

func TestPermissionFailure(t *testing.T) {
	store := newFakeTaskStore()
	inv := &fakeDownloader{
		dir: t.TempDir(),
		err: &ytdlp.ExtractionError{Message: "sign-in wall", Err: ytdlp.ErrPermissionRequired},
	}
	svc := NewService(store, &fakeVideoLookup{video: testVideo()}, inv, &fakeHub{}, NewPermitPool(1))

	task, err := svc.CreateTask(context.Background(), TaskRequest{VideoID: 1, DownloadType: TypeVideo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := waitForStatus(t, store, task.ID, StatusFailed)
	if final.ErrorMessage != apperrors.PermissionRequired().Message {
		t.Errorf("error message = %q", final.ErrorMessage)
	}
}

func TestDeleteRemovesOutputFile(t *testing.T) {
	store := newFakeTaskStore()
	inv := &fakeDownloader{dir: t.TempDir()}
	svc := NewService(store, &fakeVideoLookup{video: testVideo()}, inv, &fakeHub{}, NewPermitPool(1))

	task, err := svc.CreateTask(context.Background(), TaskRequest{VideoID: 1, DownloadType: TypeVideo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	final := waitForStatus(t, store, task.ID, StatusSuccess)

	if err := svc.Delete(context.Background(), task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := os.Stat(final.OutputPath); !os.IsNotExist(err) {
		t.Error("output file still on disk after delete")
	}
	if _, err := store.GetByID(context.Background(), task.ID); !errors.Is(err, db.ErrTaskNotFound) {
		t.Error("task record still present after delete")
	}
}

func TestPermitPool(t *testing.T) {
	pool := NewPermitPool(2)

	if !pool.TryAcquire() || !pool.TryAcquire() {
		t.Fatal("expected two permits")
	}
	if pool.TryAcquire() {
		t.Fatal("third acquire must fail")
	}
	if pool.InUse() != 2 {
		t.Errorf("InUse = %d, want 2", pool.InUse())
	}

	pool.Release()
	if pool.InUse() != 1 {
		t.Errorf("InUse after release = %d, want 1", pool.InUse())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Acquire(ctx); err != nil {
		t.Fatalf("acquire with free slot: %v", err)
	}
	if err := pool.Acquire(ctx); err == nil {
		t.Fatal("acquire on full pool must time out")
	}
}
