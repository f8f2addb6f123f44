package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/followread/backend/internal/db"
	apperrors "github.com/followread/backend/internal/errors"
	"github.com/followread/backend/internal/ytdlp"
)

const testVTT = `WEBVTT

00:00:01.000 --> 00:00:03.000
this is the first line of speech

00:00:04.000 --> 00:00:06.000
and this is the second line
`

type fakeVideoStore struct {
	mu     sync.Mutex
	nextID int64
	videos map[int64]*db.Video
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{nextID: 1, videos: make(map[int64]*db.Video)}
}

func (f *fakeVideoStore) Create(_ context.Context, v *db.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.videos {
		if existing.ExternalID == v.ExternalID {
			return db.ErrVideoExists
		}
	}
	v.ID = f.nextID
	f.nextID++
	clone := *v
	f.videos[v.ID] = &clone
	return nil
}

func (f *fakeVideoStore) GetByID(_ context.Context, id int64) (*db.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return nil, db.ErrVideoNotFound
	}
	clone := *v
	return &clone, nil
}

func (f *fakeVideoStore) GetByExternalID(_ context.Context, externalID string) (*db.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.videos {
		if v.ExternalID == externalID {
			clone := *v
			return &clone, nil
		}
	}
	return nil, db.ErrVideoNotFound
}

func (f *fakeVideoStore) ListByCreator(_ context.Context, createdBy uuid.UUID, _, _ int) ([]db.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Video
	for _, v := range f.videos {
		if v.CreatedBy != nil && *v.CreatedBy == createdBy {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeVideoStore) UpdateStatus(_ context.Context, id int64, status, progressMessage, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return db.ErrVideoNotFound
	}
	v.Status = status
	v.ProgressMessage = progressMessage
	v.ErrorMessage = errorMessage
	return nil
}

func (f *fakeVideoStore) UpdateMetadata(_ context.Context, upd *db.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[upd.ID]
	if !ok {
		return db.ErrVideoNotFound
	}
	v.Title = upd.Title
	v.Duration = upd.Duration
	v.Channel = upd.Channel
	v.Thumbnail = upd.Thumbnail
	v.HasSubtitles = upd.HasSubtitles
	v.SubtitleLanguage = upd.SubtitleLanguage
	return nil
}

func (f *fakeVideoStore) Complete(_ context.Context, id int64, language string, sentenceCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return db.ErrVideoNotFound
	}
	v.Status = string(StatusCompleted)
	v.SubtitleLanguage = language
	v.SentenceCount = sentenceCount
	v.ErrorMessage = ""
	return nil
}

func (f *fakeVideoStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.videos[id]; !ok {
		return db.ErrVideoNotFound
	}
	delete(f.videos, id)
	return nil
}

type fakeSegmentStore struct {
	mu       sync.Mutex
	segments map[int64][]db.SubtitleSegment
}

func newFakeSegmentStore() *fakeSegmentStore {
	return &fakeSegmentStore{segments: make(map[int64][]db.SubtitleSegment)}
}

func (f *fakeSegmentStore) BulkInsert(_ context.Context, videoID int64, segs []db.SubtitleSegment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments[videoID] = append(f.segments[videoID], segs...)
	return nil
}

func (f *fakeSegmentStore) DeleteByVideo(_ context.Context, videoID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.segments, videoID)
	return nil
}

type fakeSentenceStore struct {
	mu        sync.Mutex
	sentences map[int64][]db.PracticeSentence
}

func newFakeSentenceStore() *fakeSentenceStore {
	return &fakeSentenceStore{sentences: make(map[int64][]db.PracticeSentence)}
}

func (f *fakeSentenceStore) BulkInsert(_ context.Context, videoID int64, rows []db.PracticeSentence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentences[videoID] = append(f.sentences[videoID], rows...)
	return nil
}

func (f *fakeSentenceStore) FindByVideo(_ context.Context, videoID int64) ([]db.PracticeSentence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentences[videoID], nil
}

func (f *fakeSentenceStore) DeleteByVideo(_ context.Context, videoID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sentences, videoID)
	return nil
}

// fakeInvoker serves canned subtitle content per language from a temp dir
type fakeInvoker struct {
	dir       string
	subtitles map[string]string
	meta      *ytdlp.Metadata
}

func (f *fakeInvoker) FetchMetadata(_ context.Context, _ string) (*ytdlp.Metadata, error) {
	if f.meta == nil {
		return nil, ytdlp.ErrNetwork
	}
	return f.meta, nil
}

func (f *fakeInvoker) FetchSubtitles(_ context.Context, _, videoID, language string) (string, error) {
	content, ok := f.subtitles[language]
	if !ok {
		return "", &ytdlp.ExtractionError{Message: "no subtitles", Err: ytdlp.ErrNoSubtitles}
	}
	path := filepath.Join(f.dir, fmt.Sprintf("%s.%s.vtt", videoID, language))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeInvoker) FetchAnySubtitles(ctx context.Context, url, videoID string) (string, error) {
	for lang := range f.subtitles {
		return f.FetchSubtitles(ctx, url, videoID, lang)
	}
	return "", &ytdlp.ExtractionError{Message: "no subtitles", Err: ytdlp.ErrNoSubtitles}
}

func (f *fakeInvoker) ListFormats(_ context.Context, _ string) ([]ytdlp.Format, error) {
	return nil, nil
}

func (f *fakeInvoker) Download(_ context.Context, _ string, _ ytdlp.DownloadSpec, _ chan<- ytdlp.ProgressEvent) (string, error) {
	return "", ytdlp.ErrDownloadFailed
}

func newTestService(t *testing.T, inv *fakeInvoker) (*Service, *fakeVideoStore, *fakeSentenceStore) {
	t.Helper()
	videos := newFakeVideoStore()
	sentences := newFakeSentenceStore()
	svc := NewService(videos, newFakeSegmentStore(), sentences, inv, inv.dir)
	return svc, videos, sentences
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusAdded, StatusParsing, true},
		{StatusParsing, StatusCompleted, true},
		{StatusParsing, StatusFailed, true},
		{StatusFailed, StatusParsing, true},
		{StatusCompleted, StatusParsing, true},
		{StatusAdded, StatusCompleted, false},
		{StatusAdded, StatusFailed, false},
		{StatusCompleted, StatusFailed, false},
		{StatusParsing, StatusAdded, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAdd(t *testing.T) {
	inv := &fakeInvoker{
		dir: t.TempDir(),
		meta: &ytdlp.Metadata{
			ID:       "dQw4w9WgXcQ",
			Title:    "Test Video",
			Duration: 212,
			Channel:  "Test Channel",
		},
	}
	svc, _, _ := newTestService(t, inv)

	v, err := svc.Add(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ExternalID != "dQw4w9WgXcQ" {
		t.Errorf("external id = %q", v.ExternalID)
	}
	if v.Title != "Test Video" {
		t.Errorf("title = %q", v.Title)
	}
	if v.Status != string(StatusAdded) {
		t.Errorf("status = %q, want added", v.Status)
	}

	// same external id again
	_, err = svc.Add(context.Background(), "https://youtu.be/dQw4w9WgXcQ", nil)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeVideoExists {
		t.Errorf("duplicate add: got %v, want VIDEO_EXISTS", err)
	}
}

func TestAddRejectsUnsupportedURL(t *testing.T) {
	inv := &fakeInvoker{dir: t.TempDir()}
	svc, _, _ := newTestService(t, inv)

	_, err := svc.Add(context.Background(), "https://example.com/page", nil)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeUnsupportedSource {
		t.Errorf("got %v, want UNSUPPORTED_SOURCE", err)
	}
}

func TestParseLanguageFallback(t *testing.T) {
	inv := &fakeInvoker{
		dir:       t.TempDir(),
		subtitles: map[string]string{"en": testVTT},
		meta:      &ytdlp.Metadata{Title: "Fallback Video"},
	}
	svc, videos, sentences := newTestService(t, inv)

	v := &db.Video{ExternalID: "abc123def45", SourceURL: "https://youtu.be/abc123def45", Status: string(StatusParsing), Title: "Fallback Video"}
	if err := videos.Create(context.Background(), v); err != nil {
		t.Fatal(err)
	}

	// requested fr, only en exists
	svc.runParse(context.Background(), v, "fr", "")

	got, err := videos.GetByID(context.Background(), v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != string(StatusCompleted) {
		t.Fatalf("status = %q (error %q), want completed", got.Status, got.ErrorMessage)
	}
	if got.SubtitleLanguage != "en" {
		t.Errorf("subtitle language = %q, want en", got.SubtitleLanguage)
	}

	stored, _ := sentences.FindByVideo(context.Background(), v.ID)
	if len(stored) == 0 {
		t.Fatal("no sentences stored")
	}
	if got.SentenceCount != len(stored) {
		t.Errorf("sentence count %d != stored %d", got.SentenceCount, len(stored))
	}
}

func TestParseExhaustionFails(t *testing.T) {
	inv := &fakeInvoker{
		dir:  t.TempDir(),
		meta: &ytdlp.Metadata{Title: "No Subs"},
	}
	svc, videos, _ := newTestService(t, inv)

	v := &db.Video{ExternalID: "abc123def45", SourceURL: "https://youtu.be/abc123def45", Status: string(StatusParsing), Title: "No Subs"}
	if err := videos.Create(context.Background(), v); err != nil {
		t.Fatal(err)
	}

	svc.runParse(context.Background(), v, "", "")

	got, _ := videos.GetByID(context.Background(), v.ID)
	if got.Status != string(StatusFailed) {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("failed video must retain an error message")
	}
}

func TestParseSubtitlesAsyncRejectsIllegalTransition(t *testing.T) {
	inv := &fakeInvoker{dir: t.TempDir()}
	svc, videos, _ := newTestService(t, inv)

	v := &db.Video{ExternalID: "abc123def45", SourceURL: "https://youtu.be/abc123def45", Status: string(StatusParsing)}
	if err := videos.Create(context.Background(), v); err != nil {
		t.Fatal(err)
	}

	_, err := svc.ParseSubtitlesAsync(context.Background(), v.ID, "", "")
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeConflict {
		t.Errorf("got %v, want CONFLICT", err)
	}
}

func TestRetryAfterFailureKeepsIdentity(t *testing.T) {
	inv := &fakeInvoker{
		dir:       t.TempDir(),
		subtitles: map[string]string{"en": testVTT},
		meta:      &ytdlp.Metadata{Title: "Retry Video"},
	}
	svc, videos, _ := newTestService(t, inv)

	v := &db.Video{ExternalID: "abc123def45", SourceURL: "https://youtu.be/abc123def45", Status: string(StatusFailed), Title: "Retry Video", ErrorMessage: "previous failure"}
	if err := videos.Create(context.Background(), v); err != nil {
		t.Fatal(err)
	}

	id, err := svc.ParseSubtitlesAsync(context.Background(), v.ID, "en", "")
	if err != nil {
		t.Fatalf("retry from failed must be legal: %v", err)
	}
	if id != v.ID {
		t.Errorf("handle = %d, want %d", id, v.ID)
	}
}

func TestDeleteRemovesSubtitleFile(t *testing.T) {
	dir := t.TempDir()
	inv := &fakeInvoker{dir: dir}
	svc, videos, _ := newTestService(t, inv)

	v := &db.Video{ExternalID: "abc123def45", SourceURL: "https://youtu.be/abc123def45", Status: string(StatusCompleted), SubtitleLanguage: "en"}
	if err := videos.Create(context.Background(), v); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "abc123def45.en.vtt")
	if err := os.WriteFile(path, []byte(testVTT), 0644); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(context.Background(), v.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("subtitle file still on disk after delete")
	}
	if _, err := videos.GetByID(context.Background(), v.ID); !errors.Is(err, db.ErrVideoNotFound) {
		t.Error("video record still present after delete")
	}
}

func TestLanguageFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tmp/subs/abc123.zh-Hans.vtt", "zh-Hans"},
		{"/tmp/subs/abc123.en.vtt", "en"},
		{"/tmp/subs/abc123.vtt", "en"},
	}

	for _, tt := range tests {
		if got := languageFromPath(tt.path, "abc123"); got != tt.want {
			t.Errorf("languageFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
