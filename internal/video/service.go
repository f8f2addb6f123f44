package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/followread/backend/internal/db"
	apperrors "github.com/followread/backend/internal/errors"
	"github.com/followread/backend/internal/logger"
	"github.com/followread/backend/internal/metrics"
	"github.com/followread/backend/internal/subtitle"
	"github.com/followread/backend/internal/ytdlp"
)

// languageFallbacks is tried in order when neither an override nor a
// detected language yields subtitles.
var languageFallbacks = []string{"zh", "zh-Hans", "zh-Hant", "zh-CN", "zh-TW", "en", "ja", "ko"}

// VideoStore is the persistence surface the orchestrator mutates
type VideoStore interface {
	Create(ctx context.Context, v *db.Video) error
	GetByID(ctx context.Context, id int64) (*db.Video, error)
	GetByExternalID(ctx context.Context, externalID string) (*db.Video, error)
	ListByCreator(ctx context.Context, createdBy uuid.UUID, limit, offset int) ([]db.Video, error)
	UpdateStatus(ctx context.Context, id int64, status, progressMessage, errorMessage string) error
	UpdateMetadata(ctx context.Context, v *db.Video) error
	Complete(ctx context.Context, id int64, language string, sentenceCount int) error
	Delete(ctx context.Context, id int64) error
}

// SegmentStore persists parsed subtitle segments
type SegmentStore interface {
	BulkInsert(ctx context.Context, videoID int64, segments []db.SubtitleSegment) error
	DeleteByVideo(ctx context.Context, videoID int64) error
}

// SentenceStore persists generated practice sentences
type SentenceStore interface {
	BulkInsert(ctx context.Context, videoID int64, sentences []db.PracticeSentence) error
	FindByVideo(ctx context.Context, videoID int64) ([]db.PracticeSentence, error)
	DeleteByVideo(ctx context.Context, videoID int64) error
}

// Service drives a video from added through parsing to completed
type Service struct {
	videos      VideoStore
	segments    SegmentStore
	sentences   SentenceStore
	invoker     ytdlp.Invoker
	segmenter   *subtitle.Segmenter
	subtitleDir string
	log         *logger.Logger
}

func NewService(videos VideoStore, segments SegmentStore, sentences SentenceStore, invoker ytdlp.Invoker, subtitleDir string) *Service {
	return &Service{
		videos:      videos,
		segments:    segments,
		sentences:   sentences,
		invoker:     invoker,
		segmenter:   subtitle.NewSegmenter(),
		subtitleDir: subtitleDir,
		log:         logger.Default().WithComponent("video"),
	}
}

// Add registers a video by URL. One record per external id; metadata is
// fetched best-effort and the record is still created when the fetch
// fails (it is retried lazily before parsing).
func (s *Service) Add(ctx context.Context, sourceURL string, createdBy *uuid.UUID) (*db.Video, error) {
	externalID := ytdlp.ExtractVideoID(sourceURL)
	if externalID == "" {
		return nil, apperrors.UnsupportedSource(sourceURL)
	}

	if existing, err := s.videos.GetByExternalID(ctx, externalID); err == nil {
		return existing, apperrors.VideoExists(externalID)
	}

	v := &db.Video{
		ExternalID: externalID,
		SourceURL:  sourceURL,
		Status:     string(StatusAdded),
		CreatedBy:  createdBy,
	}

	if meta, err := s.invoker.FetchMetadata(ctx, sourceURL); err == nil {
		v.Title = meta.Title
		v.Duration = meta.Duration
		v.Channel = meta.Channel
		v.Thumbnail = meta.Thumbnail
		v.HasSubtitles = meta.HasSubtitles
		v.SubtitleLanguage = meta.SubtitleLanguage
	} else {
		s.log.Warn(ctx, "metadata fetch failed on add", map[string]interface{}{
			"external_id": externalID,
			"error":       err.Error(),
		})
	}

	if err := s.videos.Create(ctx, v); err != nil {
		if errors.Is(err, db.ErrVideoExists) {
			return nil, apperrors.VideoExists(externalID)
		}
		return nil, apperrors.DatabaseError("failed to create video").WithCause(err)
	}

	return v, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*db.Video, error) {
	v, err := s.videos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrVideoNotFound) {
			return nil, apperrors.VideoNotFound()
		}
		return nil, apperrors.DatabaseError("failed to load video").WithCause(err)
	}
	return v, nil
}

func (s *Service) GetByExternalID(ctx context.Context, externalID string) (*db.Video, error) {
	v, err := s.videos.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, db.ErrVideoNotFound) {
			return nil, apperrors.VideoNotFound()
		}
		return nil, apperrors.DatabaseError("failed to load video").WithCause(err)
	}
	return v, nil
}

func (s *Service) List(ctx context.Context, createdBy uuid.UUID, limit, offset int) ([]db.Video, error) {
	videos, err := s.videos.ListByCreator(ctx, createdBy, limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list videos").WithCause(err)
	}
	return videos, nil
}

func (s *Service) Sentences(ctx context.Context, videoID int64) ([]db.PracticeSentence, error) {
	sentences, err := s.sentences.FindByVideo(ctx, videoID)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to load sentences").WithCause(err)
	}
	return sentences, nil
}

// ParseSubtitlesAsync validates the transition, marks the video parsing,
// and runs the parse on its own goroutine. The returned id is the handle
// callers poll. The background work never returns an error to the caller;
// all failures land in the record's status and error message.
func (s *Service) ParseSubtitlesAsync(ctx context.Context, id int64, languageOverride, difficultyOverride string) (int64, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	if err := ValidateTransition(Status(v.Status), StatusParsing); err != nil {
		return 0, apperrors.Conflict(err.Error())
	}

	if err := s.videos.UpdateStatus(ctx, id, string(StatusParsing), "starting subtitle parse", ""); err != nil {
		return 0, apperrors.DatabaseError("failed to update video status").WithCause(err)
	}

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()
		s.runParse(bg, v, languageOverride, difficultyOverride)
	}()

	return id, nil
}

// runParse is the full parse pipeline. Every failure path writes the
// failed status; nothing escapes.
func (s *Service) runParse(ctx context.Context, v *db.Video, languageOverride, difficultyOverride string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(ctx, "panic during subtitle parse", nil, map[string]interface{}{
				"video_id": v.ID,
				"panic":    fmt.Sprint(r),
			})
			s.fail(ctx, v.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := s.ensureMetadata(ctx, v); err != nil {
		s.fail(ctx, v.ID, "failed to fetch video metadata: "+err.Error())
		return
	}

	path, language, err := s.fetchSubtitles(ctx, v, languageOverride)
	if err != nil {
		s.fail(ctx, v.ID, err.Error())
		return
	}

	s.progress(ctx, v.ID, "parsing subtitle file")

	segments, err := subtitle.ParseFile(path, language)
	if err != nil {
		if errors.Is(err, subtitle.ErrEmptySubtitleFile) {
			s.fail(ctx, v.ID, "subtitle file contains no cues")
		} else {
			s.fail(ctx, v.ID, "failed to parse subtitles: "+err.Error())
		}
		return
	}

	// re-parse replaces previous results
	if err := s.segments.DeleteByVideo(ctx, v.ID); err != nil {
		s.fail(ctx, v.ID, "failed to clear old segments: "+err.Error())
		return
	}
	if err := s.sentences.DeleteByVideo(ctx, v.ID); err != nil {
		s.fail(ctx, v.ID, "failed to clear old sentences: "+err.Error())
		return
	}

	records := make([]db.SubtitleSegment, len(segments))
	for i, seg := range segments {
		records[i] = db.SubtitleSegment{
			VideoID:   v.ID,
			Order:     seg.Order,
			StartTime: seg.Start,
			EndTime:   seg.End,
			RawText:   seg.Raw,
			CleanText: seg.Text,
		}
	}
	if err := s.segments.BulkInsert(ctx, v.ID, records); err != nil {
		s.fail(ctx, v.ID, "failed to store segments: "+err.Error())
		return
	}

	s.progress(ctx, v.ID, "generating practice sentences")

	sentences := s.segmenter.Build(segments, language, difficultyOverride)
	rows := make([]db.PracticeSentence, len(sentences))
	for i, sent := range sentences {
		rows[i] = db.PracticeSentence{
			VideoID:    v.ID,
			Order:      sent.Order,
			StartTime:  sent.Start,
			EndTime:    sent.End,
			Text:       sent.Text,
			Difficulty: sent.Difficulty,
		}
	}
	if err := s.sentences.BulkInsert(ctx, v.ID, rows); err != nil {
		s.fail(ctx, v.ID, "failed to store sentences: "+err.Error())
		return
	}

	if err := s.videos.Complete(ctx, v.ID, language, len(sentences)); err != nil {
		s.log.Error(ctx, "failed to mark video completed", err, map[string]interface{}{
			"video_id": v.ID,
		})
		return
	}

	metrics.Default().IncCounter("parse_completed")
	s.log.Info(ctx, "subtitle parse completed", map[string]interface{}{
		"video_id":  v.ID,
		"language":  language,
		"segments":  len(segments),
		"sentences": len(sentences),
	})
}

// ensureMetadata fetches metadata when the record does not carry it yet.
// Safe to call when metadata is already present.
func (s *Service) ensureMetadata(ctx context.Context, v *db.Video) error {
	if v.Title != "" {
		return nil
	}

	s.progress(ctx, v.ID, "fetching video metadata")

	meta, err := apperrors.RetryWithResult(ctx, apperrors.MetadataRetryConfig(), func(ctx context.Context) (*ytdlp.Metadata, error) {
		return s.invoker.FetchMetadata(ctx, v.SourceURL)
	})
	if err != nil {
		return err
	}

	v.Title = meta.Title
	v.Duration = meta.Duration
	v.Channel = meta.Channel
	v.Thumbnail = meta.Thumbnail
	v.HasSubtitles = meta.HasSubtitles
	v.SubtitleLanguage = meta.SubtitleLanguage

	return s.videos.UpdateMetadata(ctx, v)
}

// fetchSubtitles resolves the language and downloads the subtitle file.
// Resolution order: explicit override, previously detected language, the
// fallback list, then a catch-all download of whatever is available. The
// first language yielding a non-empty file wins; earlier failures are
// logged and absorbed.
func (s *Service) fetchSubtitles(ctx context.Context, v *db.Video, languageOverride string) (string, string, error) {
	var candidates []string
	seen := map[string]bool{}

	add := func(lang string) {
		if lang != "" && !seen[lang] {
			seen[lang] = true
			candidates = append(candidates, lang)
		}
	}
	add(languageOverride)
	add(v.SubtitleLanguage)
	for _, lang := range languageFallbacks {
		add(lang)
	}

	var lastErr error
	for _, lang := range candidates {
		s.progress(ctx, v.ID, "downloading subtitles ("+lang+")")

		path, err := s.invoker.FetchSubtitles(ctx, v.SourceURL, v.ExternalID, lang)
		if err == nil && fileNonEmpty(path) {
			return path, lang, nil
		}
		if err == nil {
			err = subtitle.ErrEmptySubtitleFile
		}
		lastErr = err
		s.log.Warn(ctx, "subtitle fetch failed for language", map[string]interface{}{
			"video_id": v.ID,
			"language": lang,
			"error":    err.Error(),
		})
	}

	s.progress(ctx, v.ID, "downloading any available subtitles")

	path, err := s.invoker.FetchAnySubtitles(ctx, v.SourceURL, v.ExternalID)
	if err == nil && fileNonEmpty(path) {
		return path, languageFromPath(path, v.ExternalID), nil
	}
	if err != nil {
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ytdlp.ErrNoSubtitles
	}
	return "", "", fmt.Errorf("no subtitles found after trying all languages: %w", lastErr)
}

// Delete removes a video with its segments, sentences, and the subtitle
// file on disk.
func (s *Service) Delete(ctx context.Context, id int64) error {
	v, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.sentences.DeleteByVideo(ctx, id); err != nil {
		return apperrors.DatabaseError("failed to delete sentences").WithCause(err)
	}
	if err := s.segments.DeleteByVideo(ctx, id); err != nil {
		return apperrors.DatabaseError("failed to delete segments").WithCause(err)
	}
	if err := s.videos.Delete(ctx, id); err != nil {
		return apperrors.DatabaseError("failed to delete video").WithCause(err)
	}

	if path := ytdlp.FindSubtitleFile(s.subtitleDir, v.ExternalID, v.SubtitleLanguage); path != "" {
		if err := os.Remove(path); err != nil {
			s.log.Warn(ctx, "failed to remove subtitle file", map[string]interface{}{
				"video_id": id,
				"path":     path,
				"error":    err.Error(),
			})
		}
	}

	return nil
}

func (s *Service) progress(ctx context.Context, id int64, message string) {
	if err := s.videos.UpdateStatus(ctx, id, string(StatusParsing), message, ""); err != nil {
		s.log.Warn(ctx, "failed to write progress message", map[string]interface{}{
			"video_id": id,
			"error":    err.Error(),
		})
	}
}

func (s *Service) fail(ctx context.Context, id int64, message string) {
	metrics.Default().IncCounter("parse_failed")
	if err := s.videos.UpdateStatus(ctx, id, string(StatusFailed), "", message); err != nil {
		s.log.Error(ctx, "failed to mark video failed", err, map[string]interface{}{
			"video_id": id,
		})
	}
}

func fileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// languageFromPath extracts the language code from a subtitle filename of
// the shape {id}.{lang}.vtt. Files without a language part report "en".
func languageFromPath(path, externalID string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".vtt")
	name = strings.TrimPrefix(name, externalID)
	name = strings.TrimPrefix(name, ".")
	if name == "" {
		return "en"
	}
	return name
}
