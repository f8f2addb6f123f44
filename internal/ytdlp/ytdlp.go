package ytdlp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Config holds configuration for the extraction tool wrapper
type Config struct {
	// BinPath is the path to the yt-dlp binary (default: "yt-dlp")
	BinPath string
	// SubtitleDir is where subtitle files are written
	SubtitleDir string
	// DownloadDir is where downloaded media files are written
	DownloadDir string
	// CookieDir is where per-video cookie files are looked up
	CookieDir string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		BinPath:     "yt-dlp",
		SubtitleDir: "uploads/subtitles",
		DownloadDir: "downloads",
		CookieDir:   os.TempDir(),
	}
}

// ProgressEvent is one parsed progress line from a running download.
// Percent is the raw tool percentage (0-100).
type ProgressEvent struct {
	Percent   float64
	Speed     string
	ETA       string
	TotalSize string
}

// DownloadSpec describes what to download for a video
type DownloadSpec struct {
	// Type is "video" or "audio"
	Type string
	// FormatID selects an explicit format; empty means use Quality
	FormatID string
	// Quality is one of best, 4k, 2k, 1080p, 720p, 480p
	Quality string
	// Title is the video title used for the output file name
	Title string
}

// Invoker is the narrow interface the orchestrators consume. The process
// spawning stays behind it so tests can substitute a fake.
type Invoker interface {
	FetchMetadata(ctx context.Context, sourceURL string) (*Metadata, error)
	FetchSubtitles(ctx context.Context, sourceURL, videoID, language string) (string, error)
	FetchAnySubtitles(ctx context.Context, sourceURL, videoID string) (string, error)
	ListFormats(ctx context.Context, sourceURL string) ([]Format, error)
	Download(ctx context.Context, sourceURL string, spec DownloadSpec, events chan<- ProgressEvent) (string, error)
}

// Service wraps the yt-dlp binary. It performs no retries; retry policy
// belongs to the callers.
type Service struct {
	cfg *Config
}

var _ Invoker = (*Service)(nil)

// New creates a new extraction service, verifying the tool is present
func New(cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if _, err := exec.LookPath(cfg.BinPath); err != nil {
		return nil, ErrToolUnavailable
	}

	for _, dir := range []string{cfg.SubtitleDir, cfg.DownloadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &Service{cfg: cfg}, nil
}

// FetchMetadata retrieves metadata for a URL without downloading
func (s *Service) FetchMetadata(ctx context.Context, sourceURL string) (*Metadata, error) {
	if err := validateURL(sourceURL); err != nil {
		return nil, err
	}

	args := s.withCookies(sourceURL, "--dump-json", "--no-download", "--no-warnings")
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, s.cfg.BinPath, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, categorizeError(sourceURL, err, string(exitErr.Stderr))
		}
		return nil, categorizeError(sourceURL, err, "")
	}

	var dump dumpOutput
	if err := json.Unmarshal(output, &dump); err != nil {
		return nil, &ExtractionError{URL: sourceURL, Message: "failed to parse metadata", Err: err}
	}

	return dump.toMetadata(), nil
}

// FetchSubtitles downloads the subtitle file for one language and returns
// its path. Official and auto-generated subtitles are both requested.
func (s *Service) FetchSubtitles(ctx context.Context, sourceURL, videoID, language string) (string, error) {
	if err := validateURL(sourceURL); err != nil {
		return "", err
	}

	args := s.withCookies(sourceURL,
		"--write-sub", "--write-auto-sub",
		"--sub-lang", language,
		"--sub-format", "vtt",
		"--skip-download",
		"-o", filepath.Join(s.cfg.SubtitleDir, "%(id)s.%(ext)s"),
	)
	args = append(args, sourceURL)

	if err := s.runSubtitleCommand(ctx, sourceURL, args); err != nil {
		return "", err
	}

	path := FindSubtitleFile(s.cfg.SubtitleDir, videoID, language)
	if path == "" {
		return "", &ExtractionError{URL: sourceURL, Message: "subtitle file not written for " + language, Err: ErrNoSubtitles}
	}
	return path, nil
}

// FetchAnySubtitles downloads whatever subtitles the video carries and
// returns the first matching file. Used as the catch-all fallback.
func (s *Service) FetchAnySubtitles(ctx context.Context, sourceURL, videoID string) (string, error) {
	if err := validateURL(sourceURL); err != nil {
		return "", err
	}

	args := s.withCookies(sourceURL,
		"--write-sub", "--write-auto-sub",
		"--sub-format", "vtt",
		"--skip-download",
		"-o", filepath.Join(s.cfg.SubtitleDir, "%(id)s.%(ext)s"),
	)
	args = append(args, sourceURL)

	if err := s.runSubtitleCommand(ctx, sourceURL, args); err != nil {
		return "", err
	}

	path := FindSubtitleFile(s.cfg.SubtitleDir, videoID, "")
	if path == "" {
		return "", &ExtractionError{URL: sourceURL, Message: "no subtitle file written", Err: ErrNoSubtitles}
	}
	return path, nil
}

func (s *Service) runSubtitleCommand(ctx context.Context, sourceURL string, args []string) error {
	cmd := exec.CommandContext(ctx, s.cfg.BinPath, args...)

	// yt-dlp reports "There are no subtitles" on stdout with exit 0,
	// so stdout and stderr are read together.
	output, err := cmd.CombinedOutput()
	text := string(output)

	if strings.Contains(text, "There are no subtitles") {
		return &ExtractionError{URL: sourceURL, Message: "no subtitles offered by source", Err: ErrNoSubtitles}
	}
	if err != nil {
		return categorizeError(sourceURL, err, text)
	}
	return nil
}

// ListFormats returns the downloadable formats of a video, best first
func (s *Service) ListFormats(ctx context.Context, sourceURL string) ([]Format, error) {
	if err := validateURL(sourceURL); err != nil {
		return nil, err
	}

	args := s.withCookies(sourceURL, "--dump-json", "--no-download", "--no-warnings")
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, s.cfg.BinPath, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, categorizeError(sourceURL, err, string(exitErr.Stderr))
		}
		return nil, categorizeError(sourceURL, err, "")
	}

	var dump dumpOutput
	if err := json.Unmarshal(output, &dump); err != nil {
		return nil, &ExtractionError{URL: sourceURL, Message: "failed to parse format list", Err: err}
	}

	formats := make([]Format, 0, len(dump.Formats))
	for _, raw := range dump.Formats {
		f := raw.toFormat()
		if f.HasVideo || f.HasAudio {
			formats = append(formats, f)
		}
	}

	sort.SliceStable(formats, func(i, j int) bool {
		full := func(f Format) bool { return f.HasVideo && f.HasAudio }
		if full(formats[i]) != full(formats[j]) {
			return full(formats[i])
		}
		return formats[i].Quality > formats[j].Quality
	})

	return formats, nil
}

// progressTemplate makes yt-dlp emit parseable percent|speed|eta|size lines
const progressTemplate = "download:%(progress._percent_str)s|%(progress._speed_str)s|%(progress._eta_str)s|%(progress._total_bytes_str)s"

// Download runs a media download, streaming parsed progress events to the
// provided channel, and returns the path of the downloaded file. The
// channel is not closed by this method.
func (s *Service) Download(ctx context.Context, sourceURL string, spec DownloadSpec, events chan<- ProgressEvent) (string, error) {
	if err := validateURL(sourceURL); err != nil {
		return "", err
	}

	title := SanitizeFilename(spec.Title)
	outputTemplate := filepath.Join(s.cfg.DownloadDir, title+".%(ext)s")

	args := s.withCookies(sourceURL)
	switch {
	case spec.Type == "audio":
		args = append(args, "-f", "bestaudio", "-x", "--audio-format", "mp3")
	case spec.FormatID != "":
		args = append(args, "-f", spec.FormatID)
	default:
		args = append(args,
			"-f", FormatSelector(spec.Quality),
			"--merge-output-format", "mp4",
			"--format-sort", "res,fps,vcodec,acodec",
		)
	}
	args = append(args,
		"-o", outputTemplate,
		"--newline", "--no-warnings",
		"--progress-template", progressTemplate,
		sourceURL,
	)

	cmd := exec.CommandContext(ctx, s.cfg.BinPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &ExtractionError{URL: sourceURL, Message: "failed to create stdout pipe", Err: err}
	}
	// StdoutPipe set cmd.Stdout to the pipe's write end; sharing it with
	// stderr keeps ERROR: lines in the scanned tail for categorizeError.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return "", categorizeError(sourceURL, err, "")
	}

	var tail strings.Builder
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		tail.WriteString(line)
		tail.WriteString("\n")

		if IsAlreadyDownloaded(line) {
			// a prior run fetched the file; the tool emits no progress
			// lines for the skip, so report completion directly
			if events != nil {
				events <- ProgressEvent{Percent: 100}
			}
			continue
		}

		if ev, ok := ParseProgressLine(line); ok && events != nil {
			events <- ev
		}
	}

	if err := cmd.Wait(); err != nil {
		return "", categorizeError(sourceURL, err, tail.String())
	}

	path := FindDownloadedFile(s.cfg.DownloadDir, spec.Title)
	if path == "" {
		return "", &ExtractionError{URL: sourceURL, Message: "downloaded file not found", Err: ErrDownloadFailed}
	}
	return path, nil
}

// withCookies prepends a --cookies flag when a cookie file exists for the
// video behind sourceURL.
func (s *Service) withCookies(sourceURL string, base ...string) []string {
	args := make([]string, 0, len(base)+2)
	if id := ExtractVideoID(sourceURL); id != "" {
		cookieFile := filepath.Join(s.cfg.CookieDir, "youtube_cookies_"+id+".txt")
		if _, err := os.Stat(cookieFile); err == nil {
			args = append(args, "--cookies", cookieFile)
		}
	}
	return append(args, base...)
}

// FormatSelector maps a requested quality label to a yt-dlp format selector
func FormatSelector(quality string) string {
	switch quality {
	case "", "best":
		return "bestvideo[height>=1080]+bestaudio/bestvideo+bestaudio/best"
	case "4k":
		return "bestvideo[height>=2160]+bestaudio/bestvideo[height>=1440]+bestaudio/best"
	case "2k":
		return "bestvideo[height>=1440][height<=2160]+bestaudio/bestvideo+bestaudio/best"
	case "1080p":
		return "bestvideo[height>=1080][height<=1440]+bestaudio/bestvideo[height=1080]+bestaudio/best"
	case "720p":
		return "bestvideo[height>=720][height<=1080]+bestaudio/bestvideo[height=720]+bestaudio/best"
	case "480p":
		return "bestvideo[height>=480][height<=720]+bestaudio/bestvideo[height=480]+bestaudio/best"
	default:
		return "bestvideo+bestaudio/best"
	}
}

// ParseProgressLine parses one percent|speed|eta|size progress line.
// Lines that are not progress output return ok=false.
func ParseProgressLine(line string) (ProgressEvent, bool) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, "|")
	if len(parts) != 4 {
		return ProgressEvent{}, false
	}

	percentStr := strings.TrimSuffix(strings.TrimSpace(parts[0]), "%")
	percent, err := strconv.ParseFloat(percentStr, 64)
	if err != nil {
		return ProgressEvent{}, false
	}

	return ProgressEvent{
		Percent:   percent,
		Speed:     strings.TrimSpace(parts[1]),
		ETA:       strings.TrimSpace(parts[2]),
		TotalSize: strings.TrimSpace(parts[3]),
	}, true
}

// IsAlreadyDownloaded reports whether a tool output line indicates the
// target file was fully retrieved by a previous run. That is an
// informational skip, not a failure.
func IsAlreadyDownloaded(line string) bool {
	return strings.Contains(line, "has already been downloaded")
}

// validateURL checks the URL is well formed http(s)
func validateURL(sourceURL string) error {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return &ExtractionError{URL: sourceURL, Message: "invalid url", Err: ErrInvalidURL}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ExtractionError{URL: sourceURL, Message: "invalid url scheme", Err: ErrInvalidURL}
	}
	return nil
}

// permissionSignatures are stderr fragments that indicate the source wants
// authentication material (cookies/sign-in) rather than a transient failure.
var permissionSignatures = []string{
	"sign in to confirm",
	"login required",
	"private video",
	"members-only",
	"age-restricted",
	"use --cookies",
	"cookies",
	"http error 403",
}

// categorizeError converts tool failures into typed errors
func categorizeError(sourceURL string, err error, output string) error {
	if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
		return &ExtractionError{URL: sourceURL, Message: "extraction tool missing", Err: ErrToolUnavailable}
	}

	lower := strings.ToLower(output)

	switch {
	case containsAny(lower, "video unavailable", "this video is unavailable", "does not exist", "http error 404"):
		return &ExtractionError{URL: sourceURL, Message: "video unavailable", Err: ErrNotFound}

	case containsAny(lower, permissionSignatures...):
		return &ExtractionError{URL: sourceURL, Message: "source requires authentication", Err: ErrPermissionRequired}

	case containsAny(lower, "unable to download", "connection", "network", "timed out"):
		return &ExtractionError{URL: sourceURL, Message: "network error", Err: ErrNetwork}

	default:
		return &ExtractionError{URL: sourceURL, Message: "extraction failed", Err: fmt.Errorf("%w: %s", ErrDownloadFailed, strings.TrimSpace(output))}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
