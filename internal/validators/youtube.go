package validators

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// YouTubeValidator validates YouTube URLs
type YouTubeValidator struct {
	// video IDs are 11 characters, alphanumeric with - and _
	videoIDPattern *regexp.Regexp
}

// NewYouTubeValidator creates a new YouTube URL validator
func NewYouTubeValidator() *YouTubeValidator {
	return &YouTubeValidator{
		videoIDPattern: regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`),
	}
}

func (v *YouTubeValidator) SourceType() SourceType {
	return SourceYouTube
}

// CanHandle returns true if the URL appears to be a YouTube URL
func (v *YouTubeValidator) CanHandle(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}

	host := normalizeHost(parsed.Host)
	return host == "youtube.com" ||
		host == "youtu.be" ||
		host == "music.youtube.com"
}

// Validate validates a YouTube URL and extracts the video ID
func (v *YouTubeValidator) Validate(rawURL string) ValidationResult {
	rawURL = strings.TrimSpace(rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return v.invalid(rawURL, "invalid URL format")
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
		rawURL = parsed.String()
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return v.invalid(rawURL, "invalid URL scheme")
	}

	host := normalizeHost(parsed.Host)

	var videoID string
	var mediaType string

	switch host {
	case "youtu.be":
		videoID = strings.TrimPrefix(parsed.Path, "/")
		mediaType = "video"

	case "youtube.com", "music.youtube.com":
		videoID, mediaType = extractFromYouTubeCom(parsed)

	default:
		return v.invalid(rawURL, "not a YouTube URL")
	}

	if videoID == "" {
		return v.invalid(rawURL, "could not extract video ID from URL")
	}

	if !v.videoIDPattern.MatchString(videoID) {
		result := v.invalid(rawURL, "invalid video ID format")
		result.VideoID = videoID
		return result
	}

	return ValidationResult{
		Valid:      true,
		SourceType: SourceYouTube,
		VideoID:    videoID,
		MediaType:  mediaType,
		URL:        rawURL,
		Canonical:  fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
	}
}

func (v *YouTubeValidator) invalid(rawURL, message string) ValidationResult {
	return ValidationResult{
		Valid:      false,
		SourceType: SourceYouTube,
		URL:        rawURL,
		Error:      message,
	}
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	return host
}

// extractFromYouTubeCom extracts video ID from youtube.com URLs
func extractFromYouTubeCom(parsed *url.URL) (videoID, mediaType string) {
	path := parsed.Path
	query := parsed.Query()

	switch {
	case strings.HasPrefix(path, "/watch"):
		videoID = query.Get("v")
		mediaType = "video"

	case strings.HasPrefix(path, "/shorts/"):
		videoID = strings.TrimPrefix(path, "/shorts/")
		mediaType = "short"

	case strings.HasPrefix(path, "/embed/"):
		videoID = strings.TrimPrefix(path, "/embed/")
		mediaType = "video"

	case strings.HasPrefix(path, "/v/"):
		videoID = strings.TrimPrefix(path, "/v/")
		mediaType = "video"

	case strings.HasPrefix(path, "/live/"):
		videoID = strings.TrimPrefix(path, "/live/")
		mediaType = "live"
	}

	if idx := strings.Index(videoID, "/"); idx != -1 {
		videoID = videoID[:idx]
	}
	if idx := strings.Index(videoID, "?"); idx != -1 {
		videoID = videoID[:idx]
	}

	return videoID, mediaType
}
