package ytdlp

import "errors"

var (
	// ErrToolUnavailable indicates yt-dlp is not installed or not executable
	ErrToolUnavailable = errors.New("yt-dlp not found in PATH")

	// ErrNotFound indicates the remote video reference is invalid or gone
	ErrNotFound = errors.New("video not found")

	// ErrNetwork indicates a network-related failure while reaching the source
	ErrNetwork = errors.New("network error")

	// ErrNoSubtitles indicates no subtitles exist for the requested language
	ErrNoSubtitles = errors.New("no subtitles for language")

	// ErrPermissionRequired indicates the source demands authentication material
	ErrPermissionRequired = errors.New("permission required")

	// ErrDownloadFailed indicates the download failed for a non-specific reason
	ErrDownloadFailed = errors.New("download failed")

	// ErrInvalidURL indicates the URL format is invalid
	ErrInvalidURL = errors.New("invalid url format")
)

// ExtractionError wraps an error with the source URL and a human-readable message
type ExtractionError struct {
	URL     string
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
