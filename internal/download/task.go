package download

import "fmt"

// Status is the lifecycle state of a download task
type Status string

const (
	StatusQueued      Status = "queued"
	StatusParsing     Status = "parsing"
	StatusDownloading Status = "downloading"
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
)

// Download types
const (
	TypeVideo = "video"
	TypeAudio = "audio"
)

// transitions is the closed set of legal status changes. Failed is
// reachable from every active state; terminal states do not move.
var transitions = map[Status][]Status{
	StatusQueued:      {StatusParsing, StatusFailed},
	StatusParsing:     {StatusDownloading, StatusFailed},
	StatusDownloading: {StatusSuccess, StatusFailed},
	StatusSuccess:     {},
	StatusFailed:      {},
}

// CanTransition reports whether moving from one status to another is legal
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error describing an illegal transition
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal task status transition %s -> %s", from, to)
	}
	return nil
}

// IsTerminal reports whether a status admits no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Progress bands. The low band is reserved for pre-download setup and
// the top for finalization, so raw tool percentages are compressed into
// 10-99.
const (
	progressSetup    = 5
	progressFloor    = 10
	progressCeiling  = 99
	progressComplete = 100
)

// MapProgress converts a raw tool percentage (0-100) into the task
// progress scale.
func MapProgress(rawPercent float64) int {
	if rawPercent < 0 {
		rawPercent = 0
	}
	if rawPercent > 100 {
		rawPercent = 100
	}
	p := progressFloor + int(rawPercent*0.9)
	if p > progressCeiling {
		p = progressCeiling
	}
	return p
}
