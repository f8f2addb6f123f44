package video

import "fmt"

// Status is the lifecycle state of a video record
type Status string

const (
	StatusAdded     Status = "added"
	StatusParsing   Status = "parsing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// transitions is the closed set of legal status changes. Parsing is
// re-enterable from added and failed so a manual retry keeps the same
// record identity.
var transitions = map[Status][]Status{
	StatusAdded:     {StatusParsing},
	StatusParsing:   {StatusCompleted, StatusFailed},
	StatusCompleted: {StatusParsing},
	StatusFailed:    {StatusParsing},
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
		return fmt.Errorf("illegal video status transition %s -> %s", from, to)
	}
	return nil
}

// IsValid reports whether s is a known status value
func (s Status) IsValid() bool {
	switch s {
	case StatusAdded, StatusParsing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
