package subtitle

import (
	"bufio"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptySubtitleFile indicates the input held no parseable cue blocks
var ErrEmptySubtitleFile = errors.New("subtitle file contains no cues")

// Segment is one timed cue parsed from a subtitle file. Start and End are
// seconds, End strictly after Start, Order dense from 0 within a video.
type Segment struct {
	Order int
	Start float64
	End   float64
	Raw   string
	Text  string
}

var (
	timestampLine = regexp.MustCompile(`^(\S+)\s+-->\s+(\S+)`)
	markupTags    = regexp.MustCompile(`<[^>]*>`)
	nonLatinChars = regexp.MustCompile(`[^a-zA-Z0-9\s,.!?'-]`)
)

// ParseFile reads and parses a subtitle file from disk
func ParseFile(path, language string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer f.Close()
	return Parse(f, language)
}

// Parse reads WebVTT-like timed text and returns ordered segments.
// Header lines, NOTE comments, and blank lines are skipped. A cue is a
// `start --> end` line followed by one or more text lines; multi-line
// text joins with single spaces. Cues whose cleaned text is empty are
// dropped. Returns ErrEmptySubtitleFile when no cue blocks are present.
func Parse(r io.Reader, language string) ([]Segment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var segments []Segment
	var start, end float64
	var textLines []string
	inCue := false

	flush := func() {
		if !inCue {
			return
		}
		inCue = false
		raw := strings.Join(textLines, " ")
		textLines = nil

		cleaned := CleanText(raw, language)
		if cleaned == "" || end <= start {
			return
		}
		segments = append(segments, Segment{
			Order: len(segments),
			Start: start,
			End:   end,
			Raw:   raw,
			Text:  cleaned,
		})
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			flush()

		case strings.HasPrefix(line, "WEBVTT"),
			strings.HasPrefix(line, "NOTE"),
			strings.HasPrefix(line, "Kind:"),
			strings.HasPrefix(line, "Language:"),
			strings.HasPrefix(line, "STYLE"):
			continue

		case timestampLine.MatchString(line):
			flush()
			m := timestampLine.FindStringSubmatch(line)
			s, err1 := parseTimestamp(m[1])
			// the end token may carry positioning attributes
			e, err2 := parseTimestamp(m[2])
			if err1 != nil || err2 != nil {
				continue
			}
			start, end = s, e
			inCue = true

		case inCue:
			textLines = append(textLines, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle content: %w", err)
	}
	if len(segments) == 0 {
		return nil, ErrEmptySubtitleFile
	}
	return segments, nil
}

// parseTimestamp parses [HH:]MM:SS.mmm into seconds. Trailing cue
// attributes after the timestamp are ignored.
func parseTimestamp(token string) (float64, error) {
	if idx := strings.IndexByte(token, ' '); idx > 0 {
		token = token[:idx]
	}
	token = strings.ReplaceAll(token, ",", ".")

	parts := strings.Split(token, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", token)
	}

	var hours, minutes int
	var seconds float64
	var err error

	idx := 0
	if len(parts) == 3 {
		if hours, err = strconv.Atoi(parts[0]); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", token)
		}
		idx = 1
	}
	if minutes, err = strconv.Atoi(parts[idx]); err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", token)
	}
	if seconds, err = strconv.ParseFloat(parts[idx+1], 64); err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", token)
	}

	return float64(hours)*3600 + float64(minutes)*60 + seconds, nil
}

// CleanText normalizes and cleans cue text for a language. Entities are
// decoded before markup is stripped. CJK text keeps all printable Unicode;
// other languages reduce to a restricted character set.
func CleanText(text, language string) string {
	text = norm.NFC.String(text)
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = markupTags.ReplaceAllString(text, "")

	if IsCJK(language) {
		var b strings.Builder
		for _, r := range text {
			if r >= 0x20 && r != 0x7f || r == '\t' {
				b.WriteRune(r)
			}
		}
		text = b.String()
	} else {
		text = nonLatinChars.ReplaceAllString(text, "")
	}

	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
