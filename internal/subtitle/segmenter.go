package subtitle

import "strings"

// Merge thresholds. Units are characters for CJK and words otherwise.
const (
	mergeMaxGap      = 2.5
	mergeMaxUnits    = 60
	mergeMaxDuration = 30.0

	filterMinCJKChars = 3
	filterMaxCJKChars = 200
	filterMinWords    = 3
	filterMaxWords    = 80
	filterMinDuration = 0.5
	filterMaxDuration = 40.0
)

// Sentence is one practice unit derived from merged subtitle segments
type Sentence struct {
	Order      int
	Start      float64
	End        float64
	Text       string
	Difficulty string
}

// Segmenter turns parsed subtitle segments into practice sentences
type Segmenter struct{}

// NewSegmenter creates a segmentation engine
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Build runs the full pipeline: merge adjacent segments, remove filler
// words, filter out unusable candidates, and classify difficulty. A
// non-empty difficulty override bypasses automatic classification.
func (s *Segmenter) Build(segments []Segment, language, difficultyOverride string) []Sentence {
	merged := mergeSegments(segments, language)

	cleaned := merged[:0]
	for _, seg := range merged {
		seg.Text = RemoveFillers(seg.Text, language)
		if seg.Text == "" {
			continue
		}
		cleaned = append(cleaned, seg)
	}

	kept := filterSegments(cleaned, language)

	sentences := make([]Sentence, 0, len(kept))
	for i, seg := range kept {
		sentences = append(sentences, Sentence{
			Order:      i,
			Start:      seg.Start,
			End:        seg.End,
			Text:       seg.Text,
			Difficulty: ClassifyDifficulty(seg.Text, language, difficultyOverride),
		})
	}
	return sentences
}

// mergeSegments folds segment i+1 into the running segment while the gap
// stays within mergeMaxGap, the combined unit count within mergeMaxUnits,
// and the merged duration within mergeMaxDuration.
func mergeSegments(segments []Segment, language string) []Segment {
	if len(segments) == 0 {
		return nil
	}

	joiner := " "
	if IsCJK(language) {
		joiner = ""
	}

	merged := make([]Segment, 0, len(segments))
	current := segments[0]

	for _, next := range segments[1:] {
		gap := next.Start - current.End
		combinedText := current.Text + joiner + next.Text
		duration := next.End - current.Start

		if gap <= mergeMaxGap &&
			countUnits(combinedText, language) <= mergeMaxUnits &&
			duration <= mergeMaxDuration {
			current.Text = combinedText
			current.Raw = current.Raw + " " + next.Raw
			current.End = next.End
			continue
		}

		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)

	for i := range merged {
		merged[i].Order = i
		merged[i].Text = strings.TrimSpace(merged[i].Text)
	}
	return merged
}

// filterSegments drops candidates outside the practice length and
// duration bounds. Running the filter over already-filtered input is a
// no-op.
func filterSegments(segments []Segment, language string) []Segment {
	kept := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		duration := seg.End - seg.Start
		if duration < filterMinDuration || duration > filterMaxDuration {
			continue
		}

		units := countUnits(seg.Text, language)
		if IsCJK(language) {
			if units < filterMinCJKChars || units > filterMaxCJKChars {
				continue
			}
		} else {
			if units < filterMinWords || units > filterMaxWords {
				continue
			}
		}
		kept = append(kept, seg)
	}
	return kept
}
