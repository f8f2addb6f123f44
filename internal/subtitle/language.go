package subtitle

import (
	"strings"
	"unicode"
)

// Difficulty levels assigned to practice sentences
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// fillerWords are language-specific fillers removed before a sentence is
// used for practice. Space-delimited languages match whole tokens (and
// two-token phrases); CJK languages match substrings.
var fillerWords = map[string][]string{
	"en": {"uh", "um", "you know", "like", "so", "well", "actually", "basically", "literally"},
	"zh": {"嗯", "那个", "就是", "然后", "这个", "呃", "啊", "哦"},
	"ja": {"えー", "あの", "まあ", "その", "なんか", "っていうか", "てか"},
}

// IsCJK reports whether a language code belongs to the CJK family,
// which uses character-based rather than word-based measurement.
func IsCJK(language string) bool {
	lang := strings.ToLower(language)
	return strings.HasPrefix(lang, "zh") ||
		strings.HasPrefix(lang, "ja") ||
		strings.HasPrefix(lang, "ko")
}

// baseLanguage reduces a regional code like zh-Hans to its filler set key
func baseLanguage(language string) string {
	lang := strings.ToLower(language)
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		lang = lang[:idx]
	}
	return lang
}

// RemoveFillers strips filler words from text. Token matching is used for
// space-delimited languages, substring removal for CJK.
func RemoveFillers(text, language string) string {
	fillers, ok := fillerWords[baseLanguage(language)]
	if !ok {
		return strings.TrimSpace(text)
	}

	if IsCJK(language) {
		for _, filler := range fillers {
			text = strings.ReplaceAll(text, filler, "")
		}
		return strings.TrimSpace(text)
	}

	lowered := strings.ToLower(text)
	for _, filler := range fillers {
		if !strings.Contains(filler, " ") {
			continue
		}
		// multi-word fillers are removed before tokenization
		for {
			idx := strings.Index(lowered, filler)
			if idx < 0 {
				break
			}
			text = text[:idx] + text[idx+len(filler):]
			lowered = lowered[:idx] + lowered[idx+len(filler):]
		}
	}

	words := strings.Fields(text)
	kept := words[:0]
	for _, word := range words {
		bare := strings.ToLower(strings.Trim(word, ",.!?'-"))
		if isSingleFiller(bare, fillers) {
			continue
		}
		kept = append(kept, word)
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

func isSingleFiller(word string, fillers []string) bool {
	for _, filler := range fillers {
		if !strings.Contains(filler, " ") && word == filler {
			return true
		}
	}
	return false
}

// isCJKRune reports whether a rune sits in the Han, Hiragana, Katakana,
// or Hangul blocks.
func isCJKRune(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// countUnits measures text length in the unit native to the language:
// characters (excluding whitespace) for CJK, words otherwise.
func countUnits(text, language string) int {
	if IsCJK(language) {
		n := 0
		for _, r := range text {
			if !unicode.IsSpace(r) {
				n++
			}
		}
		return n
	}
	return len(strings.Fields(text))
}

// ClassifyDifficulty rates a sentence. A non-empty override is passed
// through unchanged. Automatic classification is a pure function of the
// text and language.
func ClassifyDifficulty(text, language, override string) string {
	if override != "" {
		return override
	}
	if IsCJK(language) {
		return classifyCJK(text)
	}
	return classifyWords(text)
}

func classifyWords(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return DifficultyEasy
	}

	long := 0
	for _, word := range words {
		if len([]rune(word)) > 8 {
			long++
		}
	}
	longRatio := float64(long) / float64(len(words))

	switch {
	case len(words) < 12 && longRatio < 0.2:
		return DifficultyEasy
	case len(words) > 25 || longRatio > 0.4:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

func classifyCJK(text string) string {
	total, dense := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isCJKRune(r) {
			dense++
		}
	}
	if total == 0 {
		return DifficultyEasy
	}
	denseRatio := float64(dense) / float64(total)

	switch {
	case total < 15 && denseRatio > 0.7:
		return DifficultyEasy
	case total > 50 || denseRatio < 0.3:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}
