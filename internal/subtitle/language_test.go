package subtitle

import (
	"strings"
	"testing"
)

func TestIsCJK(t *testing.T) {
	tests := []struct {
		language string
		want     bool
	}{
		{"zh", true},
		{"zh-Hans", true},
		{"zh-TW", true},
		{"ja", true},
		{"ko", true},
		{"en", false},
		{"fr", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsCJK(tt.language); got != tt.want {
			t.Errorf("IsCJK(%q) = %v, want %v", tt.language, got, tt.want)
		}
	}
}

func TestRemoveFillers(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		language string
		want     string
	}{
		{"english tokens", "um this is well a test", "en", "this is a test"},
		{"english phrase", "you know it works", "en", "it works"},
		{"keeps embedded words", "umbrella is so useful", "en", "umbrella is useful"},
		{"chinese substrings", "嗯那个我们开始吧", "zh", "我们开始吧"},
		{"japanese substrings", "えーそれでは始めます", "ja", "それでは始めます"},
		{"unknown language untouched", "um whatever", "de", "um whatever"},
		{"all fillers leaves empty", "um uh well", "en", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemoveFillers(tt.text, tt.language); got != tt.want {
				t.Errorf("RemoveFillers(%q, %q) = %q, want %q", tt.text, tt.language, got, tt.want)
			}
		})
	}
}

func TestCountUnits(t *testing.T) {
	if got := countUnits("one two three", "en"); got != 3 {
		t.Errorf("word count = %d, want 3", got)
	}
	if got := countUnits("你好 世界", "zh"); got != 4 {
		t.Errorf("char count = %d, want 4", got)
	}
}

func TestClassifyDifficulty(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		language string
		override string
		want     string
	}{
		{
			name:     "override wins",
			text:     "anything",
			language: "en",
			override: DifficultyHard,
			want:     DifficultyHard,
		},
		{
			name:     "short simple english is easy",
			text:     "the cat sat on the mat",
			language: "en",
			want:     DifficultyEasy,
		},
		{
			name:     "long english is hard",
			text:     strings.TrimSpace(strings.Repeat("word ", 26)),
			language: "en",
			want:     DifficultyHard,
		},
		{
			name:     "long-word density makes hard",
			text:     "extraordinarily complicated terminology notwithstanding",
			language: "en",
			want:     DifficultyHard,
		},
		{
			name:     "middling english is medium",
			text:     "this sentence has exactly fifteen words in it which is more than the easy threshold",
			language: "en",
			want:     DifficultyMedium,
		},
		{
			name:     "short dense chinese is easy",
			text:     "今天天气很好",
			language: "zh",
			want:     DifficultyEasy,
		},
		{
			name:     "long chinese is hard",
			text:     strings.Repeat("学", 51),
			language: "zh",
			want:     DifficultyHard,
		},
		{
			name:     "sparse cjk density is hard",
			text:     "ABCDEFG 学 HIJKLMN",
			language: "zh",
			want:     DifficultyHard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyDifficulty(tt.text, tt.language, tt.override)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}

			// classification is pure
			if again := ClassifyDifficulty(tt.text, tt.language, tt.override); again != got {
				t.Errorf("second call returned %q, first %q", again, got)
			}
		})
	}
}
