package subtitle

import (
	"errors"
	"strings"
	"testing"
)

const sampleVTT = `WEBVTT
Kind: captions
Language: en

NOTE this block is a comment
and must be skipped

00:00:01.000 --> 00:00:03.500 align:start position:0%
Hello there, welcome
to the channel

00:00:04.000 --> 00:00:06.000
We&#39;re going to <b>learn</b> something

00:00:07.000 --> 00:00:08.000
<c.colorE5E5E5></c>

00:10.500 --> 00:12.250
Short form timestamps work too
`

func TestParse(t *testing.T) {
	segments, err := Parse(strings.NewReader(sampleVTT), "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}

	first := segments[0]
	if first.Start != 1.0 || first.End != 3.5 {
		t.Errorf("first cue timing = [%v, %v], want [1, 3.5]", first.Start, first.End)
	}
	if first.Text != "Hello there, welcome to the channel" {
		t.Errorf("multi-line text = %q", first.Text)
	}

	if want := "We're going to learn something"; segments[1].Text != want {
		t.Errorf("entity/tag cleaning = %q, want %q", segments[1].Text, want)
	}

	third := segments[2]
	if third.Start != 10.5 || third.End != 12.25 {
		t.Errorf("MM:SS timing = [%v, %v], want [10.5, 12.25]", third.Start, third.End)
	}
}

func TestParseOrdering(t *testing.T) {
	segments, err := Parse(strings.NewReader(sampleVTT), "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, seg := range segments {
		if seg.Order != i {
			t.Errorf("segment %d has order %d", i, seg.Order)
		}
		if seg.End <= seg.Start {
			t.Errorf("segment %d end %v not after start %v", i, seg.End, seg.Start)
		}
	}
}

func TestParseEmptyInputs(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty file", ""},
		{"header only", "WEBVTT\n\n"},
		{"cues with no usable text", "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\n<c></c>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), "en")
			if !errors.Is(err, ErrEmptySubtitleFile) {
				t.Errorf("got %v, want ErrEmptySubtitleFile", err)
			}
		})
	}
}

func TestParseCJK(t *testing.T) {
	input := "WEBVTT\n\n00:00:01.000 --> 00:00:03.000\n你好，欢迎来到我的频道！\n"

	segments, err := Parse(strings.NewReader(input), "zh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	if segments[0].Text != "你好，欢迎来到我的频道！" {
		t.Errorf("CJK punctuation must survive cleaning, got %q", segments[0].Text)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		token   string
		want    float64
		wantErr bool
	}{
		{"00:00:01.500", 1.5, false},
		{"01:02:03.250", 3723.25, false},
		{"02:30.000", 150.0, false},
		{"00:00:05,000", 5.0, false},
		{"00:00:03.500 align:start", 3.5, false},
		{"garbage", 0, true},
		{"1:2:3:4", 0, true},
	}

	for _, tt := range tests {
		got, err := parseTimestamp(tt.token)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimestamp(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		language string
		want     string
	}{
		{"decodes entities before stripping tags", "a &lt;b&gt; c", "en", "a b c"},
		{"strips markup", "plain <i>styled</i> text", "en", "plain styled text"},
		{"restricted charset for non-CJK", "café 50% off!", "en", "caf 50 off!"},
		{"nbsp becomes space", "one&nbsp;two", "en", "one two"},
		{"CJK keeps unicode", "学习中文 very good", "zh", "学习中文 very good"},
		{"CJK strips control chars", "你好\x08世界", "zh", "你好世界"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.text, tt.language); got != tt.want {
				t.Errorf("CleanText(%q, %q) = %q, want %q", tt.text, tt.language, got, tt.want)
			}
		})
	}
}
