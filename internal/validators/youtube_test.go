package validators

import "testing"

func TestYouTubeValidator_CanHandle(t *testing.T) {
	v := NewYouTubeValidator()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://vimeo.com/12345", false},
		{"https://example.com/watch?v=dQw4w9WgXcQ", false},
		{"not a url at all ://", false},
	}

	for _, tt := range tests {
		if got := v.CanHandle(tt.url); got != tt.want {
			t.Errorf("CanHandle(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestYouTubeValidator_Validate(t *testing.T) {
	v := NewYouTubeValidator()

	tests := []struct {
		name      string
		url       string
		wantValid bool
		wantID    string
		wantType  string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", true, "dQw4w9WgXcQ", "video"},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", true, "dQw4w9WgXcQ", "video"},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ", true, "dQw4w9WgXcQ", "short"},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", true, "dQw4w9WgXcQ", "video"},
		{"live", "https://www.youtube.com/live/dQw4w9WgXcQ", true, "dQw4w9WgXcQ", "live"},
		{"extra query params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", true, "dQw4w9WgXcQ", "video"},
		{"scheme added", "youtube.com/watch?v=dQw4w9WgXcQ", false, "", ""},
		{"missing id", "https://www.youtube.com/watch", false, "", ""},
		{"bad id length", "https://youtu.be/short", false, "", ""},
		{"ftp scheme", "ftp://youtube.com/watch?v=dQw4w9WgXcQ", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.url)
			if result.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (%+v)", result.Valid, tt.wantValid, result)
			}
			if !tt.wantValid {
				return
			}
			if result.VideoID != tt.wantID {
				t.Errorf("VideoID = %q, want %q", result.VideoID, tt.wantID)
			}
			if result.MediaType != tt.wantType {
				t.Errorf("MediaType = %q, want %q", result.MediaType, tt.wantType)
			}
			if result.Canonical != "https://www.youtube.com/watch?v="+tt.wantID {
				t.Errorf("Canonical = %q", result.Canonical)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	result := r.Validate("https://youtu.be/dQw4w9WgXcQ")
	if !result.Valid {
		t.Errorf("expected valid, got %+v", result)
	}

	result = r.Validate("https://soundcloud.com/artist/track")
	if result.Valid || result.SourceType != SourceUnknown {
		t.Errorf("expected unknown source, got %+v", result)
	}

	sources := r.GetSupportedSources()
	if len(sources) != 1 || sources[0] != SourceYouTube {
		t.Errorf("sources = %v", sources)
	}
}
