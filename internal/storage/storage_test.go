package storage

import "testing"

func TestMediaKey(t *testing.T) {
	tests := []struct {
		externalID, downloadType, path string
		want                           string
	}{
		{"abc123def45", "video", "/downloads/Some Title.mp4", "archive/abc123def45/video.mp4"},
		{"abc123def45", "audio", "/downloads/Some Title.mp3", "archive/abc123def45/audio.mp3"},
		{"abc123def45", "video", "/downloads/noext", "archive/abc123def45/video.bin"},
	}

	for _, tt := range tests {
		if got := mediaKey(tt.externalID, tt.downloadType, tt.path); got != tt.want {
			t.Errorf("mediaKey(%q, %q, %q) = %q, want %q", tt.externalID, tt.downloadType, tt.path, got, tt.want)
		}
	}
}

func TestMetadataKey(t *testing.T) {
	if got := metadataKey("abc123def45", "video"); got != "archive/abc123def45/video.json" {
		t.Errorf("metadataKey = %q", got)
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"a.mp4", "video/mp4"},
		{"a.mp3", "audio/mpeg"},
		{"a.webm", "video/webm"},
		{"a.unknown", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := contentTypeFor(tt.path); got != tt.want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
