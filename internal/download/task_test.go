package download

import "testing"

func TestTaskTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusParsing, true},
		{StatusQueued, StatusFailed, true},
		{StatusParsing, StatusDownloading, true},
		{StatusParsing, StatusFailed, true},
		{StatusDownloading, StatusSuccess, true},
		{StatusDownloading, StatusFailed, true},
		{StatusQueued, StatusDownloading, false},
		{StatusQueued, StatusSuccess, false},
		{StatusSuccess, StatusFailed, false},
		{StatusFailed, StatusQueued, false},
		{StatusSuccess, StatusDownloading, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !StatusSuccess.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("success and failed must be terminal")
	}
	if StatusQueued.IsTerminal() || StatusDownloading.IsTerminal() {
		t.Error("active states must not be terminal")
	}
}

func TestMapProgress(t *testing.T) {
	tests := []struct {
		raw  float64
		want int
	}{
		{0, 10},
		{50, 55},
		{100, 99},
		{99.9, 99},
		{-5, 10},
		{150, 99},
	}

	for _, tt := range tests {
		if got := MapProgress(tt.raw); got != tt.want {
			t.Errorf("MapProgress(%v) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestMapProgressMonotone(t *testing.T) {
	prev := 0
	for raw := 0.0; raw <= 100.0; raw += 0.5 {
		p := MapProgress(raw)
		if p < prev {
			t.Fatalf("MapProgress(%v) = %d regressed below %d", raw, p, prev)
		}
		prev = p
	}
}
