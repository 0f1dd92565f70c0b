package tui

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"short", 20, "short"},
		{"exactly ten.", 12, "exactly ten."},
		{"a long ascii line that overflows", 10, "a long as…"},
		{"…→…", 5, "…→…"},
		{"Get ready… 3", 8, "Get rea…"},
		{"PEACE → tab_new", 9, "PEACE → …"},
		{"日本語のテキスト", 5, "日本語の…"},
		{"anything", 1, "anything"},
	}
	for _, tt := range tests {
		got := truncate(tt.s, tt.width)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8: %q", tt.s, tt.width, got)
		}
	}
}

func TestProgressBar(t *testing.T) {
	if got := progressBar(3, 6, 10); got != "[█████░░░░░]" {
		t.Errorf("progressBar(3, 6, 10) = %q", got)
	}
	if got := progressBar(0, 0, 10); got != "" {
		t.Errorf("progressBar with zero total = %q, want empty", got)
	}
	if got := progressBar(9, 6, 10); got != "[██████████]" {
		t.Errorf("overshoot progressBar = %q, want full bar", got)
	}
}
