package names

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jiří", "Jiri"},
		{"Łukasz", "Łukasz"}, // stroke is not a combining mark
		{"José", "Jose"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := RemoveDiacritics(tt.in); got != tt.want {
			t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClean(t *testing.T) {
	if got := Clean("  Ada   Lovelace "); got != "Ada Lovelace" {
		t.Errorf("Clean collapsed to %q", got)
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"Jiří Novák", "jiri novak"},
		{"Marie-Claire", "marie claire"},
		{"  JOSÉ ", "jose"},
	}
	for _, tt := range tests {
		if got := Fold(tt.a); got != tt.b {
			t.Errorf("Fold(%q) = %q, want %q", tt.a, got, tt.b)
		}
	}
}
