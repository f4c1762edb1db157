package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trim spaces", "  Guitar Lesson  ", "Guitar Lesson"},
		{"multiple spaces", "Guitar    Lesson", "Guitar Lesson"},
		{"tabs and newlines", "Guitar\t\nLesson", "Guitar Lesson"},
		{"only whitespace", "   \t\n  ", ""},
		{"special characters kept", " Café & Jazz™ ", "Café & Jazz™"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"abcdef", 3, "abc"},
		{"abc", 3, "abc"},
		{"ab cd", 3, "ab"},
		{"שלום", 2, "של"},
		{"abc", 0, ""},
	}

	for _, tt := range tests {
		if got := Truncate(tt.input, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
		}
	}
}
