package sanitizer

import "testing"

func TestSanitizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"us e164", "+16502530000", "+16502530000"},
		{"us national", "(650) 253-0000", "+16502530000"},
		{"israeli international", "+972541234567", "+972541234567"},
		{"israeli national", "054-123-4567", "+972541234567"},
		{"israeli mobile 052", "+972 52-123-4567", "+972521234567"},
		{"israeli mobile 050 national", "050 123 4567", "+972501234567"},
		{"letters", "abc", ""},
		{"too short", "+1", ""},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizePhone(tt.input); got != tt.want {
				t.Errorf("SanitizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizePhone_Idempotent(t *testing.T) {
	once := SanitizePhone("054-123-4567")
	if twice := SanitizePhone(once); twice != once {
		t.Errorf("SanitizePhone is not idempotent: %q then %q", once, twice)
	}
}
