package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"dutch mobile national", "06 12345678", "+31612345678", true},
		{"dutch mobile international", "+31 6 12345678", "+31612345678", true},
		{"already e164", "+31612345678", "+31612345678", true},
		{"whitespace trimmed", "  0612345678  ", "+31612345678", true},
		{"foreign number with code", "+32 478 12 34 56", "+32478123456", true},
		{"empty", "", "", false},
		{"garbage", "not a number", "", false},
		{"too short", "06 12", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeE164(tt.input)
			if tt.ok && err != nil {
				t.Fatalf("NormalizeE164(%q) failed: %v", tt.input, err)
			}
			if !tt.ok && err == nil {
				t.Fatalf("NormalizeE164(%q) = %q, want error", tt.input, got)
			}
			if tt.ok && got != tt.want {
				t.Fatalf("NormalizeE164(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
