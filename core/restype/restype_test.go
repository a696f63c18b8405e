package restype

import "testing"

func TestRoundTrip(t *testing.T) {
	for id, ext := range extensions {
		back, ok := ID(ext)
		if !ok || back != id {
			t.Errorf("ID(%q) = %d, %v, want %d", ext, back, ok, id)
		}
	}
}

func TestID(t *testing.T) {
	tests := []struct {
		ext  string
		want uint16
		ok   bool
	}{
		{"2da", 2017, true},
		{".2da", 2017, true},
		{".UTC", 2027, true},
		{"are", 2012, true},
		{"xyzzy", 0, false},
	}
	for _, tt := range tests {
		got, ok := ID(tt.ext)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ID(%q) = %d, %v, want %d, %v", tt.ext, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtensionUnknown(t *testing.T) {
	if _, ok := Extension(12345); ok {
		t.Error("Extension(12345) should not resolve")
	}
}
