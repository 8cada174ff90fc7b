package core

import (
	"testing"
)

func TestContentHash(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "short body", body: "hello"},
		{name: "markdown body", body: "# Title\n\nSome *markdown* text.\n\n- one\n- two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1 := ContentHash(tt.body)
			h2 := ContentHash(tt.body)

			if h1 != h2 {
				t.Errorf("ContentHash() not deterministic: %s vs %s", h1, h2)
			}
			if len(h1) != HashSize*2 {
				t.Errorf("ContentHash() length = %d, want %d", len(h1), HashSize*2)
			}
		})
	}
}

func TestContentHash_Different(t *testing.T) {
	h1 := ContentHash("body one")
	h2 := ContentHash("body two")

	if h1 == h2 {
		t.Errorf("ContentHash() produced same hash for different bodies")
	}

	// A trailing whitespace change is still a body change.
	if ContentHash("body") == ContentHash("body ") {
		t.Errorf("ContentHash() ignored trailing whitespace")
	}
}
