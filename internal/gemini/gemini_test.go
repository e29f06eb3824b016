package gemini

import (
	"context"
	"testing"

	"github.com/earthback/loraprep/internal/providers"
)

func TestImageFormat(t *testing.T) {
	tests := map[string]string{
		"image/png":  "png",
		"image/jpeg": "jpeg",
		"image/webp": "webp",
		"":           "jpeg",
		"text/plain": "jpeg",
	}
	for in, want := range tests {
		if got := imageFormat(in); got != want {
			t.Errorf("imageFormat(%q): Expected %s, got %s", in, want, got)
		}
	}
}

func TestDescribeRequiresKey(t *testing.T) {
	if _, err := New("").Describe(context.Background(), providers.Config{}); err == nil {
		t.Error("Expected an error without an API key")
	}
}
