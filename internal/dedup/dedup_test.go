package dedup

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestSeen(t *testing.T) {
	s := NewSet()

	if _, _, dup := s.Seen("a.jpg", []byte("pixels")); dup {
		t.Fatal("Expected first sighting to be new")
	}

	_, first, dup := s.Seen("b.jpg", []byte("pixels"))
	if !dup {
		t.Fatal("Expected identical bytes to be a duplicate")
	}
	if first != "a.jpg" {
		t.Errorf("Expected first name a.jpg, got %s", first)
	}

	if _, _, dup := s.Seen("c.jpg", []byte("other pixels")); dup {
		t.Error("Expected different bytes to be new")
	}

	if s.Len() != 2 {
		t.Errorf("Expected 2 fingerprints, got %d", s.Len())
	}
}

func TestSeenFileUnreadable(t *testing.T) {
	s := NewSet()

	_, _, dup, err := s.SeenFile(filepath.Join(t.TempDir(), "missing.jpg"))
	if err == nil {
		t.Fatal("Expected an error for a missing file")
	}
	if dup {
		t.Error("Expected an unreadable file never to be reported as a duplicate")
	}
	if s.Len() != 0 {
		t.Errorf("Expected nothing recorded, got %d", s.Len())
	}
}

func TestSeenFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	if err := os.WriteFile(a, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}

	s := NewSet()
	if _, _, dup, err := s.SeenFile(a); err != nil || dup {
		t.Fatalf("Expected a to be new, got dup=%v err=%v", dup, err)
	}
	if _, first, dup, err := s.SeenFile(b); err != nil || !dup || first != a {
		t.Errorf("Expected b to duplicate a, got dup=%v first=%s err=%v", dup, first, err)
	}
}

func TestFingerprintString(t *testing.T) {
	if got := Fingerprint(0xabc).String(); got != "0000000000000abc" {
		t.Errorf("Expected zero padded hex, got %s", got)
	}
}

func gradient(w, h int, invert bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / w)
			if invert {
				v = 255 - v
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestSeenImage(t *testing.T) {
	exact := NewSet()
	if exact.SeenImage(gradient(64, 64, false)) || exact.SeenImage(gradient(64, 64, false)) {
		t.Error("Expected exact-only set to ignore perceptual checks")
	}

	s := NewPerceptualSet(DefaultPerceptualThreshold)
	if s.SeenImage(gradient(64, 64, false)) {
		t.Fatal("Expected first image to be new")
	}
	if !s.SeenImage(gradient(128, 128, false)) {
		t.Error("Expected resized copy to be a near duplicate")
	}
	if s.SeenImage(gradient(64, 64, true)) {
		t.Error("Expected inverted gradient to be new")
	}
}
