package crop

import (
	"image"
	"image/color"
	"testing"
)

func filled(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSquareDimensions(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		size   int
	}{
		{name: "landscape", width: 1600, height: 900, size: 256},
		{name: "portrait", width: 900, height: 1600, size: 256},
		{name: "square larger", width: 700, height: 700, size: 256},
		{name: "upscale small", width: 40, height: 30, size: 64},
		{name: "one pixel", width: 1, height: 1, size: 32},
		{name: "odd ratio", width: 1001, height: 333, size: 100},
		{name: "sliver", width: 1, height: 500, size: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Square(image.NewRGBA(image.Rect(0, 0, tt.width, tt.height)), tt.size)
			b := out.Bounds()
			if b.Dx() != tt.size || b.Dy() != tt.size {
				t.Errorf("Expected %dx%d, got %dx%d", tt.size, tt.size, b.Dx(), b.Dy())
			}
		})
	}
}

func TestSquareIdempotent(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}

	out := Square(src, 64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if out.RGBAAt(x, y) != src.RGBAAt(x, y) {
				t.Fatalf("Expected pixel (%d,%d) unchanged, got %v want %v", x, y, out.RGBAAt(x, y), src.RGBAAt(x, y))
			}
		}
	}

	again := Square(out, 64)
	if string(again.Pix) != string(out.Pix) {
		t.Error("Expected cropping twice to be identical to cropping once")
	}
}

func TestSquareKeepsCentre(t *testing.T) {
	// Red bands on the left and right thirds, green centre.
	src := filled(300, 100, color.RGBA{R: 255, A: 255})
	for y := 0; y < 100; y++ {
		for x := 100; x < 200; x++ {
			src.Set(x, y, color.RGBA{G: 255, A: 255})
		}
	}

	out := Square(src, 100)
	c := out.RGBAAt(50, 50)
	if c.G < 200 || c.R > 50 {
		t.Errorf("Expected centre of crop to be green, got %v", c)
	}
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		w, h, size   int
		wantW, wantH int
	}{
		{2000, 1000, 1024, 2048, 1024},
		{1000, 2000, 1024, 1024, 2048},
		{1024, 1024, 1024, 1024, 1024},
		{3, 2, 4, 6, 4},
	}

	for _, tt := range tests {
		gotW, gotH := scaledSize(tt.w, tt.h, tt.size)
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Errorf("scaledSize(%d, %d, %d): Expected %dx%d, got %dx%d", tt.w, tt.h, tt.size, tt.wantW, tt.wantH, gotW, gotH)
		}
	}
}
