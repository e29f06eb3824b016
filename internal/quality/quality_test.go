package quality

import (
	"fmt"
	"testing"
)

func TestCheck(t *testing.T) {
	f := New()

	tests := []struct {
		name     string
		width    int
		height   int
		ok       bool
		expected string
	}{
		{name: "square at threshold", width: 600, height: 600, ok: true, expected: "ok"},
		{name: "large square", width: 2000, height: 2000, ok: true, expected: "ok"},
		{name: "tiny square", width: 100, height: 100, expected: "too small (100x100)"},
		{name: "one side below minimum", width: 599, height: 800, expected: "too small (599x800)"},
		{name: "aspect at limit", width: 2100, height: 600, ok: true, expected: "ok"},
		{name: "aspect just over limit", width: 2200, height: 600, expected: "extreme aspect ratio 3.7:1"},
		{name: "sliver below minimum", width: 2000, height: 200, expected: "too small (2000x200)"},
		{name: "small and elongated", width: 599, height: 2200, expected: "too small (599x2200)"},
		{name: "narrow and tall", width: 150, height: 600, expected: "too small (150x600)"},
		{name: "tall sliver", width: 700, height: 7000, expected: "extreme aspect ratio 10.0:1"},
		{name: "zero dimension", width: 0, height: 800, expected: "too small (0x800)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := f.Check(tt.width, tt.height)
			if v.OK != tt.ok {
				t.Errorf("Expected OK=%v, got %v", tt.ok, v.OK)
			}
			if v.Reason != tt.expected {
				t.Errorf("Expected reason %q, got %q", tt.expected, v.Reason)
			}
		})
	}
}

func TestCheckAcceptsEverythingInsideThresholds(t *testing.T) {
	f := Filter{MinShortSide: 600, MaxAspect: 3.5}

	for w := 600; w <= 2100; w += 50 {
		for h := 600; h <= 2100; h += 50 {
			long, short := w, h
			if short > long {
				long, short = short, long
			}
			if float64(long)/float64(short) > 3.5 {
				continue
			}
			if v := f.Check(w, h); !v.OK {
				t.Fatalf("Expected %dx%d to pass, got %q", w, h, v.Reason)
			}
		}
	}
}

func TestCheckRejectsSmallImagesWithSaneAspect(t *testing.T) {
	f := New()

	for w := 1; w < 600; w += 37 {
		h := w + w/2
		if v := f.Check(w, h); v.OK || v.Reason[:9] != "too small" {
			t.Errorf("Expected %dx%d to be too small, got %+v", w, h, v)
		}
	}
}

func TestCheckSizeWinsOverAspect(t *testing.T) {
	f := New()

	for w := 1; w < 600; w += 41 {
		h := w * 5
		if v := f.Check(w, h); v.OK || v.Reason != fmt.Sprintf("too small (%dx%d)", w, h) {
			t.Errorf("Expected %dx%d to be too small, got %+v", w, h, v)
		}
	}
}
