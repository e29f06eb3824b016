package curation

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/earthback/loraprep/internal/imaging"
	"github.com/earthback/loraprep/internal/quality"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

type scriptedReviewer struct {
	answers []Decision
	asked   []Item
}

func (s *scriptedReviewer) Review(ctx context.Context, item Item) (Decision, error) {
	s.asked = append(s.asked, item)
	if len(s.answers) == 0 {
		return Keep, nil
	}
	d := s.answers[0]
	s.answers = s.answers[1:]
	return d, nil
}

type recordingViewer struct {
	opened []string
}

func (r *recordingViewer) Open(path string) error {
	r.opened = append(r.opened, path)
	return nil
}

func defaultOptions(raw, curated string) Options {
	return Options{
		RawDir:     raw,
		CuratedDir: curated,
		Target:     128,
		Filter:     quality.Filter{MinShortSide: 600, MaxAspect: 3.5},
	}
}

func TestRunEndToEnd(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	curated := filepath.Join(root, "curated")

	writePNG(t, filepath.Join(raw, "wikimedia", "a_big.png"), 2000, 2000, color.RGBA{R: 200, A: 255})
	writePNG(t, filepath.Join(raw, "wikimedia", "b_small.png"), 100, 100, color.RGBA{G: 200, A: 255})
	writePNG(t, filepath.Join(raw, "wikimedia", "c_sliver.png"), 2000, 200, color.RGBA{B: 200, A: 255})
	writePNG(t, filepath.Join(raw, "wikimedia", "d_tall.png"), 700, 2800, color.RGBA{R: 90, B: 90, A: 255})

	summary, err := New(defaultOptions(raw, curated), nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Accepted != 1 {
		t.Errorf("Expected 1 accepted, got %d", summary.Accepted)
	}
	if summary.Rejected != 3 {
		t.Errorf("Expected 3 rejected, got %d", summary.Rejected)
	}

	reasons := map[string]string{}
	for _, e := range summary.Entries {
		reasons[e.File] = string(e.Action) + ":" + e.Reason
	}
	if got := reasons["wikimedia/b_small.png"]; got != "auto-reject:too small (100x100)" {
		t.Errorf("Expected small image rejected as too small, got %q", got)
	}
	if got := reasons["wikimedia/c_sliver.png"]; got != "auto-reject:too small (2000x200)" {
		t.Errorf("Expected sliver rejected as too small, got %q", got)
	}
	if got := reasons["wikimedia/d_tall.png"]; got != "auto-reject:extreme aspect ratio 4.0:1" {
		t.Errorf("Expected tall image rejected by aspect ratio, got %q", got)
	}

	dest := filepath.Join(curated, "curated_0000_a_big.jpg")
	img, err := imaging.Open(dest)
	if err != nil {
		t.Fatalf("Expected curated output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 128 {
		t.Errorf("Expected 128x128 output, got %dx%d", b.Dx(), b.Dy())
	}

	entries, err := ReadLog(filepath.Join(curated, LogFile))
	if err != nil {
		t.Fatalf("Expected a curation log: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("Expected 4 log entries, got %d", len(entries))
	}
}

func TestRunTwiceOnlySkips(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	curated := filepath.Join(root, "curated")

	writePNG(t, filepath.Join(raw, "pexels", "one.png"), 800, 800, color.RGBA{R: 10, A: 255})
	writePNG(t, filepath.Join(raw, "pexels", "two.png"), 900, 700, color.RGBA{R: 20, A: 255})
	writePNG(t, filepath.Join(raw, "pixabay", "copy.png"), 800, 800, color.RGBA{R: 10, A: 255})

	first, err := New(defaultOptions(raw, curated), nil, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Accepted != 2 {
		t.Fatalf("Expected 2 accepted on first run, got %d", first.Accepted)
	}

	second, err := New(defaultOptions(raw, curated), nil, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.Accepted != 0 {
		t.Errorf("Expected no new accepts on rerun, got %d", second.Accepted)
	}
	if second.Skipped != 2 {
		t.Errorf("Expected 2 skips on rerun, got %d", second.Skipped)
	}
	if second.Curated() != 2 {
		t.Errorf("Expected curated total of 2, got %d", second.Curated())
	}
}

func TestRunDuplicateContent(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	curated := filepath.Join(root, "curated")

	writePNG(t, filepath.Join(raw, "a", "first.png"), 700, 700, color.RGBA{G: 99, A: 255})
	writePNG(t, filepath.Join(raw, "b", "second.png"), 700, 700, color.RGBA{G: 99, A: 255})

	summary, err := New(defaultOptions(raw, curated), nil, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Accepted != 1 || summary.Rejected != 1 {
		t.Fatalf("Expected 1 accepted and 1 rejected, got %+v", summary)
	}
	last := summary.Entries[1]
	if last.Action != Duplicate || !strings.Contains(last.Reason, "a/first.png") {
		t.Errorf("Expected duplicate of a/first.png, got %+v", last)
	}
}

func TestRunReview(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	curated := filepath.Join(root, "curated")

	writePNG(t, filepath.Join(raw, "s", "1.png"), 700, 700, color.RGBA{R: 1, A: 255})
	writePNG(t, filepath.Join(raw, "s", "2.png"), 700, 700, color.RGBA{R: 2, A: 255})
	writePNG(t, filepath.Join(raw, "s", "3.png"), 700, 700, color.RGBA{R: 3, A: 255})

	reviewer := &scriptedReviewer{answers: []Decision{Keep, Reject, Quit}}
	v := &recordingViewer{}

	summary, err := New(defaultOptions(raw, curated), reviewer, v).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !summary.Stopped {
		t.Error("Expected the run to stop on quit")
	}
	if summary.Accepted != 1 || summary.Rejected != 1 {
		t.Errorf("Expected 1 accepted and 1 user reject, got %+v", summary)
	}
	if summary.Entries[1].Action != UserReject {
		t.Errorf("Expected user-reject, got %s", summary.Entries[1].Action)
	}
	if len(v.opened) != 3 {
		t.Errorf("Expected viewer opened 3 times, got %d", len(v.opened))
	}
	for _, p := range v.opened {
		if !strings.Contains(filepath.Base(p), "_preview_curated_") {
			t.Errorf("Expected preview file to be shown, got %s", p)
		}
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("Expected preview %s to be removed", p)
		}
	}

	if _, err := os.Stat(filepath.Join(curated, "curated_0002_3.jpg")); !os.IsNotExist(err) {
		t.Error("Expected nothing written after quit")
	}
	if _, err := os.Stat(filepath.Join(curated, LogFile)); err != nil {
		t.Errorf("Expected log written after quit: %v", err)
	}
}

func TestRunDryRun(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	curated := filepath.Join(root, "curated")
	writePNG(t, filepath.Join(raw, "x", "ok.png"), 700, 700, color.RGBA{B: 7, A: 255})

	opts := defaultOptions(raw, curated)
	opts.DryRun = true
	summary, err := New(opts, nil, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Accepted != 1 {
		t.Errorf("Expected 1 would-be accept, got %d", summary.Accepted)
	}
	if _, err := os.Stat(curated); !os.IsNotExist(err) {
		t.Error("Expected dry run not to create the curated directory")
	}
}

func TestRunSourceFilterKeepsIndices(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	curated := filepath.Join(root, "curated")
	writePNG(t, filepath.Join(raw, "pexels", "p.png"), 700, 700, color.RGBA{R: 5, A: 255})
	writePNG(t, filepath.Join(raw, "wikimedia", "w.png"), 700, 700, color.RGBA{R: 6, A: 255})

	opts := defaultOptions(raw, curated)
	opts.Source = "wikimedia"
	summary, err := New(opts, nil, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Found != 1 {
		t.Errorf("Expected 1 image in source, got %d", summary.Found)
	}
	if summary.Entries[0].Dest != "curated_0001_w.jpg" {
		t.Errorf("Expected index from full listing, got %s", summary.Entries[0].Dest)
	}
}

func TestReviewPositionCountsFilteredImages(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	curated := filepath.Join(root, "curated")
	writePNG(t, filepath.Join(raw, "pexels", "a.png"), 700, 700, color.RGBA{R: 7, A: 255})
	writePNG(t, filepath.Join(raw, "pexels", "b.png"), 700, 700, color.RGBA{R: 8, A: 255})
	writePNG(t, filepath.Join(raw, "wikimedia", "w1.png"), 700, 700, color.RGBA{R: 9, A: 255})
	writePNG(t, filepath.Join(raw, "wikimedia", "w2.png"), 700, 700, color.RGBA{R: 11, A: 255})

	opts := defaultOptions(raw, curated)
	opts.Source = "wikimedia"
	reviewer := &scriptedReviewer{}
	summary, err := New(opts, reviewer, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(reviewer.asked) != 2 {
		t.Fatalf("Expected 2 review prompts, got %d", len(reviewer.asked))
	}
	for i, item := range reviewer.asked {
		if item.Index != i+1 || item.Total != 2 {
			t.Errorf("Expected prompt %d/2, got %d/%d", i+1, item.Index, item.Total)
		}
	}
	if summary.Entries[0].Dest != "curated_0002_w1.jpg" {
		t.Errorf("Expected name from full listing, got %s", summary.Entries[0].Dest)
	}
}

func TestRunMissingRawDir(t *testing.T) {
	_, err := New(defaultOptions(filepath.Join(t.TempDir(), "nope"), t.TempDir()), nil, nil).Run(context.Background())
	if err == nil {
		t.Error("Expected an error for a missing raw directory")
	}
}

func TestRunUndecodable(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	if err := os.MkdirAll(filepath.Join(raw, "x"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(raw, "x", "broken.jpg"), []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	summary, err := New(defaultOptions(raw, filepath.Join(root, "curated")), nil, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Errors != 1 || summary.Rejected != 1 {
		t.Errorf("Expected one error counted as rejected, got %+v", summary)
	}
	if summary.Entries[0].Action != Failed {
		t.Errorf("Expected error action, got %s", summary.Entries[0].Action)
	}
}

func TestRunCancelled(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	writePNG(t, filepath.Join(raw, "x", "a.png"), 700, 700, color.RGBA{R: 1, A: 255})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := New(defaultOptions(raw, filepath.Join(root, "curated")), nil, nil).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Stopped || summary.Accepted != 0 {
		t.Errorf("Expected cancelled run to stop before any work, got %+v", summary)
	}
}

func TestDestName(t *testing.T) {
	tests := []struct {
		index    int
		path     string
		expected string
	}{
		{0, "raw/pexels/pexels_123.jpg", "curated_0000_pexels_123.jpg"},
		{42, "raw/x/photo.webp", "curated_0042_photo.jpg"},
		{7, "raw/x/" + strings.Repeat("a", 80) + ".png", "curated_0007_" + strings.Repeat("a", 60) + ".jpg"},
	}

	for _, tt := range tests {
		if got := DestName(tt.index, tt.path); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}

func TestParseDecision(t *testing.T) {
	tests := map[string]Decision{
		"y":     Keep,
		"Y\n":   Keep,
		"yes":   Keep,
		"q":     Quit,
		"n":     Reject,
		"s":     Reject,
		"":      Reject,
		"maybe": Reject,
	}
	for in, want := range tests {
		if got := ParseDecision(in); got != want {
			t.Errorf("ParseDecision(%q): Expected %d, got %d", in, want, got)
		}
	}
}

func TestConsole(t *testing.T) {
	var out strings.Builder
	c := NewConsole(strings.NewReader("y\nn\n"), &out)

	d, err := c.Review(context.Background(), Item{Index: 1, Total: 2, File: "a.png"})
	if err != nil || d != Keep {
		t.Fatalf("Expected keep, got %d err=%v", d, err)
	}
	d, err = c.Review(context.Background(), Item{Index: 2, Total: 2, File: "b.png"})
	if err != nil || d != Reject {
		t.Fatalf("Expected reject, got %d err=%v", d, err)
	}
	_, err = c.Review(context.Background(), Item{Index: 3, Total: 3, File: "c.png"})
	if err != ErrQuit {
		t.Errorf("Expected ErrQuit at end of input, got %v", err)
	}
	if !strings.Contains(out.String(), "Keep? [y/n/q]") {
		t.Errorf("Expected prompt in output, got %q", out.String())
	}
}

func TestAssessment(t *testing.T) {
	if !strings.HasPrefix(Assessment(10), "Too few") {
		t.Error("Expected too few for 10")
	}
	if !strings.HasPrefix(Assessment(30), "Usable") {
		t.Error("Expected usable for 30")
	}
	if !strings.HasPrefix(Assessment(60), "Good") {
		t.Error("Expected good for 60")
	}
}

func TestCollectStats(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	curated := filepath.Join(root, "curated")
	writePNG(t, filepath.Join(raw, "pexels", "a.png"), 10, 10, color.Black)
	writePNG(t, filepath.Join(raw, "pexels", "b.png"), 10, 10, color.White)
	writePNG(t, filepath.Join(raw, "wikimedia", "c.png"), 10, 10, color.Black)
	if err := os.MkdirAll(curated, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"curated_0000_a.jpg", "curated_0000_a.txt", "curated_0001_b.jpg", "notes.md"} {
		if err := os.WriteFile(filepath.Join(curated, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := CollectStats(raw, curated)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Raw != 3 || stats.BySource["pexels"] != 2 || stats.BySource["wikimedia"] != 1 {
		t.Errorf("Unexpected raw counts: %+v", stats)
	}
	if stats.Curated != 2 || stats.Captions != 1 {
		t.Errorf("Expected 2 curated and 1 caption, got %d and %d", stats.Curated, stats.Captions)
	}
}
