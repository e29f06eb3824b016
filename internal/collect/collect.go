// Package collect downloads candidate training images from stock-photo
// APIs and Wikimedia Commons into a per-source raw directory.
package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/earthback/loraprep/internal/dedup"
	"github.com/earthback/loraprep/internal/imagemeta"
)

// ErrMissingKey is returned when a source needs an API key that is not set.
var ErrMissingKey = errors.New("missing API key")

const (
	// MetadataFile sits at the root of the raw directory.
	MetadataFile = "metadata.json"

	DefaultMax       = 150
	DefaultMinWidth  = 800
	DefaultMinHeight = 800
	DefaultThrottle  = 150 * time.Millisecond
)

// Terms are the search inputs of a dataset. Stock sites get Core and
// Supporting terms; Wikimedia gets Core terms and Categories.
type Terms struct {
	Core       []string `yaml:"core"`
	Supporting []string `yaml:"supporting"`
	Categories []string `yaml:"categories"`
}

// Stock is every term sent to the stock-photo APIs.
func (t Terms) Stock() []string {
	all := make([]string, 0, len(t.Core)+len(t.Supporting))
	all = append(all, t.Core...)
	return append(all, t.Supporting...)
}

// Candidate is a search hit not yet downloaded.
type Candidate struct {
	Source       string
	ID           string
	Title        string
	Term         string
	Filename     string
	URL          string
	PageURL      string
	License      string
	Photographer string
	Width        int
	Height       int
}

// CollectedImage is one metadata.json record.
type CollectedImage struct {
	File         string          `json:"file"`
	Source       string          `json:"source"`
	ID           string          `json:"id,omitempty"`
	Title        string          `json:"title,omitempty"`
	Term         string          `json:"term,omitempty"`
	Photographer string          `json:"photographer,omitempty"`
	License      string          `json:"license,omitempty"`
	Width        int             `json:"width"`
	Height       int             `json:"height"`
	PageURL      string          `json:"page_url,omitempty"`
	DownloadURL  string          `json:"download_url"`
	Bytes        int64           `json:"bytes,omitempty"`
	Fingerprint  string          `json:"sha,omitempty"`
	Embedded     *imagemeta.Info `json:"embedded,omitempty"`
}

// Source yields candidates until emit returns false or it runs out.
// Per-term API errors are logged by the source; only cancellation is
// returned.
type Source interface {
	Name() string
	Find(ctx context.Context, terms Terms, emit func(Candidate) bool) error
}

// Options control a collection run.
type Options struct {
	RawDir    string
	Max       int
	MinWidth  int
	MinHeight int
	DryRun    bool
	Throttle  time.Duration
}

// Collector downloads candidates from sources, skipping files already on
// disk and content already seen in this run.
type Collector struct {
	opts       Options
	downloader *Downloader
	seen       *dedup.Set
	out        io.Writer
}

// New returns a collector printing progress to out.
func New(opts Options, downloader *Downloader, out io.Writer) *Collector {
	if opts.Max <= 0 {
		opts.Max = DefaultMax
	}
	if opts.MinWidth <= 0 {
		opts.MinWidth = DefaultMinWidth
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = DefaultMinHeight
	}
	if opts.Throttle < 0 {
		opts.Throttle = 0
	}
	return &Collector{
		opts:       opts,
		downloader: downloader,
		seen:       dedup.NewSet(),
		out:        out,
	}
}

// Collect runs one source up to the per-source maximum and returns the
// records for every image that is now on disk (or would be, in dry-run).
func (c *Collector) Collect(ctx context.Context, src Source, terms Terms) ([]CollectedImage, error) {
	destDir := filepath.Join(c.opts.RawDir, src.Name())
	if !c.opts.DryRun {
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
		}
	}

	var records []CollectedImage
	ids := make(map[string]bool)
	var bytes int64

	emit := func(cand Candidate) bool {
		if len(records) >= c.opts.Max || ctx.Err() != nil {
			return false
		}
		if ids[cand.ID] {
			return true
		}
		ids[cand.ID] = true

		if cand.Width < c.opts.MinWidth || cand.Height < c.opts.MinHeight {
			slog.Debug("Candidate too small", "source", cand.Source, "id", cand.ID, "width", cand.Width, "height", cand.Height)
			return true
		}

		dest := filepath.Join(destDir, cand.Filename)
		rec := record(cand, dest)

		if _, err := os.Stat(dest); err == nil {
			if fp, _, _, err := c.seen.SeenFile(dest); err != nil {
				slog.Warn("Could not fingerprint existing file", "file", dest, "error", err)
			} else {
				rec.Fingerprint = fp.String()
			}
			fmt.Fprintf(c.out, "    [skip] %s\n", cand.Filename)
			records = append(records, rec)
			return len(records) < c.opts.Max
		}

		if c.opts.DryRun {
			fmt.Fprintf(c.out, "    [dry] %s (%dx%d)%s\n", cand.Filename, cand.Width, cand.Height, licenseSuffix(cand.License))
			records = append(records, rec)
			return len(records) < c.opts.Max
		}

		fmt.Fprintf(c.out, "    [%d] %s (%dx%d) %s\n", len(records)+1, cand.Filename, cand.Width, cand.Height, cand.Term)
		kept, err := c.fetch(ctx, cand, dest, &rec)
		if err != nil {
			slog.Warn("Download failed", "file", cand.Filename, "url", cand.URL, "error", err)
			fmt.Fprintf(c.out, "      Failed: %v\n", err)
		} else if kept {
			bytes += rec.Bytes
			records = append(records, rec)
		}

		if err := sleep(ctx, c.opts.Throttle); err != nil {
			return false
		}
		return len(records) < c.opts.Max
	}

	fmt.Fprintf(c.out, "\n=== %s ===\n", src.Name())
	if err := src.Find(ctx, terms, emit); err != nil {
		return records, err
	}
	if err := ctx.Err(); err != nil {
		return records, err
	}

	fmt.Fprintf(c.out, "\n  %s total: %d images (%s downloaded)\n", src.Name(), len(records), humanize.Bytes(uint64(bytes)))
	return records, nil
}

// fetch downloads one candidate. Content duplicates and stock-agency
// images are dropped and reported as not kept.
func (c *Collector) fetch(ctx context.Context, cand Candidate, dest string, rec *CollectedImage) (bool, error) {
	data, err := c.downloader.Fetch(ctx, cand.URL)
	if err != nil {
		return false, err
	}

	fp, first, dup := c.seen.Seen(dest, data)
	if dup {
		slog.Info("Skipping duplicate download", "file", cand.Filename, "same_as", filepath.Base(first))
		return false, nil
	}

	info := imagemeta.Extract(data)
	if info.IsStock() {
		slog.Info("Skipping stock agency image", "file", cand.Filename, "attribution", info.Attribution())
		return false, nil
	}

	if err := writeFile(dest, data); err != nil {
		return false, err
	}

	rec.Bytes = int64(len(data))
	rec.Fingerprint = fp.String()
	if !info.Empty() {
		rec.Embedded = &info
	}
	return true, nil
}

func record(cand Candidate, dest string) CollectedImage {
	return CollectedImage{
		File:         dest,
		Source:       cand.Source,
		ID:           cand.ID,
		Title:        cand.Title,
		Term:         cand.Term,
		Photographer: cand.Photographer,
		License:      cand.License,
		Width:        cand.Width,
		Height:       cand.Height,
		PageURL:      cand.PageURL,
		DownloadURL:  cand.URL,
	}
}

func licenseSuffix(license string) string {
	if license == "" {
		return ""
	}
	return " [" + license + "]"
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadMetadata loads metadata.json; a missing file is an empty list.
func ReadMetadata(path string) ([]CollectedImage, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var records []CollectedImage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}

// WriteMetadata merges records into metadata.json. A record for a file
// already listed replaces the old one; order of first appearance is kept.
func WriteMetadata(path string, records []CollectedImage) error {
	existing, err := ReadMetadata(path)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(existing))
	for i, rec := range existing {
		index[rec.File] = i
	}
	for _, rec := range records {
		if i, ok := index[rec.File]; ok {
			existing[i] = rec
			continue
		}
		index[rec.File] = len(existing)
		existing = append(existing, rec)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(existing); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
