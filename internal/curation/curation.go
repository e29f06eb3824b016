package curation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/earthback/loraprep/internal/crop"
	"github.com/earthback/loraprep/internal/dedup"
	"github.com/earthback/loraprep/internal/imaging"
	"github.com/earthback/loraprep/internal/quality"
	"github.com/earthback/loraprep/internal/viewer"
)

const (
	LogFile        = "curation-log.json"
	previewPrefix  = "_preview_"
	previewQuality = 90
	outputQuality  = 95
	maxStemRunes   = 60
)

// Action is the outcome recorded for one source image.
type Action string

const (
	Accepted   Action = "accepted"
	AutoReject Action = "auto-reject"
	UserReject Action = "user-reject"
	Duplicate  Action = "duplicate"
	Failed     Action = "error"
)

// Entry is one line of curation-log.json.
type Entry struct {
	File   string `json:"file"`
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
	Dest   string `json:"dest,omitempty"`
}

// Options configures a curation pass.
type Options struct {
	RawDir     string
	CuratedDir string
	// Source restricts the pass to one subfolder of RawDir. Empty or "all"
	// processes everything.
	Source string
	Target int
	Filter quality.Filter
	// PerceptualThreshold enables near-duplicate detection when > 0.
	PerceptualThreshold int
	Overwrite           bool
	DryRun              bool
}

// Summary is what a pass did.
type Summary struct {
	Found    int
	Accepted int
	Rejected int
	Skipped  int
	Errors   int
	Stopped  bool
	Entries  []Entry
}

// Curated is the number of usable images after the pass.
func (s *Summary) Curated() int {
	return s.Accepted + s.Skipped
}

// Driver runs the filter, dedup, review and crop steps over a raw folder.
type Driver struct {
	opts     Options
	reviewer Reviewer
	viewer   viewer.Viewer
	seen     *dedup.Set
}

// New builds a driver. A nil reviewer accepts everything that passes the
// quality filter.
func New(opts Options, reviewer Reviewer, v viewer.Viewer) *Driver {
	if opts.Target <= 0 {
		opts.Target = crop.DefaultSize
	}
	if opts.Filter == (quality.Filter{}) {
		opts.Filter = quality.New()
	}
	if v == nil {
		v = viewer.Nop{}
	}

	seen := dedup.NewSet()
	if opts.PerceptualThreshold > 0 {
		seen = dedup.NewPerceptualSet(opts.PerceptualThreshold)
	}

	return &Driver{
		opts:     opts,
		reviewer: reviewer,
		viewer:   v,
		seen:     seen,
	}
}

type source struct {
	index int
	path  string
	rel   string
}

// Run processes every source image once and writes the log. Quitting the
// review or cancelling ctx stops early; work already done is kept.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	sources, err := d.list()
	if err != nil {
		return nil, err
	}

	if !d.opts.DryRun {
		if err := os.MkdirAll(d.opts.CuratedDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create curated directory: %w", err)
		}
	}

	summary := &Summary{Found: len(sources)}
	slog.Info("Curating", "raw", d.opts.RawDir, "images", len(sources), "target", d.opts.Target, "dry_run", d.opts.DryRun)

	for i, src := range sources {
		if ctx.Err() != nil {
			summary.Stopped = true
			break
		}

		entry, err := d.process(ctx, src, i+1, len(sources))
		if errors.Is(err, ErrQuit) || errors.Is(err, context.Canceled) {
			summary.Stopped = true
			break
		}
		if err != nil {
			slog.Warn("Failed to curate image", "file", src.rel, "err", err)
			entry = &Entry{File: src.rel, Action: Failed, Reason: err.Error()}
		}
		if entry == nil {
			summary.Skipped++
			continue
		}

		summary.Entries = append(summary.Entries, *entry)
		switch entry.Action {
		case Accepted:
			summary.Accepted++
		case Failed:
			summary.Errors++
			summary.Rejected++
		default:
			summary.Rejected++
		}
	}

	if !d.opts.DryRun {
		if err := WriteLog(filepath.Join(d.opts.CuratedDir, LogFile), summary.Entries); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

// process returns a nil entry when the destination already exists. position
// and total count only the images selected for this run.
func (d *Driver) process(ctx context.Context, src source, position, total int) (*Entry, error) {
	dest := DestName(src.index, src.path)
	destPath := filepath.Join(d.opts.CuratedDir, dest)

	data, err := os.ReadFile(src.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	if _, first, dup := d.seen.Seen(src.rel, data); dup {
		slog.Info("Duplicate", "file", src.rel, "of", first)
		return &Entry{File: src.rel, Action: Duplicate, Reason: "same content as " + first}, nil
	}

	cfg, _, err := imaging.DecodeConfig(data)
	if err != nil {
		return nil, err
	}

	verdict := d.opts.Filter.Check(cfg.Width, cfg.Height)
	if !verdict.OK {
		slog.Info("Auto-reject", "file", src.rel, "reason", verdict.Reason)
		return &Entry{File: src.rel, Action: AutoReject, Reason: verdict.Reason}, nil
	}

	destExists := false
	if !d.opts.Overwrite {
		if _, err := os.Stat(destPath); err == nil {
			destExists = true
		}
	}
	if destExists && !d.seen.Perceptual() {
		slog.Debug("Already curated", "file", src.rel, "dest", dest)
		return nil, nil
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	if d.seen.SeenImage(img) {
		slog.Info("Near duplicate", "file", src.rel)
		return &Entry{File: src.rel, Action: Duplicate, Reason: "perceptually identical to an earlier image"}, nil
	}
	if destExists {
		return nil, nil
	}

	cropped := crop.Square(img, d.opts.Target)

	if d.reviewer != nil {
		item := Item{
			Index:  position,
			Total:  total,
			File:   src.rel,
			Source: sourceName(src.rel),
			Width:  cfg.Width,
			Height: cfg.Height,
		}
		decision, err := d.review(ctx, item, dest, cropped, src.path)
		if err != nil {
			return nil, err
		}
		if decision == Quit {
			return nil, ErrQuit
		}
		if decision == Reject {
			return &Entry{File: src.rel, Action: UserReject}, nil
		}
	}

	if !d.opts.DryRun {
		if err := imaging.WriteJPEG(destPath, cropped, outputQuality); err != nil {
			return nil, err
		}
	}
	slog.Info("Accepted", "file", src.rel, "dest", dest)

	return &Entry{File: src.rel, Action: Accepted, Dest: dest}, nil
}

func (d *Driver) review(ctx context.Context, item Item, dest string, cropped *image.RGBA, original string) (Decision, error) {
	show := original
	if !d.opts.DryRun {
		preview := filepath.Join(d.opts.CuratedDir, previewPrefix+dest)
		if err := imaging.WriteJPEG(preview, cropped, previewQuality); err != nil {
			slog.Warn("Failed to write preview", "file", item.File, "err", err)
		} else {
			show = preview
			defer os.Remove(preview)
		}
	}
	item.Preview = show

	if err := d.viewer.Open(show); err != nil {
		slog.Debug("Viewer unavailable", "err", err)
	}

	return d.reviewer.Review(ctx, item)
}

// list walks RawDir and assigns each image its position in the full sorted
// listing, before any source filter, so names stay stable across filtered runs.
func (d *Driver) list() ([]source, error) {
	info, err := os.Stat(d.opts.RawDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("raw directory not found: %s", d.opts.RawDir)
	}

	var rels []string
	err = filepath.WalkDir(d.opts.RawDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !imaging.IsImage(entry.Name()) {
			return nil
		}
		rel, err := filepath.Rel(d.opts.RawDir, path)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk raw directory: %w", err)
	}
	sort.Strings(rels)

	filter := d.opts.Source
	var sources []source
	for i, rel := range rels {
		if filter != "" && filter != "all" && sourceName(rel) != filter {
			continue
		}
		sources = append(sources, source{
			index: i,
			path:  filepath.Join(d.opts.RawDir, filepath.FromSlash(rel)),
			rel:   rel,
		})
	}
	return sources, nil
}

// DestName is the curated file name for the image at position index of the
// sorted listing.
func DestName(index int, path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if r := []rune(stem); len(r) > maxStemRunes {
		stem = string(r[:maxStemRunes])
	}
	return fmt.Sprintf("curated_%04d_%s.jpg", index, stem)
}

func sourceName(rel string) string {
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return "."
}

// WriteLog writes entries as an indented JSON array.
func WriteLog(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create curation log: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode curation log: %w", err)
	}
	return nil
}

// ReadLog loads a log written by WriteLog.
func ReadLog(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curation log: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse curation log: %w", err)
	}
	return entries, nil
}

// Assessment describes whether n curated images is enough to train on.
func Assessment(n int) string {
	switch {
	case n < 25:
		return "Too few images. Aim for 50-80 before training."
	case n < 50:
		return "Usable, but 50-80 images will give a more reliable LoRA."
	default:
		return "Good dataset size."
	}
}
