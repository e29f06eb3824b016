// Package rename moves generated images from the job server's
// prefix-first names to character-first names, so every picture of one
// character sorts together. The trailing _NNNNN_ counter is kept as is.
package rename

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/earthback/loraprep/internal/imaging"
)

var (
	counterPattern = regexp.MustCompile(`_\d+_$`)
	tierPattern    = regexp.MustCompile(`(?:^|-)(T[123])-chars-`)
	viewPattern    = regexp.MustCompile(`-((?:face|pulid)-[a-z]+)$`)
)

// Action is what happened to one file.
type Action string

const (
	Renamed   Action = "renamed"
	Skipped   Action = "skipped"
	Conflict  Action = "conflict"
	Unchanged Action = "unchanged"
	Failed    Action = "failed"
)

// Result is one file's outcome.
type Result struct {
	From   string
	To     string
	Action Action
}

// Summary counts the outcomes of a run.
type Summary struct {
	Renamed   int
	Skipped   int
	Conflicts int
	Unchanged int
	Failed    int
	Results   []Result
}

// Renamer maps names for a fixed set of characters.
type Renamer struct {
	characters []string
	out        io.Writer
	DryRun     bool
}

// New returns a renamer for the given character names. Longer names are
// matched first so "Mei Lin" never claims "Mei Lin-Chen".
func New(characters []string, out io.Writer) *Renamer {
	sorted := append([]string(nil), characters...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	if out == nil {
		out = io.Discard
	}
	return &Renamer{characters: sorted, out: out}
}

// Target returns the character-first name for filename, or false when the
// file belongs to no known character or matches no known pattern.
func (r *Renamer) Target(filename string) (string, bool) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	counter := counterPattern.FindString(stem)
	base := strings.TrimSuffix(stem, counter)

	var name string
	for _, c := range r.characters {
		if strings.Contains(filename, c) {
			name = c
			break
		}
	}
	if name == "" {
		return "", false
	}
	if strings.HasPrefix(filename, "chars-"+name+"-") {
		return filename, true
	}

	if m := tierPattern.FindStringSubmatch(filename); m != nil {
		return fmt.Sprintf("chars-%s-%s%s%s", name, m[1], counter, ext), true
	}

	batch := regexp.MustCompile(`(?:^|-)T4-chars-` + regexp.QuoteMeta(name) + `-(?:T4-)?(\d+)$`)
	if m := batch.FindStringSubmatch(base); m != nil {
		sub := m[1]
		if len(sub) < 2 {
			sub = "0" + sub
		}
		return fmt.Sprintf("chars-%s-T4-%s%s%s", name, sub, counter, ext), true
	}

	if m := viewPattern.FindStringSubmatch(base); m != nil {
		return fmt.Sprintf("chars-%s-%s%s%s", name, m[1], counter, ext), true
	}

	return "", false
}

// Run renames every image in dir. Targets that already exist, on disk or
// claimed earlier in the same run, are reported as conflicts and left alone.
func (r *Renamer) Run(dir string) (*Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && imaging.IsImage(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	fmt.Fprintf(r.out, "Scanning %d images in %s\n\n", len(files), dir)

	summary := &Summary{}
	claimed := make(map[string]bool)
	for _, file := range files {
		result := r.one(dir, file, claimed)
		summary.Results = append(summary.Results, result)
		switch result.Action {
		case Renamed:
			summary.Renamed++
		case Skipped:
			summary.Skipped++
		case Conflict:
			summary.Conflicts++
		case Unchanged:
			summary.Unchanged++
		case Failed:
			summary.Failed++
		}
	}
	return summary, nil
}

func (r *Renamer) one(dir, file string, claimed map[string]bool) Result {
	target, ok := r.Target(file)
	if !ok {
		fmt.Fprintf(r.out, "  SKIP  %s\n", file)
		return Result{From: file, Action: Skipped}
	}
	if target == file {
		fmt.Fprintf(r.out, "  OK    %s  (already correct)\n", file)
		return Result{From: file, To: target, Action: Unchanged}
	}

	if _, err := os.Stat(filepath.Join(dir, target)); err == nil || claimed[target] {
		fmt.Fprintf(r.out, "  CONFLICT  %s  →  %s  (target exists!)\n", file, target)
		return Result{From: file, To: target, Action: Conflict}
	}
	claimed[target] = true

	if r.DryRun {
		fmt.Fprintf(r.out, "  RENAME  %s\n       →  %s\n", file, target)
		return Result{From: file, To: target, Action: Renamed}
	}

	if err := os.Rename(filepath.Join(dir, file), filepath.Join(dir, target)); err != nil {
		slog.Warn("Rename failed", "file", file, "target", target, "error", err)
		return Result{From: file, To: target, Action: Failed}
	}
	fmt.Fprintf(r.out, "  ✓  %s\n", target)
	return Result{From: file, To: target, Action: Renamed}
}
