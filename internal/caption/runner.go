package caption

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/earthback/loraprep/internal/viewer"
)

// Editor lets a human replace a proposed caption. An empty return keeps
// the proposal.
type Editor interface {
	Edit(ctx context.Context, file, proposed string) (string, error)
}

// Options configures a captioning pass.
type Options struct {
	Dir        string
	Overwrite  bool
	DryRun     bool
	UseTrigger bool
}

// Summary is what a pass did.
type Summary struct {
	Total   int
	Written int
	Skipped int
	Failed  int
	Edited  int
}

// Runner captions every curated image that lacks a caption.
type Runner struct {
	opts     Options
	strategy Strategy
	vocab    Vocabulary
	editor   Editor
	viewer   viewer.Viewer
}

// NewRunner builds a runner. editor may be nil for unattended runs.
func NewRunner(opts Options, strategy Strategy, vocab Vocabulary, editor Editor, v viewer.Viewer) *Runner {
	if v == nil {
		v = viewer.Nop{}
	}
	return &Runner{
		opts:     opts,
		strategy: strategy,
		vocab:    vocab,
		editor:   editor,
		viewer:   v,
	}
}

// Run writes sidecars and then rebuilds the review file.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	images, err := ListImages(r.opts.Dir)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Total: len(images)}
	for i, img := range images {
		if ctx.Err() != nil {
			break
		}
		name := filepath.Base(img)

		if _, exists, err := ReadSidecar(img); err == nil && exists && !r.opts.Overwrite {
			summary.Skipped++
			continue
		}

		caption, err := r.strategy.Caption(ctx, img)
		if err != nil {
			slog.Warn("Failed to caption image", "file", name, "err", err)
			summary.Failed++
			continue
		}

		if r.editor != nil {
			if err := r.viewer.Open(img); err != nil {
				slog.Debug("Viewer unavailable", "err", err)
			}
			edited, err := r.editor.Edit(ctx, fmt.Sprintf("[%d/%d] %s", i+1, len(images), name), caption)
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return summary, err
			}
			if edited = strings.TrimSpace(edited); edited != "" {
				caption = edited
				if r.opts.UseTrigger {
					caption = r.vocab.WithTrigger(edited)
				}
				summary.Edited++
			}
		}

		if r.opts.DryRun {
			fmt.Printf("  [dry] %s: %s\n", name, caption)
			summary.Written++
			continue
		}
		if err := WriteSidecar(img, caption); err != nil {
			slog.Warn("Failed to write caption", "file", name, "err", err)
			summary.Failed++
			continue
		}
		slog.Info("Captioned", "file", name, "caption", caption)
		summary.Written++
	}

	if !r.opts.DryRun {
		if _, err := SyncReview(r.opts.Dir); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// ConsoleEditor prompts for a replacement caption on a terminal.
type ConsoleEditor struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewConsoleEditor(in io.Reader, out io.Writer) *ConsoleEditor {
	return &ConsoleEditor{reader: bufio.NewReader(in), out: out}
}

func (c *ConsoleEditor) Edit(ctx context.Context, file, proposed string) (string, error) {
	fmt.Fprintf(c.out, "\n%s\n  Caption: %s\n  New caption (Enter to keep): ", file, proposed)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := c.reader.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return strings.TrimSpace(res.line), res.err
	}
}
