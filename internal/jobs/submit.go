package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/earthback/loraprep/internal/comfy"
)

// DefaultStagger is the pause between live submissions.
const DefaultStagger = 150 * time.Millisecond

// Server is the part of the job server a submitter needs.
type Server interface {
	Submit(ctx context.Context, w comfy.Workflow) (string, error)
	Upload(ctx context.Context, path string) (string, error)
}

// Result counts the outcome of a submission run.
type Result struct {
	Total  int
	OK     int
	Failed int
}

// Submitter posts planned jobs to a server one at a time.
type Submitter struct {
	server  Server
	params  comfy.Params
	out     io.Writer
	DryRun  bool
	Stagger time.Duration
}

// NewSubmitter returns a submitter that prints progress to out.
func NewSubmitter(server Server, params comfy.Params, out io.Writer) *Submitter {
	return &Submitter{
		server:  server,
		params:  params,
		out:     out,
		Stagger: DefaultStagger,
	}
}

// Run submits every planned job. A failed job is counted and the run
// continues; only cancellation stops it early.
func (s *Submitter) Run(ctx context.Context, planned []Planned) (Result, error) {
	res := Result{Total: len(planned)}

	for i, p := range planned {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if s.DryRun {
			fmt.Fprintf(s.out, "  [DRY] %-40s seed=%d bs=%d\n", p.Job.Prefix, p.Job.Seed, p.Job.BatchSize)
			fmt.Fprintf(s.out, "        %s\n", truncate(p.Job.Positive, 100))
			res.OK++
			continue
		}

		id, err := s.server.Submit(ctx, comfy.Build(p.Job, s.params))
		if err != nil {
			slog.Warn("Job submission failed", "prefix", p.Job.Prefix, "error", err)
			fmt.Fprintf(s.out, "    ✗ FAILED  %s\n", p.Job.Prefix)
			res.Failed++
		} else {
			slog.Debug("Job queued", "prefix", p.Job.Prefix, "prompt_id", id, "seed", p.Job.Seed)
			fmt.Fprintf(s.out, "    ✓  %s\n", p.Job.Prefix)
			res.OK++
		}

		if i < len(planned)-1 {
			if err := sleep(ctx, s.Stagger); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// UploadReferences uploads "<dir>/<subject>.png" (or .jpg) for each subject
// that has one and returns subject name to server-side name. Subjects
// without a file are skipped.
func UploadReferences(ctx context.Context, server Server, dir string, subjects []string) (map[string]string, error) {
	refs := make(map[string]string)
	for _, name := range subjects {
		path := findReference(dir, name)
		if path == "" {
			slog.Debug("No reference image", "subject", name, "dir", dir)
			continue
		}
		stored, err := server.Upload(ctx, path)
		if err != nil {
			return refs, fmt.Errorf("failed to upload reference for %s: %w", name, err)
		}
		slog.Info("Uploaded reference", "subject", name, "file", stored)
		refs[name] = stored
	}
	return refs, nil
}

func findReference(dir, name string) string {
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
