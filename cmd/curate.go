package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/earthback/loraprep/internal/curation"
	"github.com/earthback/loraprep/internal/dedup"
	"github.com/earthback/loraprep/internal/profile"
	"github.com/earthback/loraprep/internal/viewer"
)

func newCurateCmd() *cobra.Command {
	var rawDir string
	var curatedDir string
	var source string
	var review bool
	var stats bool
	var overwrite bool
	var dryRun bool
	var perceptual bool

	cmd := &cobra.Command{
		Use:   "curate",
		Short: "Filter, deduplicate and crop raw images into the training set",
		Long: `Walks raw/ in sorted order and turns every usable image into a square JPEG
named curated_NNNN_<stem>.jpg.

Images that are too small or too elongated are rejected automatically, and
byte-identical copies are dropped. With --review each candidate is opened in
the system image viewer: y(es) keeps it, q(uit) stops, anything else rejects.

Re-running is safe: images already curated are skipped unless --overwrite.
Every decision is written to curated/curation-log.json.`,
		Example: `  # Show what is on disk
  loraprep curate --stats

  # Curate everything, reviewing each image
  loraprep curate --review

  # Only the Wikimedia folder, without writing anything
  loraprep curate --source wikimedia --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := setup()
			if err != nil {
				return err
			}
			raw := or(rawDir, p.Dataset.Raw())
			curated := or(curatedDir, p.Dataset.Curated())

			if stats {
				s, err := curation.CollectStats(raw, curated)
				if err != nil {
					return err
				}
				printStats(s, p)
				return nil
			}

			opts := curation.Options{
				RawDir:     raw,
				CuratedDir: curated,
				Source:     source,
				Target:     p.Curate.Size,
				Filter:     p.Curate.Filter(),
				Overwrite:  overwrite,
				DryRun:     dryRun,
			}
			if perceptual {
				opts.PerceptualThreshold = dedup.DefaultPerceptualThreshold
			}

			var reviewer curation.Reviewer
			var v viewer.Viewer = viewer.Nop{}
			if review {
				reviewer = curation.NewConsole(os.Stdin, os.Stdout)
				v = viewer.New()
			}

			summary, err := curation.New(opts, reviewer, v).Run(cmd.Context())
			if summary != nil {
				printCurationSummary(summary, curated, dryRun, p)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&rawDir, "raw-dir", "", "Raw image directory (default <dataset>/raw)")
	cmd.Flags().StringVar(&curatedDir, "curated-dir", "", "Output directory (default <dataset>/curated)")
	cmd.Flags().StringVar(&source, "source", "all", "Only curate one raw subfolder (e.g. pexels, wikimedia)")
	cmd.Flags().BoolVar(&review, "review", false, "Open each candidate in the image viewer and ask before keeping it")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print counts of raw and curated images and exit")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Re-process images that were already curated")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report decisions without writing images or the log")
	cmd.Flags().BoolVar(&perceptual, "perceptual", false, "Also drop near-duplicates (resized or re-encoded copies)")

	return cmd
}

func printStats(s *curation.Stats, p *profile.Profile) {
	sources := make([]string, 0, len(s.BySource))
	for name := range s.BySource {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	fmt.Println("\n========================================")
	fmt.Printf("Dataset: %s\n", p.Name)
	fmt.Println("========================================")
	fmt.Printf("Raw images:      %d\n", s.Raw)
	for _, name := range sources {
		fmt.Printf("  %-14s %d\n", name+":", s.BySource[name])
	}
	fmt.Printf("Curated images:  %d (%s)\n", s.Curated, humanize.Bytes(uint64(s.Bytes)))
	fmt.Printf("Captions:        %d\n", s.Captions)
	fmt.Printf("Target:          %d\n", p.Curate.Target)
	fmt.Println("========================================")
	fmt.Println(curation.Assessment(s.Curated))
}

func printCurationSummary(s *curation.Summary, curated string, dryRun bool, p *profile.Profile) {
	fmt.Println("\n========================================")
	if dryRun {
		fmt.Println("Curation Summary [DRY RUN]")
	} else {
		fmt.Println("Curation Summary")
	}
	fmt.Println("========================================")
	fmt.Printf("Found:      %d\n", s.Found)
	fmt.Printf("Accepted:   %d\n", s.Accepted)
	fmt.Printf("Rejected:   %d\n", s.Rejected)
	fmt.Printf("Skipped:    %d (already curated)\n", s.Skipped)
	fmt.Printf("Errors:     %d\n", s.Errors)
	if s.Stopped {
		fmt.Println("Stopped early; rerun to continue where you left off.")
	}
	fmt.Printf("Curated:    %d of target %d\n", s.Curated(), p.Curate.Target)
	fmt.Println("========================================")
	fmt.Println(curation.Assessment(s.Curated()))

	if !dryRun {
		fmt.Printf("\nOutput: %s\n", curated)
		fmt.Printf("\nNext step: loraprep caption --profile %s\n", p.Name)
	}
}
