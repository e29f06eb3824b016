package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/earthback/loraprep/internal/collect"
	"github.com/earthback/loraprep/internal/config"
)

func newCollectCmd() *cobra.Command {
	var source string
	var rawDir string
	var max int
	var dryRun bool
	var listTerms bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Download candidate images from Pexels, Pixabay and Wikimedia Commons",
		Long: `Searches the stock-photo APIs and Wikimedia Commons with the profile's
search terms and downloads results into raw/<source>/.

Files already on disk are skipped, so collection can be re-run to top up a
dataset. Details of every image (license, photographer, page URL and any
embedded copyright) are merged into raw/metadata.json.

Pexels and Pixabay need PEXELS_API_KEY and PIXABAY_API_KEY.`,
		Example: `  # See the search terms first
  loraprep collect --list-terms

  # Collect from every source that has credentials
  loraprep collect

  # Preview 20 Wikimedia results without downloading
  loraprep collect --source wikimedia --max 20 --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, p, err := setup()
			if err != nil {
				return err
			}

			if listTerms {
				printTerms(p.Collect)
				return nil
			}

			sources, err := selectSources(source, settings)
			if err != nil {
				return err
			}

			raw := or(rawDir, p.Dataset.Raw())
			collector := collect.New(collect.Options{
				RawDir:   raw,
				Max:      max,
				DryRun:   dryRun,
				Throttle: collect.DefaultThrottle,
			}, collect.NewDownloader(), os.Stdout)

			var all []collect.CollectedImage
			counts := make(map[string]int)
			for _, src := range sources {
				records, err := collector.Collect(cmd.Context(), src, p.Collect)
				all = append(all, records...)
				counts[src.Name()] = len(records)
				if err != nil {
					if cmd.Context().Err() != nil {
						break
					}
					slog.Warn("Source failed", "source", src.Name(), "error", err)
				}
			}

			if !dryRun && len(all) > 0 {
				if err := collect.WriteMetadata(filepath.Join(raw, collect.MetadataFile), all); err != nil {
					return err
				}
			}

			var bytes int64
			for _, r := range all {
				bytes += r.Bytes
			}

			fmt.Println("\n========================================")
			fmt.Println("Collection Summary")
			fmt.Println("========================================")
			for _, src := range sources {
				fmt.Printf("%-12s %d\n", src.Name()+":", counts[src.Name()])
			}
			fmt.Printf("Total:       %d images (%s downloaded)\n", len(all), humanize.Bytes(uint64(bytes)))
			if dryRun {
				fmt.Println("[DRY RUN] nothing was written")
			} else {
				fmt.Printf("Output:      %s\n", raw)
			}
			fmt.Println("========================================")
			fmt.Printf("\nNext step: loraprep curate --profile %s\n", p.Name)

			return cmd.Context().Err()
		},
	}

	cmd.Flags().StringVar(&source, "source", "all", "Source to collect from (pexels, pixabay, wikimedia or all)")
	cmd.Flags().StringVar(&rawDir, "raw-dir", "", "Raw image directory (default <dataset>/raw)")
	cmd.Flags().IntVar(&max, "max", collect.DefaultMax, "Maximum images per source")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be downloaded without writing anything")
	cmd.Flags().BoolVar(&listTerms, "list-terms", false, "Print the profile's search terms and exit")

	return cmd
}

// selectSources builds the requested collectors. With "all", sources
// without credentials are skipped; naming one explicitly makes its key
// required.
func selectSources(name string, settings *config.Settings) ([]collect.Source, error) {
	build := map[string]func() (collect.Source, error){
		"pexels": func() (collect.Source, error) {
			return collect.NewPexels(settings.PexelsKey)
		},
		"pixabay": func() (collect.Source, error) {
			return collect.NewPixabay(settings.PixabayKey)
		},
		"wikimedia": func() (collect.Source, error) {
			return collect.NewWikimedia(), nil
		},
	}
	order := []string{"pexels", "pixabay", "wikimedia"}

	name = strings.ToLower(name)
	if name != "" && name != "all" {
		fn, ok := build[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q (use %s or all)", name, strings.Join(order, ", "))
		}
		src, err := fn()
		if err != nil {
			return nil, err
		}
		return []collect.Source{src}, nil
	}

	var sources []collect.Source
	for _, n := range order {
		src, err := build[n]()
		if errors.Is(err, collect.ErrMissingKey) {
			slog.Warn("Skipping source without credentials", "source", n, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func printTerms(t collect.Terms) {
	fmt.Println("Core terms (all sources):")
	for _, term := range t.Core {
		fmt.Printf("  %s\n", term)
	}
	fmt.Println("\nSupporting terms (Pexels, Pixabay):")
	for _, term := range t.Supporting {
		fmt.Printf("  %s\n", term)
	}
	fmt.Println("\nCategories (Wikimedia):")
	for _, c := range t.Categories {
		fmt.Printf("  %s\n", c)
	}
}
