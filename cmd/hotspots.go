package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/earthback/loraprep/internal/hotspots"
)

const previewLimit = 3000

func newHotspotsCmd() *cobra.Command {
	var input string
	var output string
	var preview bool
	var skipGlobal bool

	cmd := &cobra.Command{
		Use:   "hotspots-sql",
		Short: "Generate INSERT statements for map_hotspots from the seed CSV",
		Long: `Reads the hotspot seed CSV (lat, lng, location_name, category, title,
description, url, circle_slug and optional status, priority) and writes one
multi-row INSERT into public.map_hotspots. Empty values become NULL.`,
		Example: `  # Write hotspots-seed.sql next to the CSV
  loraprep hotspots-sql --input db/hotspots-seed.csv

  # Print to the terminal only, without entries that have no map pin
  loraprep hotspots-sql --input db/hotspots-seed.csv --preview --skip-global`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", input, err)
			}
			defer file.Close()

			rows, err := hotspots.ReadCSV(file)
			if err != nil {
				return err
			}

			if skipGlobal {
				var skipped []hotspots.Hotspot
				rows, skipped = hotspots.SkipGlobal(rows)
				for _, h := range skipped {
					fmt.Printf("  [skip global] %s\n", h.Title)
				}
			}

			sql := hotspots.SQL(rows, filepath.Base(input))

			if preview {
				fmt.Println(hotspots.Preview(sql, previewLimit))
				fmt.Printf("\n... (%d rows total)\n", len(rows))
				return nil
			}

			out := or(output, strings.TrimSuffix(input, filepath.Ext(input))+".sql")
			if err := os.WriteFile(out, []byte(sql), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Printf("Written: %s\n", out)
			fmt.Printf("Rows: %d\n", len(rows))
			fmt.Println("\nNext step: run the SQL file in your database's SQL editor")
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "hotspots-seed.csv", "Hotspot seed CSV")
	cmd.Flags().StringVarP(&output, "output", "o", "", "SQL output file (default the input with .sql)")
	cmd.Flags().BoolVar(&preview, "preview", false, "Print the SQL instead of writing it")
	cmd.Flags().BoolVar(&skipGlobal, "skip-global", false, "Skip entries with lat=0, lng=0 (no map pin)")

	return cmd
}
