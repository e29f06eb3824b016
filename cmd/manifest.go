package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/earthback/loraprep/internal/manifest"
)

func newManifestCmd() *cobra.Command {
	var dir string
	var output string

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Export the curated dataset as a parquet (or jsonl) table",
		Long: `Writes one row per curated image: file name, caption, size in pixels and
bytes, and a content fingerprint. The format follows the output extension
(.parquet or .jsonl).`,
		Example: `  # Write curated/manifest.parquet
  loraprep manifest

  # JSON lines instead
  loraprep manifest --output dataset.jsonl

  # Look at an existing manifest
  loraprep manifest inspect dataset-hempcrete/curated/manifest.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := setup()
			if err != nil {
				return err
			}
			curated := or(dir, p.Dataset.Curated())
			out := or(output, filepath.Join(curated, manifest.DefaultFile))

			rows, missing, err := manifest.Build(curated)
			if err != nil {
				return err
			}
			if err := manifest.Write(out, rows); err != nil {
				return err
			}

			bytes, _ := manifest.Totals(rows)
			fmt.Printf("Wrote %d rows (%s of images) to %s\n", len(rows), humanize.Bytes(uint64(bytes)), out)
			if missing > 0 {
				fmt.Printf("Warning: %d images have no caption (loraprep caption check)\n", missing)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Curated image directory (default <dataset>/curated)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <curated>/"+manifest.DefaultFile+")")

	cmd.AddCommand(newManifestInspectCmd())

	return cmd
}

func newManifestInspectCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print rows of a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := manifest.Read(args[0])
			if err != nil {
				return err
			}

			bytes, captioned := manifest.Totals(rows)
			fmt.Printf("Rows:       %d\n", len(rows))
			fmt.Printf("Captioned:  %d\n", captioned)
			fmt.Printf("Size:       %s\n\n", humanize.Bytes(uint64(bytes)))

			for i, row := range rows {
				if limit > 0 && i >= limit {
					fmt.Printf("... %d more\n", len(rows)-limit)
					break
				}
				fmt.Printf("%s  %dx%d  %s  %s\n", row.File, row.Width, row.Height, row.Fingerprint, row.Caption)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Rows to print (0 for all)")

	return cmd
}
