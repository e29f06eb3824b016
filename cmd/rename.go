package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/earthback/loraprep/internal/rename"
)

func newRenameCmd() *cobra.Command {
	var characters []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "rename <output-dir>",
		Short: "Rename generated images to character-first names",
		Long: `Renames images written by the image server from prefix-first names such as

  EB-fp-01-social media-T4-chars-James Osei-02_00001_.png

to character-first names such as

  chars-James Osei-T4-02_00001_.png

so every image of one character sorts together. The _NNNNN_ counter is kept.
Files that match no character, or whose new name is taken, are left alone.
Character names come from the profile unless --character is given.`,
		Example: `  # Preview first
  loraprep rename ./comfyui-output --dry-run

  # Apply
  loraprep rename ./comfyui-output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(characters) == 0 {
				_, p, err := setup()
				if err != nil {
					return err
				}
				characters = p.Queue.SubjectNames()
			}
			if len(characters) == 0 {
				return fmt.Errorf("no character names: the profile has no subjects, pass --character")
			}

			r := rename.New(characters, os.Stdout)
			r.DryRun = dryRun
			summary, err := r.Run(args[0])
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Println("\n[DRY RUN] Done.")
			} else {
				fmt.Println("\nDone.")
			}
			fmt.Printf("  Renamed: %d\n", summary.Renamed)
			fmt.Printf("  Already correct: %d\n", summary.Unchanged)
			fmt.Printf("  Skipped: %d\n", summary.Skipped)
			if summary.Conflicts > 0 {
				fmt.Printf("  CONFLICTS (not renamed): %d\n", summary.Conflicts)
			}
			if summary.Failed > 0 {
				fmt.Printf("  Failed: %d\n", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&characters, "character", nil, "Character name to match (repeatable; default the profile's subjects)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview renames without changing any files")

	return cmd
}
