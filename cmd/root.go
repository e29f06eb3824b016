package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/earthback/loraprep/internal/config"
	"github.com/earthback/loraprep/internal/profile"
)

// globals shared by every subcommand
var (
	profileFlag string
	verbose     bool
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loraprep",
		Short: "Image dataset tooling for LoRA training",
		Long: `loraprep prepares image datasets for training LoRA fine-tunes of a diffusion model.

It collects photos from stock APIs and Wikimedia Commons, curates them into
square training images, writes captions (from a template or a vision model),
and queues generation jobs on a local image server.

Every dataset is described by a profile: caption vocabulary, search terms,
curation thresholds and the job plan. Two profiles are built in; pass a YAML
file to --profile for your own.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Dataset profile name or YAML file (default $LORAPREP_PROFILE or hempcrete)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(newCollectCmd())
	cmd.AddCommand(newCurateCmd())
	cmd.AddCommand(newCaptionCmd())
	cmd.AddCommand(newQueueCmd())
	cmd.AddCommand(newManifestCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRenameCmd())
	cmd.AddCommand(newHotspotsCmd())
	cmd.AddCommand(newProfileCmd())

	return cmd
}

// setup reads the environment and the selected profile.
func setup() (*config.Settings, *profile.Profile, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	name := profileFlag
	if name == "" {
		name = settings.Profile
	}
	p, err := profile.Load(name)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("Profile loaded", "name", p.Name, "root", p.Dataset.Root)
	return settings, p, nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
