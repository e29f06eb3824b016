package cmd

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/earthback/loraprep/internal/caption"
	"github.com/earthback/loraprep/internal/providers"
	"github.com/earthback/loraprep/internal/viewer"
)

func newCaptionCmd() *cobra.Command {
	var dir string
	var mode string
	var provider string
	var model string
	var trigger bool
	var noTrigger bool
	var review bool
	var overwrite bool
	var dryRun bool
	var seed uint64

	cmd := &cobra.Command{
		Use:   "caption",
		Short: "Write a caption file for every curated image",
		Long: `Writes <image>.txt next to every curated image that has none.

In template mode captions are drawn from the profile's vocabulary, with
filename keywords overriding the random choice (a file named *_spray_* is
always captioned as spray-applied). In model mode a vision model describes
the image and the answer is prefixed with the profile's blend prefix; if the
model fails the template caption is used instead.

All captions are also collected in curated/captions-review.json. Edit that
file and run "loraprep caption apply-edits" to write the changes back.`,
		Example: `  # Template captions for the default profile
  loraprep caption

  # Vision-model captions with Ollama, reviewing each one
  loraprep caption --mode model --review

  # Regenerate everything with OpenAI
  loraprep caption --mode model --provider openai --overwrite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, p, err := setup()
			if err != nil {
				return err
			}
			curated := or(dir, p.Dataset.Curated())
			if _, err := os.Stat(curated); err != nil {
				return fmt.Errorf("curated directory not found: %s (run loraprep curate first)", curated)
			}

			useTrigger := p.Caption.TriggerByDefault()
			if trigger {
				useTrigger = true
			}
			if noTrigger {
				useTrigger = false
			}

			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			vocab := p.Caption.Vocabulary
			template := caption.NewTemplate(vocab, rand.New(rand.NewPCG(seed, seed>>1)), useTrigger)

			var strategy caption.Strategy = template
			var modelStrategy *caption.Model
			switch mode {
			case "template":
			case "model":
				describer, modelName, err := settings.Provider(provider, model)
				if err != nil {
					return err
				}
				modelStrategy = caption.NewModel(describer, providers.Config{Model: modelName, Temperature: 0.2}, vocab, template, useTrigger)
				strategy = modelStrategy
				fmt.Printf("Captioning with %s (%s)\n", or(provider, settings.CaptionProvider), modelName)
			default:
				return fmt.Errorf("unknown mode %q (use template or model)", mode)
			}

			var editor caption.Editor
			var v viewer.Viewer = viewer.Nop{}
			if review {
				editor = caption.NewConsoleEditor(os.Stdin, os.Stdout)
				v = viewer.New()
			}

			runner := caption.NewRunner(caption.Options{
				Dir:        curated,
				Overwrite:  overwrite,
				DryRun:     dryRun,
				UseTrigger: useTrigger,
			}, strategy, vocab, editor, v)

			summary, err := runner.Run(cmd.Context())
			if summary != nil {
				fmt.Println("\n========================================")
				fmt.Println("Caption Summary")
				fmt.Println("========================================")
				fmt.Printf("Images:     %d\n", summary.Total)
				fmt.Printf("Written:    %d\n", summary.Written)
				fmt.Printf("Skipped:    %d (already captioned)\n", summary.Skipped)
				fmt.Printf("Edited:     %d\n", summary.Edited)
				fmt.Printf("Failed:     %d\n", summary.Failed)
				if modelStrategy != nil {
					fmt.Printf("Fallbacks:  %d (template used after a model error)\n", modelStrategy.Fallbacks)
				}
				fmt.Println("========================================")
				if !dryRun {
					fmt.Printf("\nReview file: %s/%s\n", curated, caption.ReviewFile)
					fmt.Println("\nNext step: loraprep caption check")
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Curated image directory (default <dataset>/curated)")
	cmd.Flags().StringVar(&mode, "mode", "template", "Caption mode: template or model")
	cmd.Flags().StringVar(&provider, "provider", "", "Vision provider for model mode: ollama, openai or gemini (default $CAPTION_PROVIDER)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (defaults to the provider's configured model)")
	cmd.Flags().BoolVar(&trigger, "trigger", false, "Prefix captions with the trigger word even if the profile turns it off")
	cmd.Flags().BoolVar(&noTrigger, "no-trigger", false, "Do not prefix captions with the trigger word")
	cmd.Flags().BoolVar(&review, "review", false, "Show each image and edit its caption before saving")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing captions")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print captions without writing files")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed for template choices (0 picks one)")
	cmd.MarkFlagsMutuallyExclusive("trigger", "no-trigger")

	cmd.AddCommand(newCaptionCheckCmd())
	cmd.AddCommand(newApplyEditsCmd())

	return cmd
}

func newCaptionCheckCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "List curated images that have no caption",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := setup()
			if err != nil {
				return err
			}
			curated := or(dir, p.Dataset.Curated())

			images, err := caption.ListImages(curated)
			if err != nil {
				return err
			}
			missing, err := caption.Missing(curated)
			if err != nil {
				return err
			}

			fmt.Printf("Images:   %d\n", len(images))
			fmt.Printf("Captions: %d\n", len(images)-len(missing))
			if len(missing) == 0 {
				fmt.Println("Every image has a caption.")
				return nil
			}
			fmt.Printf("\nMissing captions (%d):\n", len(missing))
			for _, name := range missing {
				fmt.Printf("  %s\n", name)
			}
			return fmt.Errorf("%d images without captions", len(missing))
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Curated image directory (default <dataset>/curated)")

	return cmd
}

func newApplyEditsCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "apply-edits",
		Short: "Write captions edited in captions-review.json back to the caption files",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := setup()
			if err != nil {
				return err
			}
			curated := or(dir, p.Dataset.Curated())

			updated, err := caption.ApplyEdits(curated)
			if err != nil {
				return err
			}
			if _, err := caption.SyncReview(curated); err != nil {
				return err
			}
			fmt.Printf("Updated %d caption files\n", updated)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Curated image directory (default <dataset>/curated)")

	return cmd
}
