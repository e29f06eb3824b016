package cmd

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/earthback/loraprep/internal/comfy"
	"github.com/earthback/loraprep/internal/jobs"
)

func newQueueCmd() *cobra.Command {
	var serverURL string
	var subject string
	var group string
	var kinds []string
	var loops int
	var batchSize int
	var reseed bool
	var referenceDir string
	var weight float64
	var stagger time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Submit the profile's generation jobs to the image server",
		Long: `Expands the profile's job plan (character angles, scenarios and scenes, plus
the prompt groups) into jobs and posts them to the image server's queue.

Seeds are derived from each character's base seed, so the same run always
produces the same images; --reseed picks fresh random seeds instead. With
--reference-dir, a reference photo per character (<name>.png or .jpg) is
uploaded and the reference angle jobs are added.

Jobs are fire-and-forget: a failed submission is reported and the run
continues.`,
		Example: `  # Preview every job
  loraprep queue --dry-run

  # Only one character's angle shots, three loops
  loraprep queue --subject "Nadia Benali" --kind angle --loops 3

  # One prompt group with fresh seeds
  loraprep queue --group material --reseed

  # See what the server is doing
  loraprep queue status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, p, err := setup()
			if err != nil {
				return err
			}

			opts := jobs.Options{
				Loops:     loops,
				BatchSize: batchSize,
				Reseed:    reseed,
				Subject:   subject,
				Group:     group,
				Weight:    weight,
			}
			for _, k := range kinds {
				kind, err := jobs.ParseKind(k)
				if err != nil {
					return err
				}
				opts.Kinds = append(opts.Kinds, kind)
			}

			client := comfy.NewClient(or(serverURL, settings.ComfyURL))
			if !dryRun {
				depth, err := client.Queue(cmd.Context())
				if err != nil {
					return fmt.Errorf("image server not reachable at %s: %w", client.URL(), err)
				}
				fmt.Printf("Server %s: %d running, %d pending\n", client.URL(), depth.Running, depth.Pending)
			}

			if referenceDir != "" && !dryRun {
				names := p.Queue.SubjectNames()
				if subject != "" {
					names = []string{subject}
				}
				refs, err := jobs.UploadReferences(cmd.Context(), client, referenceDir, names)
				if err != nil {
					return err
				}
				fmt.Printf("Uploaded %d reference images\n", len(refs))
				opts.References = refs
			}

			seed := uint64(time.Now().UnixNano())
			planned, err := p.Queue.Expand(opts, rand.New(rand.NewPCG(seed, seed>>1)))
			if err != nil {
				return err
			}
			if len(planned) == 0 {
				return fmt.Errorf("nothing to queue for profile %s", p.Name)
			}

			submitter := jobs.NewSubmitter(client, p.Queue.Params, os.Stdout)
			submitter.DryRun = dryRun
			submitter.Stagger = stagger

			fmt.Printf("\nQueueing %d jobs from profile %s\n\n", len(planned), p.Name)
			result, err := submitter.Run(cmd.Context(), planned)

			fmt.Println("\n========================================")
			if dryRun {
				fmt.Println("Queue Summary [DRY RUN]")
			} else {
				fmt.Println("Queue Summary")
			}
			fmt.Println("========================================")
			fmt.Printf("Jobs:       %d\n", result.Total)
			fmt.Printf("Submitted:  %d\n", result.OK)
			fmt.Printf("Failed:     %d\n", result.Failed)
			fmt.Println("========================================")
			if !dryRun && result.OK > 0 {
				fmt.Println("\nNext step: loraprep queue status")
			}
			return err
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Image server URL (default $COMFY_URL or "+comfy.DefaultURL+")")
	cmd.Flags().StringVar(&subject, "subject", "", "Only this character (groups are left out)")
	cmd.Flags().StringVar(&group, "group", "", "Only this prompt group (characters are left out)")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Job kinds to include: "+strings.Join(kindNames(), ", ")+" (default all)")
	cmd.Flags().IntVar(&loops, "loops", 1, "How many times to repeat the plan, each with shifted seeds")
	cmd.Flags().IntVar(&batchSize, "batch-size", 1, "Images per job")
	cmd.Flags().BoolVar(&reseed, "reseed", false, "Use random seeds instead of the derived ones")
	cmd.Flags().StringVar(&referenceDir, "reference-dir", "", "Directory of character reference photos for identity jobs")
	cmd.Flags().Float64Var(&weight, "weight", 0.85, "Identity weight for reference jobs")
	cmd.Flags().DurationVar(&stagger, "stagger", jobs.DefaultStagger, "Pause between submissions")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print jobs without contacting the server")
	cmd.MarkFlagsMutuallyExclusive("subject", "group")

	cmd.AddCommand(newQueueStatusCmd())

	return cmd
}

func kindNames() []string {
	return []string{string(jobs.KindAngle), string(jobs.KindScenario), string(jobs.KindScene), string(jobs.KindGroup)}
}

func newQueueStatusCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the image server's queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, p, err := setup()
			if err != nil {
				return err
			}

			client := comfy.NewClient(or(serverURL, settings.ComfyURL))
			depth, err := client.Queue(cmd.Context())
			if err != nil {
				return fmt.Errorf("image server not reachable at %s: %w", client.URL(), err)
			}

			fmt.Printf("Server:   %s\n", client.URL())
			fmt.Printf("Running:  %d\n", depth.Running)
			fmt.Printf("Pending:  %d\n", depth.Pending)
			fmt.Printf("\nCharacters: %s\n", strings.Join(p.Queue.SubjectNames(), ", "))
			fmt.Printf("Groups:     %s\n", strings.Join(p.Queue.GroupNames(), ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Image server URL (default $COMFY_URL)")

	return cmd
}
