package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/earthback/loraprep/internal/profile"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "List and print dataset profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the built-in profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range profile.Builtins() {
				marker := " "
				if name == profile.DefaultName {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [name-or-file]",
		Short: "Print a profile as YAML (a starting point for your own)",
		Example: `  # Copy the 3D printer profile and edit it
  loraprep profile show 3dprinter > my-printer.yaml
  loraprep curate --profile my-printer.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p *profile.Profile
			var err error
			if len(args) == 1 {
				p, err = profile.Load(args[0])
			} else {
				_, p, err = setup()
			}
			if err != nil {
				return err
			}

			data, err := p.Marshal()
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	})

	return cmd
}
