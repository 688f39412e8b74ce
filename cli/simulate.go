package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"note-gate/scenario"
)

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	var showState bool

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>...",
		Short: "Run scripted note sequences through the gate",
		Long: `Run one or more YAML scenarios against a fresh gate and print every status
line and passed note ("-> pitch velocity").

Example:
  note-gate simulate three_two.yaml
  note-gate simulate --on 4 --off 1 riff.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for i, path := range args {
				s, err := scenario.Load(path)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("on") {
					s.Pattern.On = rootOpts.On
				}
				if cmd.Flags().Changed("off") {
					s.Pattern.Off = rootOpts.Off
				}

				if len(args) > 1 {
					if i > 0 {
						fmt.Fprintln(out)
					}
					fmt.Fprintf(out, "# %s\n", s.Name)
				}
				tr := s.Run()
				fmt.Fprint(out, tr.String())
				if showState {
					fmt.Fprintf(out, "state: %s, position %d, next slot %d, held %v\n",
						tr.Final.Pattern, tr.Final.Position, tr.Final.NextSlot, tr.Final.Held)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showState, "state", false, "print the final gate state")

	return cmd
}
