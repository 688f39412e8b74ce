package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"note-gate/offline"
)

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	var split bool

	cmd := &cobra.Command{
		Use:   "filter <in.mid> <out.mid>",
		Short: "Gate a Standard MIDI File",
		Long: `Gate every track of a Standard MIDI File and write the result. Each track
has its own cycle, and with --split-channels so does every channel within a
track. Removed events hand their time to the next kept event, so
the rest of the file keeps its timing.

Example:
  note-gate filter --on 3 --off 2 groove.mid groove-gated.mid`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, rootOpts)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("split-channels") {
				cfg.SplitChannels = split
			}

			stats, err := offline.FilterFile(args[0], args[1], cfg.Pattern, offline.Options{
				Gate:          cfg.GateOptions(),
				SplitChannels: cfg.SplitChannels,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pattern %s\n", cfg.Pattern)
			for _, st := range stats {
				fmt.Fprintln(out, st)
			}
			fmt.Fprintf(out, "wrote %s\n", args[1])
			return nil
		},
	}

	cmd.Flags().BoolVar(&split, "split-channels", false, "give each channel in a track its own cycle")

	return cmd
}
