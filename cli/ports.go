package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"note-gate/midi"
)

// NewPortsCommand creates the ports command.
func NewPortsCommand(rootOpts *RootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List MIDI input and output ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := midi.ScanPorts(timeout)
			if err != nil {
				return fmt.Errorf("%w (on macOS try: sudo killall coreaudiod midiserver)", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== MIDI Input Ports ===")
			for i, name := range ports.InNames() {
				fmt.Fprintf(out, "  %d: %s\n", i, name)
			}
			fmt.Fprintln(out, "\n=== MIDI Output Ports ===")
			for i, name := range ports.OutNames() {
				fmt.Fprintf(out, "  %d: %s\n", i, name)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", midi.DefaultScanTimeout, "give up on a hung MIDI driver after this long")

	return cmd
}
