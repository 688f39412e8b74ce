package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"note-gate/config"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		save    bool
		in, out string
		inCh    int
		outCh   int
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save the effective configuration",
		Long: `Print the configuration after applying flags. With --save it is written to
~/.config/note-gate/config.json and used by later runs.

Example:
  note-gate config --in KeyStep --out "IAC Driver" --on 4 --off 4 --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("in") {
				cfg.Input.PortName = in
			}
			if cmd.Flags().Changed("out") {
				cfg.Output.PortName = out
			}
			if cmd.Flags().Changed("in-channel") {
				cfg.Input.Channel = inCh
			}
			if cmd.Flags().Changed("out-channel") {
				cfg.Output.Channel = outCh
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			if save {
				if err := cfg.Save(); err != nil {
					return fmt.Errorf("save config: %w", err)
				}
				path, _ := config.ConfigPath()
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "write the result to the default config file")
	cmd.Flags().StringVar(&in, "in", "", "input port name")
	cmd.Flags().StringVar(&out, "out", "", "output port name")
	cmd.Flags().IntVar(&inCh, "in-channel", 0, "input channel, 0 = omni")
	cmd.Flags().IntVar(&outCh, "out-channel", 0, "output channel, 0 = keep incoming")

	return cmd
}
