package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"note-gate/config"
	"note-gate/debug"
	"note-gate/gate"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Debug      bool
	DebugLog   string
	On, Off    int
}

// NewRootCommand creates the root command for the note-gate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "note-gate",
		Short: "Rhythmic MIDI note gate",
		Long: `note-gate passes or blocks note-ons following a repeating pattern of
ON and OFF slots, counted in note-ons. Note-offs are only passed for notes
that were let through, so nothing is left hanging.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Debug || opts.DebugLog != "" {
				if err := debug.Enable(opts.DebugLog); err != nil {
					return fmt.Errorf("enable debug log: %w", err)
				}
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			debug.Disable()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.json, .yaml); default ~/.config/note-gate/config.json")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "write a debug log to ~/.config/note-gate/debug.log")
	cmd.PersistentFlags().StringVar(&opts.DebugLog, "debug-log", "", "write the debug log to this file")
	cmd.PersistentFlags().IntVar(&opts.On, "on", gate.DefaultPattern.On, "ON slots per cycle (overrides config)")
	cmd.PersistentFlags().IntVar(&opts.Off, "off", gate.DefaultPattern.Off, "OFF slots per cycle (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewPortsCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// loadConfig reads the config file and applies --on/--off when given.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.LoadFile(opts.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("on") {
		cfg.Pattern.On = opts.On
	}
	if cmd.Flags().Changed("off") {
		cfg.Pattern.Off = opts.Off
	}
	cfg.Pattern = cfg.Pattern.Clamped()
	debug.Log("config", "pattern %s, input %q ch%d, output %q ch%d",
		cfg.Pattern, cfg.Input.PortName, cfg.Input.Channel, cfg.Output.PortName, cfg.Output.Channel)
	return cfg, nil
}
