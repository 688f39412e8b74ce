package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"

	"note-gate/config"
	"note-gate/debug"
	"note-gate/gate"
	"note-gate/midi"
	"note-gate/router"
	"note-gate/theme"
	"note-gate/tui"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	In, Out            string
	InChannel          int
	OutChannel         int
	Headless           bool
	DryRun             bool
	PreserveHeld       bool
	FlushOnReconfigure bool
	SplitChannels      bool
	Palette            string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Gate a live MIDI input into an output port",
		Long: `Open the configured input and output ports and gate notes live. The input
is reconnected automatically if it goes away and comes back.

Without --headless a terminal UI shows the cycle, held notes and decisions.
With --headless the status lines are printed to stdout until interrupted.

Example:
  note-gate run --in KeyStep --out "IAC Driver Bus 1" --on 3 --off 2
  note-gate run --headless --dry-run --in KeyStep`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, opts, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runGate(cmd.Context(), cmd.OutOrStdout(), opts, cfg)
		},
	}

	cmd.Flags().StringVar(&opts.In, "in", "", "input port name (overrides config)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "output port name (overrides config)")
	cmd.Flags().IntVar(&opts.InChannel, "in-channel", 0, "only gate this input channel, 0 = omni")
	cmd.Flags().IntVar(&opts.OutChannel, "out-channel", 0, "send on this channel, 0 = keep incoming")
	cmd.Flags().BoolVar(&opts.Headless, "headless", false, "print status lines instead of the UI")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "don't open an output port")
	cmd.Flags().BoolVar(&opts.PreserveHeld, "preserve-held", false, "keep held notes releasable across pattern changes")
	cmd.Flags().BoolVar(&opts.FlushOnReconfigure, "flush-on-reconfigure", false, "release held notes before a pattern change")
	cmd.Flags().BoolVar(&opts.SplitChannels, "split-channels", false, "with omni input, run one cycle per input channel")
	cmd.Flags().StringVar(&opts.Palette, "palette", "", "GIMP palette (.gpl) for the UI")

	return cmd
}

func applyRunFlags(cmd *cobra.Command, opts *RunOptions, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("in") {
		cfg.Input.PortName = opts.In
	}
	if flags.Changed("out") {
		cfg.Output.PortName = opts.Out
	}
	if flags.Changed("in-channel") {
		cfg.Input.Channel = opts.InChannel
	}
	if flags.Changed("out-channel") {
		cfg.Output.Channel = opts.OutChannel
	}
	if flags.Changed("preserve-held") {
		cfg.PreserveHeld = opts.PreserveHeld
	}
	if flags.Changed("flush-on-reconfigure") {
		cfg.FlushOnReconfigure = opts.FlushOnReconfigure
	}
	if flags.Changed("split-channels") {
		cfg.SplitChannels = opts.SplitChannels
	}
}

func runGate(ctx context.Context, out io.Writer, opts *RunOptions, cfg *config.Config) error {
	if cfg.Input.PortName == "" {
		return errors.New("no input port: pass --in or set input.portName in the config")
	}

	var send func(gomidi.Message) error
	if !opts.DryRun {
		if cfg.Output.PortName == "" {
			return errors.New("no output port: pass --out, set output.portName, or use --dry-run")
		}
		s, name, err := midi.OpenOutput(cfg.Output.PortName)
		if err != nil {
			return err
		}
		send = s
		debug.Log("router", "output %q", name)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ropts := router.OptionsFromConfig(cfg)
	if opts.Headless {
		// status lines come from the router goroutine
		out = &syncWriter{w: out}
		ropts.OnStatus = func(s string) { fmt.Fprintln(out, s) }
	}
	r := router.New(gate.New(cfg.Pattern, cfg.GateOptions()...), send, ropts)

	deviceMgr := midi.NewDeviceManager(cfg.Input.PortName)
	go deviceMgr.Run(ctx)

	routerDone := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(routerDone)
	}()

	var err error
	if opts.Headless {
		fmt.Fprintf(out, "note-gate %s, waiting for %q (ctrl+c to stop)\n", cfg.Pattern, cfg.Input.PortName)
		runHeadless(out, r, deviceMgr.Events())
	} else {
		err = runTUI(ctx, r, deviceMgr, opts.Palette)
	}

	// stopping the router releases anything still held
	stop()
	<-routerDone
	return err
}

// runHeadless attaches inputs as they appear until events closes
func runHeadless(out io.Writer, r *router.Router, events <-chan midi.DeviceEvent) {
	for event := range events {
		if event.Type == midi.DeviceConnected {
			r.Attach(event.Source)
		}
		fmt.Fprintf(out, "input %s: %s\n", event.Type, event.ID)
	}
}

// syncWriter serializes writes from several goroutines
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func runTUI(ctx context.Context, r *router.Router, deviceMgr *midi.DeviceManager, palettePath string) error {
	palette := theme.DefaultPalette()
	if palettePath != "" {
		p, err := theme.LoadGPL(palettePath)
		if err != nil {
			return fmt.Errorf("load palette: %w", err)
		}
		palette = p
	}

	m := tui.NewModel(r, deviceMgr, theme.New(palette), "")
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
