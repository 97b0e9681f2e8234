package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/RevCBH/flashrig/internal/cli/tui"
	"github.com/RevCBH/flashrig/internal/config"
	"github.com/RevCBH/flashrig/internal/events"
	"github.com/RevCBH/flashrig/internal/flash"
	"github.com/RevCBH/flashrig/internal/history"
	"github.com/RevCBH/flashrig/internal/metrics"
	"github.com/RevCBH/flashrig/internal/serialport"
	"github.com/RevCBH/flashrig/internal/tool"
)

// FlashOptions holds flags for the flash command
type FlashOptions struct {
	// Mode overrides flash.mode from the config (both, mcu, module)
	Mode string

	// Image and programmer paths; empty means use the persisted value
	MCUImage    string
	ModuleImage string
	Programmer  string

	// Verify overrides flash.verify when VerifySet is true
	Verify    bool
	VerifySet bool

	// NoTUI disables the interactive progress view
	NoTUI bool
}

// Validate checks option values that can be checked without config
func (opts FlashOptions) Validate() error {
	if opts.Mode == "" {
		return nil
	}
	if _, err := flash.ParseMode(opts.Mode); err != nil {
		return err
	}
	return nil
}

// FlashDeps are the external collaborators of a flash run
type FlashDeps struct {
	Programmer tool.Invoker
	Module     tool.Invoker
	Serial     flash.SerialLink
}

func defaultFlashDeps(cfg *config.Config) FlashDeps {
	var module tool.Invoker = tool.ProcessInvoker{Dir: cfg.Flash.WorkDir}
	if cfg.Module.Synchronous {
		module = tool.SyncInvoker{
			Runner: tool.ProcessRunner{Dir: cfg.Flash.WorkDir},
			Dir:    cfg.Flash.WorkDir,
		}
	}
	return FlashDeps{
		Programmer: tool.ProcessInvoker{Dir: cfg.Flash.WorkDir},
		Module:     module,
		Serial:     serialport.NewClient(serialport.OpenSerial),
	}
}

// NewFlashCmd creates the flash command
func NewFlashCmd(app *App) *cobra.Command {
	opts := FlashOptions{}

	cmd := &cobra.Command{
		Use:   "flash",
		Short: "Flash the MCU and/or the WiFi module",
		Long: `Flash runs one job through the station pipeline:

  mcu_flashing -> [mcu_verifying] -> sending_handshake -> module_flashing -> done

Image and programmer paths given as flags are remembered in the state file
and reused by later runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.VerifySet = cmd.Flags().Changed("verify")
			if err := opts.Validate(); err != nil {
				return err
			}
			return app.RunFlash(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "What to flash: both, mcu, or module (default from config)")
	cmd.Flags().StringVar(&opts.MCUImage, "mcu-image", "", "MCU hex image")
	cmd.Flags().StringVar(&opts.ModuleImage, "module-image", "", "WiFi module image")
	cmd.Flags().StringVar(&opts.Programmer, "programmer", "", "Programmer executable")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "Verify MCU firmware version over serial after flashing")
	cmd.Flags().BoolVar(&opts.NoTUI, "no-tui", false, "Disable the interactive progress view")

	return cmd
}

// RunFlash executes one flash job with the given options
func (a *App) RunFlash(ctx context.Context, out io.Writer, opts FlashOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	store := config.NewStateStore(cfg.StateFile)
	state, err := store.Load()
	if err != nil {
		return err
	}

	job, err := resolveJob(cfg, state, opts)
	if err != nil {
		return err
	}

	state.MCUImage = job.MCUImage
	state.ModuleImage = job.ModuleImage
	state.Programmer = job.Programmer
	if err := store.Save(state); err != nil {
		return err
	}

	orchCfg := cfg.OrchestratorConfig()
	if opts.VerifySet {
		orchCfg.WithVerification = opts.Verify
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := NewSignalHandler(cancel)
	handler.OnShutdown(func() {
		fmt.Fprintln(os.Stderr, "\nStopping after the current stage (Ctrl+C again to abort)...")
	})
	handler.Start()
	defer handler.Stop()

	bus := events.NewBus(1000)
	busClosed := false
	defer func() {
		if !busClosed {
			bus.Close()
		}
	}()

	bus.Subscribe(events.StateHandler(events.StateConfig{
		SaveCounter: store.SaveCounter,
		OnError: func(err error) {
			logrus.WithError(err).Warn("failed to save run counter")
		},
	}))

	rec := metrics.NewRecorder()
	rec.SetCounter(state.Counter)
	bus.Subscribe(rec.Handle)

	if cfg.HistoryDB != "" {
		db, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer db.Close()

		hr := history.NewRecorder(db)
		hr.MCUImage = job.MCUImage
		hr.ModuleImage = job.ModuleImage
		bus.Subscribe(hr.Handle)
	}

	useTUI := !opts.NoTUI && !a.jsonOutput && isTerminal(os.Stdout)
	jsonMode := !useTUI && events.IsJSONMode(a.jsonOutput)

	var program *tea.Program
	var tuiDone chan struct{}
	if useTUI {
		model := tui.NewModel()
		model.Counter = state.Counter
		model.OnQuit = cancel
		program = tea.NewProgram(model, tea.WithAltScreen())
		bus.Subscribe(tui.NewBridge(program).Handler())

		logWriter := tui.NewLogWriter(program)
		logrus.SetOutput(logWriter)
		defer func() {
			logWriter.Close()
			logrus.SetOutput(os.Stderr)
		}()

		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := program.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()
	} else if jsonMode {
		bus.Subscribe(events.JSONEmitterHandler(events.NewJSONEmitter(out)))
	} else {
		bus.Subscribe(events.LogHandler(events.LogConfig{Writer: out}))
	}

	deps := defaultFlashDeps(cfg)
	if a.flashDeps != nil {
		deps = *a.flashDeps
	}

	orch := flash.New(orchCfg, flash.Dependencies{
		Bus:        bus,
		Programmer: deps.Programmer,
		Module:     deps.Module,
		Serial:     deps.Serial,
	}, state.Counter)

	result, runErr := orch.Run(ctx, job)

	busClosed = true
	bus.Close()

	if program != nil {
		// leave the final frame up long enough to read
		time.Sleep(500 * time.Millisecond)
		program.Send(tui.DoneMsg{})
		<-tuiDone
	}

	if cfg.MetricsFile != "" {
		if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
			logrus.WithError(err).Warn("failed to write metrics textfile")
		}
	}

	summary := out
	if jsonMode {
		summary = os.Stderr
	}
	if result != nil {
		printSummary(summary, result)
	}

	return runErr
}

// resolveJob combines flags, persisted state and config into a job.
// Flags win over state; for the programmer, state wins over config.
func resolveJob(cfg *config.Config, state *config.State, opts FlashOptions) (flash.Job, error) {
	modeName := opts.Mode
	if modeName == "" {
		modeName = cfg.Flash.Mode
	}
	mode, err := flash.ParseMode(modeName)
	if err != nil {
		return flash.Job{}, err
	}

	return flash.Job{
		Mode:        mode,
		MCUImage:    firstNonEmpty(opts.MCUImage, state.MCUImage),
		ModuleImage: firstNonEmpty(opts.ModuleImage, state.ModuleImage),
		Programmer:  firstNonEmpty(opts.Programmer, state.Programmer, cfg.Programmer.Path),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printSummary(w io.Writer, result *flash.Result) {
	fmt.Fprintf(w, "\nFlash run %s:\n", result.RunID)
	fmt.Fprintf(w, "  Mode:      %s\n", result.Mode)
	fmt.Fprintf(w, "  State:     %s\n", result.State)
	fmt.Fprintf(w, "  Progress:  %d/%d (%d%%)\n", result.Progress.Current, result.Progress.Total, result.Progress.Percent())
	if result.Failure != nil {
		fmt.Fprintf(w, "  Failure:   %s\n", result.Failure)
	}
	fmt.Fprintf(w, "  Counter:   %d\n", result.Counter)
	fmt.Fprintf(w, "  Duration:  %s\n", result.Duration.Round(time.Millisecond))
}

func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
