package flash

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/RevCBH/flashrig/internal/events"
	"github.com/RevCBH/flashrig/internal/serialport"
	"github.com/RevCBH/flashrig/internal/tool"
)

// Stage timeouts. These are fixed for the pipeline, not user settings.
const (
	VerifyTimeout = 30 * time.Second
	NotifyTimeout = 5 * time.Second
)

// Default inter-stage delays
const (
	DefaultSettleDelay = 5 * time.Second
	DefaultModuleDelay = 1 * time.Second
)

// ErrRunInProgress is returned by Run while another run is active.
var ErrRunInProgress = errors.New("a flash run is already in progress")

// ErrInvalidMode is returned by Run for a job whose mode is not Both, McuOnly
// or ModuleOnly. Nothing is emitted or launched for such a job.
var ErrInvalidMode = errors.New("invalid flash mode")

// SerialLink is the serial side of the pipeline. *serialport.Client implements it.
type SerialLink interface {
	Notify(ctx context.Context, name string, baud int, command []byte, timeout time.Duration) error
	Verify(ctx context.Context, req serialport.Request) <-chan serialport.VerifyResult
}

// Config holds orchestrator configuration. It is copied at New and never
// modified afterwards.
type Config struct {
	Capabilities

	Programmer ProgrammerConfig
	Module     ModuleConfig

	// SerialPort is the MCU console port used for verify and notify
	SerialPort    string
	Baud          int
	Command       string
	SuccessMarker string

	// SettleDelay is the wait between MCU flash success and the notify handshake
	SettleDelay time.Duration
	// ModuleDelay is the wait between the notify handshake and module flashing
	ModuleDelay time.Duration

	// WorkDir is scanned for stale module-tool artifacts before each MCU flash
	WorkDir string
	// WorkDirPrefix selects which directories in WorkDir are removed
	WorkDirPrefix string

	// ShowToolOutput forwards tool stdout/stderr as stage output events
	ShowToolOutput bool
	// EchoCommand reports the full programmer command line before launch
	EchoCommand bool

	verifyTimeout time.Duration
	notifyTimeout time.Duration
}

// DefaultConfig returns the station defaults.
func DefaultConfig() Config {
	return Config{
		Capabilities: Capabilities{WithProgressTracking: true},
		Programmer:   ProgrammerConfig{Model: "AICE", Device: "ATSAME70N19B"},
		Module: ModuleConfig{
			Tool:  "Telit_Wifi_Image_Tool.exe",
			Model: "WE310",
			Port:  "COM7",
		},
		SerialPort:     "COM6",
		Baud:           serialport.DefaultBaud,
		Command:        serialport.Command,
		SuccessMarker:  serialport.SuccessMarker,
		SettleDelay:    DefaultSettleDelay,
		ModuleDelay:    DefaultModuleDelay,
		WorkDirPrefix:  "WE310_",
		ShowToolOutput: true,
	}
}

// Dependencies bundles external dependencies for injection
type Dependencies struct {
	Bus *events.Bus
	// Programmer launches the MCU programmer
	Programmer tool.Invoker
	// Module launches the module flasher
	Module tool.Invoker
	Serial SerialLink
}

// Result represents the outcome of a flash run
type Result struct {
	RunID    string
	Mode     Mode
	State    State
	Progress Progress
	Failure  *Failure
	// Counter is the run counter after this run
	Counter  int
	Duration time.Duration
}

// Orchestrator drives one flash job at a time through the stage pipeline.
type Orchestrator struct {
	cfg        Config
	bus        *events.Bus
	programmer tool.Invoker
	module     tool.Invoker
	serial     SerialLink

	mu      sync.Mutex
	running bool
	counter int
}

// New creates an orchestrator. counter is the persisted run counter to
// continue from.
func New(cfg Config, deps Dependencies, counter int) *Orchestrator {
	if cfg.Baud == 0 {
		cfg.Baud = serialport.DefaultBaud
	}
	if cfg.Command == "" {
		cfg.Command = serialport.Command
	}
	if cfg.SuccessMarker == "" {
		cfg.SuccessMarker = serialport.SuccessMarker
	}
	if cfg.verifyTimeout == 0 {
		cfg.verifyTimeout = VerifyTimeout
	}
	if cfg.notifyTimeout == 0 {
		cfg.notifyTimeout = NotifyTimeout
	}
	return &Orchestrator{
		cfg:        cfg,
		bus:        deps.Bus,
		programmer: deps.Programmer,
		module:     deps.Module,
		serial:     deps.Serial,
		counter:    counter,
	}
}

// Counter returns the current run counter.
func (o *Orchestrator) Counter() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counter
}

// Run executes job to Done or Failed. Stage failures are reported as events and
// returned as a *StageError alongside the result; they never panic or exit.
// Cancelling ctx stops the pipeline between stages and interrupts verification;
// a tool that has already been launched is awaited.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Result, error) {
	if !job.Mode.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, job.Mode)
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	start := time.Now()
	r := &run{
		o:        o,
		id:       ulid.Make().String(),
		job:      job,
		progress: Progress{Total: job.Mode.TotalSteps()},
		state:    Idle,
		seen:     make(map[int]bool),
	}
	r.log = logrus.WithFields(logrus.Fields{"run": r.id, "mode": job.Mode.String()})
	r.log.Info("flash run started")

	r.emit(events.NewEvent(events.RunStarted, r.id).WithPayload(events.RunStartedPayload{
		Mode:  job.Mode.String(),
		Total: r.progress.Total,
	}))
	r.advance(Idle)

	r.state = MCUFlashing
	if !job.Mode.flashesMCU() {
		r.state = SendingHandshake
	}

	for !r.state.Terminal() {
		if err := ctx.Err(); err != nil {
			r.state = r.fail(r.state, ReasonCanceled, 0, err)
			break
		}
		switch r.state {
		case MCUFlashing:
			r.state = r.flashMCU(ctx)
		case MCUVerifying:
			r.state = r.verifyMCU(ctx)
		case SendingHandshake:
			r.state = r.notify(ctx)
		case ModuleFlashing:
			r.state = r.flashModule(ctx)
		default:
			r.state = r.fail(r.state, ReasonToolError, 0, fmt.Errorf("no transition from %s", r.state))
		}
	}

	if r.state == Done {
		r.complete()
	}

	res := &Result{
		RunID:    r.id,
		Mode:     job.Mode,
		State:    r.state,
		Progress: r.progress,
		Failure:  r.failure,
		Counter:  o.Counter(),
		Duration: time.Since(start),
	}

	r.emit(events.NewEvent(events.RunCompleted, r.id).WithPayload(events.RunCompletedPayload{
		Success: r.state == Done,
		State:   r.state.String(),
		Mode:    job.Mode.String(),
		Percent: r.progress.Percent(),
	}))
	r.log.WithField("state", r.state.String()).WithField("duration", res.Duration).Info("flash run finished")

	if r.failure != nil {
		return res, &StageError{Failure: *r.failure}
	}
	return res, nil
}

// run is the per-job state. Only the goroutine executing Run touches it.
type run struct {
	o        *Orchestrator
	id       string
	job      Job
	progress Progress
	state    State
	failure  *Failure
	seen     map[int]bool
	log      *logrus.Entry
}

func (r *run) emit(e events.Event) {
	if r.o.bus != nil {
		r.o.bus.Emit(e)
	}
}

func (r *run) say(stage State, stream, text string) {
	r.emit(events.NewEvent(events.StageOutput, r.id).
		WithStage(stage.String()).
		WithPayload(events.OutputPayload{Stream: stream, Text: text}))
}

func (r *run) started(stage State) {
	r.log.WithField("stage", stage.String()).Debug("stage started")
	r.emit(events.NewEvent(events.StageStarted, r.id).WithStage(stage.String()))
}

func (r *run) advance(stage State) {
	if !r.progress.Advance() {
		return
	}
	r.reportProgress(stage)
}

func (r *run) reportProgress(stage State) {
	if !r.o.cfg.WithProgressTracking {
		return
	}
	r.emit(events.NewEvent(events.StageProgress, r.id).
		WithStage(stage.String()).
		WithPayload(events.ProgressPayload{
			Current: r.progress.Current,
			Total:   r.progress.Total,
			Percent: r.progress.Percent(),
		}))
}

func (r *run) fail(stage State, reason Reason, code int, err error) State {
	f := Failure{Stage: stage, Reason: reason, Code: code, Err: err}
	r.failure = &f
	r.log.WithField("stage", stage.String()).WithError(err).Warnf("stage failed: %s", reason)
	r.emit(events.NewEvent(events.StageFailed, r.id).
		WithStage(stage.String()).
		WithPayload(events.FailurePayload{Reason: string(reason), Code: code}).
		WithError(errors.New(f.String())))
	return Failed
}

// complete fills progress and, for full runs, bumps the run counter.
func (r *run) complete() {
	if r.progress.Complete() {
		r.reportProgress(Done)
	}
	if !r.o.cfg.WithProgressTracking || r.job.Mode != Both {
		return
	}

	r.o.mu.Lock()
	r.o.counter++
	counter := r.o.counter
	r.o.mu.Unlock()

	r.emit(events.NewEvent(events.CounterUpdated, r.id).WithPayload(events.CounterPayload{Counter: counter}))
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await consumes an invocation until its exit event. onStdout sees every
// stdout chunk.
func (r *run) await(stage State, inv *tool.Invocation, onStdout func(string)) (int, error) {
	for ev := range inv.Events() {
		switch ev.Kind {
		case tool.Output:
			if r.o.cfg.ShowToolOutput {
				r.say(stage, string(ev.Stream), ev.Text)
			}
			if onStdout != nil && ev.Stream == tool.Stdout {
				onStdout(ev.Text)
			}
		case tool.Exited:
			return ev.Code, ev.Err
		}
	}
	return -1, fmt.Errorf("%s: event stream closed without exit", inv.Path)
}

func (r *run) launch(ctx context.Context, stage State, inv tool.Invoker, path string, args []string) (*tool.Invocation, State, bool) {
	if inv == nil {
		return nil, r.fail(stage, ReasonLaunchError, 0, fmt.Errorf("no invoker configured for %s", path)), false
	}
	// Launched tools run to completion even if ctx is cancelled.
	h, err := inv.Start(context.WithoutCancel(ctx), path, args)
	if err != nil {
		return nil, r.fail(stage, ReasonLaunchError, 0, err), false
	}
	return h, stage, true
}

func (r *run) flashMCU(ctx context.Context) State {
	cfg := r.o.cfg
	r.started(MCUFlashing)

	if r.job.Programmer == "" {
		return r.fail(MCUFlashing, ReasonMissingProgrammer, 0, errors.New("programmer path not set"))
	}
	if r.job.MCUImage == "" {
		return r.fail(MCUFlashing, ReasonMissingImage, 0, errors.New("MCU image path not set"))
	}

	removed, err := RemoveStaleArtifacts(cfg.WorkDir, cfg.WorkDirPrefix)
	for _, path := range removed {
		r.say(MCUFlashing, "", "Removed folder: "+path)
	}
	if err != nil {
		r.log.WithError(err).Warn("housekeeping incomplete")
		r.say(MCUFlashing, "", "Housekeeping: "+err.Error())
	}

	args := ProgrammerArgs(cfg.Programmer, r.job.MCUImage)
	if cfg.EchoCommand {
		r.say(MCUFlashing, "", "Executing command: "+CommandLine(r.job.Programmer, args))
	}
	r.say(MCUFlashing, "", "Starting MCU flashing...")

	inv, next, ok := r.launch(ctx, MCUFlashing, r.o.programmer, r.job.Programmer, args)
	if !ok {
		return next
	}
	code, err := r.await(MCUFlashing, inv, nil)
	if ctx.Err() != nil {
		return r.fail(MCUFlashing, ReasonCanceled, code, ctx.Err())
	}
	if err != nil {
		return r.fail(MCUFlashing, ReasonToolError, code, err)
	}

	switch {
	case code == ExitInvalidCmdlineArg:
		return r.fail(MCUFlashing, ReasonInvalidCmdlineArg, code, nil)
	case code != 0:
		return r.fail(MCUFlashing, ReasonToolError, code, nil)
	}

	r.say(MCUFlashing, "", "MCU flashed successfully.")
	r.advance(MCUFlashing)

	if cfg.WithVerification {
		return MCUVerifying
	}
	if r.job.Mode == McuOnly {
		return Done
	}
	if err := sleep(ctx, cfg.SettleDelay); err != nil {
		return r.fail(SendingHandshake, ReasonCanceled, 0, err)
	}
	return SendingHandshake
}

func (r *run) verifyMCU(ctx context.Context) State {
	cfg := r.o.cfg
	r.started(MCUVerifying)
	if r.o.serial == nil {
		return r.fail(MCUVerifying, ReasonPortUnavailable, 0, errors.New("no serial link configured"))
	}
	r.say(MCUVerifying, "", "Verifying firmware on "+cfg.SerialPort+"...")

	results := r.o.serial.Verify(ctx, serialport.Request{
		Port:          cfg.SerialPort,
		Baud:          cfg.Baud,
		Command:       []byte(cfg.Command),
		SuccessMarker: cfg.SuccessMarker,
		Timeout:       cfg.verifyTimeout,
		OnLine: func(line string) {
			r.say(MCUVerifying, "serial", line)
		},
	})
	res := <-results

	var unavailable *serialport.PortUnavailableError
	switch {
	case ctx.Err() != nil:
		return r.fail(MCUVerifying, ReasonCanceled, 0, ctx.Err())
	case errors.As(res.Err, &unavailable):
		return r.fail(MCUVerifying, ReasonPortUnavailable, 0, res.Err)
	case res.Err != nil:
		return r.fail(MCUVerifying, ReasonVerificationFailed, 0, res.Err)
	case !res.Outcome.Matched:
		return r.fail(MCUVerifying, ReasonVerificationFailed, 0,
			fmt.Errorf("no %q within %s", cfg.SuccessMarker, cfg.verifyTimeout))
	}

	r.say(MCUVerifying, "", "Firmware verification successful.")
	r.advance(MCUVerifying)

	if r.job.Mode == McuOnly {
		return Done
	}
	return SendingHandshake
}

// notify is best-effort: errors are reported and the pipeline continues.
func (r *run) notify(ctx context.Context) State {
	cfg := r.o.cfg
	r.started(SendingHandshake)
	r.say(SendingHandshake, "", "Sending serial command to MCU...")

	err := errors.New("no serial link configured")
	if r.o.serial != nil {
		err = r.o.serial.Notify(ctx, cfg.SerialPort, cfg.Baud, []byte(cfg.Command), cfg.notifyTimeout)
	}
	switch {
	case ctx.Err() != nil:
		return r.fail(SendingHandshake, ReasonCanceled, 0, ctx.Err())
	case err != nil:
		r.log.WithError(err).Warn("serial notify failed, continuing")
		r.emit(events.NewEvent(events.StageOutput, r.id).
			WithStage(SendingHandshake.String()).
			WithPayload(events.OutputPayload{Text: "Unable to send serial command: " + err.Error()}).
			WithError(err))
	default:
		r.say(SendingHandshake, "", "Serial command sent.")
		r.advance(SendingHandshake)
	}

	if err := sleep(ctx, cfg.ModuleDelay); err != nil {
		return r.fail(ModuleFlashing, ReasonCanceled, 0, err)
	}
	return ModuleFlashing
}

func (r *run) flashModule(ctx context.Context) State {
	cfg := r.o.cfg
	r.started(ModuleFlashing)

	if r.job.ModuleImage == "" {
		return r.fail(ModuleFlashing, ReasonMissingImage, 0, errors.New("module image path not set"))
	}

	args := ModuleArgs(cfg.Module, r.job.ModuleImage)
	r.say(ModuleFlashing, "", "Starting module flashing...")

	inv, next, ok := r.launch(ctx, ModuleFlashing, r.o.module, cfg.Module.Tool, args)
	if !ok {
		return next
	}
	code, err := r.await(ModuleFlashing, inv, func(text string) {
		for _, m := range ParseImageMarkers(text) {
			if r.seen[m.Index] {
				continue
			}
			r.seen[m.Index] = true
			r.say(ModuleFlashing, "", m.String())
			r.advance(ModuleFlashing)
		}
	})
	if ctx.Err() != nil {
		return r.fail(ModuleFlashing, ReasonCanceled, code, ctx.Err())
	}
	if err != nil {
		return r.fail(ModuleFlashing, ReasonToolError, code, err)
	}
	if code != 0 {
		return r.fail(ModuleFlashing, ReasonToolError, code, nil)
	}

	r.say(ModuleFlashing, "", "Module flashed successfully.")
	return Done
}
