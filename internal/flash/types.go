package flash

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects which chips a job programs.
type Mode int

const (
	Both Mode = iota
	McuOnly
	ModuleOnly
)

// String returns the config/CLI spelling of the mode.
func (m Mode) String() string {
	switch m {
	case Both:
		return "both"
	case McuOnly:
		return "mcu"
	case ModuleOnly:
		return "module"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "both", "mcu", or "module" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "both", "all":
		return Both, nil
	case "mcu", "mcu-only":
		return McuOnly, nil
	case "module", "module-only":
		return ModuleOnly, nil
	}
	return 0, fmt.Errorf("unknown flash mode %q (want both, mcu, or module)", s)
}

// Valid reports whether m is one of Both, McuOnly or ModuleOnly.
func (m Mode) Valid() bool {
	return m >= Both && m <= ModuleOnly
}

// TotalSteps is the fixed progress denominator for a run in this mode.
// It is zero for an invalid mode.
func (m Mode) TotalSteps() int {
	switch m {
	case Both:
		return 8
	case McuOnly:
		return 2
	case ModuleOnly:
		return 6
	default:
		return 0
	}
}

func (m Mode) flashesMCU() bool {
	return m == Both || m == McuOnly
}

// State is a node of the flashing state machine.
type State int

const (
	Idle State = iota
	MCUFlashing
	MCUVerifying
	SendingHandshake
	ModuleFlashing
	Done
	Failed
)

var stateNames = map[State]string{
	Idle:             "idle",
	MCUFlashing:      "mcu_flashing",
	MCUVerifying:     "mcu_verifying",
	SendingHandshake: "sending_handshake",
	ModuleFlashing:   "module_flashing",
	Done:             "done",
	Failed:           "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions leave s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// Reason classifies a stage failure.
type Reason string

const (
	ReasonLaunchError        Reason = "launch_error"
	ReasonToolError          Reason = "tool_error"
	ReasonInvalidCmdlineArg  Reason = "invalid_cmdline_arg"
	ReasonPortUnavailable    Reason = "port_unavailable"
	ReasonVerificationFailed Reason = "verification_failed"
	ReasonMissingImage       Reason = "missing_image"
	ReasonMissingProgrammer  Reason = "missing_programmer"
	ReasonCanceled           Reason = "canceled"
)

// ExitInvalidCmdlineArg is the programmer's exit code for a rejected argument.
const ExitInvalidCmdlineArg = 36

// Failure records where and why a run stopped.
type Failure struct {
	Stage  State
	Reason Reason
	// Code is the tool exit code for ReasonToolError and ReasonInvalidCmdlineArg
	Code int
	// Err is the underlying error, if any
	Err error
}

func (f Failure) String() string {
	switch f.Reason {
	case ReasonToolError:
		return fmt.Sprintf("%s: tool exited with code %d", f.Stage, f.Code)
	case ReasonInvalidCmdlineArg:
		return fmt.Sprintf("%s: INVALID_CMDLINE_ARG (code %d)", f.Stage, f.Code)
	}
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Stage, f.Reason, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Stage, f.Reason)
}

// StageError is returned by Run when the pipeline stops in Failed.
type StageError struct {
	Failure Failure
}

func (e *StageError) Error() string {
	return "flash failed at " + e.Failure.String()
}

func (e *StageError) Unwrap() error {
	return e.Failure.Err
}

// Capabilities switches the optional parts of the pipeline.
type Capabilities struct {
	// WithVerification runs the MCU firmware-version handshake after MCU flashing
	WithVerification bool
	// WithProgressTracking emits progress events and maintains the run counter
	WithProgressTracking bool
}

// Job is one user-initiated run. It is not modified once Run starts.
type Job struct {
	Mode        Mode
	MCUImage    string
	ModuleImage string
	Programmer  string
}

// Progress is the (current, total) step counter of a run.
type Progress struct {
	Current int
	Total   int
}

// Advance moves one step forward unless the counter is already full.
// Returns false if it did not move.
func (p *Progress) Advance() bool {
	if p.Current >= p.Total {
		return false
	}
	p.Current++
	return true
}

// Complete fills the counter.
func (p *Progress) Complete() bool {
	if p.Current >= p.Total {
		return false
	}
	p.Current = p.Total
	return true
}

// Percent is round(current/total*100).
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return int(math.Round(float64(p.Current) / float64(p.Total) * 100))
}
