package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/RevCBH/flashrig/internal/flash"
)

// FileName is the station config file looked up in the working directory.
const FileName = ".flashrig.yaml"

// Config holds all configuration for a flashing station.
// It is immutable after creation via LoadConfig().
type Config struct {
	// Programmer configures the MCU programmer invocation
	Programmer ProgrammerConfig `yaml:"programmer"`

	// Module configures the module flasher invocation
	Module ModuleConfig `yaml:"module"`

	// Serial configures the MCU console used for verify and notify
	Serial SerialConfig `yaml:"serial"`

	// Flash contains pipeline behaviour settings
	Flash FlashConfig `yaml:"flash"`

	// StateFile is where image paths and the run counter are persisted
	StateFile string `yaml:"state_file"`

	// HistoryDB is the SQLite run history database ("" disables history)
	HistoryDB string `yaml:"history_db"`

	// MetricsFile is a node-exporter textfile written after each run ("" disables)
	MetricsFile string `yaml:"metrics_file"`

	// LogLevel controls log verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
}

// ProgrammerConfig controls the MCU programmer.
type ProgrammerConfig struct {
	// Path is the programmer executable; the persisted state value wins when set
	Path string `yaml:"path"`

	// Model is the programmer tool id (-TP<model>)
	Model string `yaml:"model"`

	// Device is the target part (-P<device>)
	Device string `yaml:"device"`
}

// ModuleConfig controls the module flasher.
type ModuleConfig struct {
	// Tool is the flasher executable name or path
	Tool string `yaml:"tool"`

	// Model is the module family passed with -m
	Model string `yaml:"model"`

	// Port is the serial port the module is attached to
	Port string `yaml:"port"`

	// Synchronous runs the flasher to completion and reports its output at exit
	Synchronous bool `yaml:"synchronous"`
}

// SerialConfig controls the MCU console handshake.
type SerialConfig struct {
	Port          string `yaml:"port"`
	Baud          int    `yaml:"baud"`
	Command       string `yaml:"command"`
	SuccessMarker string `yaml:"success_marker"`
}

// FlashConfig controls the pipeline.
type FlashConfig struct {
	// Mode is the default job mode: both, mcu, or module
	Mode string `yaml:"mode"`

	// Verify runs the firmware-version handshake after MCU flashing
	Verify bool `yaml:"verify"`

	// TrackProgress emits progress events and maintains the run counter
	TrackProgress bool `yaml:"track_progress"`

	// SettleDelay is the wait after MCU flashing before notifying the MCU
	SettleDelay string `yaml:"settle_delay"`

	// ModuleDelay is the wait after notifying before module flashing
	ModuleDelay string `yaml:"module_delay"`

	// WorkDir is cleaned of stale module-tool folders before MCU flashing
	WorkDir string `yaml:"workdir"`

	// WorkDirPrefix selects which folders are stale
	WorkDirPrefix string `yaml:"workdir_prefix"`

	// ShowToolOutput forwards tool output to the event stream
	ShowToolOutput bool `yaml:"show_tool_output"`

	// EchoCommand prints the full programmer command line before launch
	EchoCommand bool `yaml:"echo_command"`
}

// SettleDelayDuration parses the settle delay as a Duration.
func (c *Config) SettleDelayDuration() (time.Duration, error) {
	return time.ParseDuration(c.Flash.SettleDelay)
}

// ModuleDelayDuration parses the module delay as a Duration.
func (c *Config) ModuleDelayDuration() (time.Duration, error) {
	return time.ParseDuration(c.Flash.ModuleDelay)
}

// OrchestratorConfig converts the station config into orchestrator configuration.
// Delays are assumed valid (LoadConfig validates them).
func (c *Config) OrchestratorConfig() flash.Config {
	settle, _ := c.SettleDelayDuration()
	module, _ := c.ModuleDelayDuration()
	return flash.Config{
		Capabilities: flash.Capabilities{
			WithVerification:     c.Flash.Verify,
			WithProgressTracking: c.Flash.TrackProgress,
		},
		Programmer: flash.ProgrammerConfig{
			Model:  c.Programmer.Model,
			Device: c.Programmer.Device,
		},
		Module: flash.ModuleConfig{
			Tool:  c.Module.Tool,
			Model: c.Module.Model,
			Port:  c.Module.Port,
		},
		SerialPort:     c.Serial.Port,
		Baud:           c.Serial.Baud,
		Command:        c.Serial.Command,
		SuccessMarker:  c.Serial.SuccessMarker,
		SettleDelay:    settle,
		ModuleDelay:    module,
		WorkDir:        c.Flash.WorkDir,
		WorkDirPrefix:  c.Flash.WorkDirPrefix,
		ShowToolOutput: c.Flash.ShowToolOutput,
		EchoCommand:    c.Flash.EchoCommand,
	}
}

// LoadConfig loads configuration from dir.
// It applies defaults, then file values, then .env and environment overrides,
// then resolves relative paths and validates.
func LoadConfig(dir string) (*Config, error) {
	cfg := DefaultConfig()

	// Try to load config file (optional)
	configPath := filepath.Join(dir, FileName)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// .env never overrides variables already set in the environment
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.StateFile = resolve(dir, cfg.StateFile)
	cfg.HistoryDB = resolve(dir, cfg.HistoryDB)
	cfg.MetricsFile = resolve(dir, cfg.MetricsFile)
	if cfg.Flash.WorkDir == "" {
		cfg.Flash.WorkDir = dir
	}
	cfg.Flash.WorkDir = resolve(dir, cfg.Flash.WorkDir)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
