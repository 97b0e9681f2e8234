package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/RevCBH/flashrig/internal/flash"
)

// ValidationError contains details about what failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// validateConfig checks all config values for validity.
// Returns nil if valid, or joined errors for all validation failures.
func validateConfig(cfg *Config) error {
	var errs []error

	required := []struct {
		field string
		value string
	}{
		{"programmer.model", cfg.Programmer.Model},
		{"programmer.device", cfg.Programmer.Device},
		{"module.tool", cfg.Module.Tool},
		{"module.model", cfg.Module.Model},
		{"module.port", cfg.Module.Port},
		{"serial.port", cfg.Serial.Port},
		{"serial.command", cfg.Serial.Command},
		{"serial.success_marker", cfg.Serial.SuccessMarker},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, &ValidationError{
				Field:   r.field,
				Value:   r.value,
				Message: "must not be empty",
			})
		}
	}

	// The MCU console and the module port are driven in separate stages but
	// must be distinct devices
	if cfg.Serial.Port != "" && cfg.Serial.Port == cfg.Module.Port {
		errs = append(errs, &ValidationError{
			Field:   "serial.port",
			Value:   cfg.Serial.Port,
			Message: "must differ from module.port",
		})
	}

	if cfg.Serial.Baud <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "serial.baud",
			Value:   cfg.Serial.Baud,
			Message: "must be positive",
		})
	}

	if _, err := flash.ParseMode(cfg.Flash.Mode); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "flash.mode",
			Value:   cfg.Flash.Mode,
			Message: "must be one of: both, mcu, module",
		})
	}

	durations := []struct {
		field string
		value string
	}{
		{"flash.settle_delay", cfg.Flash.SettleDelay},
		{"flash.module_delay", cfg.Flash.ModuleDelay},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			errs = append(errs, &ValidationError{
				Field:   d.field,
				Value:   d.value,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
			continue
		}
		if v < 0 {
			errs = append(errs, &ValidationError{
				Field:   d.field,
				Value:   d.value,
				Message: "must not be negative",
			})
		}
	}

	if cfg.StateFile == "" {
		errs = append(errs, &ValidationError{
			Field:   "state_file",
			Value:   cfg.StateFile,
			Message: "must not be empty",
		})
	}

	// LogLevel must be one of: debug, info, warn, error (case-sensitive)
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, &ValidationError{
			Field:   "log_level",
			Value:   cfg.LogLevel,
			Message: "must be one of: debug, info, warn, error",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
