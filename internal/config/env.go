package config

import (
	"fmt"
	"os"
	"strconv"
)

// envOverrides maps environment variables to config field setters.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string) error
}{
	{
		envVar: "FLASHRIG_PROGRAMMER",
		apply: func(c *Config, v string) error {
			c.Programmer.Path = v
			return nil
		},
	},
	{
		envVar: "FLASHRIG_MODULE_TOOL",
		apply: func(c *Config, v string) error {
			c.Module.Tool = v
			return nil
		},
	},
	{
		envVar: "FLASHRIG_MODULE_PORT",
		apply: func(c *Config, v string) error {
			c.Module.Port = v
			return nil
		},
	},
	{
		envVar: "FLASHRIG_SERIAL_PORT",
		apply: func(c *Config, v string) error {
			c.Serial.Port = v
			return nil
		},
	},
	{
		envVar: "FLASHRIG_MODE",
		apply: func(c *Config, v string) error {
			c.Flash.Mode = v
			return nil
		},
	},
	{
		envVar: "FLASHRIG_VERIFY",
		apply: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			c.Flash.Verify = b
			return nil
		},
	},
	{
		envVar: "FLASHRIG_STATE_FILE",
		apply: func(c *Config, v string) error {
			c.StateFile = v
			return nil
		},
	},
	{
		envVar: "FLASHRIG_HISTORY_DB",
		apply: func(c *Config, v string) error {
			c.HistoryDB = v
			return nil
		},
	},
	{
		envVar: "FLASHRIG_METRICS_FILE",
		apply: func(c *Config, v string) error {
			c.MetricsFile = v
			return nil
		},
	},
	{
		envVar: "FLASHRIG_LOG_LEVEL",
		apply: func(c *Config, v string) error {
			c.LogLevel = v
			return nil
		},
	},
}

// applyEnvOverrides modifies config in place with environment variable values.
func applyEnvOverrides(cfg *Config) error {
	for _, override := range envOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			if err := override.apply(cfg, val); err != nil {
				return fmt.Errorf("%s=%q: %w", override.envVar, val, err)
			}
		}
	}
	return nil
}
