package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/RevCBH/flashrig/internal/config"
)

// VersionInfo holds build-time version metadata
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// App represents the CLI application with all wired dependencies
type App struct {
	// Root command
	rootCmd *cobra.Command

	// Global flags
	verbose    bool
	configDir  string
	jsonOutput bool

	// flashDeps overrides the real programmer, module tool and serial port
	flashDeps *FlashDeps

	versionInfo VersionInfo
}

// New creates a new CLI application
func New() *App {
	app := &App{}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI application
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// SetVersion sets the version string for the version command
func (a *App) SetVersion(version, commit, date string) {
	a.versionInfo = VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// setupRootCmd configures the root Cobra command
func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "flashrig",
		Short: "Production flashing station for MCU and WiFi module firmware",
		Long: `flashrig programs the MCU with a vendor programmer, hands off to the
WiFi module over the MCU's serial console, and flashes the module image,
tracking progress and failures for each stage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.setupLogging(cmd)
			return nil
		},
	}

	a.rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"Verbose output")
	a.rootCmd.PersistentFlags().StringVar(&a.configDir, "config-dir", "",
		"Directory containing "+config.FileName+" (default: current directory)")
	a.rootCmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false,
		"Emit events as JSON lines")

	a.rootCmd.AddCommand(
		NewFlashCmd(a),
		NewOTACmd(a),
		NewHistoryCmd(a),
		NewCounterCmd(a),
		NewVersionCmd(a),
	)
}

func (a *App) setupLogging(cmd *cobra.Command) {
	logrus.SetOutput(cmd.ErrOrStderr())
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if a.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// loadConfig loads the station config from --config-dir (or the working
// directory) and applies its log level unless --verbose was given.
func (a *App) loadConfig() (*config.Config, error) {
	dir := a.configDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !a.verbose {
		if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			logrus.SetLevel(level)
		}
	}
	logrus.WithField("dir", dir).Debug("config loaded")
	return cfg, nil
}
