package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// orUnknown fills build metadata that the linker did not stamp.
func (v VersionInfo) orUnknown() VersionInfo {
	if v.Version == "" {
		v.Version = "dev"
	}
	if v.Commit == "" {
		v.Commit = "unknown"
	}
	if v.Date == "" {
		v.Date = "unknown"
	}
	return v
}

// NewVersionCmd creates the version command. --short prints only the
// version, for station inventory scripts.
func NewVersionCmd(app *App) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := app.versionInfo.orUnknown()
			w := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(w, v.Version)
				return nil
			}
			fmt.Fprintf(w, "flashrig %s (commit %s, built %s)\n", v.Version, v.Commit, v.Date)
			fmt.Fprintf(w, "%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version")
	return cmd
}
