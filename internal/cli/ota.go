package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/RevCBH/flashrig/internal/ota"
)

// NewOTACmd creates the ota command group
func NewOTACmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ota",
		Short: "Build and inspect OTA images for the WiFi module",
	}

	cmd.AddCommand(
		newOTAGenerateCmd(),
		newOTAInspectCmd(),
	)

	return cmd
}

func newOTAGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <firmware.bin> <version-hex> <output>",
		Short: "Prepend the OTA header to a raw firmware binary",
		Example: `  flashrig ota generate app.bin 01020304 app_ota.bin
  flashrig ota generate app.bin 0x0102 app_ota.bin`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := ota.GenerateFile(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[2])
			printHeader(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

func newOTAInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <image>",
		Short: "Decode and verify an OTA image header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := ota.InspectFile(args[0])
			if err != nil {
				return err
			}
			printHeader(cmd.OutOrStdout(), &img.Header)
			fmt.Fprintln(cmd.OutOrStdout(), "  Checksum OK")
			return nil
		},
	}
}

func printHeader(w io.Writer, h *ota.Header) {
	fmt.Fprintf(w, "  Version:        %s\n", h.VersionString())
	fmt.Fprintf(w, "  Header number:  0x%08X\n", h.HeaderNumber)
	fmt.Fprintf(w, "  Signature:      %s\n", string(h.Signature[:]))
	fmt.Fprintf(w, "  Header length:  0x%08X\n", h.HeaderLength)
	fmt.Fprintf(w, "  Checksum:       0x%08X\n", h.Checksum)
	fmt.Fprintf(w, "  Payload size:   %d bytes\n", h.PayloadSize)
	fmt.Fprintf(w, "  Offset address: 0x%08X\n", h.OffsetAddress)
}
