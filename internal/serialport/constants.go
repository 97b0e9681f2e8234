package serialport

import "time"

// Handshake frame and marker used by the MCU firmware.
const (
	// DefaultBaud is the MCU console rate.
	DefaultBaud = 115200

	// Command asks the MCU to report its firmware version and prepare for
	// module flashing.
	Command = "iRc0001DF\r\n"

	// SuccessMarker appears in the MCU's reply when the expected firmware runs.
	SuccessMarker = "SW-VER: V2"

	// DefaultPollInterval bounds each read while waiting for a reply line.
	DefaultPollInterval = 100 * time.Millisecond
)
