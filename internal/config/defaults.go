package config

import "github.com/RevCBH/flashrig/internal/serialport"

const (
	DefaultProgrammerPath  = "ipecmd.exe"
	DefaultProgrammerModel = "AICE"
	DefaultDevice          = "ATSAME70N19B"
	DefaultModuleTool      = "Telit_Wifi_Image_Tool.exe"
	DefaultModuleModel     = "WE310"
	DefaultModulePort      = "COM7"
	DefaultSerialPort      = "COM6"
	DefaultMode            = "both"
	DefaultSettleDelay     = "5s"
	DefaultModuleDelay     = "1s"
	DefaultWorkDirPrefix   = "WE310_"
	DefaultStateFile       = ".flashrig-state.yaml"
	DefaultHistoryDB       = ".flashrig/history.db"
	DefaultLogLevel        = "info"
)

// DefaultConfig returns a Config with all default values applied.
func DefaultConfig() *Config {
	return &Config{
		Programmer: ProgrammerConfig{
			Path:   DefaultProgrammerPath,
			Model:  DefaultProgrammerModel,
			Device: DefaultDevice,
		},
		Module: ModuleConfig{
			Tool:  DefaultModuleTool,
			Model: DefaultModuleModel,
			Port:  DefaultModulePort,
		},
		Serial: SerialConfig{
			Port:          DefaultSerialPort,
			Baud:          serialport.DefaultBaud,
			Command:       serialport.Command,
			SuccessMarker: serialport.SuccessMarker,
		},
		Flash: FlashConfig{
			Mode:           DefaultMode,
			TrackProgress:  true,
			SettleDelay:    DefaultSettleDelay,
			ModuleDelay:    DefaultModuleDelay,
			WorkDirPrefix:  DefaultWorkDirPrefix,
			ShowToolOutput: true,
		},
		StateFile: DefaultStateFile,
		HistoryDB: DefaultHistoryDB,
		LogLevel:  DefaultLogLevel,
	}
}
