// Package flash runs a flashing job through the station pipeline:
//
//	Idle -> MCUFlashing -> [MCUVerifying] -> SendingHandshake -> ModuleFlashing -> Done
//
// Any stage may end the run in Failed. ModuleOnly jobs skip the MCU stages and
// McuOnly jobs finish after MCU flashing (or verification). The orchestrator
// reports everything it does on an events.Bus and never writes persisted state
// itself; the run counter leaves it as a counter.updated event.
package flash
