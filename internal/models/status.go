// Package models defines the JSON view types served by the HTTP API.
package models

import "github.com/micro-nova/upm6720d/internal/status"

// Status is the complete device state returned by GET /api/status and
// pushed to SSE subscribers.
type Status struct {
	Name     string          `json:"name"`
	Part     int             `json:"part"`
	Mode     string          `json:"mode"`
	Topology string          `json:"topology"`
	Present  bool            `json:"present"`
	Flags    status.Snapshot `json:"flags"`

	AlarmBits     int  `json:"alarm_bits"`
	FaultBits     int  `json:"fault_bits"`
	VbusErrorBits int  `json:"vbus_error_bits"`
	Fault         bool `json:"fault"`
}

// NewStatus fills the derived codes from snap.
func NewStatus(name string, part int, mode, topology string, present bool, snap status.Snapshot) Status {
	return Status{
		Name:          name,
		Part:          part,
		Mode:          mode,
		Topology:      topology,
		Present:       present,
		Flags:         snap,
		AlarmBits:     snap.AlarmBits(),
		FaultBits:     snap.FaultBits(),
		VbusErrorBits: snap.VbusErrorBits(),
		Fault:         snap.AnyFault(),
	}
}

// ADCReading is one decoded ADC channel.
type ADCReading struct {
	Channel string `json:"channel"`
	Unit    string `json:"unit"`
	Value   int32  `json:"value"`
	Display string `json:"display"`
}

// Register is one entry of a register dump, formatted as hex.
type Register struct {
	Addr  string `json:"addr"`
	Value string `json:"value"`
}

// Charge is the charge-enable state.
type Charge struct {
	Enabled bool `json:"enabled"`
}

// Mode is the resolved device role.
type Mode struct {
	Mode   string `json:"mode"`
	Supply string `json:"supply"`
}
