// Package status keeps the charge pump's fault, alarm, presence and
// operational flags in a snapshot that is replaced wholesale on every
// refresh of the status register bank.
package status

// Snapshot is the decoded content of status registers 0x13..0x17. It is a
// comparable value; two refreshes over identical registers compare equal.
type Snapshot struct {
	// Faults
	BatOVPFault    bool `json:"bat_ovp_fault"`
	BatOCPFault    bool `json:"bat_ocp_fault"`
	BusOVPFault    bool `json:"bus_ovp_fault"`
	BusOCPFault    bool `json:"bus_ocp_fault"`
	BusUCPFault    bool `json:"bus_ucp_fault"`
	BusRCPFault    bool `json:"bus_rcp_fault"`
	VoutOVPFault   bool `json:"vout_ovp_fault"`
	Vac1OVPFault   bool `json:"vac1_ovp_fault"`
	Vac2OVPFault   bool `json:"vac2_ovp_fault"`
	CflyShortFault bool `json:"cfly_short_fault"`
	TSBusFault     bool `json:"tsbus_fault"`
	TSBatFault     bool `json:"tsbat_fault"`
	TdieFault      bool `json:"tdie_fault"`

	// Alarms
	BatOVPAlarm     bool `json:"bat_ovp_alarm"`
	BatOCPAlarm     bool `json:"bat_ocp_alarm"`
	BatUCPAlarm     bool `json:"bat_ucp_alarm"`
	BusOVPAlarm     bool `json:"bus_ovp_alarm"`
	BusOCPAlarm     bool `json:"bus_ocp_alarm"`
	TSBusTSBatAlarm bool `json:"tsbus_tsbat_alarm"`
	TdieAlarm       bool `json:"tdie_alarm"`

	// Presence
	VoutPresent bool `json:"vout_present"`
	Vac1Present bool `json:"vac1_present"`
	Vac2Present bool `json:"vac2_present"`
	VbusPresent bool `json:"vbus_present"`
	ACRB1Config bool `json:"acrb1_config"`
	ACRB2Config bool `json:"acrb2_config"`

	// Operational
	AdcDone    bool `json:"adc_done"`
	SSTimeout  bool `json:"ss_timeout"`
	Watchdog   bool `json:"watchdog"`
	RegnGood   bool `json:"regn_good"`
	ConvActive bool `json:"conv_active"`
	VbusErrHi  bool `json:"vbus_err_hi"`

	// PrevAlarm and PrevFault are reserved for edge detection by callers.
	// Refresh never writes them.
	PrevAlarm int `json:"prev_alarm"`
	PrevFault int `json:"prev_fault"`
}

// Alarm code bit positions.
const (
	BatOVPAlarmBit = 1 << iota
	BatOCPAlarmBit
	BusOVPAlarmBit
	BusOCPAlarmBit
	BatThermAlarmBit
	BusThermAlarmBit
	DieThermAlarmBit
	BatUCPAlarmBit
)

// Fault code bit positions.
const (
	BatOVPFaultBit = 1 << iota
	BatOCPFaultBit
	BusOVPFaultBit
	BusOCPFaultBit
	BatThermFaultBit
	BusThermFaultBit
	DieThermFaultBit
)

// VbusErrHiBit is the bus-error-high position in VbusErrorBits.
const VbusErrHiBit = 1 << 4

func bit(on bool, mask int) int {
	if on {
		return mask
	}
	return 0
}

// AlarmBits packs the alarm flags into a single code. The shared TS alarm
// sets both thermal bits.
func (s Snapshot) AlarmBits() int {
	return bit(s.BatOVPAlarm, BatOVPAlarmBit) |
		bit(s.BatOCPAlarm, BatOCPAlarmBit) |
		bit(s.BatUCPAlarm, BatUCPAlarmBit) |
		bit(s.BusOVPAlarm, BusOVPAlarmBit) |
		bit(s.BusOCPAlarm, BusOCPAlarmBit) |
		bit(s.TSBusTSBatAlarm, BatThermAlarmBit|BusThermAlarmBit) |
		bit(s.TdieAlarm, DieThermAlarmBit)
}

// FaultBits packs the fault flags into a single code.
func (s Snapshot) FaultBits() int {
	return bit(s.BatOVPFault, BatOVPFaultBit) |
		bit(s.BatOCPFault, BatOCPFaultBit) |
		bit(s.BusOVPFault, BusOVPFaultBit) |
		bit(s.BusOCPFault, BusOCPFaultBit) |
		bit(s.TSBatFault, BatThermFaultBit) |
		bit(s.TSBusFault, BusThermFaultBit) |
		bit(s.TdieFault, DieThermFaultBit)
}

// VbusErrorBits reports the bus-error-high flag.
func (s Snapshot) VbusErrorBits() int {
	return bit(s.VbusErrHi, VbusErrHiBit)
}

// AnyFault reports whether any fault flag is set.
func (s Snapshot) AnyFault() bool {
	return s.FaultBits() != 0 || s.BusUCPFault || s.BusRCPFault || s.VoutOVPFault ||
		s.Vac1OVPFault || s.Vac2OVPFault || s.CflyShortFault
}
