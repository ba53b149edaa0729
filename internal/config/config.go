// Package config loads the charge pump's device configuration.
package config

import (
	"errors"
	"fmt"

	"github.com/micro-nova/upm6720d/internal/codec"
	"github.com/micro-nova/upm6720d/internal/role"
)

// ErrMissingField is wrapped by Validate for each mandatory field left unset.
var ErrMissingField = errors.New("config: missing mandatory field")

// DeviceConfig is the complete device configuration. Optional numeric
// fields are pointers; nil leaves the hardware default in place.
type DeviceConfig struct {
	// Mode is the role the board is wired for: standalone, master or slave.
	Mode string `yaml:"mode"`
	// Topology selects the threshold tables: switched-cap or bypass.
	Topology string `yaml:"topology"`

	SenseResistorMOhm *int `yaml:"sense_resistor_mohm"`
	WatchdogDisable   bool `yaml:"watchdog_disable"`
	WatchdogMs        *int `yaml:"watchdog_ms"`
	SSTimeoutMs       *int `yaml:"ss_timeout_ms"`

	Protection Protection `yaml:"protection"`
	Alarm      Alarm      `yaml:"alarm"`
	Mask       Mask       `yaml:"mask"`
	PullDown   PullDown   `yaml:"pulldown"`
	ADC        ADC        `yaml:"adc"`
	Switching  Switching  `yaml:"switching"`
}

// Protection holds the fault protections and their thresholds.
type Protection struct {
	BatOVPDisable    bool `yaml:"bat_ovp_disable"`
	BatOCPDisable    bool `yaml:"bat_ocp_disable"`
	BusUCPDisable    bool `yaml:"bus_ucp_disable"`
	BusRCPDisable    bool `yaml:"bus_rcp_disable"`
	VoutOVPDisable   bool `yaml:"vout_ovp_disable"`
	TdieFltDisable   bool `yaml:"tdie_flt_disable"`
	TSBusFltDisable  bool `yaml:"tsbus_flt_disable"`
	TSBatFltDisable  bool `yaml:"tsbat_flt_disable"`
	VbusErrHiDisable bool `yaml:"vbus_errhi_disable"`

	BatOVPmV    *int `yaml:"bat_ovp_mv"`
	BatOCPmA    *int `yaml:"bat_ocp_ma"`
	BusOVPmV    *int `yaml:"bus_ovp_mv"`
	BusOCPmA    *int `yaml:"bus_ocp_ma"`
	BusUCPmA    *int `yaml:"bus_ucp_ma"`
	BusRCPmA    *int `yaml:"bus_rcp_ma"`
	Vac1OVPmV   *int `yaml:"vac1_ovp_mv"`
	Vac2OVPmV   *int `yaml:"vac2_ovp_mv"`
	VoutOVPmV   *int `yaml:"vout_ovp_mv"`
	TdieFltC    *int `yaml:"tdie_flt_c"`
	TSBusFltPct *int `yaml:"tsbus_flt_pct"`
	TSBatFltPct *int `yaml:"tsbat_flt_pct"`
}

// Alarm holds the early-warning alarms and their thresholds.
type Alarm struct {
	BatOVPDisable bool `yaml:"bat_ovp_disable"`
	BatOCPDisable bool `yaml:"bat_ocp_disable"`
	BatUCPDisable bool `yaml:"bat_ucp_disable"`
	BusOVPDisable bool `yaml:"bus_ovp_disable"`
	BusOCPDisable bool `yaml:"bus_ocp_disable"`
	TdieDisable   bool `yaml:"tdie_disable"`

	BatOVPmV *int `yaml:"bat_ovp_mv"`
	BatOCPmA *int `yaml:"bat_ocp_ma"`
	BatUCPmA *int `yaml:"bat_ucp_ma"`
	BusOVPmV *int `yaml:"bus_ovp_mv"`
	BusOCPmA *int `yaml:"bus_ocp_ma"`
	TdieC    *int `yaml:"tdie_c"`
}

// Mask selects status events that do not assert the interrupt line.
type Mask struct {
	BatOVP        bool `yaml:"bat_ovp"`
	BatOVPAlm     bool `yaml:"bat_ovp_alm"`
	VoutOVP       bool `yaml:"vout_ovp"`
	BatOCP        bool `yaml:"bat_ocp"`
	BatOCPAlm     bool `yaml:"bat_ocp_alm"`
	BatUCPAlm     bool `yaml:"bat_ucp_alm"`
	BusOVP        bool `yaml:"bus_ovp"`
	BusOVPAlm     bool `yaml:"bus_ovp_alm"`
	BusOCP        bool `yaml:"bus_ocp"`
	BusOCPAlm     bool `yaml:"bus_ocp_alm"`
	BusUCP        bool `yaml:"bus_ucp"`
	BusRCP        bool `yaml:"bus_rcp"`
	CflyShort     bool `yaml:"cfly_short"`
	Vac1OVP       bool `yaml:"vac1_ovp"`
	Vac2OVP       bool `yaml:"vac2_ovp"`
	VoutPresent   bool `yaml:"vout_present"`
	Vac1Present   bool `yaml:"vac1_present"`
	Vac2Present   bool `yaml:"vac2_present"`
	VbusPresent   bool `yaml:"vbus_present"`
	ACRB1Config   bool `yaml:"acrb1_config"`
	ACRB2Config   bool `yaml:"acrb2_config"`
	AdcDone       bool `yaml:"adc_done"`
	SSTimeout     bool `yaml:"ss_timeout"`
	TSBusTSBatAlm bool `yaml:"tsbus_tsbat_alm"`
	TSBusFlt      bool `yaml:"tsbus_flt"`
	TSBatFlt      bool `yaml:"tsbat_flt"`
	TdieFlt       bool `yaml:"tdie_flt"`
	TdieAlm       bool `yaml:"tdie_alm"`
	Watchdog      bool `yaml:"watchdog"`
	RegnGood      bool `yaml:"regn_good"`
	ConvActive    bool `yaml:"conv_active"`
	VbusErrHi     bool `yaml:"vbus_errhi"`
}

// PullDown enables the input pull-down resistors.
type PullDown struct {
	Vbus bool `yaml:"vbus"`
	Vac1 bool `yaml:"vac1"`
	Vac2 bool `yaml:"vac2"`
}

// ADC configures the converter.
type ADC struct {
	Enable  bool `yaml:"enable"`
	OneShot bool `yaml:"one_shot"`
	Average bool `yaml:"average"`
	// AverageInit restarts the running average from a new conversion.
	AverageInit bool `yaml:"average_init"`
	// SampleBits is the resolution code: 0 = 15 bit ... 3 = 12 bit.
	SampleBits *int `yaml:"sample_bits"`

	IbusDisable  bool `yaml:"ibus_disable"`
	VbusDisable  bool `yaml:"vbus_disable"`
	Vac1Disable  bool `yaml:"vac1_disable"`
	Vac2Disable  bool `yaml:"vac2_disable"`
	VoutDisable  bool `yaml:"vout_disable"`
	VbatDisable  bool `yaml:"vbat_disable"`
	IbatDisable  bool `yaml:"ibat_disable"`
	TSBusDisable bool `yaml:"tsbus_disable"`
	TSBatDisable bool `yaml:"tsbat_disable"`
	TdieDisable  bool `yaml:"tdie_disable"`
}

// Switching carries the converter timing codes from board descriptions.
// They are accepted so those descriptions load unchanged but are never
// written to the device.
type Switching struct {
	FswSet           *int `yaml:"fsw_set"`
	FreqShift        *int `yaml:"freq_shift"`
	IbusUCPFallDgSel *int `yaml:"ibus_ucp_fall_dg_sel"`
}

// Int returns a pointer to v, for building configs in code.
func Int(v int) *int { return &v }

// Validate checks that the mandatory fields are present and that the mode
// and topology parse.
func (c *DeviceConfig) Validate() error {
	var errs []error
	if c.SenseResistorMOhm == nil {
		errs = append(errs, fmt.Errorf("%w: sense_resistor_mohm", ErrMissingField))
	}
	if c.Protection.BatOVPmV == nil {
		errs = append(errs, fmt.Errorf("%w: protection.bat_ovp_mv", ErrMissingField))
	}
	if c.Protection.BatOCPmA == nil {
		errs = append(errs, fmt.Errorf("%w: protection.bat_ocp_ma", ErrMissingField))
	}
	if _, err := role.ParseMode(c.Mode); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if _, err := codec.ParseTopology(c.Topology); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	return errors.Join(errs...)
}

// ExpectedMode returns the configured role.
func (c *DeviceConfig) ExpectedMode() role.Mode {
	m, _ := role.ParseMode(c.Mode)
	return m
}

// ChargeTopology returns the configured topology.
func (c *DeviceConfig) ChargeTopology() codec.Topology {
	t, _ := codec.ParseTopology(c.Topology)
	return t
}

// Default returns the reference-design configuration for a standalone
// switched-cap charger.
func Default() DeviceConfig {
	return DeviceConfig{
		Mode:              role.Standalone.String(),
		Topology:          codec.SwitchedCap.String(),
		SenseResistorMOhm: Int(2),
		WatchdogDisable:   true,
		WatchdogMs:        Int(30000),
		SSTimeoutMs:       Int(10000),
		Protection: Protection{
			BatOVPmV:    Int(4550),
			BatOCPmA:    Int(8000),
			BusOVPmV:    Int(12000),
			BusOCPmA:    Int(4250),
			BusUCPmA:    Int(250),
			BusRCPmA:    Int(300),
			Vac1OVPmV:   Int(14000),
			Vac2OVPmV:   Int(14000),
			VoutOVPmV:   Int(5000),
			TdieFltC:    Int(140),
			TSBusFltPct: Int(15),
			TSBatFltPct: Int(15),
		},
		Alarm: Alarm{
			BatOVPmV: Int(4500),
			BatOCPmA: Int(7500),
			BatUCPmA: Int(2000),
			BusOVPmV: Int(11800),
			BusOCPmA: Int(4000),
			TdieC:    Int(125),
		},
		Mask: Mask{
			AdcDone: true,
		},
		ADC: ADC{
			Enable:     true,
			SampleBits: Int(0),
		},
	}
}
