package config

import (
	"log/slog"
	"strings"
)

// normalize fixes values that are recoverable instead of fatal, logging each
// correction.
func normalize(c *DeviceConfig) {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.Topology = strings.ToLower(strings.TrimSpace(c.Topology))

	if c.ADC.SampleBits != nil && (*c.ADC.SampleBits < 0 || *c.ADC.SampleBits > 3) {
		slog.Warn("config: invalid adc sample_bits, using 15-bit", "sample_bits", *c.ADC.SampleBits)
		c.ADC.SampleBits = Int(0)
	}

	if c.SenseResistorMOhm != nil && *c.SenseResistorMOhm != 2 && *c.SenseResistorMOhm != 5 {
		slog.Warn("config: sense resistor is neither 2 nor 5 mΩ, nearest supported value is used",
			"sense_resistor_mohm", *c.SenseResistorMOhm)
	}

	// A disabled protection with a threshold is legal but almost always a mistake.
	p := c.Protection
	if p.BatOVPDisable && p.BatOVPmV != nil {
		slog.Warn("config: battery OVP disabled, threshold still written", "bat_ovp_mv", *p.BatOVPmV)
	}
	if p.BatOCPDisable && p.BatOCPmA != nil {
		slog.Warn("config: battery OCP disabled, threshold still written", "bat_ocp_ma", *p.BatOCPmA)
	}
}
