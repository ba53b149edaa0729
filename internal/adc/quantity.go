package adc

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Voltage converts a decoded voltage channel value to a physic quantity.
func Voltage(v int32) physic.ElectricPotential {
	return physic.ElectricPotential(v) * physic.MilliVolt
}

// Current converts a decoded current channel value to a physic quantity.
func Current(v int32) physic.ElectricCurrent {
	return physic.ElectricCurrent(v) * physic.MilliAmpere
}

// Temperature converts a decoded die temperature (0.1°C) to a physic quantity.
func Temperature(v int32) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(v)*100*physic.MilliKelvin
}

// Format renders a decoded value for humans.
func Format(ch Channel, v int32) string {
	switch Spec(ch).Unit {
	case "mV":
		return Voltage(v).String()
	case "mA":
		return Current(v).String()
	case "0.1°C":
		return Temperature(v).String()
	case "0.01%":
		sign := ""
		if v < 0 {
			sign, v = "-", -v
		}
		return fmt.Sprintf("%s%d.%02d%%", sign, v/100, v%100)
	}
	return fmt.Sprintf("%d", v)
}
