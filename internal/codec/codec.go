// Package codec converts engineering-unit thresholds and timings into UPM6720
// register field encodings and back.
//
// Every field is described once in a static table. Encode never fails:
// out-of-range values saturate at the field's limits and unrecognised
// discrete values map to the field's reserved code.
package codec

import (
	"fmt"

	"github.com/micro-nova/upm6720d/internal/hardware"
	"github.com/micro-nova/upm6720d/internal/mathx"
)

// Topology selects between the two charge-pump operating tables.
type Topology int

const (
	SwitchedCap Topology = iota // 2:1 switched-capacitor
	Bypass                      // 1:1 bypass
)

func (t Topology) String() string {
	switch t {
	case SwitchedCap:
		return "switched-cap"
	case Bypass:
		return "bypass"
	}
	return fmt.Sprintf("Topology(%d)", int(t))
}

// ParseTopology parses the String form of a Topology.
func ParseTopology(s string) (Topology, error) {
	switch s {
	case "", "switched-cap", "switchedcap", "sc":
		return SwitchedCap, nil
	case "bypass":
		return Bypass, nil
	}
	return SwitchedCap, fmt.Errorf("codec: unknown topology %q", s)
}

// Field identifies one configurable register field.
type Field int

const (
	BatOVP        Field = iota // mV
	BatOCP                     // mA
	BusOVP                     // mV, topology dependent
	BusOCP                     // mA, topology dependent
	BusUCP                     // mA, single legal value
	BusRCP                     // mA, single legal value
	Vac1OVP                    // mV, breakpoints
	Vac2OVP                    // mV, breakpoints
	VoutOVP                    // mV, breakpoints
	TdieFlt                    // °C
	TdieAlm                    // °C
	TSBusFlt                   // % of REGN
	TSBatFlt                   // % of REGN
	BatOVPAlm                  // mV
	BatOCPAlm                  // mA
	BatUCPAlm                  // mA
	BusOVPAlm                  // mV, topology dependent
	BusOCPAlm                  // mA
	Watchdog                   // ms, breakpoints
	SSTimeout                  // ms, breakpoints
	SenseResistor              // mΩ, two codes

	numFields
)

type kind int

const (
	kindLinear kind = iota
	kindBreakpoint
	kindSingle
	kindAtLeast
)

// Linear is the affine part of a field: code = (clamp(v*scale) - base - offset) / lsb.
// All members are in the field's scaled units.
type Linear struct {
	Base, Offset, LSB, Min, Max int64
}

// FieldSpec describes how one field is laid out and encoded.
type FieldSpec struct {
	Name  string
	Unit  string
	Reg   hardware.Register
	Mask  byte
	Shift uint
	Scale int64

	kind   kind
	Linear Linear
	// Bypass replaces Linear when encoding for the bypass topology.
	Bypass *Linear
	// Breakpoints are ascending; the code is the breakpoint's index.
	Breakpoints []int
	// Legal is the one accepted value of a single-value field, or the
	// threshold of an at-least field.
	Legal        int
	LegalCode    byte
	ReservedCode byte
}

func linear(name, unit string, reg hardware.Register, mask byte, scale int64, l Linear) FieldSpec {
	if l.Min == 0 {
		l.Min = l.Base
	}
	return FieldSpec{Name: name, Unit: unit, Reg: reg, Mask: mask, Scale: scale, kind: kindLinear, Linear: l}
}

func breakpoints(name, unit string, reg hardware.Register, mask byte, shift uint, bps ...int) FieldSpec {
	return FieldSpec{Name: name, Unit: unit, Reg: reg, Mask: mask, Shift: shift, Scale: 1, kind: kindBreakpoint, Breakpoints: bps}
}

var table = func() [numFields]FieldSpec {
	var t [numFields]FieldSpec

	t[BatOVP] = linear("bat-ovp", "mV", hardware.RegBatOVP, 0x7F, 1000,
		Linear{Base: 3500000, LSB: 10000, Max: 4770000})
	t[BatOCP] = linear("bat-ocp", "mA", hardware.RegBatOCP, 0x7F, 1,
		Linear{Base: 0, LSB: 100, Min: 2000, Max: 10000})

	t[BusOVP] = linear("bus-ovp", "mV", hardware.RegBusOVP, 0x7F, 1,
		Linear{Base: 7000, LSB: 50, Max: 12750})
	t[BusOVP].Bypass = &Linear{Base: 3500, LSB: 25, Min: 3500, Max: 6500}

	t[BusOCP] = linear("bus-ocp", "mA", hardware.RegBusOCP, 0x1F, 1,
		Linear{Base: 1000, LSB: 250, Max: 6500})
	t[BusOCP].Bypass = &Linear{Base: 1000, LSB: 250, Min: 1000, Max: 8000}

	t[BusUCP] = FieldSpec{Name: "bus-ucp", Unit: "mA", Reg: hardware.RegBusUCPRCP,
		Mask: hardware.BusUCPMask, Shift: 6, Scale: 1, kind: kindSingle,
		Legal: 250, LegalCode: 0, ReservedCode: 1}
	t[BusRCP] = FieldSpec{Name: "bus-rcp", Unit: "mA", Reg: hardware.RegBusUCPRCP,
		Mask: hardware.BusRCPMask, Shift: 4, Scale: 1, kind: kindSingle,
		Legal: 300, LegalCode: 0, ReservedCode: 1}

	t[Vac1OVP] = breakpoints("vac1-ovp", "mV", hardware.RegVacCtrl, hardware.AC1OVPMask, 5,
		6500, 10500, 12000, 14000, 16000, 18000)
	t[Vac2OVP] = breakpoints("vac2-ovp", "mV", hardware.RegVacCtrl, hardware.AC2OVPMask, 2,
		6500, 10500, 12000, 14000, 16000, 18000)
	t[VoutOVP] = breakpoints("vout-ovp", "mV", hardware.RegVoutCtrl, hardware.VoutOVPMask, 5,
		4700, 4800, 4900, 5000)

	t[TdieFlt] = linear("tdie-flt", "°C", hardware.RegTempCtrl, hardware.TdieFltMask, 1,
		Linear{Base: 80, LSB: 20, Max: 140})
	t[TdieAlm] = linear("tdie-alm", "°C", hardware.RegTdieAlm, 0xFF, 10,
		Linear{Base: 250, LSB: 5, Max: 1500})
	t[TSBusFlt] = linear("tsbus-flt", "%", hardware.RegTSBusFlt, 0xFF, 100,
		Linear{Base: 0, LSB: 20, Max: 5100})
	t[TSBatFlt] = linear("tsbat-flt", "%", hardware.RegTSBatFlt, 0xFF, 100,
		Linear{Base: 0, LSB: 20, Max: 5100})

	t[BatOVPAlm] = linear("bat-ovp-alm", "mV", hardware.RegBatOVPAlm, 0x7F, 1,
		Linear{Base: 3500, LSB: 10, Max: 4770})
	t[BatOCPAlm] = linear("bat-ocp-alm", "mA", hardware.RegBatOCPAlm, 0x7F, 1,
		Linear{Base: 0, LSB: 100, Max: 10000})
	t[BatUCPAlm] = linear("bat-ucp-alm", "mA", hardware.RegBatUCPAlm, 0x7F, 1,
		Linear{Base: 0, LSB: 50, Max: 4500})
	t[BusOVPAlm] = linear("bus-ovp-alm", "mV", hardware.RegBusOVPAlm, 0x7F, 1,
		Linear{Base: 7000, LSB: 50, Max: 12700})
	t[BusOVPAlm].Bypass = &Linear{Base: 3500, LSB: 25, Min: 3500, Max: 6500}
	t[BusOCPAlm] = linear("bus-ocp-alm", "mA", hardware.RegBusOCPAlm, 0x1F, 1,
		Linear{Base: 1000, LSB: 250, Max: 6500})

	t[Watchdog] = breakpoints("watchdog", "ms", hardware.RegWatchdog, hardware.WatchdogMask, 0,
		500, 1000, 5000, 30000)
	t[SSTimeout] = breakpoints("ss-timeout", "ms", hardware.RegSSRsns, hardware.SSTimeoutMask, 4,
		7, 13, 25, 50, 100, 400, 1500, 10000)
	t[SenseResistor] = FieldSpec{Name: "sense-resistor", Unit: "mΩ", Reg: hardware.RegSSRsns,
		Mask: hardware.RsnsMask, Shift: 7, Scale: 1, kind: kindAtLeast,
		Legal: 5, LegalCode: 1, ReservedCode: 0}

	return t
}()

// Spec returns the static description of f.
func Spec(f Field) FieldSpec {
	if f < 0 || f >= numFields {
		panic(fmt.Sprintf("codec: unknown field %d", int(f)))
	}
	return table[f]
}

// Fields lists every field in table order.
func Fields() []Field {
	out := make([]Field, numFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return table[f].Name
}

// TopologyDependent reports whether f has a separate bypass table.
func (f Field) TopologyDependent() bool { return Spec(f).Bypass != nil }

func (s FieldSpec) linearFor(topo Topology) Linear {
	if topo == Bypass && s.Bypass != nil {
		return *s.Bypass
	}
	return s.Linear
}

// Code returns the unshifted field code for value.
func Code(f Field, value int, topo Topology) byte {
	s := Spec(f)
	switch s.kind {
	case kindBreakpoint:
		top := len(s.Breakpoints) - 1
		if value <= 0 {
			return byte(top)
		}
		for i, bp := range s.Breakpoints {
			if value <= bp {
				return byte(i)
			}
		}
		return byte(top)
	case kindSingle:
		if value == s.Legal {
			return s.LegalCode
		}
		return s.ReservedCode
	case kindAtLeast:
		if value >= s.Legal {
			return s.LegalCode
		}
		return s.ReservedCode
	}
	l := s.linearFor(topo)
	v := mathx.Clamp(int64(value)*s.Scale, l.Min, l.Max)
	return byte((v - l.Base - l.Offset) / l.LSB)
}

// Encode returns value encoded into the field's register position. Bits
// outside the field mask are zero.
func Encode(f Field, value int, topo Topology) byte {
	s := Spec(f)
	return (Code(f, value, topo) << s.Shift) & s.Mask
}

// Decode converts a register value back into the field's engineering unit.
// Breakpoint fields decode to the breakpoint, single-value fields decode to
// the legal value or 0 for the reserved code.
func Decode(f Field, reg byte, topo Topology) int {
	s := Spec(f)
	code := (reg & s.Mask) >> s.Shift
	switch s.kind {
	case kindBreakpoint:
		i := min(int(code), len(s.Breakpoints)-1)
		return s.Breakpoints[i]
	case kindSingle:
		if code == s.LegalCode {
			return s.Legal
		}
		return 0
	case kindAtLeast:
		if code == s.LegalCode {
			return s.Legal
		}
		return 2
	}
	l := s.linearFor(topo)
	return int((int64(code)*l.LSB + l.Base + l.Offset) / s.Scale)
}

// Range returns the encodable engineering-unit range of a linear field for
// topo. ok is false for discrete fields.
func Range(f Field, topo Topology) (lo, hi int, ok bool) {
	s := Spec(f)
	if s.kind != kindLinear {
		return 0, 0, false
	}
	l := s.linearFor(topo)
	return int(l.Min / s.Scale), int(l.Max / s.Scale), true
}
