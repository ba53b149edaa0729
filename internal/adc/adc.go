// Package adc decodes the UPM6720's 16-bit ADC result registers into
// engineering units and drives the ADC control bits.
package adc

import (
	"context"
	"fmt"
	"strings"

	"github.com/micro-nova/upm6720d/internal/hardware"
	"github.com/micro-nova/upm6720d/internal/mathx"
)

// Channel identifies one ADC channel.
type Channel int

const (
	Ibus Channel = iota
	Vbus
	Vac1
	Vac2
	Vout
	Vbat
	Ibat
	TSbus
	TSbat
	Tdie

	NumChannels
)

// ChannelSpec describes how a channel's raw sample maps to its unit:
// value = raw*Scale/Divisor + Base + Offset.
type ChannelSpec struct {
	Name    string
	Unit    string
	Reg     hardware.Register // high byte; low byte follows
	Scale   int64
	Divisor int64
	Base    int64
	Offset  int64

	// EnableReg/DisMask locate the channel's disable bit.
	EnableReg hardware.Register
	DisMask   byte
}

func spec(name, unit string, ch Channel, scale, div int64, enReg hardware.Register, dis byte) ChannelSpec {
	return ChannelSpec{
		Name:      name,
		Unit:      unit,
		Reg:       hardware.RegAdcBase + hardware.Register(2*ch),
		Scale:     scale,
		Divisor:   div,
		EnableReg: enReg,
		DisMask:   dis,
	}
}

// IBUS is decoded with the switched-capacitor scale in both topologies.
var channels = [NumChannels]ChannelSpec{
	Ibus:  spec("ibus", "mA", Ibus, 1000, 1000, hardware.RegAdcCtrl0, hardware.IbusAdcDisMask),
	Vbus:  spec("vbus", "mV", Vbus, 1000, 1000, hardware.RegAdcCtrl0, hardware.VbusAdcDisMask),
	Vac1:  spec("vac1", "mV", Vac1, 1000, 1000, hardware.RegAdcCtrl1, hardware.Vac1AdcDisMask),
	Vac2:  spec("vac2", "mV", Vac2, 1000, 1000, hardware.RegAdcCtrl1, hardware.Vac2AdcDisMask),
	Vout:  spec("vout", "mV", Vout, 1000, 1000, hardware.RegAdcCtrl1, hardware.VoutAdcDisMask),
	Vbat:  spec("vbat", "mV", Vbat, 1000, 1000, hardware.RegAdcCtrl1, hardware.VbatAdcDisMask),
	Ibat:  spec("ibat", "mA", Ibat, 1000, 1000, hardware.RegAdcCtrl1, hardware.IbatAdcDisMask),
	TSbus: spec("tsbus", "0.01%", TSbus, 9766, 1000, hardware.RegAdcCtrl1, hardware.TSBusAdcDisMask),
	TSbat: spec("tsbat", "0.01%", TSbat, 9766, 1000, hardware.RegAdcCtrl1, hardware.TSBatAdcDisMask),
	Tdie:  spec("tdie", "0.1°C", Tdie, 5, 1, hardware.RegAdcCtrl1, hardware.TdieAdcDisMask),
}

// Spec returns the static description of ch.
func Spec(ch Channel) ChannelSpec {
	if ch < 0 || ch >= NumChannels {
		panic(fmt.Sprintf("adc: unknown channel %d", int(ch)))
	}
	return channels[ch]
}

// Channels lists every channel in register order.
func Channels() []Channel {
	out := make([]Channel, NumChannels)
	for i := range out {
		out[i] = Channel(i)
	}
	return out
}

func (c Channel) String() string {
	if c < 0 || c >= NumChannels {
		return fmt.Sprintf("Channel(%d)", int(c))
	}
	return channels[c].Name
}

// ParseChannel looks a channel up by its String form.
func ParseChannel(s string) (Channel, error) {
	s = strings.ToLower(s)
	for i, c := range channels {
		if c.Name == s {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("adc: unknown channel %q", s)
}

// Decode converts a raw register pair into the channel's unit. The pair is
// a big-endian two's complement sample; division truncates toward zero.
func Decode(ch Channel, hi, lo byte) int32 {
	s := Spec(ch)
	raw := int64(int16(uint16(hi)<<8 | uint16(lo)))
	return int32(raw*s.Scale/s.Divisor + s.Base + s.Offset)
}

// Raw returns the register pair whose decode is nearest to value.
func Raw(ch Channel, value int32) (hi, lo byte) {
	s := Spec(ch)
	n := mathx.RoundDiv((int64(value)-s.Base-s.Offset)*s.Divisor, s.Scale)
	n = mathx.Clamp(n, -32768, 32767)
	u := uint16(int16(n))
	return byte(u >> 8), byte(u)
}

// Read reads and decodes one channel, high byte first.
func Read(ctx context.Context, p hardware.Port, ch Channel) (int32, error) {
	s := Spec(ch)
	hi, lo, err := hardware.ReadPair(ctx, p, s.Reg)
	if err != nil {
		return 0, fmt.Errorf("adc: read %s: %w", ch, err)
	}
	return Decode(ch, hi, lo), nil
}

// ReadAll reads every channel. Channels that fail are omitted and the first
// error is returned with the rest.
func ReadAll(ctx context.Context, p hardware.Port) (map[Channel]int32, error) {
	out := make(map[Channel]int32, NumChannels)
	var firstErr error
	for _, ch := range Channels() {
		v, err := Read(ctx, p, ch)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[ch] = v
	}
	return out, firstErr
}

// SetChannelEnabled toggles the channel's disable bit.
func SetChannelEnabled(ctx context.Context, p hardware.Port, ch Channel, enable bool) error {
	s := Spec(ch)
	return hardware.SetBit(ctx, p, s.EnableReg, s.DisMask, !enable)
}

// SetOneShot selects one-shot (true) or continuous conversion. It does not
// start a conversion.
func SetOneShot(ctx context.Context, p hardware.Port, oneShot bool) error {
	return hardware.SetBit(ctx, p, hardware.RegAdcCtrl0, hardware.AdcRateMask, oneShot)
}

// SetEnabled sets the ADC master enable.
func SetEnabled(ctx context.Context, p hardware.Port, enable bool) error {
	return hardware.SetBit(ctx, p, hardware.RegAdcCtrl0, hardware.AdcEnMask, enable)
}

// SetAveraging enables running-average mode. With initNew the average
// restarts from a fresh conversion instead of the previous result.
func SetAveraging(ctx context.Context, p hardware.Port, enable, initNew bool) error {
	var val byte
	if enable {
		val |= hardware.AdcAvgMask
	}
	if initNew {
		val |= hardware.AdcAvgInitMask
	}
	return p.UpdateBits(ctx, hardware.RegAdcCtrl0, hardware.AdcAvgMask|hardware.AdcAvgInitMask, val)
}

// SetSampleBits selects the conversion resolution: 0 = 15 bit, 1 = 14 bit,
// 2 = 13 bit, 3 = 12 bit.
func SetSampleBits(ctx context.Context, p hardware.Port, code byte) error {
	return p.UpdateBits(ctx, hardware.RegAdcCtrl0, hardware.AdcSampleMask,
		(code<<hardware.AdcSampleShift)&hardware.AdcSampleMask)
}
