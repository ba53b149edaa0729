// Package sequencer pushes a DeviceConfig into the charge pump as an ordered
// series of independent register steps.
package sequencer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/micro-nova/upm6720d/internal/adc"
	"github.com/micro-nova/upm6720d/internal/codec"
	"github.com/micro-nova/upm6720d/internal/config"
	"github.com/micro-nova/upm6720d/internal/hardware"
)

// step is one independently applied piece of configuration.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// Apply writes cfg to the device. Every step is attempted even when an
// earlier one fails; the first failure is returned once all steps ran.
func Apply(ctx context.Context, p hardware.Port, cfg *config.DeviceConfig, topo codec.Topology) error {
	var firstErr error
	failed := 0
	steps := plan(p, cfg, topo)
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			failed++
			slog.Warn("sequencer: step failed", "step", s.name, "err", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("sequencer: %s: %w", s.name, err)
			}
			continue
		}
		slog.Debug("sequencer: step applied", "step", s.name)
	}
	if failed > 0 {
		slog.Warn("sequencer: configuration partially applied", "failed", failed, "steps", len(steps))
	} else {
		slog.Info("sequencer: configuration applied", "steps", len(steps), "topology", topo)
	}
	return firstErr
}

func plan(p hardware.Port, cfg *config.DeviceConfig, topo codec.Topology) []step {
	var steps []step
	add := func(name string, run func(ctx context.Context) error) {
		steps = append(steps, step{name: name, run: run})
	}
	bit := func(name string, reg hardware.Register, mask byte, on bool) {
		add(name, func(ctx context.Context) error { return hardware.SetBit(ctx, p, reg, mask, on) })
	}
	field := func(f codec.Field, v *int) {
		if v == nil {
			return
		}
		val := *v
		add(f.String(), func(ctx context.Context) error {
			s := codec.Spec(f)
			return p.UpdateBits(ctx, s.Reg, s.Mask, codec.Encode(f, val, topo))
		})
	}

	add("reg-reset", func(ctx context.Context) error {
		return p.UpdateBits(ctx, hardware.RegChgCtrl, hardware.RegRstMask, hardware.RegRstMask)
	})

	bit("watchdog-disable", hardware.RegWatchdog, hardware.WatchdogDisMask, cfg.WatchdogDisable)
	field(codec.Watchdog, cfg.WatchdogMs)
	field(codec.SSTimeout, cfg.SSTimeoutMs)
	field(codec.SenseResistor, cfg.SenseResistorMOhm)

	pr := cfg.Protection
	bit("bat-ovp-disable", hardware.RegBatOVP, hardware.BatOVPDisMask, pr.BatOVPDisable)
	bit("bat-ocp-disable", hardware.RegBatOCP, hardware.BatOCPDisMask, pr.BatOCPDisable)
	bit("bus-ucp-disable", hardware.RegBusUCPRCP, hardware.BusUCPDisMask, pr.BusUCPDisable)
	bit("bus-rcp-disable", hardware.RegBusUCPRCP, hardware.BusRCPDisMask, pr.BusRCPDisable)
	bit("vout-ovp-disable", hardware.RegVoutCtrl, hardware.VoutOVPDisMask, pr.VoutOVPDisable)
	bit("tdie-flt-disable", hardware.RegTempCtrl, hardware.TdieFltDisMask, pr.TdieFltDisable)
	bit("tsbus-flt-disable", hardware.RegTempCtrl, hardware.TSBusFltDisMask, pr.TSBusFltDisable)
	bit("tsbat-flt-disable", hardware.RegTempCtrl, hardware.TSBatFltDisMask, pr.TSBatFltDisable)
	bit("vbus-errhi-disable", hardware.RegBusUCPRCP, hardware.VbusErrHiDisMask, pr.VbusErrHiDisable)

	field(codec.BatOVP, pr.BatOVPmV)
	field(codec.BatOCP, pr.BatOCPmA)
	field(codec.BusOVP, pr.BusOVPmV)
	field(codec.BusOCP, pr.BusOCPmA)
	field(codec.BusUCP, pr.BusUCPmA)
	field(codec.BusRCP, pr.BusRCPmA)
	field(codec.Vac1OVP, pr.Vac1OVPmV)
	field(codec.Vac2OVP, pr.Vac2OVPmV)
	field(codec.VoutOVP, pr.VoutOVPmV)
	field(codec.TdieFlt, pr.TdieFltC)
	field(codec.TSBusFlt, pr.TSBusFltPct)
	field(codec.TSBatFlt, pr.TSBatFltPct)

	al := cfg.Alarm
	bit("bat-ovp-alm-disable", hardware.RegBatOVPAlm, hardware.AlmDisMask, al.BatOVPDisable)
	bit("bat-ocp-alm-disable", hardware.RegBatOCPAlm, hardware.AlmDisMask, al.BatOCPDisable)
	bit("bat-ucp-alm-disable", hardware.RegBatUCPAlm, hardware.AlmDisMask, al.BatUCPDisable)
	bit("bus-ovp-alm-disable", hardware.RegBusOVPAlm, hardware.AlmDisMask, al.BusOVPDisable)
	bit("bus-ocp-alm-disable", hardware.RegBusOCPAlm, hardware.AlmDisMask, al.BusOCPDisable)
	bit("tdie-alm-disable", hardware.RegTempCtrl, hardware.TdieAlmDisMask, al.TdieDisable)

	field(codec.BatOVPAlm, al.BatOVPmV)
	field(codec.BatOCPAlm, al.BatOCPmA)
	field(codec.BatUCPAlm, al.BatUCPmA)
	field(codec.BusOVPAlm, al.BusOVPmV)
	field(codec.BusOCPAlm, al.BusOCPmA)
	field(codec.TdieAlm, al.TdieC)

	bit("vbus-pulldown", hardware.RegChgCtrl, hardware.VbusPDEnMask, cfg.PullDown.Vbus)
	bit("vac1-pulldown", hardware.RegVacCtrl, hardware.Vac1PDEnMask, cfg.PullDown.Vac1)
	bit("vac2-pulldown", hardware.RegVacCtrl, hardware.Vac2PDEnMask, cfg.PullDown.Vac2)

	masks := MaskRegisters(cfg.Mask)
	for i, v := range masks {
		v := v
		reg := hardware.RegMask1 + hardware.Register(i)
		add(fmt.Sprintf("int-mask-%d", i+1), func(ctx context.Context) error { return p.Write(ctx, reg, v) })
	}

	a := cfg.ADC
	add("adc-scan-rate", func(ctx context.Context) error { return adc.SetOneShot(ctx, p, a.OneShot) })
	disabled := [adc.NumChannels]bool{
		adc.Ibus: a.IbusDisable, adc.Vbus: a.VbusDisable, adc.Vac1: a.Vac1Disable,
		adc.Vac2: a.Vac2Disable, adc.Vout: a.VoutDisable, adc.Vbat: a.VbatDisable,
		adc.Ibat: a.IbatDisable, adc.TSbus: a.TSBusDisable, adc.TSbat: a.TSBatDisable,
		adc.Tdie: a.TdieDisable,
	}
	for _, ch := range adc.Channels() {
		ch := ch
		on := !disabled[ch]
		add("adc-"+ch.String(), func(ctx context.Context) error { return adc.SetChannelEnabled(ctx, p, ch, on) })
	}
	add("adc-average", func(ctx context.Context) error { return adc.SetAveraging(ctx, p, a.Average, a.AverageInit) })
	if a.SampleBits != nil {
		bits := byte(*a.SampleBits)
		add("adc-sample", func(ctx context.Context) error { return adc.SetSampleBits(ctx, p, bits) })
	}
	add("adc-enable", func(ctx context.Context) error { return adc.SetEnabled(ctx, p, a.Enable) })

	return steps
}

// MaskRegisters builds the five interrupt mask registers. Each mirrors the
// layout of the status register at the same offset.
func MaskRegisters(m config.Mask) [5]byte {
	var r [5]byte
	set := func(i int, on bool, b byte) {
		if on {
			r[i] |= b
		}
	}
	set(0, m.BatOVP, hardware.BatOVPStat)
	set(0, m.BatOVPAlm, hardware.BatOVPAlmStat)
	set(0, m.VoutOVP, hardware.VoutOVPStat)
	set(0, m.BatOCP, hardware.BatOCPStat)
	set(0, m.BatOCPAlm, hardware.BatOCPAlmStat)
	set(0, m.BatUCPAlm, hardware.BatUCPAlmStat)
	set(0, m.BusOVP, hardware.BusOVPStat)
	set(0, m.BusOVPAlm, hardware.BusOVPAlmStat)

	set(1, m.BusOCP, hardware.BusOCPStat)
	set(1, m.BusOCPAlm, hardware.BusOCPAlmStat)
	set(1, m.BusUCP, hardware.BusUCPStat)
	set(1, m.BusRCP, hardware.BusRCPStat)
	set(1, m.CflyShort, hardware.CflyShortStat)

	set(2, m.Vac1OVP, hardware.Vac1OVPStat)
	set(2, m.Vac2OVP, hardware.Vac2OVPStat)
	set(2, m.VoutPresent, hardware.VoutPresentStat)
	set(2, m.Vac1Present, hardware.Vac1PresentStat)
	set(2, m.Vac2Present, hardware.Vac2PresentStat)
	set(2, m.VbusPresent, hardware.VbusPresentStat)
	set(2, m.ACRB1Config, hardware.ACRB1ConfigStat)
	set(2, m.ACRB2Config, hardware.ACRB2ConfigStat)

	set(3, m.AdcDone, hardware.AdcDoneStat)
	set(3, m.SSTimeout, hardware.SSTimeoutStat)
	set(3, m.TSBusTSBatAlm, hardware.TSBusTSBatAlmStat)
	set(3, m.TSBusFlt, hardware.TSBusFltStat)
	set(3, m.TSBatFlt, hardware.TSBatFltStat)
	set(3, m.TdieFlt, hardware.TdieFltStat)
	set(3, m.TdieAlm, hardware.TdieAlmStat)
	set(3, m.Watchdog, hardware.WDStat)

	set(4, m.RegnGood, hardware.RegnGoodStat)
	set(4, m.ConvActive, hardware.ConvActiveStat)
	set(4, m.VbusErrHi, hardware.VbusErrHiStat)
	return r
}
