package status

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/micro-nova/upm6720d/internal/hardware"
)

// decoder folds one status register into a snapshot.
type decoder func(s *Snapshot, v byte)

var bank = [...]struct {
	reg    hardware.Register
	decode decoder
}{
	{hardware.RegStat1, func(s *Snapshot, v byte) {
		s.BatOVPFault = v&hardware.BatOVPStat != 0
		s.BatOVPAlarm = v&hardware.BatOVPAlmStat != 0
		s.VoutOVPFault = v&hardware.VoutOVPStat != 0
		s.BatOCPFault = v&hardware.BatOCPStat != 0
		s.BatOCPAlarm = v&hardware.BatOCPAlmStat != 0
		s.BatUCPAlarm = v&hardware.BatUCPAlmStat != 0
		s.BusOVPFault = v&hardware.BusOVPStat != 0
		s.BusOVPAlarm = v&hardware.BusOVPAlmStat != 0
	}},
	{hardware.RegStat2, func(s *Snapshot, v byte) {
		s.BusOCPFault = v&hardware.BusOCPStat != 0
		s.BusOCPAlarm = v&hardware.BusOCPAlmStat != 0
		s.BusUCPFault = v&hardware.BusUCPStat != 0
		s.BusRCPFault = v&hardware.BusRCPStat != 0
		s.CflyShortFault = v&hardware.CflyShortStat != 0
	}},
	{hardware.RegStat3, func(s *Snapshot, v byte) {
		s.Vac1OVPFault = v&hardware.Vac1OVPStat != 0
		s.Vac2OVPFault = v&hardware.Vac2OVPStat != 0
		s.VoutPresent = v&hardware.VoutPresentStat != 0
		s.Vac1Present = v&hardware.Vac1PresentStat != 0
		s.Vac2Present = v&hardware.Vac2PresentStat != 0
		s.VbusPresent = v&hardware.VbusPresentStat != 0
		s.ACRB1Config = v&hardware.ACRB1ConfigStat != 0
		s.ACRB2Config = v&hardware.ACRB2ConfigStat != 0
	}},
	{hardware.RegStat4, func(s *Snapshot, v byte) {
		s.AdcDone = v&hardware.AdcDoneStat != 0
		s.SSTimeout = v&hardware.SSTimeoutStat != 0
		s.TSBusTSBatAlarm = v&hardware.TSBusTSBatAlmStat != 0
		s.TSBusFault = v&hardware.TSBusFltStat != 0
		s.TSBatFault = v&hardware.TSBatFltStat != 0
		s.TdieFault = v&hardware.TdieFltStat != 0
		s.TdieAlarm = v&hardware.TdieAlmStat != 0
		s.Watchdog = v&hardware.WDStat != 0
	}},
	{hardware.RegStat5, func(s *Snapshot, v byte) {
		s.RegnGood = v&hardware.RegnGoodStat != 0
		s.ConvActive = v&hardware.ConvActiveStat != 0
		s.VbusErrHi = v&hardware.VbusErrHiStat != 0
	}},
}

// NumFlags is the size of the latched flag bank.
const NumFlags = int(hardware.RegFlag5-hardware.RegFlag1) + 1

// Aggregator owns the status snapshot and refreshes it from the device.
type Aggregator struct {
	port hardware.Port

	mu    sync.Mutex
	snap  Snapshot
	flags [NumFlags]byte
}

// NewAggregator creates an aggregator with an all-clear snapshot.
func NewAggregator(port hardware.Port) *Aggregator {
	return &Aggregator{port: port}
}

// Refresh reads the status bank and replaces the snapshot. A register that
// fails to read keeps its previous fields; such partial failures are logged
// and not returned. Only when every status read fails is an error returned,
// and the snapshot is then left untouched. The latched flag registers are
// read afterwards, clearing them.
func (a *Aggregator) Refresh(ctx context.Context) (Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.snap
	var (
		failed   int
		firstErr error
	)
	for _, r := range bank {
		v, err := a.port.Read(ctx, r.reg)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			slog.Warn("status: register read failed, keeping previous value",
				"reg", fmt.Sprintf("0x%02X", r.reg), "err", err)
			continue
		}
		slog.Debug("status: stat register", "reg", fmt.Sprintf("0x%02X", r.reg), "val", fmt.Sprintf("0x%02X", v))
		r.decode(&next, v)
	}
	if failed == len(bank) {
		return a.snap, fmt.Errorf("status: refresh failed: %w", firstErr)
	}
	a.snap = next

	for i := range a.flags {
		reg := hardware.RegFlag1 + hardware.Register(i)
		v, err := a.port.Read(ctx, reg)
		if err != nil {
			continue
		}
		a.flags[i] = v
		if v != 0 {
			slog.Debug("status: flag register", "reg", fmt.Sprintf("0x%02X", reg), "val", fmt.Sprintf("0x%02X", v))
		}
	}
	return a.snap, nil
}

// Snapshot returns a copy of the current snapshot.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// Flags returns the flag register values seen by the last sweep.
func (a *Aggregator) Flags() [NumFlags]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flags
}
