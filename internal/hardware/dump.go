package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// MonitorInterval is the period of the register dump monitor.
const MonitorInterval = 3 * time.Second

// RegValue is one register read by DumpRegisters.
type RegValue struct {
	Reg Register
	Val byte
}

// Readable reports whether reg may be read without side effects. The flag
// bank clears on read and is left to the status sweep.
func Readable(reg Register) bool {
	if reg > DumpLast {
		return false
	}
	return reg < RegFlag1 || reg > RegFlag5
}

// DumpRegisters reads every side-effect-free register in the dump window.
// A failed read is skipped; the first error is returned alongside whatever
// was read.
func DumpRegisters(ctx context.Context, p Port) ([]RegValue, error) {
	var (
		out      []RegValue
		firstErr error
	)
	for r := int(DumpFirst); r <= int(DumpLast); r++ {
		reg := Register(r)
		if !Readable(reg) {
			continue
		}
		v, err := p.Read(ctx, reg)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, RegValue{Reg: reg, Val: v})
	}
	return out, firstErr
}

// FormatDump renders a dump as "[0x00]=0x3A [0x01]=..." for a single log line.
func FormatDump(regs []RegValue) string {
	var b strings.Builder
	for i, rv := range regs {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "[0x%02X]=0x%02X", rv.Reg, rv.Val)
	}
	return b.String()
}

// RunMonitor periodically dumps the register file at debug level until ctx
// is cancelled.
func RunMonitor(ctx context.Context, p Port, interval time.Duration) {
	if interval <= 0 {
		interval = MonitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			regs, err := DumpRegisters(ctx, p)
			if err != nil {
				// Not fatal: the device may be in reset or briefly off the bus
				slog.Debug("monitor: partial register dump", "err", err)
			}
			slog.Debug("monitor: registers", "dump", FormatDump(regs))
		}
	}
}
