// Package charger owns a single UPM6720 charge pump. A Device is the
// explicit handle the daemon threads through its HTTP API, power-state
// bridge and presence watcher; it resolves the device role, applies the
// configuration and keeps the status snapshot current.
package charger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/micro-nova/upm6720d/internal/adc"
	"github.com/micro-nova/upm6720d/internal/codec"
	"github.com/micro-nova/upm6720d/internal/config"
	"github.com/micro-nova/upm6720d/internal/events"
	"github.com/micro-nova/upm6720d/internal/hardware"
	"github.com/micro-nova/upm6720d/internal/irqsync"
	"github.com/micro-nova/upm6720d/internal/models"
	"github.com/micro-nova/upm6720d/internal/role"
	"github.com/micro-nova/upm6720d/internal/sequencer"
	"github.com/micro-nova/upm6720d/internal/status"
)

// Device is an initialised charge pump.
type Device struct {
	port hardware.Port
	cfg  config.DeviceConfig
	topo codec.Topology
	mode role.Mode
	part byte
	log  *slog.Logger

	agg  *status.Aggregator
	sync *irqsync.Synchronizer
	bus  *events.Bus

	// applyMu serialises configuration sequences.
	applyMu sync.Mutex
	present atomic.Bool
}

// New brings the device up: it loads the configuration, resolves the role
// strapped into the hardware, applies the configuration, enables surge
// protection and takes an initial status reading.
//
// A configuration error or a role mismatch aborts before any register is
// written. Failures while applying configuration are logged and do not
// abort. line and bus may be nil.
func New(ctx context.Context, port hardware.Port, src config.Source, line irqsync.Line, bus *events.Bus) (*Device, error) {
	cfg, err := src.Load()
	if err != nil {
		return nil, fmt.Errorf("charger: load config from %s: %w", src.Path(), err)
	}

	mode, err := role.Resolve(ctx, port)
	if err != nil {
		return nil, fmt.Errorf("charger: %w", err)
	}
	if err := role.Check(cfg.ExpectedMode(), mode); err != nil {
		slog.Error("charger: operation mode does not match configuration",
			"strapped", mode, "configured", cfg.ExpectedMode())
		return nil, fmt.Errorf("charger: %w", err)
	}

	d := &Device{
		port: port,
		cfg:  *cfg,
		topo: cfg.ChargeTopology(),
		mode: mode,
		log:  slog.With("role", mode.String()),
		agg:  status.NewAggregator(port),
		bus:  bus,
	}
	if line == nil {
		line = noLine{}
	}
	d.sync = irqsync.New(line, d.refresh, d.notify)

	part, err := hardware.DetectPart(ctx, port)
	switch {
	case err != nil:
		d.log.Warn("charger: part detection failed", "err", err)
	case part != hardware.PartUPM6720:
		d.log.Warn("charger: unexpected part number", "part", part)
	}
	d.part = part

	if err := d.apply(ctx); err != nil {
		d.log.Warn("charger: initial configuration incomplete", "err", err)
	}
	if err := d.setSurgeProtect(ctx, true); err != nil {
		d.log.Warn("charger: enable surge protection failed", "err", err)
	}

	d.sync.OnInterrupt(ctx)
	d.log.Info("charger: device ready", "name", d.Name(), "part", d.part, "topology", d.topo)
	return d, nil
}

func (d *Device) apply(ctx context.Context) error {
	d.applyMu.Lock()
	defer d.applyMu.Unlock()
	return sequencer.Apply(ctx, d.port, &d.cfg, d.topo)
}

func (d *Device) refresh(ctx context.Context) error {
	_, err := d.agg.Refresh(ctx)
	return err
}

func (d *Device) notify() {
	if d.bus != nil {
		d.bus.Publish(d.Status())
	}
}

// Snapshot returns the most recent status snapshot.
func (d *Device) Snapshot() status.Snapshot { return d.agg.Snapshot() }

// Flags returns the latched flag registers seen by the last refresh.
func (d *Device) Flags() [status.NumFlags]byte { return d.agg.Flags() }

// Status returns the snapshot together with the device's identity.
func (d *Device) Status() models.Status {
	return models.NewStatus(d.Name(), int(d.part), d.mode.String(), d.topo.String(), d.Present(), d.Snapshot())
}

// ADC reads one ADC channel.
func (d *Device) ADC(ctx context.Context, ch adc.Channel) (int32, error) {
	return adc.Read(ctx, d.port, ch)
}

// ADCAll reads every ADC channel; see adc.ReadAll.
func (d *Device) ADCAll(ctx context.Context) (map[adc.Channel]int32, error) {
	return adc.ReadAll(ctx, d.port)
}

// Mode returns the role resolved at start-up.
func (d *Device) Mode() role.Mode { return d.mode }

// Topology returns the configured charge-pump topology.
func (d *Device) Topology() codec.Topology { return d.topo }

// PartNumber returns the device id read at start-up.
func (d *Device) PartNumber() byte { return d.part }

// Name is the supply name for the device's role.
func (d *Device) Name() string { return d.mode.SupplyName() }

// Port exposes the register port for diagnostics.
func (d *Device) Port() hardware.Port { return d.port }

// Present reports the input-present flag.
func (d *Device) Present() bool { return d.present.Load() }

// SetPresent records whether an input source is attached. On a false to
// true transition the full configuration is applied again, since the
// device may have reset to its power-on defaults while unpowered.
func (d *Device) SetPresent(ctx context.Context, present bool) error {
	was := d.present.Swap(present)
	if !present || was {
		return nil
	}
	d.log.Info("charger: input present, reapplying configuration")
	if err := d.apply(ctx); err != nil {
		return fmt.Errorf("charger: reapply: %w", err)
	}
	return nil
}

// DumpRegisters reads the side-effect-free register window.
func (d *Device) DumpRegisters(ctx context.Context) ([]hardware.RegValue, error) {
	return hardware.DumpRegisters(ctx, d.port)
}

// OnInterrupt handles an asserted interrupt line.
func (d *Device) OnInterrupt(ctx context.Context) { d.sync.OnInterrupt(ctx) }

// Suspend stops interrupt handling ahead of a system suspend.
func (d *Device) Suspend() { d.sync.Suspend() }

// FinalizeSuspend returns irqsync.ErrSuspendBusy while an interrupt that
// arrived during suspend is still waiting to be handled.
func (d *Device) FinalizeSuspend() error { return d.sync.FinalizeSuspend() }

// Resume re-enables interrupt handling and handles any deferred interrupt.
func (d *Device) Resume(ctx context.Context) { d.sync.Resume(ctx) }

// SyncState reports the interrupt synchronizer's state.
func (d *Device) SyncState() irqsync.State { return d.sync.State() }

// Close turns the ADC off.
func (d *Device) Close(ctx context.Context) error {
	if err := adc.SetEnabled(ctx, d.port, false); err != nil {
		return fmt.Errorf("charger: disable adc: %w", err)
	}
	d.log.Info("charger: adc disabled")
	return nil
}

type noLine struct{}

func (noLine) Mask() error   { return nil }
func (noLine) Unmask() error { return nil }

var _ irqsync.Line = (*hardware.IRQLine)(nil)
