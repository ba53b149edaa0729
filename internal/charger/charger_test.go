package charger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-nova/upm6720d/internal/adc"
	"github.com/micro-nova/upm6720d/internal/charger"
	"github.com/micro-nova/upm6720d/internal/config"
	"github.com/micro-nova/upm6720d/internal/events"
	"github.com/micro-nova/upm6720d/internal/hardware"
	"github.com/micro-nova/upm6720d/internal/irqsync"
	"github.com/micro-nova/upm6720d/internal/models"
	"github.com/micro-nova/upm6720d/internal/role"
)

type fakeLine struct {
	masks, unmasks int
	masked         bool
}

func (l *fakeLine) Mask() error   { l.masks++; l.masked = true; return nil }
func (l *fakeLine) Unmask() error { l.unmasks++; l.masked = false; return nil }

func newDevice(t *testing.T, m *hardware.Mock, cfg config.DeviceConfig) *charger.Device {
	t.Helper()
	d, err := charger.New(context.Background(), m, config.NewMemSource(cfg), nil, nil)
	require.NoError(t, err)
	return d
}

func receive(t *testing.T, ch <-chan models.Status) models.Status {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status")
	}
	return models.Status{}
}

func TestNew_ModeMismatchAbortsBeforeAnyWrite(t *testing.T) {
	m := hardware.NewMock()
	m.SetReg(hardware.RegVoutCtrl, hardware.MSPrimary)

	_, err := charger.New(context.Background(), m, config.NewMemSource(config.Default()), nil, nil)
	require.Error(t, err)

	var mm *role.MismatchError
	require.True(t, errors.As(err, &mm), "got %v", err)
	assert.Equal(t, role.Master, mm.Resolved)
	assert.Equal(t, role.Standalone, mm.Expected)
	assert.Empty(t, m.Writes())
}

func TestNew_MissingMandatoryField(t *testing.T) {
	m := hardware.NewMock()
	cfg := config.Default()
	cfg.SenseResistorMOhm = nil

	_, err := charger.New(context.Background(), m, config.NewMemSource(cfg), nil, nil)
	require.ErrorIs(t, err, config.ErrMissingField)
	assert.Empty(t, m.Ops(), "no bus traffic before the config is valid")
}

func TestNew_ResolveBusError(t *testing.T) {
	m := hardware.NewMock()
	m.FailReadAt(hardware.RegVoutCtrl, true)

	_, err := charger.New(context.Background(), m, config.NewMemSource(config.Default()), nil, nil)
	var be *hardware.BusError
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.Equal(t, hardware.RegVoutCtrl, be.Reg)
	assert.Empty(t, m.Writes())
}

func TestNew_AppliesConfigThenSurgeProtection(t *testing.T) {
	m := hardware.NewMock()
	newDevice(t, m, config.Default())

	w := m.Writes()
	require.GreaterOrEqual(t, len(w), 3)
	assert.Equal(t, hardware.RegChgCtrl, w[0].Reg, "soft reset first")
	assert.Equal(t, hardware.Op{Write: true, Reg: hardware.RegSurge0, Val: hardware.SurgeOn0}, w[len(w)-2])
	assert.Equal(t, hardware.Op{Write: true, Reg: hardware.RegSurge1, Val: hardware.SurgeOn1}, w[len(w)-1])
	assert.Equal(t, byte(105), m.GetReg(hardware.RegBatOVP), "4550 mV")
}

func TestNew_InitialStatusPublished(t *testing.T) {
	m := hardware.NewMock()
	m.SetReg(hardware.RegStat3, hardware.VbusPresentStat)
	bus := events.NewBus()
	ch := bus.Subscribe("test")

	d, err := charger.New(context.Background(), m, config.NewMemSource(config.Default()), nil, bus)
	require.NoError(t, err)

	assert.True(t, d.Snapshot().VbusPresent)
	st := receive(t, ch)
	assert.True(t, st.Flags.VbusPresent)
	assert.Equal(t, "charger_standalone", st.Name)
	assert.Equal(t, "switched-cap", st.Topology)
}

func TestNew_ConfigFailuresAreNotFatal(t *testing.T) {
	m := hardware.NewMock()
	m.FailWriteAt(hardware.RegBatOVP, true)
	m.FailReadAt(hardware.RegDeviceInfo, true)
	m.FailWriteAt(hardware.RegSurge1, true)

	d := newDevice(t, m, config.Default())
	assert.Equal(t, byte(80), m.GetReg(hardware.RegBatOCP), "later steps still applied")
	assert.Equal(t, byte(0), d.PartNumber())
}

func TestNew_Master(t *testing.T) {
	m := hardware.NewMock()
	m.SetReg(hardware.RegVoutCtrl, hardware.MSPrimary)
	m.SetReg(hardware.RegDeviceInfo, 0x40)
	cfg := config.Default()
	cfg.Mode = "master"

	d := newDevice(t, m, cfg)
	assert.Equal(t, role.Master, d.Mode())
	assert.Equal(t, "upm6720-master", d.Name())
	assert.Equal(t, hardware.PartUPM6720, d.PartNumber())
	assert.Equal(t, hardware.MSPrimary, m.GetReg(hardware.RegVoutCtrl)&hardware.MSMask, "mode strap preserved")
}

func TestSetPresent_ReappliesOnRisingEdge(t *testing.T) {
	ctx := context.Background()
	m := hardware.NewMock()
	d := newDevice(t, m, config.Default())
	assert.False(t, d.Present())

	m.ResetOps()
	require.NoError(t, d.SetPresent(ctx, true))
	require.NotEmpty(t, m.Writes())
	assert.Equal(t, hardware.RegChgCtrl, m.Writes()[0].Reg)
	assert.True(t, d.Present())

	m.ResetOps()
	require.NoError(t, d.SetPresent(ctx, true))
	assert.Empty(t, m.Writes(), "still present, nothing to do")

	require.NoError(t, d.SetPresent(ctx, false))
	assert.Empty(t, m.Writes())
	assert.False(t, d.Present())

	require.NoError(t, d.SetPresent(ctx, true))
	assert.NotEmpty(t, m.Writes())
}

func TestSetPresent_ReturnsFirstError(t *testing.T) {
	ctx := context.Background()
	m := hardware.NewMock()
	d := newDevice(t, m, config.Default())
	m.FailWriteAt(hardware.RegWatchdog, true)

	err := d.SetPresent(ctx, true)
	var be *hardware.BusError
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.Equal(t, hardware.RegWatchdog, be.Reg)
	assert.True(t, d.Present())
}

func TestSetChargeEnabled(t *testing.T) {
	ctx := context.Background()
	m := hardware.NewMock()
	d := newDevice(t, m, config.Default())

	m.ResetOps()
	require.NoError(t, d.SetChargeEnabled(ctx, true))
	w := m.Writes()
	require.Len(t, w, 2)
	assert.Equal(t, hardware.Op{Write: true, Reg: hardware.RegSurge0, Val: hardware.SurgeOff0}, w[0])
	assert.Equal(t, hardware.RegChgCtrl, w[1].Reg)
	assert.NotZero(t, m.GetReg(hardware.RegChgCtrl)&hardware.ChgEnMask)

	on, err := d.ChargeEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, on, "converter not active yet")

	m.SetReg(hardware.RegStat5, hardware.ConvActiveStat)
	on, err = d.ChargeEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, d.SetChargeEnabled(ctx, false))
	assert.Equal(t, hardware.SurgeOn0, m.GetReg(hardware.RegSurge0))
	assert.Equal(t, hardware.SurgeOn1, m.GetReg(hardware.RegSurge1))
	assert.Zero(t, m.GetReg(hardware.RegChgCtrl)&hardware.ChgEnMask)
	on, err = d.ChargeEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestSetChargeEnabled_Errors(t *testing.T) {
	ctx := context.Background()
	m := hardware.NewMock()
	d := newDevice(t, m, config.Default())

	m.FailWriteAt(hardware.RegSurge0, true)
	err := d.SetChargeEnabled(ctx, true)
	require.Error(t, err)
	assert.NotZero(t, m.GetReg(hardware.RegChgCtrl)&hardware.ChgEnMask, "CHG_EN still written")

	m.FailWriteAt(hardware.RegSurge0, false)
	m.FailWriteAt(hardware.RegChgCtrl, true)
	var be *hardware.BusError
	require.True(t, errors.As(d.SetChargeEnabled(ctx, false), &be))
	assert.Equal(t, hardware.RegChgCtrl, be.Reg)

	m.FailReadAt(hardware.RegStat5, true)
	_, err = d.ChargeEnabled(ctx)
	assert.Error(t, err)
}

func TestSuspendDefersInterruptUntilResume(t *testing.T) {
	ctx := context.Background()
	m := hardware.NewMock()
	line := &fakeLine{}
	bus := events.NewBus()
	ch := bus.Subscribe("test")

	d, err := charger.New(ctx, m, config.NewMemSource(config.Default()), line, bus)
	require.NoError(t, err)
	receive(t, ch)

	d.Suspend()
	m.ResetOps()
	d.OnInterrupt(ctx)
	d.OnInterrupt(ctx)

	assert.Empty(t, m.Ops(), "no bus access while suspended")
	assert.True(t, line.masked)
	assert.Equal(t, 1, line.masks)
	assert.Equal(t, irqsync.SuspendedWithPendingInterrupt, d.SyncState())
	assert.ErrorIs(t, d.FinalizeSuspend(), irqsync.ErrSuspendBusy)

	m.SetReg(hardware.RegStat1, hardware.BatOVPStat)
	d.Resume(ctx)

	assert.Equal(t, 1, m.ReadCount(hardware.RegStat1), "exactly one deferred refresh")
	assert.False(t, line.masked)
	assert.True(t, d.Snapshot().BatOVPFault)
	assert.NoError(t, d.FinalizeSuspend())
	assert.Equal(t, irqsync.Idle, d.SyncState())

	st := receive(t, ch)
	assert.True(t, st.Fault)
	assert.Equal(t, 1, st.FaultBits)
}

func TestADC(t *testing.T) {
	ctx := context.Background()
	m := hardware.NewMock()
	d := newDevice(t, m, config.Default())

	hi, lo := adc.Raw(adc.Vbat, 3850)
	m.SetReg(adc.Spec(adc.Vbat).Reg, hi)
	m.SetReg(adc.Spec(adc.Vbat).Reg+1, lo)

	v, err := d.ADC(ctx, adc.Vbat)
	require.NoError(t, err)
	assert.Equal(t, int32(3850), v)

	all, err := d.ADCAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, int(adc.NumChannels))
	assert.Equal(t, int32(3850), all[adc.Vbat])
}

func TestDumpAndClose(t *testing.T) {
	ctx := context.Background()
	m := hardware.NewMock()
	d := newDevice(t, m, config.Default())

	regs, err := d.DumpRegisters(ctx)
	require.NoError(t, err)
	for _, r := range regs {
		assert.True(t, hardware.Readable(r.Reg), "0x%02X", r.Reg)
	}
	require.NotZero(t, m.GetReg(hardware.RegAdcCtrl0)&hardware.AdcEnMask)

	require.NoError(t, d.Close(ctx))
	assert.Zero(t, m.GetReg(hardware.RegAdcCtrl0)&hardware.AdcEnMask)
}
