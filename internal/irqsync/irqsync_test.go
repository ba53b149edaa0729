package irqsync_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-nova/upm6720d/internal/hardware"
	"github.com/micro-nova/upm6720d/internal/irqsync"
	"github.com/micro-nova/upm6720d/internal/status"
)

type fakeLine struct {
	mu      sync.Mutex
	masks   int
	unmasks int
	masked  bool
}

func (l *fakeLine) Mask() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.masks++
	l.masked = true
	return nil
}

func (l *fakeLine) Unmask() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unmasks++
	l.masked = false
	return nil
}

func (l *fakeLine) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.masks, l.unmasks
}

type harness struct {
	port     *hardware.Mock
	agg      *status.Aggregator
	line     *fakeLine
	sync     *irqsync.Synchronizer
	refresh  atomic.Int32
	notified atomic.Int32
}

func newHarness() *harness {
	h := &harness{port: hardware.NewMock(), line: &fakeLine{}}
	h.agg = status.NewAggregator(h.port)
	h.sync = irqsync.New(h.line,
		func(ctx context.Context) error {
			h.refresh.Add(1)
			_, err := h.agg.Refresh(ctx)
			return err
		},
		func() { h.notified.Add(1) })
	return h
}

func TestOnInterrupt_Idle(t *testing.T) {
	h := newHarness()
	h.port.SetReg(hardware.RegStat3, hardware.VbusPresentStat)

	h.sync.OnInterrupt(context.Background())

	assert.Equal(t, int32(1), h.refresh.Load())
	assert.Equal(t, int32(1), h.notified.Load())
	assert.True(t, h.agg.Snapshot().VbusPresent)
	assert.Equal(t, irqsync.Idle, h.sync.State())
	assert.NoError(t, h.sync.FinalizeSuspend())
}

func TestInterruptWhileSuspended_DeferredUntilResume(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	h.sync.Suspend()
	assert.Equal(t, irqsync.Suspended, h.sync.State())
	h.port.ResetOps()

	h.sync.OnInterrupt(ctx)
	h.sync.OnInterrupt(ctx)

	assert.Equal(t, irqsync.SuspendedWithPendingInterrupt, h.sync.State())
	assert.Empty(t, h.port.Ops(), "no bus access while suspended")
	assert.Zero(t, h.refresh.Load())
	masks, _ := h.line.counts()
	assert.Equal(t, 1, masks, "line masked once")
	assert.True(t, h.sync.Masked())
	assert.ErrorIs(t, h.sync.FinalizeSuspend(), irqsync.ErrSuspendBusy)

	h.sync.Resume(ctx)

	assert.Equal(t, int32(1), h.refresh.Load(), "exactly one deferred refresh")
	assert.Equal(t, int32(1), h.notified.Load())
	_, unmasks := h.line.counts()
	assert.Equal(t, 1, unmasks)
	assert.False(t, h.sync.Masked())
	assert.Equal(t, irqsync.Idle, h.sync.State())
	assert.NotEmpty(t, h.port.Ops())
	assert.NoError(t, h.sync.FinalizeSuspend())
}

func TestResumeWithoutInterrupt(t *testing.T) {
	h := newHarness()
	h.sync.Suspend()
	require.NoError(t, h.sync.FinalizeSuspend())
	h.sync.Resume(context.Background())

	assert.Zero(t, h.refresh.Load())
	masks, unmasks := h.line.counts()
	assert.Zero(t, masks)
	assert.Zero(t, unmasks)
	assert.Equal(t, irqsync.Idle, h.sync.State())
}

func TestSuspendWaitsForInFlightRefresh(t *testing.T) {
	line := &fakeLine{}
	entered := make(chan struct{})
	release := make(chan struct{})
	var done atomic.Bool
	s := irqsync.New(line, func(context.Context) error {
		close(entered)
		<-release
		done.Store(true)
		return nil
	}, nil)

	go s.OnInterrupt(context.Background())
	<-entered

	suspended := make(chan struct{})
	go func() {
		s.Suspend()
		close(suspended)
	}()

	select {
	case <-suspended:
		t.Fatal("Suspend returned while refresh in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-suspended:
	case <-time.After(2 * time.Second):
		t.Fatal("Suspend never returned")
	}
	assert.True(t, done.Load())
	assert.Equal(t, irqsync.Suspended, s.State())
}

func TestInterruptDuringRefreshIsCoalesced(t *testing.T) {
	line := &fakeLine{}
	var calls atomic.Int32
	var s *irqsync.Synchronizer
	s = irqsync.New(line, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			// A second edge lands while the first is being handled.
			s.OnInterrupt(ctx)
		}
		return nil
	}, nil)

	s.OnInterrupt(context.Background())
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, irqsync.Idle, s.State())
}

func TestRefreshErrorStillNotifies(t *testing.T) {
	var notified atomic.Int32
	s := irqsync.New(&fakeLine{}, func(context.Context) error {
		return errors.New("bus gone")
	}, func() { notified.Add(1) })
	s.OnInterrupt(context.Background())
	assert.Equal(t, int32(1), notified.Load())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "suspended-pending", irqsync.SuspendedWithPendingInterrupt.String())
	assert.Equal(t, "idle", irqsync.Idle.String())
}
