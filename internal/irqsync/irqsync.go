// Package irqsync serialises interrupt-driven status refreshes against
// system suspend and resume. An interrupt that arrives while the system is
// suspending is remembered with the line masked, and handled exactly once
// after resume.
package irqsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrSuspendBusy is returned by FinalizeSuspend while an interrupt is
// waiting to be handled. The caller should resume and retry.
var ErrSuspendBusy = errors.New("irqsync: interrupt pending, suspend busy")

// Line is the interrupt line as seen by the synchronizer.
type Line interface {
	Mask() error
	Unmask() error
}

// State is the externally visible synchronizer state.
type State int

const (
	Idle State = iota
	InterruptPending
	Suspended
	SuspendedWithPendingInterrupt
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InterruptPending:
		return "interrupt-pending"
	case Suspended:
		return "suspended"
	case SuspendedWithPendingInterrupt:
		return "suspended-pending"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Synchronizer runs refresh followed by notify for each accepted interrupt.
// Neither callback is ever invoked with the synchronizer's lock held.
type Synchronizer struct {
	line    Line
	refresh func(context.Context) error
	notify  func()

	mu       sync.Mutex
	idle     *sync.Cond
	pending  bool
	resumed  bool
	masked   bool
	handling bool
}

// New returns a synchronizer in the resumed, idle state. notify may be nil.
func New(line Line, refresh func(context.Context) error, notify func()) *Synchronizer {
	if notify == nil {
		notify = func() {}
	}
	s := &Synchronizer{line: line, refresh: refresh, notify: notify, resumed: true}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// OnInterrupt is called by the interrupt worker for every asserted edge.
func (s *Synchronizer) OnInterrupt(ctx context.Context) {
	s.mu.Lock()
	s.pending = true
	if !s.resumed {
		slog.Debug("irqsync: interrupt before resume, deferring")
		s.maskLocked()
		s.mu.Unlock()
		return
	}
	if s.handling {
		// The running handler picks the new event up before it returns.
		s.mu.Unlock()
		return
	}
	s.drainLocked(ctx)
	s.mu.Unlock()
}

// Suspend stops interrupt handling. It returns once any in-flight refresh
// has finished; no refresh starts after it returns until Resume.
func (s *Synchronizer) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumed = false
	for s.handling {
		s.idle.Wait()
	}
}

// FinalizeSuspend reports whether the system may complete its suspend.
func (s *Synchronizer) FinalizeSuspend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return ErrSuspendBusy
	}
	return nil
}

// Resume re-enables interrupt handling. A deferred interrupt is handled
// before Resume returns.
func (s *Synchronizer) Resume(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumed = true
	if s.masked {
		if err := s.line.Unmask(); err != nil {
			slog.Warn("irqsync: unmask failed", "err", err)
		}
		s.masked = false
	}
	if s.pending && !s.handling {
		slog.Debug("irqsync: handling deferred interrupt")
		s.drainLocked(ctx)
	}
}

// State returns the current state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.resumed && s.pending:
		return SuspendedWithPendingInterrupt
	case !s.resumed:
		return Suspended
	case s.pending || s.handling:
		return InterruptPending
	}
	return Idle
}

// Masked reports whether the synchronizer currently holds the line masked.
func (s *Synchronizer) Masked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.masked
}

func (s *Synchronizer) maskLocked() {
	if s.masked {
		return
	}
	if err := s.line.Mask(); err != nil {
		slog.Warn("irqsync: mask failed", "err", err)
		return
	}
	s.masked = true
}

// drainLocked handles pending events until none remain or a suspend starts.
// Called and returns with s.mu held; drops it around each refresh.
func (s *Synchronizer) drainLocked(ctx context.Context) {
	s.handling = true
	for s.pending && s.resumed {
		s.pending = false
		s.mu.Unlock()
		if err := s.refresh(ctx); err != nil {
			slog.Warn("irqsync: refresh failed", "err", err)
		}
		s.notify()
		s.mu.Lock()
	}
	s.handling = false
	s.idle.Broadcast()
}
