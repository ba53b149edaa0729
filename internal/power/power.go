// Package power bridges system sleep notifications to the charger's
// interrupt synchronizer, so no status refresh touches the bus while the
// system is suspending.
package power

import (
	"context"
	"errors"
	"log/slog"

	"github.com/micro-nova/upm6720d/internal/irqsync"
)

// maxSuspendAttempts bounds how often a suspend is retried while interrupts
// keep arriving.
const maxSuspendAttempts = 3

// Target is the device side of a suspend/resume cycle.
type Target interface {
	Suspend()
	FinalizeSuspend() error
	Resume(ctx context.Context)
}

// Inhibitor holds off system sleep until the target is quiesced.
type Inhibitor interface {
	Acquire() error
	Release() error
}

// Handler sequences one target through the system's sleep cycle.
type Handler struct {
	target Target
	inh    Inhibitor
}

// NewHandler creates a handler. inh may be nil when sleep cannot be delayed.
func NewHandler(target Target, inh Inhibitor) *Handler {
	return &Handler{target: target, inh: inh}
}

// PrepareForSleep is called with start=true before the system sleeps and
// with start=false after it wakes.
func (h *Handler) PrepareForSleep(ctx context.Context, start bool) {
	if start {
		h.suspend(ctx)
		return
	}
	h.target.Resume(ctx)
	slog.Info("power: resumed")
	if h.inh != nil {
		if err := h.inh.Acquire(); err != nil {
			slog.Warn("power: re-acquire sleep inhibitor failed", "err", err)
		}
	}
}

// suspend quiesces the target. An interrupt caught during the suspend is
// handled by a resume and the suspend is retried; after maxSuspendAttempts
// the system is let go to sleep regardless, with the interrupt deferred to
// wake-up.
func (h *Handler) suspend(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		h.target.Suspend()
		err := h.target.FinalizeSuspend()
		if err == nil {
			break
		}
		if !errors.Is(err, irqsync.ErrSuspendBusy) || attempt == maxSuspendAttempts {
			slog.Warn("power: suspending with interrupt pending", "attempt", attempt, "err", err)
			break
		}
		slog.Debug("power: interrupt during suspend, handling before retry", "attempt", attempt)
		h.target.Resume(ctx)
	}
	slog.Info("power: suspended")
	if h.inh != nil {
		if err := h.inh.Release(); err != nil {
			slog.Warn("power: release sleep inhibitor failed", "err", err)
		}
	}
}
