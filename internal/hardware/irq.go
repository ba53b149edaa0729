package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultIRQPin is the GPIO the charge pump's open-drain INT output is wired
// to on the reference carrier board (BCM numbering).
const DefaultIRQPin = "GPIO6"

// edgePoll bounds how long Run blocks in WaitForEdge before rechecking ctx.
const edgePoll = 200 * time.Millisecond

// IRQLine is the active-low interrupt line of the charge pump. While masked
// the pin is left as a plain input and no edges are delivered.
type IRQLine struct {
	mu     sync.Mutex
	pin    gpio.PinIn
	masked bool
}

// OpenIRQLine initialises periph.io and arms the named pin for falling edges.
func OpenIRQLine(name string) (*IRQLine, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: host init failed: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio: failed to open %s (INT)", name)
	}
	return NewIRQLine(p)
}

// NewIRQLine arms pin for falling edges.
func NewIRQLine(pin gpio.PinIn) (*IRQLine, error) {
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("gpio: arm %s: %w", pin, err)
	}
	return &IRQLine{pin: pin}, nil
}

// Mask stops edge delivery.
func (l *IRQLine) Mask() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.masked {
		return nil
	}
	if err := l.pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return fmt.Errorf("gpio: mask %s: %w", l.pin, err)
	}
	l.masked = true
	return nil
}

// Unmask re-arms edge delivery.
func (l *IRQLine) Unmask() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.masked {
		return nil
	}
	if err := l.pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("gpio: unmask %s: %w", l.pin, err)
	}
	l.masked = false
	return nil
}

// Masked reports whether edge delivery is currently off.
func (l *IRQLine) Masked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.masked
}

// Asserted reports whether INT is currently driven low.
func (l *IRQLine) Asserted() bool {
	return l.pin.Read() == gpio.Low
}

// Run calls handler for every falling edge until ctx is cancelled. Handler
// runs on Run's goroutine, so edges arriving while it runs are coalesced by
// the pin driver.
func (l *IRQLine) Run(ctx context.Context, handler func()) {
	slog.Debug("gpio: irq loop started", "pin", l.pin.String())
	for {
		select {
		case <-ctx.Done():
			slog.Debug("gpio: irq loop stopped", "pin", l.pin.String())
			return
		default:
		}
		if !l.pin.WaitForEdge(edgePoll) {
			continue
		}
		if l.Masked() {
			continue
		}
		handler()
	}
}
