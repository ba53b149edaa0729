package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// PeriphPort is a register access port on top of periph.io's I2C bus
// registry. It is the portable alternative to I2CPort for hosts where
// periph.io owns the adapter (or where the ioctl path is unavailable).
type PeriphPort struct {
	mu   sync.Mutex
	name string
	addr uint16
	bus  i2c.BusCloser
	dev  *i2c.Dev
}

// NewPeriph creates a port for addr on the periph.io bus called name
// ("" selects the first bus found).
func NewPeriph(name string, addr uint16) *PeriphPort {
	return &PeriphPort{name: name, addr: addr}
}

// Open initialises the periph.io host drivers and opens the bus.
func (p *PeriphPort) Open(ctx context.Context) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph: host init failed: %w", err)
	}
	bus, err := i2creg.Open(p.name)
	if err != nil {
		return fmt.Errorf("periph: open i2c bus %q: %w", p.name, err)
	}
	p.mu.Lock()
	p.bus = bus
	p.dev = &i2c.Dev{Bus: bus, Addr: p.addr}
	p.mu.Unlock()

	if _, err := p.Read(ctx, RegDeviceInfo); err != nil {
		p.Close()
		return fmt.Errorf("periph: no device at 0x%02x on %q: %w", p.addr, p.name, err)
	}
	slog.Info("periph: charge pump detected", "bus", bus.String(), "addr", fmt.Sprintf("0x%02x", p.addr))
	return nil
}

func (p *PeriphPort) Read(ctx context.Context, reg Register) (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.read(reg)
}

func (p *PeriphPort) Write(ctx context.Context, reg Register, val byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(reg, val)
}

func (p *PeriphPort) UpdateBits(ctx context.Context, reg Register, mask, val byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, err := p.read(reg)
	if err != nil {
		return err
	}
	return p.write(reg, cur&^mask|val&mask)
}

// Close releases the bus.
func (p *PeriphPort) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bus != nil {
		_ = p.bus.Close()
		p.bus = nil
		p.dev = nil
	}
}

func (p *PeriphPort) read(reg Register) (byte, error) {
	if p.dev == nil {
		return 0, &BusError{Op: "read", Reg: reg, Err: errNotOpen}
	}
	var r [1]byte
	if err := p.dev.Tx([]byte{reg}, r[:]); err != nil {
		return 0, &BusError{Op: "read", Reg: reg, Err: err}
	}
	return r[0], nil
}

func (p *PeriphPort) write(reg Register, val byte) error {
	if p.dev == nil {
		return &BusError{Op: "write", Reg: reg, Err: errNotOpen}
	}
	if err := p.dev.Tx([]byte{reg, val}, nil); err != nil {
		return &BusError{Op: "write", Reg: reg, Err: err}
	}
	return nil
}
