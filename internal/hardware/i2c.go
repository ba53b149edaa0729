//go:build linux

package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

const (
	// DefaultI2CDev is the adapter the charge pump sits on in the reference design.
	DefaultI2CDev = "/dev/i2c-1"
	// DefaultAddr is the 7-bit address of a standalone or primary UPM6720.
	DefaultAddr uint16 = 0x65

	i2cRdwrIOCTL = 0x0707 // I2C_RDWR ioctl: combined write+read with REPEATED START
	i2cMsgRD     = 0x0001 // i2c_msg flag: read direction
	maxOpsPerSec = 2000
)

// i2cMsg mirrors struct i2c_msg from linux/i2c.h
type i2cMsg struct {
	addr   uint16
	flags  uint16
	length uint16
	_pad   uint16 // struct alignment
	buf    uintptr
}

// i2cRdwr mirrors struct i2c_rdwr_ioctl_data from linux/i2c-dev.h
type i2cRdwr struct {
	msgs  uintptr
	nmsgs uint32
}

// I2CPort is the real register access port, talking SMBus byte-data
// transactions to one device through the Linux I2C_RDWR ioctl.
type I2CPort struct {
	mu      sync.Mutex
	path    string
	addr    uint16
	fd      int
	limiter *rate.Limiter
}

// NewI2C creates an I2C port for the device at addr on the adapter at path.
// Open must be called before use.
func NewI2C(path string, addr uint16) *I2CPort {
	return &I2CPort{
		path:    path,
		addr:    addr,
		fd:      -1,
		limiter: rate.NewLimiter(rate.Limit(maxOpsPerSec), 16),
	}
}

// Open opens the adapter and probes the device by reading its info register.
func (p *I2CPort) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fd, err := unix.Open(p.path, unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("i2c: open %s: %w", p.path, err)
	}
	if _, err := p.readByteData(fd, RegDeviceInfo); err != nil {
		unix.Close(fd)
		return fmt.Errorf("i2c: no device at 0x%02x on %s: %w", p.addr, p.path, err)
	}
	p.fd = fd
	slog.Info("i2c: charge pump detected", "dev", p.path, "addr", fmt.Sprintf("0x%02x", p.addr))
	return nil
}

func (p *I2CPort) Read(ctx context.Context, reg Register) (byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, &BusError{Op: "read", Reg: reg, Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return 0, &BusError{Op: "read", Reg: reg, Err: errNotOpen}
	}
	return p.readByteData(p.fd, reg)
}

func (p *I2CPort) Write(ctx context.Context, reg Register, val byte) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return &BusError{Op: "write", Reg: reg, Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return &BusError{Op: "write", Reg: reg, Err: errNotOpen}
	}
	return p.writeByteData(p.fd, reg, val)
}

// UpdateBits holds the bus lock across the read and the write.
func (p *I2CPort) UpdateBits(ctx context.Context, reg Register, mask, val byte) error {
	if err := p.limiter.WaitN(ctx, 2); err != nil {
		return &BusError{Op: "read", Reg: reg, Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return &BusError{Op: "read", Reg: reg, Err: errNotOpen}
	}
	cur, err := p.readByteData(p.fd, reg)
	if err != nil {
		return err
	}
	next := cur&^mask | val&mask
	return p.writeByteData(p.fd, reg, next)
}

// Close releases the I2C file descriptor.
func (p *I2CPort) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd >= 0 {
		unix.Close(p.fd)
		p.fd = -1
	}
}

// readByteData performs a combined write+read with REPEATED START (SMBus read_byte_data).
func (p *I2CPort) readByteData(fd int, reg Register) (byte, error) {
	wbuf := [1]byte{reg}
	rbuf := [1]byte{}

	msgs := [2]i2cMsg{
		{addr: p.addr, flags: 0, length: 1, buf: uintptr(unsafe.Pointer(&wbuf[0]))},
		{addr: p.addr, flags: i2cMsgRD, length: 1, buf: uintptr(unsafe.Pointer(&rbuf[0]))},
	}
	rdwr := i2cRdwr{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: 2}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), i2cRdwrIOCTL, uintptr(unsafe.Pointer(&rdwr))); errno != 0 {
		slog.Debug("i2c: read failed", "reg", fmt.Sprintf("0x%02X", reg), "err", errno)
		return 0, &BusError{Op: "read", Reg: reg, Err: errno}
	}
	return rbuf[0], nil
}

// writeByteData performs a combined write of [reg, val] using I2C_RDWR.
// This is equivalent to i2c_smbus_write_byte_data(client, reg, val).
func (p *I2CPort) writeByteData(fd int, reg Register, val byte) error {
	wbuf := [2]byte{reg, val}
	msgs := [1]i2cMsg{
		{addr: p.addr, flags: 0, length: 2, buf: uintptr(unsafe.Pointer(&wbuf[0]))},
	}
	rdwr := i2cRdwr{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: 1}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), i2cRdwrIOCTL, uintptr(unsafe.Pointer(&rdwr))); errno != 0 {
		slog.Debug("i2c: write failed", "reg", fmt.Sprintf("0x%02X", reg), "val", fmt.Sprintf("0x%02X", val), "err", errno)
		return &BusError{Op: "write", Reg: reg, Err: errno}
	}
	return nil
}
