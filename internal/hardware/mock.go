package hardware

import (
	"context"
	"sync"
)

// Op is one register access recorded by Mock.
type Op struct {
	Write bool
	Reg   Register
	Val   byte
}

// Mock is a thread-safe in-memory charge pump for testing and development.
type Mock struct {
	mu        sync.Mutex
	regs      map[Register]byte
	ops       []Op
	failRead  map[Register]bool
	failWrite map[Register]bool
	failAllRd bool
	failAllWr bool
	clearOnRd map[Register]bool
}

// NewMock creates a mock with power-on defaults: standalone mode, ADC off,
// device id 0x0 and every protection enabled.
func NewMock() *Mock {
	m := &Mock{
		regs:      make(map[Register]byte),
		failRead:  make(map[Register]bool),
		failWrite: make(map[Register]bool),
		clearOnRd: make(map[Register]bool),
	}
	for r := RegFlag1; r <= RegFlag5; r++ {
		m.clearOnRd[r] = true
	}
	return m
}

// SetReg sets a register without recording an operation.
func (m *Mock) SetReg(reg Register, val byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[reg] = val
}

// GetReg returns a register value for testing purposes.
func (m *Mock) GetReg(reg Register) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[reg]
}

// SetFailWrite configures the mock to fail all write operations.
func (m *Mock) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAllWr = fail
}

// SetFailRead configures the mock to fail all read operations.
func (m *Mock) SetFailRead(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAllRd = fail
}

// FailReadAt makes reads of reg fail.
func (m *Mock) FailReadAt(reg Register, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead[reg] = fail
}

// FailWriteAt makes writes (and read-modify-writes) of reg fail.
func (m *Mock) FailWriteAt(reg Register, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite[reg] = fail
}

// Ops returns a copy of every operation performed so far.
func (m *Mock) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Op, len(m.ops))
	copy(out, m.ops)
	return out
}

// Writes returns the recorded writes only.
func (m *Mock) Writes() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Op
	for _, op := range m.ops {
		if op.Write {
			out = append(out, op)
		}
	}
	return out
}

// ReadCount reports how many times reg was read.
func (m *Mock) ReadCount(reg Register) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, op := range m.ops {
		if !op.Write && op.Reg == reg {
			n++
		}
	}
	return n
}

// ResetOps clears the operation log.
func (m *Mock) ResetOps() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
}

func (m *Mock) Read(ctx context.Context, reg Register) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read(reg)
}

func (m *Mock) Write(ctx context.Context, reg Register, val byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(reg, val)
}

func (m *Mock) UpdateBits(ctx context.Context, reg Register, mask, val byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAllWr || m.failWrite[reg] {
		return &BusError{Op: "write", Reg: reg, Err: ErrHardware("mock: write failure configured")}
	}
	cur, err := m.read(reg)
	if err != nil {
		return err
	}
	return m.write(reg, cur&^mask|val&mask)
}

func (m *Mock) read(reg Register) (byte, error) {
	m.ops = append(m.ops, Op{Reg: reg})
	if m.failAllRd || m.failRead[reg] {
		return 0, &BusError{Op: "read", Reg: reg, Err: ErrHardware("mock: read failure configured")}
	}
	v := m.regs[reg]
	if m.clearOnRd[reg] {
		m.regs[reg] = 0
	}
	return v, nil
}

func (m *Mock) write(reg Register, val byte) error {
	m.ops = append(m.ops, Op{Write: true, Reg: reg, Val: val})
	if m.failAllWr || m.failWrite[reg] {
		return &BusError{Op: "write", Reg: reg, Err: ErrHardware("mock: write failure configured")}
	}
	m.regs[reg] = val
	return nil
}

// HardwareError is returned when a hardware operation fails.
type HardwareError struct {
	msg string
}

func (e HardwareError) Error() string { return e.msg }

// ErrHardware creates a new hardware error.
func ErrHardware(msg string) error { return HardwareError{msg: msg} }
