// Package hardware provides the register access layer for the UPM6720 charge
// pump. It defines the Port interface used by every higher component and the
// real (Linux I2C, periph.io) and mock implementations of it.
package hardware

import (
	"context"
	"errors"
	"fmt"
)

// Register is a device register address.
type Register = byte

// Port is the register access port of a single charge-pump device.
// Implementations serialize all bus traffic behind one mutex, so UpdateBits
// is an atomic read-modify-write with respect to other Port calls.
type Port interface {
	// Read reads a single register.
	Read(ctx context.Context, reg Register) (byte, error)

	// Write writes a single register.
	Write(ctx context.Context, reg Register, val byte) error

	// UpdateBits replaces the bits selected by mask with the same bits of val.
	UpdateBits(ctx context.Context, reg Register, mask, val byte) error
}

var errNotOpen = errors.New("port not open")

// BusError is a transport failure on a single register operation.
type BusError struct {
	Op  string // "read" or "write"
	Reg Register
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bus %s reg 0x%02X: %v", e.Op, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// ReadPair reads a big-endian register pair (high byte at reg, low byte at
// reg+1) as two independent single-byte reads.
func ReadPair(ctx context.Context, p Port, reg Register) (hi, lo byte, err error) {
	hi, err = p.Read(ctx, reg)
	if err != nil {
		return 0, 0, err
	}
	lo, err = p.Read(ctx, reg+1)
	if err != nil {
		return 0, 0, err
	}
	return hi, lo, nil
}

// SetBit sets or clears the bits in mask.
func SetBit(ctx context.Context, p Port, reg Register, mask byte, on bool) error {
	var val byte
	if on {
		val = mask
	}
	return p.UpdateBits(ctx, reg, mask, val)
}
