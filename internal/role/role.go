// Package role resolves the charge pump's standalone/primary/secondary
// wiring from its operating-mode strap.
package role

import (
	"context"
	"fmt"

	"github.com/micro-nova/upm6720d/internal/hardware"
)

// Mode is the device's role in a single or dual charge-pump system.
type Mode int

const (
	Standalone Mode = iota
	Slave
	Master
)

func (m Mode) String() string {
	switch m {
	case Standalone:
		return "standalone"
	case Slave:
		return "slave"
	case Master:
		return "master"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the String form of a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "standalone":
		return Standalone, nil
	case "slave", "secondary":
		return Slave, nil
	case "master", "primary":
		return Master, nil
	}
	return Standalone, fmt.Errorf("role: unknown mode %q", s)
}

// SupplyName is the name the device is published under for its role.
func (m Mode) SupplyName() string {
	switch m {
	case Master:
		return "upm6720-master"
	case Slave:
		return "upm6720-slave"
	}
	return "charger_standalone"
}

// FromField maps the 2-bit mode field. Only the primary and secondary codes
// are recognised; everything else is standalone.
func FromField(v byte) Mode {
	switch v & hardware.MSMask {
	case hardware.MSPrimary:
		return Master
	case hardware.MSSecondary:
		return Slave
	}
	return Standalone
}

// Resolve reads the mode field from the device.
func Resolve(ctx context.Context, p hardware.Port) (Mode, error) {
	v, err := p.Read(ctx, hardware.RegVoutCtrl)
	if err != nil {
		return Standalone, fmt.Errorf("role: resolve: %w", err)
	}
	return FromField(v), nil
}

// MismatchError reports hardware strapped for a different role than
// configured.
type MismatchError struct {
	Expected Mode
	Resolved Mode
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("role: device strapped as %s, configured as %s", e.Resolved, e.Expected)
}

// Check returns a *MismatchError unless resolved equals expected.
func Check(expected, resolved Mode) error {
	if expected != resolved {
		return &MismatchError{Expected: expected, Resolved: resolved}
	}
	return nil
}
