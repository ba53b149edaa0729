package charger

import (
	"context"
	"errors"
	"fmt"

	"github.com/micro-nova/upm6720d/internal/hardware"
)

// setSurgeProtect writes the surge protection pair in the vendor page.
// Disabling only clears the first register.
func (d *Device) setSurgeProtect(ctx context.Context, on bool) error {
	if !on {
		return d.port.Write(ctx, hardware.RegSurge0, hardware.SurgeOff0)
	}
	return errors.Join(
		d.port.Write(ctx, hardware.RegSurge0, hardware.SurgeOn0),
		d.port.Write(ctx, hardware.RegSurge1, hardware.SurgeOn1),
	)
}

// SetChargeEnabled switches the converter. Surge protection is lifted
// before charging starts and restored before it stops. Both writes are
// attempted; the first error is returned.
func (d *Device) SetChargeEnabled(ctx context.Context, enable bool) error {
	surgeErr := d.setSurgeProtect(ctx, !enable)
	if surgeErr != nil {
		d.log.Warn("charger: surge protection write failed", "enable", !enable, "err", surgeErr)
	}
	if err := hardware.SetBit(ctx, d.port, hardware.RegChgCtrl, hardware.ChgEnMask, enable); err != nil {
		return fmt.Errorf("charger: set CHG_EN: %w", err)
	}
	d.log.Info("charger: charge enable", "enable", enable)
	if surgeErr != nil {
		return fmt.Errorf("charger: surge protection: %w", surgeErr)
	}
	return nil
}

// ChargeEnabled reports whether charging is requested and the converter is
// actually switching.
func (d *Device) ChargeEnabled(ctx context.Context) (bool, error) {
	ctrl, err := d.port.Read(ctx, hardware.RegChgCtrl)
	if err != nil {
		return false, fmt.Errorf("charger: read control: %w", err)
	}
	st, err := d.port.Read(ctx, hardware.RegStat5)
	if err != nil {
		return false, fmt.Errorf("charger: read status: %w", err)
	}
	return ctrl&hardware.ChgEnMask != 0 && st&hardware.ConvActiveStat != 0, nil
}
