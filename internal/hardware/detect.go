package hardware

import (
	"context"
	"fmt"
)

// PartUPM6720 is the device id reported by the UPM6720 in RegDeviceInfo[3:0].
const PartUPM6720 byte = 0x00

// DetectPart reads the device id field.
func DetectPart(ctx context.Context, p Port) (byte, error) {
	v, err := p.Read(ctx, RegDeviceInfo)
	if err != nil {
		return 0, fmt.Errorf("detect part: %w", err)
	}
	return v & DeviceIDMask, nil
}
