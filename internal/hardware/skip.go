package hardware

import "context"

// SkipPort suppresses bus traffic for bring-up and debugging. With reads
// skipped every register reads as zero; with writes skipped writes are
// dropped. UpdateBits is dropped when either is skipped.
type SkipPort struct {
	next       Port
	skipReads  bool
	skipWrites bool
}

// NewSkipPort wraps next.
func NewSkipPort(next Port, skipReads, skipWrites bool) *SkipPort {
	return &SkipPort{next: next, skipReads: skipReads, skipWrites: skipWrites}
}

func (s *SkipPort) Read(ctx context.Context, reg Register) (byte, error) {
	if s.skipReads {
		return 0, nil
	}
	return s.next.Read(ctx, reg)
}

func (s *SkipPort) Write(ctx context.Context, reg Register, val byte) error {
	if s.skipWrites {
		return nil
	}
	return s.next.Write(ctx, reg, val)
}

func (s *SkipPort) UpdateBits(ctx context.Context, reg Register, mask, val byte) error {
	if s.skipReads || s.skipWrites {
		return nil
	}
	return s.next.UpdateBits(ctx, reg, mask, val)
}
