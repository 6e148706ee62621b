package linux

import (
	"context"
	"time"
)

// DefaultTimeout bounds one control transfer.
const DefaultTimeout = time.Second

// Options configures [Open].
type Options struct {
	// Timeout bounds each control transfer. Zero selects DefaultTimeout.
	Timeout time.Duration

	// Interface is the interface claimed when Detach is set.
	Interface uint8

	// Detach disconnects the kernel driver and claims Interface.
	Detach bool
}

// DefaultOptions returns options that leave the kernel driver bound.
func DefaultOptions() Options {
	return Options{Timeout: DefaultTimeout}
}

// timeoutMillis returns the transfer timeout in milliseconds, shortened to
// the time remaining on ctx. The result is at least 1 because usbfs treats
// 0 as no timeout.
func timeoutMillis(ctx context.Context, limit time.Duration) uint32 {
	d := limit
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if ms > 1<<31 {
		ms = 1 << 31
	}
	return uint32(ms)
}
