package pkg

import (
	"errors"
	"fmt"
)

// Driver errors.
var (
	// ErrBus indicates a transport-level failure reported by the USB collaborator.
	ErrBus = errors.New("bus error")

	// ErrIndirectTimeout indicates an indirect-access busy bit never cleared.
	ErrIndirectTimeout = errors.New("indirect access timeout")

	// ErrInvalidIndex indicates a table index or bit position out of range.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrInvalidArgument indicates an invalid parameter was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotPresent indicates an EEPROM or OTP image is absent.
	ErrNotPresent = errors.New("not present")

	// ErrNotConfigured indicates the device has not completed bringup.
	ErrNotConfigured = errors.New("device not configured")

	// ErrInvalidState indicates an invalid device state for the operation.
	ErrInvalidState = errors.New("invalid device state")

	// ErrNoDevice indicates the device is not present on the bus.
	ErrNoDevice = errors.New("device not present")

	// ErrShortTransfer indicates a control transfer moved fewer bytes than requested.
	ErrShortTransfer = errors.New("short transfer")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrStall indicates an endpoint stall condition.
	ErrStall = errors.New("endpoint stalled")
)

// Target names the hardware resource an indirect or polled access addresses.
type Target string

// Indirect access targets.
const (
	TargetMII      Target = "mii"
	TargetDataPort Target = "dataport"
	TargetEEPROM   Target = "eeprom"
	TargetOTP      Target = "otp"

	// Plain-register polls used during bringup.
	TargetSoftReset Target = "hw_cfg.srst"
	TargetPHYReset  Target = "pmt_ctl.phy_rst"
)

// String returns the target name.
func (t Target) String() string {
	return string(t)
}

// BusError wraps a transport failure for a single register transaction.
type BusError struct {
	Op   string // "read", "write" or "stats"
	Addr uint32 // Register address
	Err  error  // Cause reported by the transport
}

// Error implements error.
func (e *BusError) Error() string {
	return fmt.Sprintf("bus error: %s 0x%03x: %v", e.Op, e.Addr, e.Err)
}

// Unwrap returns the transport cause.
func (e *BusError) Unwrap() error {
	return e.Err
}

// Is reports whether target is [ErrBus].
func (e *BusError) Is(target error) bool {
	return target == ErrBus
}

// TimeoutError reports a busy bit that never cleared within its poll bound.
type TimeoutError struct {
	Target Target // Resource that stayed busy
	Polls  int    // Number of status reads performed
	Device bool   // Controller went idle but flagged the attached device as unresponsive
}

// Error implements error.
func (e *TimeoutError) Error() string {
	if e.Device {
		return fmt.Sprintf("indirect access timeout: %s device did not respond", e.Target)
	}
	return fmt.Sprintf("indirect access timeout: %s still busy after %d polls", e.Target, e.Polls)
}

// Is reports whether target is [ErrIndirectTimeout].
func (e *TimeoutError) Is(target error) bool {
	return target == ErrIndirectTimeout
}

// IsTimeout reports whether err is an indirect-access timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrIndirectTimeout)
}

// TimeoutTarget returns the target of a timeout error, if err wraps one.
func TimeoutTarget(err error) (Target, bool) {
	var te *TimeoutError
	if errors.As(err, &te) {
		return te.Target, true
	}
	return "", false
}
