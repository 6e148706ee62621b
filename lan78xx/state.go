package lan78xx

import "fmt"

// State is the bringup state of a Device.
type State uint8

// Device states.
const (
	StatePoweredOff State = iota
	StateResetInProgress
	StateConfigured
	StateRunning
	StateFaulted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePoweredOff:
		return "PoweredOff"
	case StateResetInProgress:
		return "ResetInProgress"
	case StateConfigured:
		return "Configured"
	case StateRunning:
		return "Running"
	case StateFaulted:
		return "Faulted"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Ready reports whether s permits filter and frame path operations.
func (s State) Ready() bool {
	return s == StateConfigured || s == StateRunning
}

// Step names a bringup stage.
type Step string

// Bringup steps in execution order.
const (
	StepSoftReset     Step = "soft reset"
	StepFIFO          Step = "fifo sizing"
	StepUSB           Step = "usb config"
	StepPHYReset      Step = "phy reset"
	StepPHYConfig     Step = "phy config"
	StepMAC           Step = "mac config"
	StepAddress       Step = "station address"
	StepFilters       Step = "filter tables"
	StepFIFOEnable    Step = "fifo enable"
	StepRxEnable      Step = "mac rx enable"
	StepTxEnable      Step = "mac tx enable"
	StepPHYInterrupts Step = "phy interrupts"
)

// BringupError reports the bringup step that moved a device to Faulted.
type BringupError struct {
	Step Step
	Err  error
}

// Error implements error.
func (e *BringupError) Error() string {
	return fmt.Sprintf("bringup failed at %s: %v", e.Step, e.Err)
}

// Unwrap returns the cause.
func (e *BringupError) Unwrap() error {
	return e.Err
}
