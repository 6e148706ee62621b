package indirect

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"github.com/ardnew/muge/bus"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// Timing bounds a busy poll.
type Timing struct {
	Polls    int           // Maximum number of status reads
	Interval time.Duration // Fixed delay between status reads
}

// Total returns the worst-case time spent polling.
func (t Timing) Total() time.Duration {
	if t.Polls < 2 {
		return 0
	}
	return time.Duration(t.Polls-1) * t.Interval
}

// Default poll bounds.
var (
	DefaultMIITiming      = Timing{Polls: 100, Interval: time.Millisecond}
	DefaultDataPortTiming = Timing{Polls: 100, Interval: 40 * time.Microsecond}
	DefaultEEPROMTiming   = Timing{Polls: 200, Interval: 500 * time.Microsecond}
	DefaultOTPTiming      = Timing{Polls: 100, Interval: time.Millisecond}
)

// Options configures an Engine.
type Options struct {
	MII      Timing
	DataPort Timing
	EEPROM   Timing
	OTP      Timing

	// Sleep pauses between polls. Nil selects time.Sleep.
	Sleep func(time.Duration)
}

// DefaultOptions returns the default poll bounds.
func DefaultOptions() Options {
	return Options{
		MII:      DefaultMIITiming,
		DataPort: DefaultDataPortTiming,
		EEPROM:   DefaultEEPROMTiming,
		OTP:      DefaultOTPTiming,
		Sleep:    time.Sleep,
	}
}

// Target describes how to decide whether a polled resource is idle.
type Target struct {
	Name   pkg.Target
	Status regs.Addr // Register polled for the busy indication
	Mask   uint32    // Busy or ready bit(s) in Status

	// ReadyHigh is set when Mask reads 1 while idle.
	ReadyHigh bool

	// Fault bits, when set in an idle status, fail the access as a timeout.
	Fault uint32

	Timing
}

// Idle reports whether status shows t idle.
func (t Target) Idle(status uint32) bool {
	if t.ReadyHigh {
		return status&t.Mask == t.Mask
	}
	return status&t.Mask == 0
}

// Op is an indirect access operation.
type Op uint8

// Indirect operations. Erase and Reload apply only to the EEPROM.
const (
	OpRead Op = iota
	OpWrite
	OpErase
	OpReload
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpErase:
		return "erase"
	case OpReload:
		return "reload"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Request is a single indirect access.
//
// For MII, Addr is MIIAddr(phy, reg). For the Data Port, RAM selects the
// memory and Addr is the word offset within it. For EEPROM and OTP, Addr is
// a byte offset.
type Request struct {
	Target  pkg.Target
	Addr    uint32
	Op      Op
	Payload uint32
	RAM     uint32
}

// MIIAddr packs a PHY address and register number into a Request address.
func MIIAddr(phyAddr, reg uint8) uint32 {
	return uint32(phyAddr&0x1F)<<5 | uint32(reg&0x1F)
}

// Engine runs indirect access sequences over a register bus.
type Engine struct {
	bus   *bus.Bus
	sleep func(time.Duration)

	mii      Target
	dataPort Target
	eeprom   Target
	otp      Target
	otpPower Target

	// otpReady is cleared whenever the chip may have powered the OTP down.
	otpReady atomic.Bool
}

// New returns an Engine issuing sequences on b.
func New(b *bus.Bus, opts Options) *Engine {
	def := DefaultOptions()
	if opts.MII.Polls <= 0 {
		opts.MII = def.MII
	}
	if opts.DataPort.Polls <= 0 {
		opts.DataPort = def.DataPort
	}
	if opts.EEPROM.Polls <= 0 {
		opts.EEPROM = def.EEPROM
	}
	if opts.OTP.Polls <= 0 {
		opts.OTP = def.OTP
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Engine{
		bus:   b,
		sleep: opts.Sleep,
		mii: Target{
			Name:   pkg.TargetMII,
			Status: regs.MIIAccess,
			Mask:   regs.MIIBusy,
			Timing: opts.MII,
		},
		dataPort: Target{
			Name:      pkg.TargetDataPort,
			Status:    regs.DPSel,
			Mask:      regs.DPSelDPRdy,
			ReadyHigh: true,
			Timing:    opts.DataPort,
		},
		eeprom: Target{
			Name:   pkg.TargetEEPROM,
			Status: regs.E2PCmd,
			Mask:   regs.E2PCmdBusy,
			Fault:  regs.E2PCmdTimeout,
			Timing: opts.EEPROM,
		},
		otp: Target{
			Name:   pkg.TargetOTP,
			Status: regs.OTPStatus,
			Mask:   regs.OTPStatusBusy,
			Timing: opts.OTP,
		},
		otpPower: Target{
			Name:   pkg.TargetOTP,
			Status: regs.OTPPwrDn,
			Mask:   regs.OTPPwrDnPwrDn,
			Timing: opts.OTP,
		},
	}
}

// Bus returns the register bus the engine drives.
func (e *Engine) Bus() *bus.Bus {
	return e.bus
}

// Target returns the descriptor for name.
func (e *Engine) Target(name pkg.Target) (Target, bool) {
	switch name {
	case pkg.TargetMII:
		return e.mii, true
	case pkg.TargetDataPort:
		return e.dataPort, true
	case pkg.TargetEEPROM:
		return e.eeprom, true
	case pkg.TargetOTP:
		return e.otp, true
	default:
		return Target{}, false
	}
}

// Invalidate forgets OTP initialization. Call it after any chip reset.
func (e *Engine) Invalidate() {
	e.otpReady.Store(false)
}

// WaitUntilIdle polls t.Status through a until t reports idle, at most
// t.Polls times with t.Interval between reads. It returns the idle status.
func (e *Engine) WaitUntilIdle(ctx context.Context, a bus.Accessor, t Target) (uint32, error) {
	polls := max(t.Polls, 1)
	b := &backoff.Backoff{
		Min:    t.Interval,
		Max:    t.Interval,
		Factor: 1,
		Jitter: false,
	}
	for i := 1; i <= polls; i++ {
		v, err := a.Read(ctx, t.Status)
		if err != nil {
			return 0, err
		}
		if t.Idle(v) {
			if v&t.Fault != 0 {
				pkg.LogWarn(pkg.ComponentIndirect, "device reported timeout",
					"target", t.Name, "status", v)
				return v, &pkg.TimeoutError{Target: t.Name, Polls: i, Device: true}
			}
			return v, nil
		}
		if i < polls && t.Interval > 0 {
			e.sleep(b.Duration())
		}
	}
	pkg.LogWarn(pkg.ComponentIndirect, "busy poll exhausted",
		"target", t.Name, "polls", polls, "interval", t.Interval)
	return 0, &pkg.TimeoutError{Target: t.Name, Polls: polls}
}

// Poll runs WaitUntilIdle with the bus lock held.
func (e *Engine) Poll(ctx context.Context, t Target) (uint32, error) {
	var v uint32
	err := e.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		var err error
		v, err = e.WaitUntilIdle(ctx, a, t)
		return err
	})
	return v, err
}

// Exec performs req as one locked sequence and returns the value read, if
// any.
func (e *Engine) Exec(ctx context.Context, req Request) (uint32, error) {
	var v uint32
	err := e.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		var err error
		v, err = e.exec(ctx, a, req)
		return err
	})
	return v, err
}

// ExecLocked performs req through a, an accessor obtained from
// bus.Exclusive, so callers can chain several requests atomically.
func (e *Engine) ExecLocked(ctx context.Context, a bus.Accessor, req Request) (uint32, error) {
	return e.exec(ctx, a, req)
}

func (e *Engine) exec(ctx context.Context, a bus.Accessor, req Request) (uint32, error) {
	switch req.Target {
	case pkg.TargetMII:
		return e.execMII(ctx, a, req)
	case pkg.TargetDataPort:
		return e.execDataPort(ctx, a, req)
	case pkg.TargetEEPROM:
		var v uint32
		err := e.withLEDsOff(ctx, a, func() error {
			var err error
			v, err = e.execEEPROM(ctx, a, req)
			return err
		})
		return v, err
	case pkg.TargetOTP:
		if err := e.prepareOTP(ctx, a); err != nil {
			return 0, err
		}
		return e.execOTP(ctx, a, req)
	default:
		return 0, fmt.Errorf("%w: indirect target %q", pkg.ErrInvalidArgument, req.Target)
	}
}

// write is one register store in a sequence. A non-zero mask turns it into
// a read-modify-write that replaces only the masked bits.
type write struct {
	addr  regs.Addr
	value uint32
	mask  uint32
}

// sequence is the common shape of every indirect access.
type sequence struct {
	target  Target
	setup   []write   // Address selection and staged data
	command write     // Arms the busy indication
	result  regs.Addr // Data register read once idle, or 0
	width   uint32    // Mask applied to the result
}

// run executes s: wait idle, select and stage, issue the command, wait idle,
// then read the result.
func (e *Engine) run(ctx context.Context, a bus.Accessor, s sequence) (uint32, error) {
	if _, err := e.WaitUntilIdle(ctx, a, s.target); err != nil {
		return 0, err
	}
	for _, w := range s.setup {
		if err := store(ctx, a, w); err != nil {
			return 0, err
		}
	}
	if err := store(ctx, a, s.command); err != nil {
		return 0, err
	}
	if _, err := e.WaitUntilIdle(ctx, a, s.target); err != nil {
		return 0, err
	}
	if s.result == 0 {
		return 0, nil
	}
	v, err := a.Read(ctx, s.result)
	if err != nil {
		return 0, err
	}
	return v & s.width, nil
}

func store(ctx context.Context, a bus.Accessor, w write) error {
	if w.mask == 0 {
		return a.Write(ctx, w.addr, w.value)
	}
	return bus.Modify(ctx, a, w.addr, w.mask, w.value&w.mask)
}
