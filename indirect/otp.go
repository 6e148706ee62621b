package indirect

import (
	"context"
	"fmt"

	"github.com/ardnew/muge/bus"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// prepareOTP powers the OTP block up and resets it the first time it is
// used after a chip reset.
func (e *Engine) prepareOTP(ctx context.Context, a bus.Accessor) error {
	if e.otpReady.Load() {
		return nil
	}
	v, err := a.Read(ctx, regs.OTPPwrDn)
	if err != nil {
		return err
	}
	if v&regs.OTPPwrDnPwrDn != 0 {
		if err := a.Write(ctx, regs.OTPPwrDn, v&^regs.OTPPwrDnPwrDn); err != nil {
			return err
		}
		if _, err := e.WaitUntilIdle(ctx, a, e.otpPower); err != nil {
			return err
		}
	}
	_, err = e.run(ctx, a, sequence{
		target:  e.otp,
		setup:   []write{{addr: regs.OTPFuncCmd, value: regs.OTPFuncCmdReset}},
		command: write{addr: regs.OTPCmdGo, value: regs.OTPCmdGoGo},
	})
	if err != nil {
		return err
	}
	pkg.LogDebug(pkg.ComponentIndirect, "otp ready")
	e.otpReady.Store(true)
	return nil
}

func (e *Engine) execOTP(ctx context.Context, a bus.Accessor, req Request) (uint32, error) {
	if req.Addr >= regs.OTPSize {
		return 0, fmt.Errorf("%w: otp offset %d", pkg.ErrInvalidIndex, req.Addr)
	}
	s := sequence{
		target: e.otp,
		setup: []write{
			{addr: regs.OTPAddr1, value: req.Addr >> 11 & regs.OTPAddr1_15_11},
			{addr: regs.OTPAddr2, value: req.Addr >> 3 & regs.OTPAddr2_10_3},
			{addr: regs.OTPAddr3, value: req.Addr & regs.OTPAddr3_2_0},
		},
		command: write{addr: regs.OTPCmdGo, value: regs.OTPCmdGoGo},
		width:   0xFF,
	}
	switch req.Op {
	case OpRead:
		s.setup = append(s.setup, write{addr: regs.OTPFuncCmd, value: regs.OTPFuncCmdRead})
		s.result = regs.OTPRdData
	case OpWrite:
		s.setup = append(s.setup,
			write{addr: regs.OTPPrgmData, value: req.Payload & 0xFF},
			write{addr: regs.OTPFuncCmd, value: regs.OTPFuncCmdProgram})
	default:
		return 0, fmt.Errorf("%w: otp %v", pkg.ErrNotSupported, req.Op)
	}
	return e.run(ctx, a, s)
}

func (e *Engine) otpBytes(ctx context.Context, op Op, offset int, buf []byte) error {
	if err := checkRange("otp", offset, len(buf), regs.OTPSize); err != nil {
		return err
	}
	return e.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		if err := e.prepareOTP(ctx, a); err != nil {
			return err
		}
		for i := range buf {
			v, err := e.execOTP(ctx, a, Request{
				Target:  pkg.TargetOTP,
				Addr:    uint32(offset + i),
				Op:      op,
				Payload: uint32(buf[i]),
			})
			if err != nil {
				return err
			}
			if op == OpRead {
				buf[i] = byte(v)
			}
		}
		return nil
	})
}

// ReadOTP fills buf from the raw OTP array starting at offset.
func (e *Engine) ReadOTP(ctx context.Context, offset int, buf []byte) error {
	return e.otpBytes(ctx, OpRead, offset, buf)
}

// WriteOTP programs data into the raw OTP array starting at offset.
// Programmed bits cannot be cleared.
func (e *Engine) WriteOTP(ctx context.Context, offset int, data []byte) error {
	pkg.LogInfo(pkg.ComponentIndirect, "otp program", "offset", offset, "bytes", len(data))
	return e.otpBytes(ctx, OpWrite, offset, data)
}

// OTPPresent reports whether the OTP holds a valid image indicator.
func (e *Engine) OTPPresent(ctx context.Context) (bool, error) {
	var sig [1]byte
	if err := e.ReadOTP(ctx, regs.OTPIndicatorOffset, sig[:]); err != nil {
		return false, err
	}
	return sig[0] == regs.OTPIndicator1 || sig[0] == regs.OTPIndicator2, nil
}

// ReadOTPImage fills buf from the active OTP image starting at offset. An
// OTPIndicator2 marker selects the second image. It returns ErrNotPresent
// when neither indicator is programmed.
func (e *Engine) ReadOTPImage(ctx context.Context, offset int, buf []byte) error {
	var sig [1]byte
	if err := e.ReadOTP(ctx, regs.OTPIndicatorOffset, sig[:]); err != nil {
		return err
	}
	switch sig[0] {
	case regs.OTPIndicator1:
	case regs.OTPIndicator2:
		offset += regs.OTPImage2Offset
	default:
		return fmt.Errorf("otp image: %w", pkg.ErrNotPresent)
	}
	return e.ReadOTP(ctx, offset, buf)
}
