package indirect

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardnew/muge/bus"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// The EEPROM pins are shared with LED0 and LED1.
const ledMask = regs.HWCfgLED0En | regs.HWCfgLED1En

func (e *Engine) execEEPROM(ctx context.Context, a bus.Accessor, req Request) (uint32, error) {
	if req.Op != OpReload && req.Addr >= regs.E2PSize {
		return 0, fmt.Errorf("%w: eeprom offset %d", pkg.ErrInvalidIndex, req.Addr)
	}
	cmd := func(op uint32) write {
		return write{addr: regs.E2PCmd, value: regs.E2PCmdBusy | op | req.Addr&regs.E2PCmdAddrMask}
	}
	switch req.Op {
	case OpRead:
		return e.run(ctx, a, sequence{
			target:  e.eeprom,
			command: cmd(regs.E2PCmdRead),
			result:  regs.E2PData,
			width:   0xFF,
		})
	case OpWrite, OpErase:
		if err := e.enableEEPROMWrite(ctx, a); err != nil {
			return 0, err
		}
		s := sequence{target: e.eeprom, command: cmd(regs.E2PCmdErase)}
		if req.Op == OpWrite {
			s.setup = []write{{addr: regs.E2PData, value: req.Payload & 0xFF}}
			s.command = cmd(regs.E2PCmdWrite)
		}
		return e.run(ctx, a, s)
	case OpReload:
		return e.run(ctx, a, sequence{
			target:  e.eeprom,
			command: write{addr: regs.E2PCmd, value: regs.E2PCmdBusy | regs.E2PCmdReload},
		})
	default:
		return 0, fmt.Errorf("%w: eeprom %v", pkg.ErrNotSupported, req.Op)
	}
}

func (e *Engine) enableEEPROMWrite(ctx context.Context, a bus.Accessor) error {
	_, err := e.run(ctx, a, sequence{
		target:  e.eeprom,
		command: write{addr: regs.E2PCmd, value: regs.E2PCmdBusy | regs.E2PCmdEWEN},
	})
	return err
}

// withLEDsOff disables the LED0/LED1 pin functions for the duration of fn
// and restores them afterwards, even when fn fails.
func (e *Engine) withLEDsOff(ctx context.Context, a bus.Accessor, fn func() error) error {
	saved, err := a.Read(ctx, regs.HWCfg)
	if err != nil {
		return err
	}
	if saved&ledMask != 0 {
		if err := a.Write(ctx, regs.HWCfg, saved&^ledMask); err != nil {
			return err
		}
	}
	err = fn()
	if saved&ledMask != 0 {
		if rerr := a.Write(ctx, regs.HWCfg, saved); err == nil {
			err = rerr
		}
	}
	return err
}

func checkRange(kind string, offset, n, size int) error {
	if offset < 0 || n < 0 || offset+n > size {
		return fmt.Errorf("%w: %s range [%d, %d) exceeds %d bytes",
			pkg.ErrInvalidIndex, kind, offset, offset+n, size)
	}
	return nil
}

// ReadEEPROM fills buf from EEPROM starting at offset.
func (e *Engine) ReadEEPROM(ctx context.Context, offset int, buf []byte) error {
	if err := checkRange("eeprom", offset, len(buf), regs.E2PSize); err != nil {
		return err
	}
	return e.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		return e.withLEDsOff(ctx, a, func() error {
			for i := range buf {
				v, err := e.execEEPROM(ctx, a, Request{
					Target: pkg.TargetEEPROM,
					Addr:   uint32(offset + i),
					Op:     OpRead,
				})
				if err != nil {
					return err
				}
				buf[i] = byte(v)
			}
			return nil
		})
	})
}

// WriteEEPROM programs data into EEPROM starting at offset.
func (e *Engine) WriteEEPROM(ctx context.Context, offset int, data []byte) error {
	if err := checkRange("eeprom", offset, len(data), regs.E2PSize); err != nil {
		return err
	}
	pkg.LogInfo(pkg.ComponentIndirect, "eeprom write", "offset", offset, "bytes", len(data))
	return e.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		return e.withLEDsOff(ctx, a, func() error {
			for i, b := range data {
				_, err := e.execEEPROM(ctx, a, Request{
					Target:  pkg.TargetEEPROM,
					Addr:    uint32(offset + i),
					Op:      OpWrite,
					Payload: uint32(b),
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// EraseEEPROM erases the byte at offset.
func (e *Engine) EraseEEPROM(ctx context.Context, offset int) error {
	if err := checkRange("eeprom", offset, 1, regs.E2PSize); err != nil {
		return err
	}
	_, err := e.Exec(ctx, Request{Target: pkg.TargetEEPROM, Addr: uint32(offset), Op: OpErase})
	return err
}

// ReloadEEPROM makes the chip reload its configuration from EEPROM.
func (e *Engine) ReloadEEPROM(ctx context.Context) error {
	_, err := e.Exec(ctx, Request{Target: pkg.TargetEEPROM, Op: OpReload})
	return err
}

// EEPROMPresent reports whether a programmed EEPROM is attached. A missing
// indicator byte or an unfitted EEPROM is not an error.
func (e *Engine) EEPROMPresent(ctx context.Context) (bool, error) {
	var sig [1]byte
	if err := e.ReadEEPROM(ctx, regs.E2PIndicatorOffset, sig[:]); err != nil {
		var te *pkg.TimeoutError
		if errors.As(err, &te) && te.Device {
			pkg.LogDebug(pkg.ComponentIndirect, "no eeprom fitted")
			return false, nil
		}
		return false, err
	}
	return sig[0] == regs.E2PIndicator, nil
}
