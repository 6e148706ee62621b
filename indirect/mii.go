package indirect

import (
	"context"
	"fmt"

	"github.com/soypat/lneto/phy"

	"github.com/ardnew/muge/bus"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

const maxMIIAddr = 0x1F

func (e *Engine) execMII(ctx context.Context, a bus.Accessor, req Request) (uint32, error) {
	if req.Addr > MIIAddr(maxMIIAddr, maxMIIAddr) {
		return 0, fmt.Errorf("%w: mii address 0x%x", pkg.ErrInvalidArgument, req.Addr)
	}
	phyAddr, reg := req.Addr>>5, req.Addr&0x1F
	cmd := phyAddr<<regs.MIIPHYAddrShift&regs.MIIPHYAddrMask |
		reg<<regs.MIIRegShift&regs.MIIRegMask | regs.MIIBusy

	s := sequence{target: e.mii, width: regs.MIIDataMask}
	switch req.Op {
	case OpRead:
		s.command = write{addr: regs.MIIAccess, value: cmd | regs.MIIRead}
		s.result = regs.MIIData
	case OpWrite:
		s.setup = []write{{addr: regs.MIIData, value: req.Payload & regs.MIIDataMask}}
		s.command = write{addr: regs.MIIAccess, value: cmd | regs.MIIWrite}
	default:
		return 0, fmt.Errorf("%w: mii %v", pkg.ErrNotSupported, req.Op)
	}
	return e.run(ctx, a, s)
}

// ReadPHY reads register reg of the PHY at phyAddr.
func (e *Engine) ReadPHY(ctx context.Context, phyAddr, reg uint8) (uint16, error) {
	if phyAddr > maxMIIAddr || reg > maxMIIAddr {
		return 0, fmt.Errorf("%w: phy %d register %d", pkg.ErrInvalidArgument, phyAddr, reg)
	}
	v, err := e.Exec(ctx, Request{Target: pkg.TargetMII, Addr: MIIAddr(phyAddr, reg), Op: OpRead})
	return uint16(v), err
}

// WritePHY writes value to register reg of the PHY at phyAddr.
func (e *Engine) WritePHY(ctx context.Context, phyAddr, reg uint8, value uint16) error {
	if phyAddr > maxMIIAddr || reg > maxMIIAddr {
		return fmt.Errorf("%w: phy %d register %d", pkg.ErrInvalidArgument, phyAddr, reg)
	}
	_, err := e.Exec(ctx, Request{
		Target:  pkg.TargetMII,
		Addr:    MIIAddr(phyAddr, reg),
		Op:      OpWrite,
		Payload: uint32(value),
	})
	return err
}

// MDIO returns the MII engine as a Clause 22 MDIO bus. Every transaction
// it issues uses ctx.
func (e *Engine) MDIO(ctx context.Context) phy.MDIOBus {
	return mdio{ctx: ctx, e: e}
}

type mdio struct {
	ctx context.Context
	e   *Engine
}

func (m mdio) Read(phyAddr, devAddr uint8, regAddr uint16) (uint16, error) {
	if devAddr != 0 {
		return 0, fmt.Errorf("%w: clause 45 device %d", pkg.ErrNotSupported, devAddr)
	}
	if regAddr > maxMIIAddr {
		return 0, fmt.Errorf("%w: phy register %d", pkg.ErrInvalidArgument, regAddr)
	}
	return m.e.ReadPHY(m.ctx, phyAddr, uint8(regAddr))
}

func (m mdio) Write(phyAddr, devAddr uint8, regAddr, value uint16) error {
	if devAddr != 0 {
		return fmt.Errorf("%w: clause 45 device %d", pkg.ErrNotSupported, devAddr)
	}
	if regAddr > maxMIIAddr {
		return fmt.Errorf("%w: phy register %d", pkg.ErrInvalidArgument, regAddr)
	}
	return m.e.WritePHY(m.ctx, phyAddr, uint8(regAddr), value)
}
