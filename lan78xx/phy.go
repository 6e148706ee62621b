package lan78xx

import (
	"context"

	"github.com/soypat/lneto/phy"

	"github.com/ardnew/muge/bus"
	"github.com/ardnew/muge/indirect"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// LinkStatus describes the PHY link.
type LinkStatus struct {
	Up          bool
	AutoNegDone bool
	Mode        phy.LinkMode
}

// SetMDIX selects the crossover mode through the PHY's extended page 1.
func (d *Device) SetMDIX(ctx context.Context, mode MDIX) error {
	addr := d.opts.PHYAddr
	// The page select and the mode update must not interleave with other
	// MII users.
	return d.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		if err := d.writePHYLocked(ctx, a, addr, regs.ExtPageAccess, regs.ExtPageSpace1); err != nil {
			return err
		}
		v, err := d.readPHYLocked(ctx, a, addr, regs.ExtModeCtrl)
		if err != nil {
			return err
		}
		v = v&^regs.ExtModeCtrlMDIXMask | mode.bits()
		if err := d.writePHYLocked(ctx, a, addr, regs.ExtModeCtrl, v); err != nil {
			return err
		}
		return d.writePHYLocked(ctx, a, addr, regs.ExtPageAccess, regs.ExtPageSpace0)
	})
}

func (d *Device) readPHYLocked(ctx context.Context, a bus.Accessor, addr, reg uint8) (uint16, error) {
	v, err := d.engine.ExecLocked(ctx, a, indirect.Request{
		Target: pkg.TargetMII,
		Addr:   indirect.MIIAddr(addr, reg),
		Op:     indirect.OpRead,
	})
	return uint16(v), err
}

func (d *Device) writePHYLocked(ctx context.Context, a bus.Accessor, addr, reg uint8, value uint16) error {
	_, err := d.engine.ExecLocked(ctx, a, indirect.Request{
		Target:  pkg.TargetMII,
		Addr:    indirect.MIIAddr(addr, reg),
		Op:      indirect.OpWrite,
		Payload: uint32(value),
	})
	return err
}

// Link reports the PHY link state. Mode is phy.LinkDown until
// auto-negotiation completes.
func (d *Device) Link(ctx context.Context) (LinkStatus, error) {
	p, err := d.PHY(ctx)
	if err != nil {
		return LinkStatus{}, err
	}
	bmsr, err := p.BasicStatus()
	if err != nil {
		return LinkStatus{}, err
	}
	st := LinkStatus{
		Up:          bmsr&phy.BMSRLinkStatus != 0,
		AutoNegDone: bmsr&phy.BMSRANComplete != 0,
	}
	if st.AutoNegDone {
		if st.Mode, err = p.NegotiatedLink(); err != nil {
			return LinkStatus{}, err
		}
	}
	return st, nil
}

// PHYInterrupts reads and thereby acknowledges the PHY interrupt status.
func (d *Device) PHYInterrupts(ctx context.Context) (uint16, error) {
	return d.engine.ReadPHY(ctx, d.opts.PHYAddr, regs.PHYIntrStat)
}
