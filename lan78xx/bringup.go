package lan78xx

import (
	"context"
	"fmt"

	"github.com/ardnew/muge/bus"
	"github.com/ardnew/muge/host/hal"
	"github.com/ardnew/muge/indirect"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// resetAttempts bounds how often a reset-class poll is tried.
const resetAttempts = 2

// Flow control thresholds for FCT_FLOW, in 512-byte FIFO blocks.
const (
	flowOnSS  = 9216
	flowOffSS = 4096
	flowOnHS  = 8704
	flowOffHS = 1024
)

func flowThreshold(n int) uint32 {
	return uint32((n+regs.FIFOBlockSize-1)/regs.FIFOBlockSize) & 0x7F
}

// fctFlow returns the FCT_FLOW value for a link speed.
func fctFlow(speed hal.Speed) uint32 {
	switch speed {
	case hal.SpeedSuper:
		return flowThreshold(flowOnSS) | flowThreshold(flowOffSS)<<8
	case hal.SpeedHigh:
		return flowThreshold(flowOnHS) | flowThreshold(flowOffHS)<<8
	default:
		return 0
	}
}

// packetSize returns the bulk packet size of a link speed.
func packetSize(speed hal.Speed) int {
	switch speed {
	case hal.SpeedSuper:
		return regs.SSUSBPktSize
	case hal.SpeedHigh:
		return regs.HSUSBPktSize
	default:
		return regs.FSUSBPktSize
	}
}

func fifoEnd(size int, mask uint32) uint32 {
	return uint32((size-regs.FIFOBlockSize)/regs.FIFOBlockSize) & mask
}

type step struct {
	name Step
	run  func(ctx context.Context) error
}

// Bringup resets and configures the chip, then starts the MAC. It may only
// be called from PoweredOff. On failure the device is Faulted and the error
// is a *BringupError.
func (d *Device) Bringup(ctx context.Context) error {
	if err := d.opts.Validate(); err != nil {
		return err
	}

	d.mutex.Lock()
	if d.state != StatePoweredOff {
		s := d.state
		d.mutex.Unlock()
		return fmt.Errorf("%w: bringup from %v", pkg.ErrInvalidState, s)
	}
	d.state = StateResetInProgress
	d.mutex.Unlock()
	pkg.LogInfo(pkg.ComponentBringup, "state change", "from", StatePoweredOff, "to", StateResetInProgress)

	configure := []step{
		{StepSoftReset, d.softReset},
		{StepFIFO, d.configureFIFO},
		{StepUSB, d.configureUSB},
		{StepPHYReset, d.resetPHY},
		{StepPHYConfig, d.configurePHY},
		{StepMAC, d.configureMAC},
		{StepAddress, d.configureAddress},
		{StepFilters, d.configureFilters},
		{StepFIFOEnable, d.enableFIFO},
	}
	if err := d.runSteps(ctx, configure); err != nil {
		return err
	}
	d.setState(StateConfigured)

	start := []step{
		{StepRxEnable, d.enableRx},
		{StepTxEnable, d.enableTx},
		{StepPHYInterrupts, d.enablePHYInterrupts},
	}
	if err := d.runSteps(ctx, start); err != nil {
		return err
	}
	d.setState(StateRunning)
	return nil
}

func (d *Device) runSteps(ctx context.Context, steps []step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return d.fault(ctx, s.name, err)
		}
		pkg.LogDebug(pkg.ComponentBringup, "step", "name", s.name)
		if err := s.run(ctx); err != nil {
			return d.fault(ctx, s.name, err)
		}
	}
	return nil
}

// fault moves the device to Faulted. A failure from FIFO enable onwards
// first clears the enable bits set so far.
func (d *Device) fault(ctx context.Context, name Step, err error) error {
	pkg.LogError(pkg.ComponentBringup, "bringup failed", "step", name, "error", err)
	if name == StepFIFOEnable || d.State() == StateConfigured {
		if serr := d.stopMAC(context.WithoutCancel(ctx)); serr != nil {
			pkg.LogWarn(pkg.ComponentBringup, "disable after fault", "error", serr)
		}
	}
	d.setState(StateFaulted)
	return &BringupError{Step: name, Err: err}
}

// resetPoll sets bit in addr and waits for the chip to clear it, trying a
// second time if the first poll times out.
func (d *Device) resetPoll(ctx context.Context, name pkg.Target, addr regs.Addr, bit uint32) error {
	t := indirect.Target{Name: name, Status: addr, Mask: bit, Timing: d.opts.Reset}
	var err error
	for attempt := 1; attempt <= resetAttempts; attempt++ {
		if err = d.bus.Modify(ctx, addr, 0, bit); err != nil {
			return err
		}
		if _, err = d.engine.Poll(ctx, t); !pkg.IsTimeout(err) {
			return err
		}
		pkg.LogWarn(pkg.ComponentBringup, "reset poll timed out", "target", name, "attempt", attempt)
	}
	return err
}

func (d *Device) softReset(ctx context.Context) error {
	if err := d.resetPoll(ctx, pkg.TargetSoftReset, regs.HWCfg, regs.HWCfgSRST); err != nil {
		return err
	}
	d.engine.Invalidate()
	d.filters.Reset()
	return nil
}

func (d *Device) configureFIFO(ctx context.Context) error {
	var flow, fct uint32
	if d.opts.FlowControl {
		flow = regs.FlowCrTxFCEn | regs.FlowCrRxFCEn | regs.FlowPauseMask
		fct = fctFlow(d.bus.Speed())
	}
	return d.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		writes := []struct {
			addr  regs.Addr
			value uint32
		}{
			{regs.FCTRxFIFOEnd, fifoEnd(d.opts.RxFIFOSize, regs.FCTRxFIFOEndMask)},
			{regs.FCTTxFIFOEnd, fifoEnd(d.opts.TxFIFOSize, regs.FCTTxFIFOEndMask)},
			{regs.FCTFlow, fct},
			{regs.Flow, flow},
		}
		for _, w := range writes {
			if err := a.Write(ctx, w.addr, w.value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Device) configureUSB(ctx context.Context) error {
	burst := uint32(d.opts.BurstCapSize / packetSize(d.bus.Speed()))
	return d.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		if err := bus.Modify(ctx, a, regs.USBCfg0, 0, regs.USBCfgBIR); err != nil {
			return err
		}
		if err := a.Write(ctx, regs.BurstCap, burst); err != nil {
			return err
		}
		if err := bus.Modify(ctx, a, regs.USBCfg0, 0, regs.USBCfgBCE); err != nil {
			return err
		}
		if err := a.Write(ctx, regs.BulkInDly, d.opts.BulkInDelay); err != nil {
			return err
		}
		if err := bus.Modify(ctx, a, regs.HWCfg, 0, regs.HWCfgMEF); err != nil {
			return err
		}
		return a.Write(ctx, regs.IntSts, regs.IntStsClearAll)
	})
}

func (d *Device) resetPHY(ctx context.Context) error {
	return d.resetPoll(ctx, pkg.TargetPHYReset, regs.PMTCtl, regs.PMTCtlPHYRst)
}

func (d *Device) configurePHY(ctx context.Context) error {
	if err := d.SetMDIX(ctx, d.opts.MDIX); err != nil {
		return err
	}
	p, err := d.PHY(ctx)
	if err != nil {
		return err
	}
	id1, err := p.ID1()
	if err != nil {
		return err
	}
	id2, err := p.ID2()
	if err != nil {
		return err
	}
	pkg.LogInfo(pkg.ComponentBringup, "phy", "addr", d.opts.PHYAddr, "id1", id1, "id2", id2)
	if err := p.EnableAutoNegotiation(true); err != nil {
		return err
	}
	return p.RestartAutoNeg()
}

func (d *Device) configureMAC(ctx context.Context) error {
	return d.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		err := bus.Modify(ctx, a, regs.MACCr, 0, regs.MACCrAutoDuplex|regs.MACCrAutoSpeed)
		if err != nil {
			return err
		}
		size := uint32(d.opts.MaxFrameSize) << regs.MACRxMaxFrSizeShift & regs.MACRxMaxFrSizeMask
		return bus.Modify(ctx, a, regs.MACRx, regs.MACRxMaxFrSizeMask, size)
	})
}

func (d *Device) configureAddress(ctx context.Context) error {
	mac, src, err := d.discoverMAC(ctx)
	if err != nil {
		return err
	}
	if err := d.writeMAC(ctx, mac); err != nil {
		return err
	}
	d.mutex.Lock()
	d.mac, d.src = mac, src
	d.mutex.Unlock()
	pkg.LogInfo(pkg.ComponentBringup, "station address", "mac", formatMAC(mac), "source", src)
	return nil
}

func (d *Device) configureFilters(ctx context.Context) error {
	if err := d.filters.Sync(ctx); err != nil {
		return err
	}
	for _, vid := range d.opts.VLANs {
		if err := d.filters.AddVLAN(ctx, vid); err != nil {
			return err
		}
	}
	if err := d.filters.SetRxMode(ctx, d.opts.RxMode); err != nil {
		return err
	}
	if err := d.filters.SetVLANFiltering(ctx, len(d.opts.VLANs) > 0); err != nil {
		return err
	}
	return d.filters.SetChecksumOffload(ctx, d.opts.ChecksumOffload)
}

func (d *Device) enableFIFO(ctx context.Context) error {
	if err := d.bus.Modify(ctx, regs.FCTTxCtl, 0, regs.FCTTxCtlEn); err != nil {
		return err
	}
	return d.bus.Modify(ctx, regs.FCTRxCtl, 0, regs.FCTRxCtlEn)
}

func (d *Device) enableRx(ctx context.Context) error {
	return d.bus.Modify(ctx, regs.MACRx, 0, regs.MACRxEn)
}

func (d *Device) enableTx(ctx context.Context) error {
	return d.bus.Modify(ctx, regs.MACTx, 0, regs.MACTxTxEn)
}

func (d *Device) enablePHYInterrupts(ctx context.Context) error {
	// Reading the status register acknowledges anything latched during reset.
	if _, err := d.engine.ReadPHY(ctx, d.opts.PHYAddr, regs.PHYIntrStat); err != nil {
		return err
	}
	mask := uint16(regs.PHYIntrLinkChange | regs.PHYIntrAnegComp)
	if err := d.engine.WritePHY(ctx, d.opts.PHYAddr, regs.PHYIntrMask, mask); err != nil {
		return err
	}
	return d.bus.Modify(ctx, regs.IntEPCtl, 0, regs.IntEPCtlPHYInt)
}
