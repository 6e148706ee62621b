package lan78xx

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/soypat/lneto/phy"

	"github.com/ardnew/muge/bus"
	"github.com/ardnew/muge/filter"
	"github.com/ardnew/muge/frame"
	"github.com/ardnew/muge/host/hal"
	"github.com/ardnew/muge/indirect"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// StatsSize is the length of the hardware statistics block in bytes.
const StatsSize = 47 * 4

// Device is one LAN78xx controller.
type Device struct {
	bus     *bus.Bus
	engine  *indirect.Engine
	filters *filter.Manager
	opts    Options

	mutex sync.RWMutex
	state State
	mac   [6]byte
	src   MACSource
}

// New returns a PoweredOff device using t.
func New(t hal.Transport, opts Options) *Device {
	b := bus.New(t)
	e := indirect.New(b, opts.Indirect)
	return &Device{
		bus:     b,
		engine:  e,
		filters: filter.New(e),
		opts:    opts,
	}
}

// State returns the current device state.
func (d *Device) State() State {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.state
}

func (d *Device) setState(s State) {
	d.mutex.Lock()
	prev := d.state
	d.state = s
	d.mutex.Unlock()
	if prev != s {
		pkg.LogInfo(pkg.ComponentBringup, "state change", "from", prev, "to", s)
	}
}

// Bus returns the register bus.
func (d *Device) Bus() *bus.Bus {
	return d.bus
}

// Engine returns the indirect access engine.
func (d *Device) Engine() *indirect.Engine {
	return d.engine
}

// Options returns the configuration the device was created with.
func (d *Device) Options() Options {
	return d.opts
}

func (d *Device) ready() error {
	if s := d.State(); !s.Ready() {
		return fmt.Errorf("%w: device is %v", pkg.ErrNotConfigured, s)
	}
	return nil
}

// FilterTable returns the filter tables. Every operation on the returned
// manager fails with pkg.ErrNotConfigured while the device is not
// Configured or Running.
func (d *Device) FilterTable() (*filter.Manager, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	return d.filters.Gated(d.ready), nil
}

// EncodeTxCommand builds the TX_CMD_A word for a frame of length bytes.
func (d *Device) EncodeTxCommand(length int, appendFCS bool) (uint32, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return frame.EncodeTx(length, appendFCS)
}

// DecodeRxCommand unpacks an RX_CMD_A word.
func (d *Device) DecodeRxCommand(w uint32) (frame.RxCommand, error) {
	if err := d.ready(); err != nil {
		return frame.RxCommand{}, err
	}
	return frame.DecodeRx(w), nil
}

// Shutdown stops the MAC and returns the device to PoweredOff. A Faulted
// device is returned to PoweredOff without touching the hardware.
func (d *Device) Shutdown(ctx context.Context) error {
	d.mutex.Lock()
	s := d.state
	if s == StateResetInProgress {
		d.mutex.Unlock()
		return fmt.Errorf("%w: bringup in progress", pkg.ErrInvalidState)
	}
	d.mutex.Unlock()

	switch s {
	case StatePoweredOff:
		return nil
	case StateFaulted:
		d.setState(StatePoweredOff)
		return nil
	}

	err := d.stopMAC(ctx)
	if err != nil {
		pkg.LogError(pkg.ComponentBringup, "shutdown failed", "error", err)
		d.setState(StateFaulted)
		return err
	}
	d.setState(StatePoweredOff)
	return nil
}

// stopMAC clears every enable bit that bringup sets, in reverse order. It
// attempts all of them and returns the joined errors.
func (d *Device) stopMAC(ctx context.Context) error {
	return d.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		stops := []struct {
			addr regs.Addr
			bit  uint32
		}{
			{regs.IntEPCtl, regs.IntEPCtlPHYInt},
			{regs.MACTx, regs.MACTxTxEn},
			{regs.MACRx, regs.MACRxEn},
			{regs.FCTTxCtl, regs.FCTTxCtlEn},
			{regs.FCTRxCtl, regs.FCTRxCtlEn},
		}
		var errs []error
		for _, st := range stops {
			errs = append(errs, bus.Modify(ctx, a, st.addr, st.bit, 0))
		}
		return errors.Join(errs...)
	})
}

// Close shuts the device down and releases the transport.
func (d *Device) Close() error {
	_ = d.Shutdown(context.Background())
	return d.bus.Close()
}

// ChipID returns the chip ID and revision from ID_REV.
func (d *Device) ChipID(ctx context.Context) (id, rev uint16, err error) {
	v, err := d.bus.Read(ctx, regs.IDRev)
	if err != nil {
		return 0, 0, err
	}
	return uint16((v & regs.IDRevChipIDMask) >> 16), uint16(v & regs.IDRevChipRevMask), nil
}

// Stats reads the hardware statistics counters.
func (d *Device) Stats(ctx context.Context) ([]uint32, error) {
	buf := make([]byte, StatsSize)
	n, err := d.bus.Stats(ctx, buf)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, n/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	return words, nil
}

// PHY returns the internal PHY bound to ctx.
func (d *Device) PHY(ctx context.Context) (*phy.Device, error) {
	var p phy.Device
	if err := p.ConfigureAs22(d.engine.MDIO(ctx), d.opts.PHYAddr); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrInvalidArgument, err)
	}
	return &p, nil
}
