package lan78xx

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ardnew/muge/filter"
	"github.com/ardnew/muge/host/hal"
	"github.com/ardnew/muge/host/hal/sim"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

func lastWrite(t *testing.T, chip *sim.Chip, addr regs.Addr) uint32 {
	t.Helper()
	w := chip.Writes(addr)
	if len(w) == 0 {
		t.Fatalf("%v never written", addr)
	}
	return w[len(w)-1]
}

// writeIndex returns the log position of the first write to addr whose
// value has all of bits set, or -1.
func writeIndex(chip *sim.Chip, addr regs.Addr, bits uint32) int {
	for i, tx := range chip.Log() {
		if tx.Write && tx.Err == nil && tx.Addr == addr && tx.Value&bits == bits {
			return i
		}
	}
	return -1
}

func TestBringup(t *testing.T) {
	d, chip := newTestDevice(t, sim.DefaultOptions(), nil)
	if err := d.Bringup(context.Background()); err != nil {
		t.Fatalf("Bringup() error = %v", err)
	}
	if d.State() != StateRunning {
		t.Fatalf("State() = %v, want Running", d.State())
	}

	tests := []struct {
		name string
		addr regs.Addr
		want uint32
	}{
		{"rx fifo end", regs.FCTRxFIFOEnd, 23},
		{"tx fifo end", regs.FCTTxFIFOEnd, 23},
		{"fct flow", regs.FCTFlow, 0x0211},
		{"flow", regs.Flow, regs.FlowCrTxFCEn | regs.FlowCrRxFCEn | 0xFFFF},
		{"burst cap", regs.BurstCap, regs.DefaultBurstCapSize / regs.HSUSBPktSize},
		{"bulk in delay", regs.BulkInDly, regs.DefaultBulkInDelay},
		{"int sts", regs.IntSts, regs.IntStsClearAll},
		{"rx addr low", regs.RxAddrL, 0x110F8000},
		{"rx addr high", regs.RxAddrH, 0x3322},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lastWrite(t, chip, tt.addr); got != tt.want {
				t.Errorf("%v = 0x%X, want 0x%X", tt.addr, got, tt.want)
			}
		})
	}

	bits := []struct {
		name string
		addr regs.Addr
		set  uint32
	}{
		{"usb cfg", regs.USBCfg0, regs.USBCfgBIR | regs.USBCfgBCE},
		{"hw cfg", regs.HWCfg, regs.HWCfgMEF},
		{"mac cr", regs.MACCr, regs.MACCrAutoDuplex | regs.MACCrAutoSpeed},
		{"mac rx", regs.MACRx, regs.MACRxEn},
		{"mac tx", regs.MACTx, regs.MACTxTxEn},
		{"fct rx", regs.FCTRxCtl, regs.FCTRxCtlEn},
		{"fct tx", regs.FCTTxCtl, regs.FCTTxCtlEn},
		{"rfe", regs.RFECtl, regs.RFECtlBcastEn | regs.RFECtlDAPerfect},
		{"int ep", regs.IntEPCtl, regs.IntEPCtlPHYInt},
	}
	for _, b := range bits {
		t.Run(b.name, func(t *testing.T) {
			if got := chip.Peek(b.addr); got&b.set != b.set {
				t.Errorf("%v = 0x%08X, want bits 0x%08X", b.addr, got, b.set)
			}
		})
	}

	frame := chip.Peek(regs.MACRx) & regs.MACRxMaxFrSizeMask >> regs.MACRxMaxFrSizeShift
	if frame != DefaultMaxFrameSize {
		t.Errorf("max frame size = %d, want %d", frame, DefaultMaxFrameSize)
	}
	if got := chip.PHYRegister(regs.PHYIntrMask); got != regs.PHYIntrLinkChange|regs.PHYIntrAnegComp {
		t.Errorf("phy interrupt mask = 0x%04X", got)
	}
	if hi := chip.Peek(regs.PFilterHi(0)); hi&regs.PFilterAddrValid == 0 || hi&regs.PFilterTypeSrc != 0 {
		t.Errorf("perfect filter 0 hi = 0x%08X, want valid destination", hi)
	}
	mac, src := d.MACAddress()
	if mac != testMAC || src != MACFromFallback {
		t.Errorf("MACAddress() = %x, %v, want %x, fallback", mac, src, testMAC)
	}
}

func TestBringupOrdering(t *testing.T) {
	d, chip := newTestDevice(t, sim.DefaultOptions(), nil)
	if err := d.Bringup(context.Background()); err != nil {
		t.Fatalf("Bringup() error = %v", err)
	}

	before := []struct {
		name          string
		first, second int
	}{
		{"rx fifo end before rx fifo enable",
			writeIndex(chip, regs.FCTRxFIFOEnd, 0), writeIndex(chip, regs.FCTRxCtl, regs.FCTRxCtlEn)},
		{"tx fifo end before tx fifo enable",
			writeIndex(chip, regs.FCTTxFIFOEnd, 0), writeIndex(chip, regs.FCTTxCtl, regs.FCTTxCtlEn)},
		{"soft reset before fifo sizing",
			writeIndex(chip, regs.HWCfg, regs.HWCfgSRST), writeIndex(chip, regs.FCTRxFIFOEnd, 0)},
		{"phy reset before mac config",
			writeIndex(chip, regs.PMTCtl, regs.PMTCtlPHYRst), writeIndex(chip, regs.MACCr, regs.MACCrAutoSpeed)},
		{"fifo enable before mac rx enable",
			writeIndex(chip, regs.FCTRxCtl, regs.FCTRxCtlEn), writeIndex(chip, regs.MACRx, regs.MACRxEn)},
		{"rx enable before tx enable",
			writeIndex(chip, regs.MACRx, regs.MACRxEn), writeIndex(chip, regs.MACTx, regs.MACTxTxEn)},
		{"tx enable before phy interrupts",
			writeIndex(chip, regs.MACTx, regs.MACTxTxEn), writeIndex(chip, regs.IntEPCtl, regs.IntEPCtlPHYInt)},
	}
	for _, b := range before {
		t.Run(b.name, func(t *testing.T) {
			if b.first < 0 || b.second < 0 {
				t.Fatalf("missing write: %d, %d", b.first, b.second)
			}
			if b.first >= b.second {
				t.Errorf("write %d not before write %d", b.first, b.second)
			}
		})
	}
}

func TestBringupResetTimeout(t *testing.T) {
	d, chip := newTestDevice(t, sim.DefaultOptions(), nil)
	chip.Force(regs.HWCfg, regs.HWCfgSRST, 0)

	err := d.Bringup(context.Background())
	if !errors.Is(err, pkg.ErrIndirectTimeout) {
		t.Fatalf("Bringup() error = %v, want ErrIndirectTimeout", err)
	}
	if target, ok := pkg.TimeoutTarget(err); !ok || target != pkg.TargetSoftReset {
		t.Errorf("TimeoutTarget() = %v, %v, want %v", target, ok, pkg.TargetSoftReset)
	}
	var be *BringupError
	if !errors.As(err, &be) || be.Step != StepSoftReset {
		t.Errorf("error = %v, want BringupError at %s", err, StepSoftReset)
	}
	if d.State() != StateFaulted {
		t.Errorf("State() = %v, want Faulted", d.State())
	}

	// Asserted, polled to the bound, then retried once.
	srst := 0
	for _, v := range chip.Writes(regs.HWCfg) {
		if v&regs.HWCfgSRST != 0 {
			srst++
		}
	}
	if srst != resetAttempts {
		t.Errorf("soft reset asserted %d times, want %d", srst, resetAttempts)
	}
	if idx := writeIndex(chip, regs.FCTRxFIFOEnd, 0); idx >= 0 {
		t.Error("configuration continued after reset timeout")
	}
}

// stickyReset reports HW_CFG.SRST set for the first n reads of HW_CFG.
type stickyReset struct {
	*sim.Chip
	n int
}

func (s *stickyReset) ControlTransfer(ctx context.Context, setup *hal.SetupPacket, data []byte) (int, error) {
	n, err := s.Chip.ControlTransfer(ctx, setup, data)
	if err == nil && setup.Request == regs.RequestReadReg && regs.Addr(setup.Index) == regs.HWCfg && s.n > 0 {
		s.n--
		v := binary.LittleEndian.Uint32(data) | regs.HWCfgSRST
		binary.LittleEndian.PutUint32(data, v)
	}
	return n, err
}

func TestBringupResetRecoversOnRetry(t *testing.T) {
	// One read for the first assert plus five polls exhausts the first
	// attempt; the second attempt sees the chip.
	chip := sim.New(sim.DefaultOptions())
	tr := &stickyReset{Chip: chip, n: 1 + 5}
	d := newTestDeviceOn(t, tr, nil)

	if err := d.Bringup(context.Background()); err != nil {
		t.Fatalf("Bringup() error = %v", err)
	}
	if d.State() != StateRunning {
		t.Errorf("State() = %v, want Running", d.State())
	}
	if tr.n != 0 {
		t.Errorf("%d stuck reads left", tr.n)
	}
}

func TestBringupPHYResetTimeout(t *testing.T) {
	d, chip := newTestDevice(t, sim.DefaultOptions(), nil)
	chip.Force(regs.PMTCtl, regs.PMTCtlPHYRst, 0)

	err := d.Bringup(context.Background())
	if target, ok := pkg.TimeoutTarget(err); !ok || target != pkg.TargetPHYReset {
		t.Fatalf("Bringup() error = %v, want phy reset timeout", err)
	}
	var be *BringupError
	if !errors.As(err, &be) || be.Step != StepPHYReset {
		t.Errorf("error = %v, want BringupError at %s", err, StepPHYReset)
	}
	if len(chip.Writes(regs.MACCr)) != 0 {
		t.Error("MAC_CR written after phy reset timeout")
	}
}

func TestBringupRxEnableFailure(t *testing.T) {
	chip := sim.New(sim.DefaultOptions())
	d := newTestDeviceOn(t, failRxEnable{chip}, nil)

	err := d.Bringup(context.Background())
	if !errors.Is(err, pkg.ErrBus) {
		t.Fatalf("Bringup() error = %v, want ErrBus", err)
	}
	var be *BringupError
	if !errors.As(err, &be) || be.Step != StepRxEnable {
		t.Errorf("error = %v, want BringupError at %s", err, StepRxEnable)
	}
	if d.State() != StateFaulted {
		t.Errorf("State() = %v, want Faulted", d.State())
	}
	if i := writeIndex(chip, regs.MACTx, regs.MACTxTxEn); i >= 0 {
		t.Errorf("MAC_TX enabled at log entry %d after receiver enable failed", i)
	}
}

func TestBringupFaultDisablesMAC(t *testing.T) {
	enables := []struct {
		addr regs.Addr
		bit  uint32
	}{
		{regs.FCTTxCtl, regs.FCTTxCtlEn},
		{regs.FCTRxCtl, regs.FCTRxCtlEn},
		{regs.MACRx, regs.MACRxEn},
		{regs.MACTx, regs.MACTxTxEn},
		{regs.IntEPCtl, regs.IntEPCtlPHYInt},
	}
	tests := []struct {
		fail regs.Addr
		step Step
	}{
		{regs.FCTRxCtl, StepFIFOEnable},
		{regs.MACTx, StepTxEnable},
		{regs.IntEPCtl, StepPHYInterrupts},
	}
	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			d, chip := newTestDevice(t, sim.DefaultOptions(), nil)
			chip.FailWrites(tt.fail, errors.New("stall"))

			err := d.Bringup(context.Background())
			var be *BringupError
			if !errors.As(err, &be) || be.Step != tt.step {
				t.Fatalf("Bringup() error = %v, want BringupError at %s", err, tt.step)
			}
			if d.State() != StateFaulted {
				t.Errorf("State() = %v, want Faulted", d.State())
			}
			for _, en := range enables {
				if v := chip.Peek(en.addr); v&en.bit != 0 {
					t.Errorf("%v = 0x%08X, bit 0x%X still set after fault", en.addr, v, en.bit)
				}
			}
		})
	}
}

func TestBringupBusFailure(t *testing.T) {
	d, chip := newTestDevice(t, sim.DefaultOptions(), nil)
	chip.FailWrites(regs.BurstCap, errors.New("timeout"))

	err := d.Bringup(context.Background())
	var be *BringupError
	if !errors.As(err, &be) || be.Step != StepUSB {
		t.Fatalf("Bringup() error = %v, want BringupError at %s", err, StepUSB)
	}
	if !errors.Is(err, pkg.ErrBus) {
		t.Errorf("error = %v, want ErrBus", err)
	}
}

func TestBringupStateTransitions(t *testing.T) {
	ctx := context.Background()
	d, chip := newTestDevice(t, sim.DefaultOptions(), nil)
	chip.Force(regs.HWCfg, regs.HWCfgSRST, 0)

	if err := d.Bringup(ctx); err == nil {
		t.Fatal("Bringup() succeeded with reset stuck")
	}
	if err := d.Bringup(ctx); !errors.Is(err, pkg.ErrInvalidState) {
		t.Errorf("Bringup() from Faulted error = %v, want ErrInvalidState", err)
	}
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() from Faulted error = %v", err)
	}
	if d.State() != StatePoweredOff {
		t.Fatalf("State() = %v, want PoweredOff", d.State())
	}

	chip.Force(regs.HWCfg, 0, 0)
	if err := d.Bringup(ctx); err != nil {
		t.Fatalf("Bringup() after shutdown error = %v", err)
	}
	if err := d.Bringup(ctx); !errors.Is(err, pkg.ErrInvalidState) {
		t.Errorf("Bringup() from Running error = %v, want ErrInvalidState", err)
	}
}

func TestBringupCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d, chip := newTestDevice(t, sim.DefaultOptions(), nil)

	err := d.Bringup(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Bringup() error = %v, want context.Canceled", err)
	}
	if len(chip.Log()) != 0 {
		t.Errorf("cancelled bringup issued %d transactions", len(chip.Log()))
	}
	if d.State() != StateFaulted {
		t.Errorf("State() = %v, want Faulted", d.State())
	}
}

func TestBringupInvalidOptions(t *testing.T) {
	d, _ := newTestDevice(t, sim.DefaultOptions(), func(o *Options) { o.PHYAddr = 40 })
	if err := d.Bringup(context.Background()); !errors.Is(err, pkg.ErrInvalidArgument) {
		t.Errorf("Bringup() error = %v, want ErrInvalidArgument", err)
	}
	if d.State() != StatePoweredOff {
		t.Errorf("State() = %v, want PoweredOff", d.State())
	}
}

func TestBringupFilters(t *testing.T) {
	group := [6]byte{0x01, 0x00, 0x5E, 0x00, 0x00, 0x01}
	d, chip := newTestDevice(t, sim.DefaultOptions(), func(o *Options) {
		o.VLANs = []uint16{100}
		o.RxMode = filter.RxMode{Multicast: [][6]byte{group}}
		o.ChecksumOffload = true
	})
	if err := d.Bringup(context.Background()); err != nil {
		t.Fatalf("Bringup() error = %v", err)
	}
	rfe := chip.Peek(regs.RFECtl)
	want := regs.RFECtlVLANFilter | regs.RFECtlChecksumOffload | regs.RFECtlBcastEn | regs.RFECtlDAPerfect
	if rfe&want != want {
		t.Errorf("RFE_CTL = 0x%08X, want bits 0x%08X", rfe, want)
	}
	if got := chip.DataPort(100 / 32); got != 1<<(100%32) {
		t.Errorf("vlan word 3 = 0x%08X, want 0x%08X", got, uint32(1<<(100%32)))
	}
	if hi := chip.Peek(regs.PFilterHi(1)); hi&regs.PFilterAddrValid == 0 {
		t.Error("multicast address not in perfect filter slot 1")
	}
}

func TestBringupSpeeds(t *testing.T) {
	tests := []struct {
		speed hal.Speed
		burst uint32
		flow  uint32
	}{
		{hal.SpeedSuper, regs.DefaultBurstCapSize / regs.SSUSBPktSize, 0x0812},
		{hal.SpeedHigh, regs.DefaultBurstCapSize / regs.HSUSBPktSize, 0x0211},
		{hal.SpeedFull, regs.DefaultBurstCapSize / regs.FSUSBPktSize, 0},
	}
	for _, tt := range tests {
		t.Run(tt.speed.String(), func(t *testing.T) {
			opts := sim.DefaultOptions()
			opts.Speed = tt.speed
			d, chip := newTestDevice(t, opts, nil)
			if err := d.Bringup(context.Background()); err != nil {
				t.Fatalf("Bringup() error = %v", err)
			}
			if got := chip.Peek(regs.BurstCap); got != tt.burst {
				t.Errorf("BURST_CAP = %d, want %d", got, tt.burst)
			}
			if got := chip.Peek(regs.FCTFlow); got != tt.flow {
				t.Errorf("FCT_FLOW = 0x%04X, want 0x%04X", got, tt.flow)
			}
		})
	}
}
