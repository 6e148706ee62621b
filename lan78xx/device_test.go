package lan78xx

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/ardnew/muge/host/hal"
	"github.com/ardnew/muge/host/hal/sim"
	"github.com/ardnew/muge/indirect"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

var testMAC = [6]byte{0x00, 0x80, 0x0F, 0x11, 0x22, 0x33}

func fastTiming() indirect.Timing {
	return indirect.Timing{Polls: 5}
}

// newTestDevice returns a device over a simulated chip with short poll
// bounds and no sleeping.
func newTestDevice(t *testing.T, simOpts sim.Options, mod func(*Options)) (*Device, *sim.Chip) {
	t.Helper()
	chip := sim.New(simOpts)
	return newTestDeviceOn(t, chip, mod), chip
}

func newTestDeviceOn(t *testing.T, tr hal.Transport, mod func(*Options)) *Device {
	t.Helper()
	opts := DefaultOptions()
	opts.Indirect = indirect.Options{
		MII:      fastTiming(),
		DataPort: fastTiming(),
		EEPROM:   fastTiming(),
		OTP:      fastTiming(),
		Sleep:    func(time.Duration) {},
	}
	opts.Reset = fastTiming()
	opts.FallbackMAC = testMAC
	if mod != nil {
		mod(&opts)
	}
	return New(tr, opts)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
		ready bool
	}{
		{StatePoweredOff, "PoweredOff", false},
		{StateResetInProgress, "ResetInProgress", false},
		{StateConfigured, "Configured", true},
		{StateRunning, "Running", true},
		{StateFaulted, "Faulted", false},
		{State(42), "State(42)", false},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.state.Ready(); got != tt.ready {
				t.Errorf("Ready() = %v, want %v", got, tt.ready)
			}
		})
	}
}

func TestParseMDIX(t *testing.T) {
	tests := []struct {
		in      string
		want    MDIX
		wantErr bool
	}{
		{"auto", MDIXAuto, false},
		{"", MDIXAuto, false},
		{"mdi", MDIXForceMDI, false},
		{"mdix", MDIXForceMDIX, false},
		{"cross", MDIXAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseMDIX(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMDIX(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMDIX(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Options)
		want error
	}{
		{"defaults", func(*Options) {}, nil},
		{"phy address", func(o *Options) { o.PHYAddr = 32 }, pkg.ErrInvalidArgument},
		{"rx fifo small", func(o *Options) { o.RxFIFOSize = 100 }, pkg.ErrInvalidArgument},
		{"tx fifo large", func(o *Options) { o.TxFIFOSize = regs.MaxTxFIFOSize + 1 }, pkg.ErrInvalidArgument},
		{"frame size", func(o *Options) { o.MaxFrameSize = 0x4000 }, pkg.ErrInvalidArgument},
		{"mdix", func(o *Options) { o.MDIX = 7 }, pkg.ErrInvalidArgument},
		{"vlan", func(o *Options) { o.VLANs = []uint16{4096} }, pkg.ErrInvalidIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mod(&o)
			err := o.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGating(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDevice(t, sim.DefaultOptions(), nil)

	if _, err := d.FilterTable(); !errors.Is(err, pkg.ErrNotConfigured) {
		t.Errorf("FilterTable() before bringup error = %v, want ErrNotConfigured", err)
	}
	if _, err := d.EncodeTxCommand(64, true); !errors.Is(err, pkg.ErrNotConfigured) {
		t.Errorf("EncodeTxCommand() before bringup error = %v, want ErrNotConfigured", err)
	}
	if _, err := d.DecodeRxCommand(64); !errors.Is(err, pkg.ErrNotConfigured) {
		t.Errorf("DecodeRxCommand() before bringup error = %v, want ErrNotConfigured", err)
	}
	if err := d.SetMACAddress(ctx, testMAC); !errors.Is(err, pkg.ErrNotConfigured) {
		t.Errorf("SetMACAddress() before bringup error = %v, want ErrNotConfigured", err)
	}

	if err := d.Bringup(ctx); err != nil {
		t.Fatalf("Bringup() error = %v", err)
	}
	ft, err := d.FilterTable()
	if err != nil {
		t.Fatalf("FilterTable() error = %v", err)
	}
	if err := ft.AddVLAN(ctx, 7); err != nil {
		t.Errorf("AddVLAN() while running error = %v", err)
	}
	w, err := d.EncodeTxCommand(1514, true)
	if err != nil || w != 0x004005EA {
		t.Errorf("EncodeTxCommand() = 0x%08X, %v, want 0x004005EA", w, err)
	}
	rx, err := d.DecodeRxCommand(0x00400040)
	if err != nil || rx.Length != 64 || !rx.ReceiveError {
		t.Errorf("DecodeRxCommand() = %+v, %v", rx, err)
	}

	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := ft.AddVLAN(ctx, 8); !errors.Is(err, pkg.ErrNotConfigured) {
		t.Errorf("AddVLAN() after shutdown error = %v, want ErrNotConfigured", err)
	}
	if _, err := ft.List(ctx); !errors.Is(err, pkg.ErrNotConfigured) {
		t.Errorf("List() after shutdown error = %v, want ErrNotConfigured", err)
	}
}

func TestShutdown(t *testing.T) {
	ctx := context.Background()
	d, chip := newTestDevice(t, sim.DefaultOptions(), nil)

	if err := d.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() from PoweredOff error = %v", err)
	}
	if err := d.Bringup(ctx); err != nil {
		t.Fatalf("Bringup() error = %v", err)
	}
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if d.State() != StatePoweredOff {
		t.Errorf("State() = %v, want PoweredOff", d.State())
	}
	checks := []struct {
		addr regs.Addr
		bit  uint32
	}{
		{regs.MACRx, regs.MACRxEn},
		{regs.MACTx, regs.MACTxTxEn},
		{regs.FCTRxCtl, regs.FCTRxCtlEn},
		{regs.FCTTxCtl, regs.FCTTxCtlEn},
		{regs.IntEPCtl, regs.IntEPCtlPHYInt},
	}
	for _, c := range checks {
		if chip.Peek(c.addr)&c.bit != 0 {
			t.Errorf("%v bit 0x%X still set after shutdown", c.addr, c.bit)
		}
	}
}

func TestShutdownFailure(t *testing.T) {
	ctx := context.Background()
	d, chip := newTestDevice(t, sim.DefaultOptions(), nil)
	if err := d.Bringup(ctx); err != nil {
		t.Fatalf("Bringup() error = %v", err)
	}
	chip.FailWrites(regs.MACTx, errors.New("stall"))
	if err := d.Shutdown(ctx); !errors.Is(err, pkg.ErrBus) {
		t.Errorf("Shutdown() error = %v, want ErrBus", err)
	}
	if d.State() != StateFaulted {
		t.Errorf("State() = %v, want Faulted", d.State())
	}
}

func TestChipID(t *testing.T) {
	d, _ := newTestDevice(t, sim.DefaultOptions(), nil)
	id, rev, err := d.ChipID(context.Background())
	if err != nil {
		t.Fatalf("ChipID() error = %v", err)
	}
	if id != 0x7800 || rev != 0x0002 {
		t.Errorf("ChipID() = 0x%04X, 0x%04X, want 0x7800, 0x0002", id, rev)
	}
}

func TestStats(t *testing.T) {
	d, _ := newTestDevice(t, sim.DefaultOptions(), nil)
	words, err := d.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if len(words) == 0 {
		t.Fatal("Stats() returned no counters")
	}
	for i, w := range words {
		if w != uint32(i) {
			t.Errorf("counter %d = %d, want %d", i, w, i)
		}
	}
}

func TestClose(t *testing.T) {
	d, _ := newTestDevice(t, sim.DefaultOptions(), nil)
	if err := d.Bringup(context.Background()); err != nil {
		t.Fatalf("Bringup() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, _, err := d.ChipID(context.Background()); !errors.Is(err, pkg.ErrNoDevice) {
		t.Errorf("ChipID() after close error = %v, want ErrNoDevice", err)
	}
}

// failRxEnable rejects the MAC_RX write that sets the receiver enable bit.
type failRxEnable struct {
	*sim.Chip
}

func (f failRxEnable) ControlTransfer(ctx context.Context, setup *hal.SetupPacket, data []byte) (int, error) {
	if setup.Request == regs.RequestWriteReg && regs.Addr(setup.Index) == regs.MACRx &&
		binary.LittleEndian.Uint32(data)&regs.MACRxEn != 0 {
		return 0, errors.New("pipe error")
	}
	return f.Chip.ControlTransfer(ctx, setup, data)
}

