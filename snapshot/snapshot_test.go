package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardnew/muge/bus"
	"github.com/ardnew/muge/host/hal/sim"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCapture(t *testing.T) {
	chip := sim.New(sim.DefaultOptions())
	chip.Poke(regs.BurstCap, 24)
	b := bus.New(chip)

	snap, err := Capture(context.Background(), b, "sim0")
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if len(snap.Registers) != len(regs.DumpSet) {
		t.Fatalf("captured %d registers, want %d", len(snap.Registers), len(regs.DumpSet))
	}
	for i, r := range snap.Registers {
		if r.Addr != regs.DumpSet[i].Addr || r.Name != regs.DumpSet[i].Name {
			t.Errorf("register %d = %s@%v, want %s@%v",
				i, r.Name, r.Addr, regs.DumpSet[i].Name, regs.DumpSet[i].Addr)
		}
	}
	if v, ok := snap.Value(regs.IDRev); !ok || v != sim.DefaultIDRev {
		t.Errorf("ID_REV = 0x%08X, %v; want 0x%08X", v, ok, sim.DefaultIDRev)
	}
	if v, _ := snap.Value(regs.BurstCap); v != 24 {
		t.Errorf("BURST_CAP = %d, want 24", v)
	}
	if _, ok := snap.Value(regs.OTPPwrDn); ok {
		t.Error("Value() found a register outside the dump set")
	}
}

func TestCaptureReadFailure(t *testing.T) {
	chip := sim.New(sim.DefaultOptions())
	chip.FailReads(regs.MACCr, errors.New("stall"))

	snap, err := Capture(context.Background(), bus.New(chip), "sim0")
	if !errors.Is(err, pkg.ErrBus) {
		t.Fatalf("Capture() error = %v, want ErrBus", err)
	}
	if snap != nil {
		t.Error("Capture() returned a partial snapshot")
	}
}

func TestDiff(t *testing.T) {
	a := &Snapshot{Registers: []Register{
		{Name: "HW_CFG", Addr: regs.HWCfg, Value: 1},
		{Name: "MAC_CR", Addr: regs.MACCr, Value: 2},
	}}
	b := &Snapshot{Registers: []Register{
		{Name: "HW_CFG", Addr: regs.HWCfg, Value: 1},
		{Name: "MAC_CR", Addr: regs.MACCr, Value: 3},
		{Name: "MAC_RX", Addr: regs.MACRx, Value: 4},
	}}

	got := Diff(a, b)
	want := []Change{
		{Name: "MAC_CR", Addr: regs.MACCr, Old: 2, New: 3},
		{Name: "MAC_RX", Addr: regs.MACRx, Old: 0, New: 4},
	}
	if len(got) != len(want) {
		t.Fatalf("Diff() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Diff()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if d := Diff(b, b); len(d) != 0 {
		t.Errorf("Diff(b, b) = %v, want none", d)
	}
}

func TestStore(t *testing.T) {
	s := openStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		snap := &Snapshot{
			Device:    "sim0",
			Taken:     base.Add(time.Duration(i) * time.Second),
			Registers: []Register{{Name: "MAC_CR", Addr: regs.MACCr, Value: uint32(i)}},
		}
		if err := s.Save(snap); err != nil {
			t.Fatalf("Save(%d) error = %v", i, err)
		}
	}

	times, err := s.List("sim0")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(times) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(times))
	}
	for i, tm := range times {
		if want := base.Add(time.Duration(i) * time.Second); !tm.Equal(want) {
			t.Errorf("List()[%d] = %v, want %v", i, tm, want)
		}
	}

	got, err := s.Get("sim0", times[1])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v, _ := got.Value(regs.MACCr); v != 1 {
		t.Errorf("Get() MAC_CR = %d, want 1", v)
	}

	latest, err := s.Latest("sim0")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if !latest.Taken.Equal(times[2]) || latest.Device != "sim0" {
		t.Errorf("Latest() = %s at %v, want sim0 at %v", latest.Device, latest.Taken, times[2])
	}

	devices, err := s.Devices()
	if err != nil || len(devices) != 1 || devices[0] != "sim0" {
		t.Errorf("Devices() = %v, %v; want [sim0]", devices, err)
	}

	if err := s.Delete("sim0"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.List("sim0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("List() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestStoreErrors(t *testing.T) {
	s := openStore(t)

	if err := s.Save(&Snapshot{}); !errors.Is(err, pkg.ErrInvalidArgument) {
		t.Errorf("Save(no device) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := s.Latest("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.Get("missing", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Save(&Snapshot{Device: "sim0", Taken: time.Unix(1, 0)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := s.Get("sim0", time.Unix(2, 0)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(wrong time) error = %v, want ErrNotFound", err)
	}
}

func TestStoreRoundTripCapture(t *testing.T) {
	s := openStore(t)
	chip := sim.New(sim.DefaultOptions())

	snap, err := Capture(context.Background(), bus.New(chip), "sim0")
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if err := s.Save(snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Latest("sim0")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if d := Diff(snap, got); len(d) != 0 {
		t.Errorf("stored snapshot differs: %v", d)
	}
	if len(got.Registers) != len(snap.Registers) {
		t.Errorf("stored %d registers, want %d", len(got.Registers), len(snap.Registers))
	}
}
