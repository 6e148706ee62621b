// Package bus issues 32-bit register reads and writes to a LAN78xx device.
//
// Every access is one vendor control transfer on endpoint 0 carrying a
// 4-byte little-endian payload. A [Bus] owns the only lock for its device;
// multi-transaction sequences run under [Bus.Exclusive] so no other
// register traffic interleaves with them.
package bus

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ardnew/muge/host/hal"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// RegisterSize is the payload size of one register transaction.
const RegisterSize = 4

// maxAddr is the largest address representable in wIndex.
const maxAddr = 0xFFFF

// Accessor performs single register transactions.
//
// The Accessor passed to an [Bus.Exclusive] callback is only valid for the
// duration of that callback.
type Accessor interface {
	Read(ctx context.Context, addr regs.Addr) (uint32, error)
	Write(ctx context.Context, addr regs.Addr, value uint32) error
}

// Bus serializes register access to one device.
type Bus struct {
	mu sync.Mutex
	t  hal.Transport
}

// New returns a Bus issuing transfers on t.
func New(t hal.Transport) *Bus {
	return &Bus{t: t}
}

// Speed returns the link speed reported by the transport.
func (b *Bus) Speed() hal.Speed {
	return b.t.Speed()
}

// Close closes the underlying transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.t.Close()
}

// Read returns the value of the register at addr.
func (b *Bus) Read(ctx context.Context, addr regs.Addr) (uint32, error) {
	var v uint32
	err := b.Exclusive(ctx, func(ctx context.Context, a Accessor) error {
		var err error
		v, err = a.Read(ctx, addr)
		return err
	})
	return v, err
}

// Write stores value in the register at addr.
func (b *Bus) Write(ctx context.Context, addr regs.Addr, value uint32) error {
	return b.Exclusive(ctx, func(ctx context.Context, a Accessor) error {
		return a.Write(ctx, addr, value)
	})
}

// Modify clears the bits in clear and sets the bits in set of the register
// at addr as one atomic read-modify-write.
func (b *Bus) Modify(ctx context.Context, addr regs.Addr, clear, set uint32) error {
	return b.Exclusive(ctx, func(ctx context.Context, a Accessor) error {
		return Modify(ctx, a, addr, clear, set)
	})
}

// Stats reads the raw statistics block into buf.
func (b *Bus) Stats(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 || len(buf) > 0xFFFF {
		return 0, pkg.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	setup := hal.VendorSetup(true, regs.RequestGetStats, 0, 0, uint16(len(buf)))
	n, err := b.t.ControlTransfer(context.WithoutCancel(ctx), &setup, buf)
	if err != nil {
		return n, &pkg.BusError{Op: "stats", Err: err}
	}
	pkg.LogDebug(pkg.ComponentBus, "statistics read", "bytes", n)
	return n, nil
}

// Exclusive runs fn with the bus lock held.
//
// ctx is checked once on entry. fn receives a context that is never
// cancelled so that an indirect sequence, once started, always finishes.
// fn must issue its transactions through a and must not call back into b.
func (b *Bus) Exclusive(ctx context.Context, fn func(ctx context.Context, a Accessor) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(context.WithoutCancel(ctx), locked{b})
}

// Modify performs a read-modify-write through a.
func Modify(ctx context.Context, a Accessor, addr regs.Addr, clear, set uint32) error {
	v, err := a.Read(ctx, addr)
	if err != nil {
		return err
	}
	return a.Write(ctx, addr, v&^clear|set)
}

// locked issues transactions on a Bus whose lock the caller already holds.
type locked struct {
	b *Bus
}

func (l locked) Read(ctx context.Context, addr regs.Addr) (uint32, error) {
	if err := checkAddr(addr); err != nil {
		return 0, err
	}
	var buf [RegisterSize]byte
	setup := hal.VendorSetup(true, regs.RequestReadReg, 0, uint16(addr), RegisterSize)
	n, err := l.b.t.ControlTransfer(ctx, &setup, buf[:])
	if err != nil {
		return 0, &pkg.BusError{Op: "read", Addr: uint32(addr), Err: err}
	}
	if n != RegisterSize {
		return 0, &pkg.BusError{Op: "read", Addr: uint32(addr),
			Err: fmt.Errorf("%w: %d of %d bytes", pkg.ErrShortTransfer, n, RegisterSize)}
	}
	v := binary.LittleEndian.Uint32(buf[:])
	pkg.LogDebug(pkg.ComponentBus, "register read",
		"addr", addr, "name", regs.Lookup(addr), "value", v)
	return v, nil
}

func (l locked) Write(ctx context.Context, addr regs.Addr, value uint32) error {
	if err := checkAddr(addr); err != nil {
		return err
	}
	var buf [RegisterSize]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	setup := hal.VendorSetup(false, regs.RequestWriteReg, 0, uint16(addr), RegisterSize)
	n, err := l.b.t.ControlTransfer(ctx, &setup, buf[:])
	if err != nil {
		return &pkg.BusError{Op: "write", Addr: uint32(addr), Err: err}
	}
	if n != RegisterSize {
		return &pkg.BusError{Op: "write", Addr: uint32(addr),
			Err: fmt.Errorf("%w: %d of %d bytes", pkg.ErrShortTransfer, n, RegisterSize)}
	}
	pkg.LogDebug(pkg.ComponentBus, "register write",
		"addr", addr, "name", regs.Lookup(addr), "value", value)
	return nil
}

func checkAddr(addr regs.Addr) error {
	if !addr.Aligned() || addr > maxAddr {
		return fmt.Errorf("%w: register address 0x%03x", pkg.ErrInvalidArgument, uint32(addr))
	}
	return nil
}
