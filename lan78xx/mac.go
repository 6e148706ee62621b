package lan78xx

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/soypat/lneto/ethernet"

	"github.com/ardnew/muge/bus"
	"github.com/ardnew/muge/filter"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// MACSource records where the station address came from.
type MACSource uint8

// Address sources, in discovery order.
const (
	MACFromOptions MACSource = iota
	MACFromRegisters
	MACFromEEPROM
	MACFromOTP
	MACFromFallback
	MACRandom
)

// String returns the source name.
func (s MACSource) String() string {
	switch s {
	case MACFromOptions:
		return "options"
	case MACFromRegisters:
		return "registers"
	case MACFromEEPROM:
		return "eeprom"
	case MACFromOTP:
		return "otp"
	case MACFromFallback:
		return "fallback"
	case MACRandom:
		return "random"
	default:
		return fmt.Sprintf("source(%d)", uint8(s))
	}
}

// ValidMAC reports whether mac is usable as a station address: neither
// zero nor a group address.
func ValidMAC(mac [6]byte) bool {
	return mac != [6]byte{} && mac[0]&0x01 == 0
}

// ParseMAC parses a colon or dash separated 48-bit address.
func ParseMAC(s string) ([6]byte, error) {
	var mac [6]byte
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != len(mac) {
		return mac, fmt.Errorf("%w: mac address %q", pkg.ErrInvalidArgument, s)
	}
	copy(mac[:], hw)
	return mac, nil
}

func formatMAC(mac [6]byte) string {
	return string(ethernet.AppendAddr(nil, mac))
}

// MACAddress returns the station address and its source. It is zero before
// bringup programs it.
func (d *Device) MACAddress() ([6]byte, MACSource) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.mac, d.src
}

// SetMACAddress programs mac into RX_ADDRH/L and perfect filter slot 0.
func (d *Device) SetMACAddress(ctx context.Context, mac [6]byte) error {
	if err := d.ready(); err != nil {
		return err
	}
	if !ValidMAC(mac) {
		return fmt.Errorf("%w: station address %s", pkg.ErrInvalidArgument, formatMAC(mac))
	}
	if err := d.writeMAC(ctx, mac); err != nil {
		return err
	}
	d.mutex.Lock()
	d.mac, d.src = mac, MACFromOptions
	d.mutex.Unlock()
	return nil
}

func (d *Device) writeMAC(ctx context.Context, mac [6]byte) error {
	lo := binary.LittleEndian.Uint32(mac[0:4])
	hi := uint32(binary.LittleEndian.Uint16(mac[4:6]))
	err := d.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		if err := a.Write(ctx, regs.RxAddrL, lo); err != nil {
			return err
		}
		return a.Write(ctx, regs.RxAddrH, hi)
	})
	if err != nil {
		return err
	}
	return d.filters.Program(ctx, 0, filter.Entry{Addr: mac, Direction: filter.Destination, Valid: true})
}

// readRegisterMAC returns the address currently in RX_ADDRH/L.
func (d *Device) readRegisterMAC(ctx context.Context) ([6]byte, error) {
	var mac [6]byte
	err := d.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		lo, err := a.Read(ctx, regs.RxAddrL)
		if err != nil {
			return err
		}
		hi, err := a.Read(ctx, regs.RxAddrH)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(mac[0:4], lo)
		binary.LittleEndian.PutUint16(mac[4:6], uint16(hi))
		return nil
	})
	return mac, err
}

func (d *Device) readEEPROMMAC(ctx context.Context) ([6]byte, error) {
	var mac [6]byte
	ok, err := d.engine.EEPROMPresent(ctx)
	if err != nil {
		return mac, err
	}
	if !ok {
		return mac, pkg.ErrNotPresent
	}
	err = d.engine.ReadEEPROM(ctx, regs.E2PMACOffset, mac[:])
	return mac, err
}

func (d *Device) readOTPMAC(ctx context.Context) ([6]byte, error) {
	var mac [6]byte
	err := d.engine.ReadOTPImage(ctx, regs.OTPMACOffset, mac[:])
	return mac, err
}

// discoverMAC picks the station address: the configured one, then whatever
// the chip loaded into RX_ADDRH/L, then EEPROM, then OTP, then the
// fallback. Absent or unresponsive EEPROM and OTP are skipped; bus errors
// are not.
func (d *Device) discoverMAC(ctx context.Context) ([6]byte, MACSource, error) {
	if ValidMAC(d.opts.MAC) {
		return d.opts.MAC, MACFromOptions, nil
	}
	sources := []struct {
		src  MACSource
		read func(context.Context) ([6]byte, error)
	}{
		{MACFromRegisters, d.readRegisterMAC},
		{MACFromEEPROM, d.readEEPROMMAC},
		{MACFromOTP, d.readOTPMAC},
	}
	for _, s := range sources {
		mac, err := s.read(ctx)
		switch {
		case errors.Is(err, pkg.ErrBus):
			return mac, s.src, err
		case err != nil:
			pkg.LogDebug(pkg.ComponentBringup, "mac source unavailable", "source", s.src, "error", err)
		case ValidMAC(mac):
			return mac, s.src, nil
		}
	}
	if ValidMAC(d.opts.FallbackMAC) {
		return d.opts.FallbackMAC, MACFromFallback, nil
	}
	mac, err := randomMAC()
	return mac, MACRandom, err
}

// randomMAC returns a random locally administered unicast address.
func randomMAC() ([6]byte, error) {
	var mac [6]byte
	if _, err := rand.Read(mac[:]); err != nil {
		return mac, err
	}
	mac[0] = mac[0]&^0x01 | 0x02
	return mac, nil
}
