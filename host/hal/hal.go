package hal

import (
	"context"
)

// Speed represents the USB connection speed.
type Speed uint8

// USB speed constants.
const (
	SpeedUnknown Speed = iota // Not connected or unknown
	SpeedLow                  // Low Speed (1.5 Mbit/s)
	SpeedFull                 // Full Speed (12 Mbit/s)
	SpeedHigh                 // High Speed (480 Mbit/s)
	SpeedSuper                // SuperSpeed (5 Gbit/s)
)

// String returns a human-readable speed name.
func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed"
	case SpeedFull:
		return "Full Speed"
	case SpeedHigh:
		return "High Speed"
	case SpeedSuper:
		return "Super Speed"
	default:
		return "Unknown"
	}
}

// ParseSpeed converts a speed name ("full", "high", "super", "low") to a
// Speed. Unrecognized names return SpeedUnknown.
func ParseSpeed(name string) Speed {
	switch name {
	case "low":
		return SpeedLow
	case "full":
		return SpeedFull
	case "high":
		return SpeedHigh
	case "super":
		return SpeedSuper
	default:
		return SpeedUnknown
	}
}

// SetupPacket represents a USB SETUP packet.
type SetupPacket struct {
	RequestType uint8  // Request characteristics
	Request     uint8  // Specific request
	Value       uint16 // Request-specific value
	Index       uint16 // Request-specific index
	Length      uint16 // Number of bytes to transfer
}

// SetupPacketSize is the size of a USB SETUP packet in bytes.
const SetupPacketSize = 8

// bmRequestType fields.
const (
	RequestDirIn     = 0x80 // Device-to-host
	RequestDirOut    = 0x00 // Host-to-device
	RequestVendor    = 0x40 // Vendor-specific request type
	RequestRecipient = 0x00 // Recipient: device

	// RequestTypeVendorIn is a vendor device-to-host request (0xC0).
	RequestTypeVendorIn = RequestDirIn | RequestVendor | RequestRecipient

	// RequestTypeVendorOut is a vendor host-to-device request (0x40).
	RequestTypeVendorOut = RequestDirOut | RequestVendor | RequestRecipient
)

// VendorSetup builds a vendor request addressed to the device.
func VendorSetup(in bool, request uint8, value, index, length uint16) SetupPacket {
	rt := uint8(RequestTypeVendorOut)
	if in {
		rt = RequestTypeVendorIn
	}
	return SetupPacket{
		RequestType: rt,
		Request:     request,
		Value:       value,
		Index:       index,
		Length:      length,
	}
}

// IsIn reports whether the data stage flows device-to-host.
func (s *SetupPacket) IsIn() bool {
	return s.RequestType&RequestDirIn != 0
}

// IsVendor reports whether the request type is vendor-specific.
func (s *SetupPacket) IsVendor() bool {
	return s.RequestType&0x60 == RequestVendor
}

// ParseSetupPacket parses raw bytes into a SetupPacket.
// Returns false if data is too short.
func ParseSetupPacket(data []byte, out *SetupPacket) bool {
	if len(data) < SetupPacketSize {
		return false
	}
	out.RequestType = data[0]
	out.Request = data[1]
	out.Value = uint16(data[2]) | uint16(data[3])<<8
	out.Index = uint16(data[4]) | uint16(data[5])<<8
	out.Length = uint16(data[6]) | uint16(data[7])<<8
	return true
}

// MarshalTo writes the setup packet to buf.
// Returns the number of bytes written (8), or 0 if buf is too small.
func (s *SetupPacket) MarshalTo(buf []byte) int {
	if len(buf) < SetupPacketSize {
		return 0
	}
	buf[0] = s.RequestType
	buf[1] = s.Request
	buf[2] = byte(s.Value)
	buf[3] = byte(s.Value >> 8)
	buf[4] = byte(s.Index)
	buf[5] = byte(s.Index >> 8)
	buf[6] = byte(s.Length)
	buf[7] = byte(s.Length >> 8)
	return SetupPacketSize
}

// Transport is the USB collaborator the register layer is built on.
//
// A Transport is bound to one already-enumerated device. It performs
// synchronous control transfers on endpoint 0; bulk data movement, endpoint
// scheduling and attach/detach handling stay on the other side of this
// interface.
//
// Implementations need not be safe for concurrent use; the register bus
// serializes every call.
type Transport interface {
	// ControlTransfer performs a control transfer on endpoint 0.
	// For OUT transfers, data contains the data to send.
	// For IN transfers, data is filled with received data.
	// Returns the number of bytes transferred in the data phase.
	ControlTransfer(ctx context.Context, setup *SetupPacket, data []byte) (int, error)

	// Speed returns the negotiated link speed of the device.
	Speed() Speed

	// Close releases the device. After Close returns, the Transport should
	// not be used.
	Close() error
}
