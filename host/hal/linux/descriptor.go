package linux

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/muge/pkg"
)

// DeviceDescriptorSize is the length of a standard device descriptor.
const DeviceDescriptorSize = 18

const descriptorTypeDevice = 0x01

// DeviceDescriptor is the standard USB device descriptor that a usbfs node
// returns at offset 0.
type DeviceDescriptor struct {
	USBVersion        uint16
	DeviceClass       uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	DeviceVersion     uint16
	NumConfigurations uint8
}

// ParseDeviceDescriptor decodes a device descriptor.
func ParseDeviceDescriptor(data []byte) (DeviceDescriptor, error) {
	var d DeviceDescriptor
	if len(data) < DeviceDescriptorSize {
		return d, fmt.Errorf("device descriptor: %w: %d bytes", pkg.ErrShortTransfer, len(data))
	}
	if data[0] < DeviceDescriptorSize || data[1] != descriptorTypeDevice {
		return d, fmt.Errorf("%w: device descriptor header % x", pkg.ErrInvalidArgument, data[:2])
	}
	d.USBVersion = binary.LittleEndian.Uint16(data[2:])
	d.DeviceClass = data[4]
	d.MaxPacketSize0 = data[7]
	d.VendorID = binary.LittleEndian.Uint16(data[8:])
	d.ProductID = binary.LittleEndian.Uint16(data[10:])
	d.DeviceVersion = binary.LittleEndian.Uint16(data[12:])
	d.NumConfigurations = data[17]
	return d, nil
}

// IsLAN78xx reports whether the descriptor names a supported controller.
func (d DeviceDescriptor) IsLAN78xx() bool {
	return DeviceInfo{VendorID: d.VendorID, ProductID: d.ProductID}.IsLAN78xx()
}
