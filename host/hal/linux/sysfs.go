package linux

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ardnew/muge/host/hal"
)

// SysfsUSBPath is the base path for USB devices in sysfs.
const SysfsUSBPath = "/sys/bus/usb/devices"

// DevfsUSBPath is the base path for USB device nodes.
const DevfsUSBPath = "/dev/bus/usb"

// Microchip (formerly SMSC) vendor and LAN78xx product IDs.
const (
	VendorMicrochip = 0x0424
	ProductLAN7800  = 0x7800
	ProductLAN7801  = 0x7801
	ProductLAN7850  = 0x7850
)

// DeviceInfo describes a USB device found in sysfs.
type DeviceInfo struct {
	SysfsPath string    // /sys/bus/usb/devices/1-1.2
	DevPath   string    // /dev/bus/usb/001/004
	Bus       uint8     // busnum
	Dev       uint8     // devnum
	VendorID  uint16    // idVendor
	ProductID uint16    // idProduct
	Serial    string    // serial, if the device reports one
	Speed     hal.Speed // speed
	Driver    string    // driver bound to interface 0, if any
}

// IsLAN78xx reports whether d is a LAN7800, LAN7801 or LAN7850.
func (d DeviceInfo) IsLAN78xx() bool {
	if d.VendorID != VendorMicrochip {
		return false
	}
	switch d.ProductID {
	case ProductLAN7800, ProductLAN7801, ProductLAN7850:
		return true
	}
	return false
}

// Name returns a stable identifier for d, preferring the serial number.
func (d *DeviceInfo) Name() string {
	if d.Serial != "" {
		return d.Serial
	}
	return fmt.Sprintf("%03d-%03d", d.Bus, d.Dev)
}

// Scan lists the USB devices under root, normally [SysfsUSBPath]. Entries
// that are root hubs, interfaces or unreadable are skipped.
func Scan(root string) ([]DeviceInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var devices []DeviceInfo
	for _, entry := range entries {
		name := entry.Name()
		// Root hubs are usbN, interfaces are 1-1:1.0.
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}
		info, err := parseDevice(filepath.Join(root, name))
		if err != nil {
			continue
		}
		devices = append(devices, info)
	}
	return devices, nil
}

// FindLAN78xx returns the LAN78xx devices under root.
func FindLAN78xx(root string) ([]DeviceInfo, error) {
	all, err := Scan(root)
	if err != nil {
		return nil, err
	}
	var out []DeviceInfo
	for _, d := range all {
		if d.IsLAN78xx() {
			out = append(out, d)
		}
	}
	return out, nil
}

func parseDevice(path string) (DeviceInfo, error) {
	info := DeviceInfo{SysfsPath: path}

	bus, err := readUint8(filepath.Join(path, "busnum"))
	if err != nil {
		return info, err
	}
	dev, err := readUint8(filepath.Join(path, "devnum"))
	if err != nil {
		return info, err
	}
	info.Bus, info.Dev = bus, dev
	info.DevPath = formatDevPath(bus, dev)

	if v, err := readHex16(filepath.Join(path, "idVendor")); err == nil {
		info.VendorID = v
	}
	if v, err := readHex16(filepath.Join(path, "idProduct")); err == nil {
		info.ProductID = v
	}
	if s, err := readString(filepath.Join(path, "serial")); err == nil {
		info.Serial = s
	}
	if s, err := readString(filepath.Join(path, "speed")); err == nil {
		info.Speed = parseSpeed(s)
	}
	iface := filepath.Join(path, filepath.Base(path)+":1.0", "driver")
	if target, err := os.Readlink(iface); err == nil {
		info.Driver = filepath.Base(target)
	}
	return info, nil
}

func readString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readUint8(path string) (uint8, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 8)
	return uint8(v), err
}

func readHex16(path string) (uint16, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	return uint16(v), err
}

// formatDevPath returns the usbfs node for a bus and device number.
func formatDevPath(bus, dev uint8) string {
	return fmt.Sprintf("%s/%03d/%03d", DevfsUSBPath, bus, dev)
}

// parseSpeed converts the sysfs speed attribute (Mbit/s) to a hal.Speed.
func parseSpeed(s string) hal.Speed {
	switch s {
	case "1.5":
		return hal.SpeedLow
	case "12":
		return hal.SpeedFull
	case "480":
		return hal.SpeedHigh
	case "5000", "10000", "20000":
		return hal.SpeedSuper
	default:
		return hal.SpeedUnknown
	}
}

// Kernel enum usb_device_speed values returned by USBDEVFS_GET_SPEED.
const (
	kernelSpeedLow       = 1
	kernelSpeedFull      = 2
	kernelSpeedHigh      = 3
	kernelSpeedWireless  = 4
	kernelSpeedSuper     = 5
	kernelSpeedSuperPlus = 6
)

func kernelSpeed(v int) hal.Speed {
	switch v {
	case kernelSpeedLow:
		return hal.SpeedLow
	case kernelSpeedFull:
		return hal.SpeedFull
	case kernelSpeedHigh, kernelSpeedWireless:
		return hal.SpeedHigh
	case kernelSpeedSuper, kernelSpeedSuperPlus:
		return hal.SpeedSuper
	default:
		return hal.SpeedUnknown
	}
}
