// Package linux provides a [hal.Transport] for LAN78xx devices attached to a
// Linux host, using usbfs (/dev/bus/usb/BBB/DDD) for control transfers and
// sysfs (/sys/bus/usb/devices) for discovery. It needs no cgo.
//
// # Requirements
//
// The calling user needs read/write access to the device node. This
// typically means running as root or installing a udev rule such as:
//
//	SUBSYSTEM=="usb", ATTR{idVendor}=="0424", ATTR{idProduct}=="78[05]*", MODE="0660", GROUP="plugdev"
//
// # Kernel driver
//
// Register access with the lan78xx kernel driver bound races with the
// driver's own traffic. [Options.Detach] disconnects the driver from the
// interface and claims it for the lifetime of the [Transport]; Close hands
// the interface back.
//
// # Discovery
//
//	devs, err := linux.Scan(linux.SysfsUSBPath)
//	for _, d := range devs {
//		if d.IsLAN78xx() {
//			t, err := linux.Open(d.DevPath, linux.DefaultOptions())
//			...
//		}
//	}
//
// Vendor and product names come from the system usb.ids database when one
// is installed; LAN78xx parts are always named.
package linux
