// Package hal defines the USB collaborator interface the register layer uses.
//
// The register bus issues every register access as a vendor control transfer
// on endpoint 0. Anything that can perform such a transfer on an attached
// LAN78xx device implements [Transport]:
//
//   - [github.com/ardnew/muge/host/hal/linux] opens a device node under
//     /dev/bus/usb through usbfs
//   - [github.com/ardnew/muge/host/hal/sim] models the chip in memory for
//     tests and dry runs
//
// # Design Principles
//
// The interface is deliberately small:
//   - Synchronous: one call is one complete control transfer
//   - Device-bound: a Transport addresses exactly one device
//   - Unlocked: callers serialize access; implementations need no locking
//
// Enumeration, bulk scheduling and hotplug stay outside this package.
//
// # Example
//
//	setup := hal.VendorSetup(true, 0xA1, 0, 0x010, 4)
//	buf := make([]byte, 4)
//	n, err := t.ControlTransfer(ctx, &setup, buf)
package hal
