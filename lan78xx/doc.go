// Package lan78xx drives one LAN78xx USB Ethernet controller through its
// register interface.
//
// A [Device] owns the register bus, the indirect access engine and the
// filter tables of one chip. [Device.Bringup] takes the chip from power-on
// to a running MAC:
//
//	PoweredOff -> ResetInProgress -> Configured -> Running
//
// Any failure along the way leaves the device Faulted until
// [Device.Shutdown] returns it to PoweredOff. Filter table access and the
// frame command codec are refused with [pkg.ErrNotConfigured] until bringup
// has reached Configured.
//
// # Example
//
//	dev := lan78xx.New(transport, lan78xx.DefaultOptions())
//	if err := dev.Bringup(ctx); err != nil {
//		var be *lan78xx.BringupError
//		if errors.As(err, &be) {
//			log.Printf("failed at %s", be.Step)
//		}
//		return err
//	}
//	ft, _ := dev.FilterTable()
//	ft.AddVLAN(ctx, 100)
package lan78xx
