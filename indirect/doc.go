// Package indirect implements the polled register protocols the LAN78xx uses
// to reach memories and devices that are not directly mapped.
//
// Four targets share one pattern: select an address, stage data, write a
// command that arms a busy indication, poll until the device reports idle,
// then collect the result:
//
//   - MII: PHY registers through MII_ACCESS and MII_DATA
//   - Data Port: the receive filter RAM through DP_SEL, DP_CMD, DP_ADDR and
//     DP_DATA
//   - EEPROM: the configuration EEPROM through E2P_CMD and E2P_DATA
//   - OTP: the one-time-programmable array in the OTP register block
//
// Each target is described by a [Target] carrying its status register, busy
// mask, busy polarity and poll bound. The Data Port reports readiness
// (bit set when idle) where the others report busy (bit set while working);
// [Engine.WaitUntilIdle] hides the difference.
//
// Every sequence runs under [bus.Bus.Exclusive], so a sequence is never
// interleaved with other register traffic on the same device. Once started,
// a sequence runs to completion or to its poll bound regardless of context
// cancellation.
//
// # Example
//
//	e := indirect.New(b, indirect.DefaultOptions())
//	bmsr, err := e.ReadPHY(ctx, regs.DefaultPHYAddress, 1)
//	if pkg.IsTimeout(err) {
//		// MII stayed busy
//	}
package indirect
