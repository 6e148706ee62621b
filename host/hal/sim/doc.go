// Package sim models a LAN78xx behind the [hal.Transport] interface.
//
// A [Chip] keeps a register file and the memories reached through the
// indirect protocols (PHY registers, Data Port RAM, EEPROM and OTP) and
// answers vendor register requests the way the silicon does: reset bits
// self-clear, busy bits stay set for a configurable number of status reads
// and the Data Port ready bit is inverted.
//
// Faults can be injected per register: [Chip.Force] pins bits of a register
// so a busy bit never clears, and [Chip.FailWrites] makes every write to an
// address fail at the transport. Every transaction is recorded in order and
// can be inspected with [Chip.Log] and [Chip.Writes].
package sim
