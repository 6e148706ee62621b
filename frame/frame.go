// Package frame encodes and decodes the command words that precede every
// frame on the bulk endpoints.
//
// Receive frames start with RX_CMD_A, whose low 14 bits hold the frame
// length; transmit frames start with TX_CMD_A, whose low 20 bits hold the
// length. The codec never truncates: a length that does not fit its field is
// rejected.
package frame

import (
	"fmt"

	"github.com/ardnew/muge/pkg"
)

// RX_CMD_A fields.
const (
	RxCmdALenMask uint32 = 0x00003FFF
	RxCmdAICSM    uint32 = 1 << 14 // Checksum mode
	RxCmdARED     uint32 = 1 << 22 // Receive error detected

	MaxRxLength = int(RxCmdALenMask)
)

// TX_CMD_A fields.
const (
	TxCmdALenMask uint32 = 0x000FFFFF
	TxCmdAFCS     uint32 = 1 << 22 // Append FCS

	MaxTxLength = int(TxCmdALenMask)
)

// RxCommand is a decoded RX_CMD_A word.
type RxCommand struct {
	Length       int  // Frame length including FCS
	ReceiveError bool // RED: the MAC flagged the frame
	ChecksumMode bool // ICSM
}

// TxCommand is a decoded TX_CMD_A word.
type TxCommand struct {
	Length    int
	AppendFCS bool
}

// EncodeRx packs c into an RX_CMD_A word.
func EncodeRx(c RxCommand) (uint32, error) {
	if c.Length < 0 || c.Length > MaxRxLength {
		return 0, fmt.Errorf("%w: rx length %d exceeds %d", pkg.ErrInvalidArgument, c.Length, MaxRxLength)
	}
	w := uint32(c.Length)
	if c.ReceiveError {
		w |= RxCmdARED
	}
	if c.ChecksumMode {
		w |= RxCmdAICSM
	}
	return w, nil
}

// DecodeRx unpacks an RX_CMD_A word. Bits outside the known fields are
// ignored.
func DecodeRx(w uint32) RxCommand {
	return RxCommand{
		Length:       int(w & RxCmdALenMask),
		ReceiveError: w&RxCmdARED != 0,
		ChecksumMode: w&RxCmdAICSM != 0,
	}
}

// EncodeTx builds a TX_CMD_A word for a frame of length bytes.
func EncodeTx(length int, appendFCS bool) (uint32, error) {
	if length < 0 || length > MaxTxLength {
		return 0, fmt.Errorf("%w: tx length %d exceeds %d", pkg.ErrInvalidArgument, length, MaxTxLength)
	}
	w := uint32(length)
	if appendFCS {
		w |= TxCmdAFCS
	}
	return w, nil
}

// DecodeTx unpacks a TX_CMD_A word.
func DecodeTx(w uint32) TxCommand {
	return TxCommand{
		Length:    int(w & TxCmdALenMask),
		AppendFCS: w&TxCmdAFCS != 0,
	}
}
