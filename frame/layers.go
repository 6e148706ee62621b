package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Header sizes on the wire.
const (
	RxHeaderLen = 10 // RX_CMD_A, RX_CMD_B, RX_CMD_C
	TxHeaderLen = 8  // TX_CMD_A, TX_CMD_B
	fcsLen      = 4
)

const (
	rxLayerNum = 7800
	txLayerNum = 7801
)

// Layer types for the command headers. Both decode their payload as
// Ethernet.
var (
	RxHeaderLayerType = gopacket.RegisterLayerType(rxLayerNum,
		gopacket.LayerTypeMetadata{Name: "MUGERxHeader", Decoder: gopacket.DecodeFunc(decodeRxHeader)})
	TxHeaderLayerType = gopacket.RegisterLayerType(txLayerNum,
		gopacket.LayerTypeMetadata{Name: "MUGETxHeader", Decoder: gopacket.DecodeFunc(decodeTxHeader)})
)

// RxHeader is the command header of a received frame. Its payload is the
// frame without FCS.
type RxHeader struct {
	layers.BaseLayer
	RxCommand
	CmdB uint32 // Checksum and VLAN tag
	CmdC uint16
}

// LayerType returns RxHeaderLayerType.
func (h *RxHeader) LayerType() gopacket.LayerType {
	return RxHeaderLayerType
}

// NextLayerType returns the Ethernet layer type.
func (h *RxHeader) NextLayerType() gopacket.LayerType {
	return layers.LayerTypeEthernet
}

// CanDecode returns RxHeaderLayerType.
func (h *RxHeader) CanDecode() gopacket.LayerClass {
	return RxHeaderLayerType
}

// DecodeFromBytes decodes an RX header and the frame that follows it.
func (h *RxHeader) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < RxHeaderLen {
		df.SetTruncated()
		return errors.New("rx header too short")
	}
	h.RxCommand = DecodeRx(binary.LittleEndian.Uint32(data[0:4]))
	h.CmdB = binary.LittleEndian.Uint32(data[4:8])
	h.CmdC = binary.LittleEndian.Uint16(data[8:10])

	end := RxHeaderLen + h.Length
	if end > len(data) {
		df.SetTruncated()
		return fmt.Errorf("rx frame length %d exceeds %d available bytes", h.Length, len(data)-RxHeaderLen)
	}
	payload := data[RxHeaderLen:end]
	if len(payload) >= fcsLen {
		payload = payload[:len(payload)-fcsLen]
	}
	h.BaseLayer = layers.BaseLayer{Contents: data[:RxHeaderLen], Payload: payload}
	return nil
}

// SerializeTo prepends the RX header. The payload must already carry its
// FCS.
func (h *RxHeader) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	cmd := h.RxCommand
	if opts.FixLengths {
		cmd.Length = len(b.Bytes())
	}
	w, err := EncodeRx(cmd)
	if err != nil {
		return err
	}
	buf, err := b.PrependBytes(RxHeaderLen)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[0:4], w)
	binary.LittleEndian.PutUint32(buf[4:8], h.CmdB)
	binary.LittleEndian.PutUint16(buf[8:10], h.CmdC)
	return nil
}

func decodeRxHeader(data []byte, p gopacket.PacketBuilder) error {
	h := &RxHeader{}
	if err := h.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(h)
	return p.NextDecoder(h.NextLayerType())
}

// TxHeader is the command header of a frame to transmit.
type TxHeader struct {
	layers.BaseLayer
	TxCommand
	CmdB uint32 // Segmentation and VLAN insertion
}

// LayerType returns TxHeaderLayerType.
func (h *TxHeader) LayerType() gopacket.LayerType {
	return TxHeaderLayerType
}

// NextLayerType returns the Ethernet layer type.
func (h *TxHeader) NextLayerType() gopacket.LayerType {
	return layers.LayerTypeEthernet
}

// CanDecode returns TxHeaderLayerType.
func (h *TxHeader) CanDecode() gopacket.LayerClass {
	return TxHeaderLayerType
}

// DecodeFromBytes decodes a TX header and the frame that follows it.
func (h *TxHeader) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < TxHeaderLen {
		df.SetTruncated()
		return errors.New("tx header too short")
	}
	h.TxCommand = DecodeTx(binary.LittleEndian.Uint32(data[0:4]))
	h.CmdB = binary.LittleEndian.Uint32(data[4:8])
	end := TxHeaderLen + h.Length
	if end > len(data) {
		df.SetTruncated()
		return fmt.Errorf("tx frame length %d exceeds %d available bytes", h.Length, len(data)-TxHeaderLen)
	}
	h.BaseLayer = layers.BaseLayer{Contents: data[:TxHeaderLen], Payload: data[TxHeaderLen:end]}
	return nil
}

// SerializeTo prepends the TX header. With FixLengths the length field is
// taken from the serialized payload.
func (h *TxHeader) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if opts.FixLengths {
		h.Length = len(b.Bytes())
	}
	w, err := EncodeTx(h.Length, h.AppendFCS)
	if err != nil {
		return err
	}
	buf, err := b.PrependBytes(TxHeaderLen)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[0:4], w)
	binary.LittleEndian.PutUint32(buf[4:8], h.CmdB)
	return nil
}

func decodeTxHeader(data []byte, p gopacket.PacketBuilder) error {
	h := &TxHeader{}
	if err := h.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(h)
	return p.NextDecoder(h.NextLayerType())
}

// Encapsulate serializes frame behind a TX header requesting FCS insertion.
func Encapsulate(frame []byte) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	hdr := &TxHeader{TxCommand: TxCommand{AppendFCS: true}}
	if err := gopacket.SerializeLayers(buf, opts, hdr, gopacket.Payload(frame)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
