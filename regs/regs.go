package regs

import "fmt"

// Addr is a 32-bit aligned offset into the device register map.
type Addr uint32

// Aligned reports whether a is on a 4-byte boundary.
func (a Addr) Aligned() bool {
	return a&0x3 == 0
}

// String formats a as a hex offset.
func (a Addr) String() string {
	return fmt.Sprintf("0x%03x", uint32(a))
}

// =============================================================================
// USB Vendor Requests
// =============================================================================

// Vendor request codes carried in bRequest.
const (
	RequestWriteReg uint8 = 0xA0
	RequestReadReg  uint8 = 0xA1
	RequestGetStats uint8 = 0xA2
)

// =============================================================================
// System Control
// =============================================================================

// Device ID and revision.
const (
	IDRev            Addr   = 0x000
	IDRevChipIDMask  uint32 = 0xFFFF0000
	IDRevChipRevMask uint32 = 0x0000FFFF
)

// Interrupt status.
const (
	IntSts         Addr   = 0x00C
	IntStsClearAll uint32 = 0xFFFFFFFF
)

// Hardware configuration.
const (
	HWCfg       Addr   = 0x010
	HWCfgLED3En uint32 = 1 << 23
	HWCfgLED2En uint32 = 1 << 22
	HWCfgLED1En uint32 = 1 << 21
	HWCfgLED0En uint32 = 1 << 20
	HWCfgMEF    uint32 = 1 << 4 // Multiple ethernet frames per USB packet
	HWCfgETC    uint32 = 1 << 3
	HWCfgLRST   uint32 = 1 << 1 // Lite reset
	HWCfgSRST   uint32 = 1 << 0 // Soft reset
)

// Power management control.
const (
	PMTCtl          Addr   = 0x014
	PMTCtlPHYRst    uint32 = 1 << 4
	PMTCtlWOLEn     uint32 = 1 << 3
	PMTCtlPHYWakeEn uint32 = 1 << 2
)

// GPIO configuration and wake.
const (
	GPIOCfg0 Addr = 0x018
	GPIOCfg1 Addr = 0x01C
	GPIOWake Addr = 0x020
)

// =============================================================================
// Data Port
// =============================================================================

// Data port select.
const (
	DPSel           Addr   = 0x024
	DPSelDPRdy      uint32 = 1 << 31
	DPSelRSelVLANDA uint32 = 1 << 0 // RFE VLAN and DA hash table
	DPSelRSelMask   uint32 = 0x0000000F
	DPSelVHFHashLen        = 16
	DPSelVHFVLANLen        = 128
)

// Data port command, address and data.
const (
	DPCmd      Addr   = 0x028
	DPCmdWrite uint32 = 1 << 0
	DPCmdRead  uint32 = 0 << 0
	DPAddr     Addr   = 0x02C
	DPData     Addr   = 0x030
)

// =============================================================================
// EEPROM
// =============================================================================

// EEPROM command register.
const (
	E2PCmd         Addr   = 0x040
	E2PCmdMask     uint32 = 0x70000000
	E2PCmdAddrMask uint32 = 0x000001FF
	E2PCmdBusy     uint32 = 1 << 31
	E2PCmdRead     uint32 = 0 << 28
	E2PCmdEWEN     uint32 = 1 << 28 // Write/erase enable
	E2PCmdWrite    uint32 = 3 << 28
	E2PCmdErase    uint32 = 5 << 28
	E2PCmdReload   uint32 = 7 << 28
	E2PCmdTimeout  uint32 = 1 << 10

	E2PMACOffset       = 0x01
	E2PIndicatorOffset = 0x00
)

// EEPROM data register.
const (
	E2PData      Addr  = 0x044
	E2PIndicator uint8 = 0xA5
	E2PSize            = 512
)

// =============================================================================
// USB Configuration
// =============================================================================

// USB link packet sizes.
const (
	SSUSBPktSize = 1024
	HSUSBPktSize = 512
	FSUSBPktSize = 64
)

// USB configuration registers.
const (
	USBCfg0    Addr   = 0x080
	USBCfgBIR  uint32 = 1 << 6 // Bulk-in empty response
	USBCfgBCE  uint32 = 1 << 5 // Burst cap enable
	USBCfg1    Addr   = 0x084
	USBCfg2    Addr   = 0x088
	ConfigIndex       = 0
)

// Burst cap and bulk-in delay.
const (
	BurstCap            Addr = 0x090
	DefaultBurstCapSize      = MaxTxFIFOSize
	BulkInDly           Addr = 0x094
	DefaultBulkInDelay       = 0x0800
)

// Interrupt endpoint control.
const (
	IntEPCtl       Addr   = 0x098
	IntEPCtlPHYInt uint32 = 1 << 17
)

// =============================================================================
// Receive Filtering Engine
// =============================================================================

// RFE control.
const (
	RFECtl           Addr   = 0x0B0
	RFECtlIGMPCOE    uint32 = 1 << 14
	RFECtlICMPCOE    uint32 = 1 << 13
	RFECtlTCPUDPCOE  uint32 = 1 << 12
	RFECtlIPCOE      uint32 = 1 << 11
	RFECtlBcastEn    uint32 = 1 << 10
	RFECtlMcastEn    uint32 = 1 << 9
	RFECtlUcastEn    uint32 = 1 << 8
	RFECtlVLANFilter uint32 = 1 << 5
	RFECtlMcastHash  uint32 = 1 << 3
	RFECtlDAPerfect  uint32 = 1 << 1

	// RFECtlChecksumOffload enables every receive checksum engine.
	RFECtlChecksumOffload = RFECtlIGMPCOE | RFECtlICMPCOE | RFECtlTCPUDPCOE | RFECtlIPCOE

	// RFECtlFilterMask covers the address filtering mode bits.
	RFECtlFilterMask = RFECtlBcastEn | RFECtlMcastEn | RFECtlUcastEn |
		RFECtlVLANFilter | RFECtlMcastHash | RFECtlDAPerfect
)

// =============================================================================
// FIFO Controller
// =============================================================================

// FIFO control, end addresses and flow thresholds.
const (
	FCTRxCtl         Addr   = 0x0C0
	FCTRxCtlEn       uint32 = 1 << 31
	FCTTxCtl         Addr   = 0x0C4
	FCTTxCtlEn       uint32 = 1 << 31
	FCTRxFIFOEnd     Addr   = 0x0C8
	FCTRxFIFOEndMask uint32 = 0x0000007F
	MaxRxFIFOSize           = 12 * 1024
	FCTTxFIFOEnd     Addr   = 0x0CC
	FCTTxFIFOEndMask uint32 = 0x0000003F
	MaxTxFIFOSize           = 12 * 1024
	FCTFlow          Addr   = 0x0D0

	// FIFOBlockSize is the granularity of the FIFO end address fields.
	FIFOBlockSize = 512
)

// =============================================================================
// MAC
// =============================================================================

// MAC control.
const (
	MACCr           Addr   = 0x100
	MACCrAutoDuplex uint32 = 1 << 12
	MACCrAutoSpeed  uint32 = 1 << 11
)

// MAC receive.
const (
	MACRx               Addr   = 0x104
	MACRxMaxFrSizeMask  uint32 = 0x3FFF0000
	MACRxMaxFrSizeShift        = 16
	MACRxEn             uint32 = 1 << 0
)

// MAC transmit.
const (
	MACTx     Addr   = 0x108
	MACTxTxEn uint32 = 1 << 0
)

// Flow control.
const (
	Flow          Addr   = 0x10C
	FlowCrTxFCEn  uint32 = 1 << 30
	FlowCrRxFCEn  uint32 = 1 << 29
	FlowPauseMask uint32 = 0x0000FFFF
)

// MAC receive address.
const (
	RxAddrH Addr = 0x118
	RxAddrL Addr = 0x11C
)

// =============================================================================
// MII
// =============================================================================

// MII access and data.
const (
	MIIAccess         Addr   = 0x120
	MIIBusy           uint32 = 1 << 0
	MIIRead           uint32 = 0 << 1
	MIIWrite          uint32 = 1 << 1
	MIIRegShift              = 6
	MIIRegMask        uint32 = 0x1F << MIIRegShift
	MIIPHYAddrShift          = 11
	MIIPHYAddrMask    uint32 = 0x1F << MIIPHYAddrShift
	MIIData           Addr   = 0x124
	MIIDataMask       uint32 = 0x0000FFFF
	DefaultPHYAddress        = 1
)

// PHY registers reached through MII.
const (
	PHYIntrStat       = 25
	PHYIntrMask       = 26
	PHYIntrLinkChange = 1 << 13
	PHYIntrAnegComp   = 1 << 10
	ExtPageAccess     = 0x1F
	ExtPageSpace0     = 0x0000
	ExtPageSpace1     = 0x0001
	ExtPageSpace2     = 0x0002

	ExtModeCtrl         = 0x0013
	ExtModeCtrlMDIXMask = 0x000C
	ExtModeCtrlAutoMDIX = 0x0000
	ExtModeCtrlMDIX     = 0x0004 // Force MDI-X
	ExtModeCtrlMDI      = 0x0008 // Force MDI
)

// =============================================================================
// Perfect Address Filter
// =============================================================================

// Perfect filter table.
const (
	PFilterBase      Addr   = 0x400
	PFilterHiX       Addr   = 0x00
	PFilterLoX       Addr   = 0x04
	PFilterStride           = 8
	NumPFilterAddrs         = 33
	PFilterAddrValid uint32 = 1 << 31
	PFilterTypeSrc   uint32 = 1 << 30
	PFilterTypeDst   uint32 = 0 << 30
)

// PFilterHi returns the high word address of perfect filter index.
func PFilterHi(index int) Addr {
	return PFilterBase + Addr(PFilterStride*index) + PFilterHiX
}

// PFilterLo returns the low word address of perfect filter index.
func PFilterLo(index int) Addr {
	return PFilterBase + Addr(PFilterStride*index) + PFilterLoX
}

// =============================================================================
// OTP
// =============================================================================

// OTP block registers.
const (
	OTPBaseAddr Addr = 0x01000

	OTPPwrDn      Addr   = OTPBaseAddr + 4*0x00
	OTPPwrDnPwrDn uint32 = 0x01

	OTPAddr1       Addr   = OTPBaseAddr + 4*0x01
	OTPAddr1_15_11 uint32 = 0x1F
	OTPAddr2       Addr   = OTPBaseAddr + 4*0x02
	OTPAddr2_10_3  uint32 = 0xFF
	OTPAddr3       Addr   = OTPBaseAddr + 4*0x03
	OTPAddr3_2_0   uint32 = 0x07

	OTPPrgmData Addr = OTPBaseAddr + 4*0x04
	OTPRdData   Addr = OTPBaseAddr + 4*0x06

	OTPFuncCmd        Addr   = OTPBaseAddr + 4*0x08
	OTPFuncCmdReset   uint32 = 0x04
	OTPFuncCmdProgram uint32 = 0x02
	OTPFuncCmdRead    uint32 = 0x01

	OTPCmdGo   Addr   = OTPBaseAddr + 4*0x0A
	OTPCmdGoGo uint32 = 0x01

	OTPStatus     Addr   = OTPBaseAddr + 4*0x0A
	OTPStatusLock uint32 = 0x10
	OTPStatusBusy uint32 = 0x01

	OTPMACOffset             = 0x01
	OTPIndicatorOffset       = 0x00
	OTPIndicator1      uint8 = 0xF3
	OTPIndicator2      uint8 = 0xF7

	// OTPImage2Offset is where the second image starts when the indicator
	// byte is OTPIndicator2.
	OTPImage2Offset = 0x100

	OTPSize = 8 * 1024
)

// =============================================================================
// Miscellaneous
// =============================================================================

// Registers exposed for dumps; the driver does not program them.
const (
	BOSAttr     Addr = 0x050
	SSAttr      Addr = 0x054
	HSAttr      Addr = 0x058
	FSAttr      Addr = 0x05C
	VLANType    Addr = 0x0B4
	RxDPStor    Addr = 0x0D4
	TxDPStor    Addr = 0x0D8
	RandSeed    Addr = 0x110
	ErrSts      Addr = 0x114
	WUCSR1      Addr = 0x140
	WkSrc       Addr = 0x144
	WUFCfgBase  Addr = 0x150
	WUFMaskBase Addr = 0x200
	WUCSR2      Addr = 0x600
	PHYDevID    Addr = 0x700
)

// Named maps a register address to its mnemonic.
type Named struct {
	Name string
	Addr Addr
}

// DumpSet lists the directly addressable registers read by a register dump,
// in address order.
var DumpSet = []Named{
	{"ID_REV", IDRev},
	{"INT_STS", IntSts},
	{"HW_CFG", HWCfg},
	{"PMT_CTL", PMTCtl},
	{"GPIO_CFG0", GPIOCfg0},
	{"GPIO_CFG1", GPIOCfg1},
	{"GPIO_WAKE", GPIOWake},
	{"DP_SEL", DPSel},
	{"E2P_CMD", E2PCmd},
	{"USB_CFG0", USBCfg0},
	{"USB_CFG1", USBCfg1},
	{"USB_CFG2", USBCfg2},
	{"BURST_CAP", BurstCap},
	{"BULK_IN_DLY", BulkInDly},
	{"INT_EP_CTL", IntEPCtl},
	{"RFE_CTL", RFECtl},
	{"VLAN_TYPE", VLANType},
	{"FCT_RX_CTL", FCTRxCtl},
	{"FCT_TX_CTL", FCTTxCtl},
	{"FCT_RX_FIFO_END", FCTRxFIFOEnd},
	{"FCT_TX_FIFO_END", FCTTxFIFOEnd},
	{"FCT_FLOW", FCTFlow},
	{"MAC_CR", MACCr},
	{"MAC_RX", MACRx},
	{"MAC_TX", MACTx},
	{"FLOW", Flow},
	{"ERR_STS", ErrSts},
	{"RX_ADDRH", RxAddrH},
	{"RX_ADDRL", RxAddrL},
	{"WUCSR1", WUCSR1},
	{"WK_SRC", WkSrc},
}

// Lookup returns the mnemonic for addr, or "" if it is not in DumpSet.
func Lookup(addr Addr) string {
	for _, r := range DumpSet {
		if r.Addr == addr {
			return r.Name
		}
	}
	return ""
}
