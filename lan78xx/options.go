package lan78xx

import (
	"fmt"
	"time"

	"github.com/ardnew/muge/filter"
	"github.com/ardnew/muge/indirect"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// MDIX selects the PHY crossover mode.
type MDIX uint8

// Crossover modes.
const (
	MDIXAuto MDIX = iota
	MDIXForceMDI
	MDIXForceMDIX
)

// String returns the mode name.
func (m MDIX) String() string {
	switch m {
	case MDIXAuto:
		return "auto"
	case MDIXForceMDI:
		return "mdi"
	case MDIXForceMDIX:
		return "mdix"
	default:
		return fmt.Sprintf("mdix(%d)", uint8(m))
	}
}

// ParseMDIX converts "auto", "mdi" or "mdix" to an MDIX mode.
func ParseMDIX(s string) (MDIX, error) {
	switch s {
	case "auto", "":
		return MDIXAuto, nil
	case "mdi":
		return MDIXForceMDI, nil
	case "mdix":
		return MDIXForceMDIX, nil
	default:
		return MDIXAuto, fmt.Errorf("%w: mdix mode %q", pkg.ErrInvalidArgument, s)
	}
}

func (m MDIX) bits() uint16 {
	switch m {
	case MDIXForceMDI:
		return regs.ExtModeCtrlMDI
	case MDIXForceMDIX:
		return regs.ExtModeCtrlMDIX
	default:
		return regs.ExtModeCtrlAutoMDIX
	}
}

// Defaults.
const (
	DefaultMaxFrameSize = 1500 + 14 + 4 + 4 // MTU, header, VLAN tag, FCS
	DefaultResetPolls   = 100
	DefaultResetDelay   = time.Millisecond
)

// Options configures a Device.
type Options struct {
	// Indirect sets the poll bounds of the indirect targets.
	Indirect indirect.Options

	// Reset bounds the soft reset and PHY reset polls.
	Reset indirect.Timing

	PHYAddr uint8
	MDIX    MDIX

	// MAC, when valid, overrides address discovery. FallbackMAC is used
	// when discovery finds nothing; a random local address otherwise.
	MAC         [6]byte
	FallbackMAC [6]byte

	RxFIFOSize   int
	TxFIFOSize   int
	BurstCapSize int
	BulkInDelay  uint32
	FlowControl  bool
	MaxFrameSize int

	RxMode          filter.RxMode
	VLANs           []uint16
	ChecksumOffload bool
}

// DefaultOptions returns the configuration used by the reference driver.
func DefaultOptions() Options {
	return Options{
		Indirect:     indirect.DefaultOptions(),
		Reset:        indirect.Timing{Polls: DefaultResetPolls, Interval: DefaultResetDelay},
		PHYAddr:      regs.DefaultPHYAddress,
		RxFIFOSize:   regs.MaxRxFIFOSize,
		TxFIFOSize:   regs.MaxTxFIFOSize,
		BurstCapSize: regs.DefaultBurstCapSize,
		BulkInDelay:  regs.DefaultBulkInDelay,
		FlowControl:  true,
		MaxFrameSize: DefaultMaxFrameSize,
	}
}

// Validate checks o for values the hardware cannot represent.
func (o Options) Validate() error {
	switch {
	case o.PHYAddr > 31:
		return fmt.Errorf("%w: phy address %d", pkg.ErrInvalidArgument, o.PHYAddr)
	case o.RxFIFOSize < regs.FIFOBlockSize || o.RxFIFOSize > regs.MaxRxFIFOSize:
		return fmt.Errorf("%w: rx fifo size %d", pkg.ErrInvalidArgument, o.RxFIFOSize)
	case o.TxFIFOSize < regs.FIFOBlockSize || o.TxFIFOSize > regs.MaxTxFIFOSize:
		return fmt.Errorf("%w: tx fifo size %d", pkg.ErrInvalidArgument, o.TxFIFOSize)
	case o.BurstCapSize < 0:
		return fmt.Errorf("%w: burst cap size %d", pkg.ErrInvalidArgument, o.BurstCapSize)
	case o.MaxFrameSize <= 0 || o.MaxFrameSize > int(regs.MACRxMaxFrSizeMask>>regs.MACRxMaxFrSizeShift):
		return fmt.Errorf("%w: max frame size %d", pkg.ErrInvalidArgument, o.MaxFrameSize)
	case o.MDIX > MDIXForceMDIX:
		return fmt.Errorf("%w: %v", pkg.ErrInvalidArgument, o.MDIX)
	}
	for _, vid := range o.VLANs {
		if int(vid) >= filter.NumVLANs {
			return fmt.Errorf("%w: vlan %d", pkg.ErrInvalidIndex, vid)
		}
	}
	return nil
}
