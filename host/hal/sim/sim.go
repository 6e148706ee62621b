package sim

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ardnew/muge/host/hal"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// Reset values.
const (
	DefaultIDRev   = 0x78000002
	DefaultPHYID1  = 0x0007
	DefaultPHYID2  = 0xC132
	defaultBMCR    = 0x1140 // Auto-negotiation enabled, full duplex, 1000 Mb/s
	defaultBMSR    = 0x7949
	bmsrLinkStatus = 0x0004
	bmsrANComplete = 0x0020
	bmcrReset      = 0x8000

	numPHYRegs  = 32
	dpRAMWords  = regs.DPSelVHFVLANLen + regs.DPSelVHFHashLen
	statsLength = 128
)

// Options configures a Chip.
type Options struct {
	// Speed is the link speed reported to the host.
	Speed hal.Speed

	// BusyPolls is the number of status reads for which a started
	// operation still reports busy.
	BusyPolls int

	// PHYAddr is the MII address the internal PHY answers on.
	PHYAddr uint8

	// LinkUp reports an established, auto-negotiated link in BMSR.
	LinkUp bool

	// EEPROM and OTP are copied into the device memories.
	EEPROM []byte
	OTP    []byte
}

// DefaultOptions returns a high-speed device whose operations complete on
// the second status read.
func DefaultOptions() Options {
	return Options{
		Speed:     hal.SpeedHigh,
		BusyPolls: 1,
		PHYAddr:   regs.DefaultPHYAddress,
		LinkUp:    true,
	}
}

// Transaction records one register request.
type Transaction struct {
	Write bool
	Addr  regs.Addr
	Value uint32
	Err   error
}

// String formats t for test failures.
func (t Transaction) String() string {
	dir := "R"
	if t.Write {
		dir = "W"
	}
	if t.Err != nil {
		return fmt.Sprintf("%s %v = 0x%08x (%v)", dir, t.Addr, t.Value, t.Err)
	}
	return fmt.Sprintf("%s %v = 0x%08x", dir, t.Addr, t.Value)
}

type force struct {
	set, clear uint32
}

// Chip is an in-memory LAN78xx.
type Chip struct {
	mu   sync.Mutex
	opts Options

	regs    map[regs.Addr]uint32
	pending map[regs.Addr]int // Status reads left before an operation completes

	phy    [numPHYRegs]uint16
	dpRAM  [dpRAMWords]uint32
	eeprom [regs.E2PSize]byte
	otp    [regs.OTPSize]byte
	ewen   bool

	forced     map[regs.Addr]force
	failWrites map[regs.Addr]error
	failReads  map[regs.Addr]error

	log    []Transaction
	closed bool
}

// New returns a Chip in its power-on state.
func New(opts Options) *Chip {
	if opts.BusyPolls < 0 {
		opts.BusyPolls = 0
	}
	if opts.Speed == hal.SpeedUnknown {
		opts.Speed = hal.SpeedHigh
	}
	c := &Chip{
		opts:       opts,
		regs:       make(map[regs.Addr]uint32),
		pending:    make(map[regs.Addr]int),
		forced:     make(map[regs.Addr]force),
		failWrites: make(map[regs.Addr]error),
		failReads:  make(map[regs.Addr]error),
	}
	for i := range c.eeprom {
		c.eeprom[i] = 0xFF
	}
	copy(c.eeprom[:], opts.EEPROM)
	copy(c.otp[:], opts.OTP)
	c.resetRegisters()
	c.resetPHY()
	return c
}

// resetRegisters restores the register file to its reset state.
func (c *Chip) resetRegisters() {
	clear(c.regs)
	clear(c.pending)
	c.regs[regs.IDRev] = DefaultIDRev
	c.regs[regs.DPSel] = regs.DPSelDPRdy
	c.regs[regs.OTPPwrDn] = regs.OTPPwrDnPwrDn
	c.regs[regs.RxAddrH] = 0x0000FFFF
	c.regs[regs.RxAddrL] = 0xFFFFFFFF
	c.regs[regs.HWCfg] = regs.HWCfgLED0En | regs.HWCfgLED1En
	c.ewen = false
	if c.eeprom[regs.E2PIndicatorOffset] == regs.E2PIndicator {
		c.loadMACFromEEPROM()
	}
}

func (c *Chip) resetPHY() {
	clear(c.phy[:])
	c.phy[0] = defaultBMCR
	c.phy[1] = defaultBMSR
	if c.opts.LinkUp {
		c.phy[1] |= bmsrLinkStatus | bmsrANComplete
	}
	c.phy[2] = DefaultPHYID1
	c.phy[3] = DefaultPHYID2
}

func (c *Chip) loadMACFromEEPROM() {
	m := c.eeprom[regs.E2PMACOffset : regs.E2PMACOffset+6]
	c.regs[regs.RxAddrL] = binary.LittleEndian.Uint32(m[0:4])
	c.regs[regs.RxAddrH] = uint32(binary.LittleEndian.Uint16(m[4:6]))
}

// Force pins bits of the register at addr: reads return set bits as 1 and
// clear bits as 0 regardless of device state. A zero force removes it.
func (c *Chip) Force(addr regs.Addr, set, clear uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set == 0 && clear == 0 {
		delete(c.forced, addr)
		return
	}
	c.forced[addr] = force{set: set, clear: clear}
}

// FailWrites makes every write to addr fail with err. A nil err removes the
// fault.
func (c *Chip) FailWrites(addr regs.Addr, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failWrites, addr)
		return
	}
	c.failWrites[addr] = err
}

// FailReads makes every read of addr fail with err. A nil err removes the
// fault.
func (c *Chip) FailReads(addr regs.Addr, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failReads, addr)
		return
	}
	c.failReads[addr] = err
}

// Log returns a copy of every transaction so far.
func (c *Chip) Log() []Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transaction(nil), c.log...)
}

// ResetLog discards the transaction log.
func (c *Chip) ResetLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = c.log[:0]
}

// Writes returns the values successfully written to addr, in order.
func (c *Chip) Writes(addr regs.Addr) []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var vs []uint32
	for _, t := range c.log {
		if t.Write && t.Addr == addr && t.Err == nil {
			vs = append(vs, t.Value)
		}
	}
	return vs
}

// Peek returns the stored value of the register at addr without side
// effects.
func (c *Chip) Peek(addr regs.Addr) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[addr]
}

// Poke stores value in the register at addr without side effects.
func (c *Chip) Poke(addr regs.Addr, value uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[addr] = value
}

// PHYRegister returns PHY register reg.
func (c *Chip) PHYRegister(reg uint8) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phy[reg&0x1F]
}

// DataPort returns word addr of the VLAN/DA hash RAM.
func (c *Chip) DataPort(addr int) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dpRAM[addr]
}

// EEPROM returns a copy of the EEPROM contents.
func (c *Chip) EEPROM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.eeprom[:]...)
}

// OTP returns a copy of the OTP contents.
func (c *Chip) OTP() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.otp[:]...)
}

// Speed implements hal.Transport.
func (c *Chip) Speed() hal.Speed {
	return c.opts.Speed
}

// Close implements hal.Transport.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// ControlTransfer implements hal.Transport for the vendor register requests.
func (c *Chip) ControlTransfer(ctx context.Context, setup *hal.SetupPacket, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, pkg.ErrNoDevice
	}
	if !setup.IsVendor() {
		return 0, pkg.ErrStall
	}

	switch setup.Request {
	case regs.RequestReadReg:
		if !setup.IsIn() || len(data) < 4 || setup.Length != 4 {
			return 0, pkg.ErrStall
		}
		v, err := c.read(regs.Addr(setup.Index))
		if err != nil {
			return 0, err
		}
		binary.LittleEndian.PutUint32(data, v)
		return 4, nil

	case regs.RequestWriteReg:
		if setup.IsIn() || len(data) < 4 || setup.Length != 4 {
			return 0, pkg.ErrStall
		}
		if err := c.write(regs.Addr(setup.Index), binary.LittleEndian.Uint32(data)); err != nil {
			return 0, err
		}
		return 4, nil

	case regs.RequestGetStats:
		if !setup.IsIn() {
			return 0, pkg.ErrStall
		}
		n := min(len(data), int(setup.Length), statsLength)
		for i := 0; i+4 <= n; i += 4 {
			binary.LittleEndian.PutUint32(data[i:], uint32(i/4))
		}
		return n, nil

	default:
		return 0, pkg.ErrStall
	}
}

// start applies fn and keeps the busy indication of status armed for the
// configured number of status reads.
func (c *Chip) start(status regs.Addr, fn func()) {
	fn()
	if c.opts.BusyPolls > 0 {
		c.pending[status] = c.opts.BusyPolls
	}
}

func (c *Chip) read(addr regs.Addr) (uint32, error) {
	if err := c.failReads[addr]; err != nil {
		c.log = append(c.log, Transaction{Addr: addr, Err: err})
		return 0, err
	}
	v := c.regs[addr]
	if n := c.pending[addr]; n > 0 {
		v = busyValue(addr, v)
		if n == 1 {
			delete(c.pending, addr)
		} else {
			c.pending[addr] = n - 1
		}
	}
	if f, ok := c.forced[addr]; ok {
		v = v&^f.clear | f.set
	}
	c.log = append(c.log, Transaction{Addr: addr, Value: v})
	return v, nil
}

// busyValue returns v as seen while an operation on its status register is
// still in progress.
func busyValue(addr regs.Addr, v uint32) uint32 {
	switch addr {
	case regs.HWCfg:
		return v | regs.HWCfgSRST
	case regs.PMTCtl:
		return v | regs.PMTCtlPHYRst
	case regs.MIIAccess:
		return v | regs.MIIBusy
	case regs.DPSel:
		return v &^ regs.DPSelDPRdy
	case regs.E2PCmd:
		return v | regs.E2PCmdBusy
	case regs.OTPStatus:
		return v | regs.OTPStatusBusy
	}
	return v
}

func (c *Chip) write(addr regs.Addr, v uint32) error {
	if err := c.failWrites[addr]; err != nil {
		c.log = append(c.log, Transaction{Write: true, Addr: addr, Value: v, Err: err})
		return err
	}
	c.log = append(c.log, Transaction{Write: true, Addr: addr, Value: v})

	switch addr {
	case regs.IDRev:
		// Read-only.
	case regs.HWCfg:
		c.regs[addr] = v &^ regs.HWCfgSRST
		if v&regs.HWCfgSRST != 0 {
			c.start(regs.HWCfg, c.resetRegisters)
		}
	case regs.IntSts:
		c.regs[addr] &^= v
	case regs.PMTCtl:
		c.regs[addr] = v &^ regs.PMTCtlPHYRst
		if v&regs.PMTCtlPHYRst != 0 {
			c.start(regs.PMTCtl, c.resetPHY)
		}
	case regs.MIIAccess:
		c.regs[addr] = v &^ regs.MIIBusy
		if v&regs.MIIBusy != 0 {
			c.start(regs.MIIAccess, func() { c.mii(v) })
		}
	case regs.DPSel:
		c.regs[addr] = c.regs[addr]&regs.DPSelDPRdy | v&regs.DPSelRSelMask
	case regs.DPCmd:
		c.regs[addr] = v
		c.start(regs.DPSel, func() { c.dataPort(v) })
	case regs.E2PCmd:
		c.regs[addr] = v &^ (regs.E2PCmdBusy | regs.E2PCmdTimeout)
		if v&regs.E2PCmdBusy != 0 {
			c.start(regs.E2PCmd, func() { c.e2p(v) })
		}
	case regs.OTPCmdGo:
		if v&regs.OTPCmdGoGo != 0 {
			c.start(regs.OTPStatus, c.otpCommand)
		}
	default:
		c.regs[addr] = v
	}
	return nil
}

func (c *Chip) mii(cmd uint32) {
	phyAddr := uint8(cmd & regs.MIIPHYAddrMask >> regs.MIIPHYAddrShift)
	reg := cmd & regs.MIIRegMask >> regs.MIIRegShift
	if phyAddr != c.opts.PHYAddr {
		if cmd&regs.MIIWrite == 0 {
			c.regs[regs.MIIData] = 0xFFFF
		}
		return
	}
	if cmd&regs.MIIWrite == 0 {
		c.regs[regs.MIIData] = uint32(c.phy[reg])
		return
	}
	value := uint16(c.regs[regs.MIIData])
	switch reg {
	case 0:
		if value&bmcrReset != 0 {
			c.resetPHY()
			return
		}
		c.phy[0] = value
	case 1, 2, 3:
		// Read-only.
	default:
		c.phy[reg] = value
	}
}

func (c *Chip) dataPort(cmd uint32) {
	if c.regs[regs.DPSel]&regs.DPSelRSelMask != regs.DPSelRSelVLANDA {
		return
	}
	addr := c.regs[regs.DPAddr]
	if addr >= dpRAMWords {
		return
	}
	if cmd&regs.DPCmdWrite != 0 {
		c.dpRAM[addr] = c.regs[regs.DPData]
	} else {
		c.regs[regs.DPData] = c.dpRAM[addr]
	}
}

func (c *Chip) e2p(cmd uint32) {
	addr := cmd & regs.E2PCmdAddrMask
	switch cmd & regs.E2PCmdMask {
	case regs.E2PCmdRead:
		c.regs[regs.E2PData] = uint32(c.eeprom[addr])
	case regs.E2PCmdEWEN:
		c.ewen = true
	case regs.E2PCmdWrite:
		if c.ewen {
			c.eeprom[addr] = byte(c.regs[regs.E2PData])
		}
	case regs.E2PCmdErase:
		if c.ewen {
			c.eeprom[addr] = 0xFF
		}
	case regs.E2PCmdReload:
		if c.eeprom[regs.E2PIndicatorOffset] == regs.E2PIndicator {
			c.loadMACFromEEPROM()
		}
	}
}

func (c *Chip) otpCommand() {
	if c.regs[regs.OTPPwrDn]&regs.OTPPwrDnPwrDn != 0 {
		return
	}
	addr := (c.regs[regs.OTPAddr1]&regs.OTPAddr1_15_11)<<11 |
		(c.regs[regs.OTPAddr2]&regs.OTPAddr2_10_3)<<3 |
		c.regs[regs.OTPAddr3]&regs.OTPAddr3_2_0
	if addr >= regs.OTPSize {
		return
	}
	switch c.regs[regs.OTPFuncCmd] {
	case regs.OTPFuncCmdRead:
		c.regs[regs.OTPRdData] = uint32(c.otp[addr])
	case regs.OTPFuncCmdProgram:
		c.otp[addr] |= byte(c.regs[regs.OTPPrgmData])
	}
}
