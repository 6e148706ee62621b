// Package filter programs the receive filtering engine: the perfect address
// filter, the VLAN table and the multicast hash table.
package filter

import (
	"context"
	"fmt"
	"math/bits"
	"sync"

	"github.com/soypat/lneto/ethernet"

	"github.com/ardnew/muge/bus"
	"github.com/ardnew/muge/indirect"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// Table sizes.
const (
	NumEntries       = regs.NumPFilterAddrs
	NumVLANs         = indirect.VLANTableWords * 32
	NumMulticastBits = indirect.HashTableWords * 32
)

// Direction selects which address of a frame a perfect filter entry matches.
type Direction uint8

// Match directions.
const (
	Destination Direction = iota
	Source
)

// String returns the direction name.
func (d Direction) String() string {
	if d == Source {
		return "source"
	}
	return "destination"
}

// Entry is one perfect filter slot.
type Entry struct {
	Index     int
	Addr      [6]byte
	Direction Direction
	Valid     bool
}

// String formats e as "index addr direction".
func (e Entry) String() string {
	state := "invalid"
	if e.Valid {
		state = e.Direction.String()
	}
	return fmt.Sprintf("%2d %s %s", e.Index, ethernet.AppendAddr(nil, e.Addr), state)
}

// Table selects one of the Data Port hash tables.
type Table uint8

// Hash tables.
const (
	VLANTable Table = iota
	MulticastTable
)

// String returns the table name.
func (t Table) String() string {
	switch t {
	case VLANTable:
		return "vlan"
	case MulticastTable:
		return "multicast"
	default:
		return fmt.Sprintf("table(%d)", uint8(t))
	}
}

// RxMode is the address filtering policy applied by SetRxMode.
type RxMode struct {
	Promiscuous  bool
	AllMulticast bool
	Multicast    [][6]byte
}

// tables is the state shared by every view of one device's filters.
type tables struct {
	mu sync.Mutex
	e  *indirect.Engine

	vlan [indirect.VLANTableWords]uint32
	hash [indirect.HashTableWords]uint32
}

// Manager owns the filter tables of one device. It keeps shadow copies of
// the VLAN and multicast tables so single-bit updates need one Data Port
// write.
type Manager struct {
	*tables
	gate func() error
}

// New returns a Manager using e.
func New(e *indirect.Engine) *Manager {
	return &Manager{tables: &tables{e: e}}
}

// Gated returns a view of m that runs gate before every operation touching
// the device and aborts it when gate fails. The view shares m's tables.
func (m *Manager) Gated(gate func() error) *Manager {
	return &Manager{tables: m.tables, gate: gate}
}

func (m *Manager) check() error {
	if m.gate != nil {
		return m.gate()
	}
	return nil
}

func checkIndex(index int) error {
	if index < 0 || index >= NumEntries {
		return fmt.Errorf("%w: filter index %d", pkg.ErrInvalidIndex, index)
	}
	return nil
}

func entryWords(e Entry) (hi, lo uint32) {
	lo = uint32(e.Addr[0]) | uint32(e.Addr[1])<<8 | uint32(e.Addr[2])<<16 | uint32(e.Addr[3])<<24
	hi = uint32(e.Addr[4]) | uint32(e.Addr[5])<<8
	if e.Valid {
		hi |= regs.PFilterAddrValid
	}
	if e.Direction == Source {
		hi |= regs.PFilterTypeSrc
	}
	return hi, lo
}

func program(ctx context.Context, a bus.Accessor, index int, e Entry) error {
	hi, lo := entryWords(e)
	if err := a.Write(ctx, regs.PFilterLo(index), lo); err != nil {
		return err
	}
	return a.Write(ctx, regs.PFilterHi(index), hi)
}

// Program writes entry to perfect filter slot index, low word first.
func (m *Manager) Program(ctx context.Context, index int, e Entry) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	pkg.LogDebug(pkg.ComponentFilter, "program perfect filter",
		"index", index, "addr", string(ethernet.AppendAddr(nil, e.Addr)),
		"direction", e.Direction, "valid", e.Valid)
	return m.e.Bus().Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		return program(ctx, a, index, e)
	})
}

// Clear invalidates perfect filter slot index.
func (m *Manager) Clear(ctx context.Context, index int) error {
	if err := checkIndex(index); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	return m.e.Bus().Write(ctx, regs.PFilterHi(index), 0)
}

// Read returns perfect filter slot index as stored by the device.
func (m *Manager) Read(ctx context.Context, index int) (Entry, error) {
	if err := checkIndex(index); err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return Entry{}, err
	}
	var e Entry
	err := m.e.Bus().Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		var err error
		e, err = read(ctx, a, index)
		return err
	})
	return e, err
}

func read(ctx context.Context, a bus.Accessor, index int) (Entry, error) {
	lo, err := a.Read(ctx, regs.PFilterLo(index))
	if err != nil {
		return Entry{}, err
	}
	hi, err := a.Read(ctx, regs.PFilterHi(index))
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		Index: index,
		Addr: [6]byte{
			byte(lo), byte(lo >> 8), byte(lo >> 16), byte(lo >> 24),
			byte(hi), byte(hi >> 8),
		},
		Valid: hi&regs.PFilterAddrValid != 0,
	}
	if hi&regs.PFilterTypeSrc != 0 {
		e.Direction = Source
	}
	return e, nil
}

// List returns every perfect filter slot.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, NumEntries)
	err := m.e.Bus().Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		for i := 0; i < NumEntries; i++ {
			e, err := read(ctx, a, i)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// locate returns the shadow word and Data Port address holding bit of t.
func (m *Manager) locate(t Table, bit int) (*uint32, uint32, error) {
	switch t {
	case VLANTable:
		if bit < 0 || bit >= NumVLANs {
			return nil, 0, fmt.Errorf("%w: vlan bit %d", pkg.ErrInvalidIndex, bit)
		}
		return &m.vlan[bit/32], uint32(indirect.VLANTableOffset + bit/32), nil
	case MulticastTable:
		if bit < 0 || bit >= NumMulticastBits {
			return nil, 0, fmt.Errorf("%w: multicast bit %d", pkg.ErrInvalidIndex, bit)
		}
		return &m.hash[bit/32], uint32(indirect.HashTableOffset + bit/32), nil
	default:
		return nil, 0, fmt.Errorf("%w: %v", pkg.ErrInvalidArgument, t)
	}
}

func (m *Manager) updateBit(ctx context.Context, t Table, bit int, set bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	word, addr, err := m.locate(t, bit)
	if err != nil {
		return err
	}
	v := *word &^ (1 << (bit % 32))
	if set {
		v |= 1 << (bit % 32)
	}
	if err := m.e.WriteDataPort(ctx, indirect.RAMVLANDA, addr, v); err != nil {
		return err
	}
	*word = v
	return nil
}

// SetHashBit sets one bit of a hash table.
func (m *Manager) SetHashBit(ctx context.Context, t Table, bit int) error {
	return m.updateBit(ctx, t, bit, true)
}

// ClearHashBit clears one bit of a hash table.
func (m *Manager) ClearHashBit(ctx context.Context, t Table, bit int) error {
	return m.updateBit(ctx, t, bit, false)
}

// HashBit reports the shadowed state of one bit of a hash table.
func (m *Manager) HashBit(t Table, bit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	word, _, err := m.locate(t, bit)
	if err != nil {
		return false, err
	}
	return *word&(1<<(bit%32)) != 0, nil
}

// SetVLANEntry replaces VLAN table word slot with word.
func (m *Manager) SetVLANEntry(ctx context.Context, slot int, word uint32) error {
	if slot < 0 || slot >= indirect.VLANTableWords {
		return fmt.Errorf("%w: vlan slot %d", pkg.ErrInvalidIndex, slot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	err := m.e.WriteDataPort(ctx, indirect.RAMVLANDA, uint32(indirect.VLANTableOffset+slot), word)
	if err != nil {
		return err
	}
	m.vlan[slot] = word
	return nil
}

// AddVLAN accepts frames tagged with vid when VLAN filtering is enabled.
func (m *Manager) AddVLAN(ctx context.Context, vid uint16) error {
	return m.SetHashBit(ctx, VLANTable, int(vid))
}

// RemoveVLAN stops accepting frames tagged with vid.
func (m *Manager) RemoveVLAN(ctx context.Context, vid uint16) error {
	return m.ClearHashBit(ctx, VLANTable, int(vid))
}

// MulticastHash returns the multicast hash table bit for addr: the top nine
// bits of the big-endian Ethernet CRC.
func MulticastHash(addr [6]byte) int {
	crc := bits.Reverse32(^ethernet.CRC32(addr[:]))
	return int(crc>>23) & (NumMulticastBits - 1)
}

// Reset zeroes the shadow tables without touching the device. Use it after
// a chip reset, followed by Sync.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.vlan[:])
	clear(m.hash[:])
}

// Sync writes both shadow tables to the device.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	return m.syncLocked(ctx)
}

func (m *Manager) syncLocked(ctx context.Context) error {
	words := make([]uint32, 0, len(m.vlan)+len(m.hash))
	words = append(words, m.vlan[:]...)
	words = append(words, m.hash[:]...)
	return m.e.WriteDataPortBlock(ctx, indirect.RAMVLANDA, indirect.VLANTableOffset, words)
}

// SetRxMode programs multicast reception. The first NumEntries-1 multicast
// addresses occupy perfect filter slots 1 and up; the rest go to the hash
// table. Slot 0 holds the station address and is left alone.
func (m *Manager) SetRxMode(ctx context.Context, mode RxMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	var hash [indirect.HashTableWords]uint32
	var perfect [NumEntries]Entry
	rfe := regs.RFECtlBcastEn | regs.RFECtlDAPerfect
	switch {
	case mode.Promiscuous:
		rfe |= regs.RFECtlMcastEn | regs.RFECtlUcastEn
	case mode.AllMulticast:
		rfe |= regs.RFECtlMcastEn
	}
	for i, addr := range mode.Multicast {
		if slot := i + 1; slot < NumEntries {
			perfect[slot] = Entry{Index: slot, Addr: addr, Valid: true}
			continue
		}
		bit := MulticastHash(addr)
		hash[bit/32] |= 1 << (bit % 32)
		rfe |= regs.RFECtlMcastHash
	}

	pkg.LogInfo(pkg.ComponentFilter, "set rx mode",
		"promiscuous", mode.Promiscuous, "allmulti", mode.AllMulticast,
		"multicast", len(mode.Multicast))

	err := m.e.WriteDataPortBlock(ctx, indirect.RAMVLANDA, indirect.HashTableOffset, hash[:])
	if err != nil {
		return err
	}
	m.hash = hash

	return m.e.Bus().Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		for i := 1; i < NumEntries; i++ {
			if err := a.Write(ctx, regs.PFilterHi(i), 0); err != nil {
				return err
			}
			if perfect[i].Valid {
				if err := program(ctx, a, i, perfect[i]); err != nil {
					return err
				}
			}
		}
		mask := regs.RFECtlUcastEn | regs.RFECtlMcastEn | regs.RFECtlBcastEn |
			regs.RFECtlDAPerfect | regs.RFECtlMcastHash
		return bus.Modify(ctx, a, regs.RFECtl, mask, rfe)
	})
}

// SetVLANFiltering enables or disables filtering on the VLAN table.
func (m *Manager) SetVLANFiltering(ctx context.Context, enable bool) error {
	return m.setRFE(ctx, regs.RFECtlVLANFilter, enable)
}

// SetChecksumOffload enables or disables the receive checksum engines.
func (m *Manager) SetChecksumOffload(ctx context.Context, enable bool) error {
	return m.setRFE(ctx, regs.RFECtlChecksumOffload, enable)
}

func (m *Manager) setRFE(ctx context.Context, mask uint32, enable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	var set uint32
	if enable {
		set = mask
	}
	return m.e.Bus().Modify(ctx, regs.RFECtl, mask, set)
}
