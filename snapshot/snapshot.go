// Package snapshot captures and persists LAN78xx register dumps.
//
// A [Snapshot] is the value of every register in [regs.DumpSet] read at one
// instant. A [Store] keeps snapshots in a bbolt database, one bucket per
// device, keyed by capture time so that iteration returns them oldest first.
package snapshot

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// BucketPrefix prefixes every per-device bucket name.
const BucketPrefix = "snapshot_"

// ErrNotFound is returned when a device bucket or snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Reader reads one register. [bus.Bus] satisfies it.
type Reader interface {
	Read(ctx context.Context, addr regs.Addr) (uint32, error)
}

// Register is one captured register value.
type Register struct {
	Name  string    `json:"name"`
	Addr  regs.Addr `json:"addr"`
	Value uint32    `json:"value"`
}

// Snapshot is a register dump of one device.
type Snapshot struct {
	Device    string     `json:"device"`
	Taken     time.Time  `json:"taken"`
	Registers []Register `json:"registers"`
}

// Value returns the captured value of addr.
func (s *Snapshot) Value(addr regs.Addr) (uint32, bool) {
	for _, r := range s.Registers {
		if r.Addr == addr {
			return r.Value, true
		}
	}
	return 0, false
}

// Capture reads every register in [regs.DumpSet] through r.
//
// A failed read aborts the capture; a partial dump is never returned.
func Capture(ctx context.Context, r Reader, device string) (*Snapshot, error) {
	s := &Snapshot{
		Device:    device,
		Taken:     time.Now().UTC(),
		Registers: make([]Register, 0, len(regs.DumpSet)),
	}
	for _, n := range regs.DumpSet {
		v, err := r.Read(ctx, n.Addr)
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", n.Name, err)
		}
		s.Registers = append(s.Registers, Register{Name: n.Name, Addr: n.Addr, Value: v})
	}
	pkg.LogDebug(pkg.ComponentSnapshot, "captured registers",
		"device", device, "count", len(s.Registers))
	return s, nil
}

// Change is a register whose value differs between two snapshots.
type Change struct {
	Name     string
	Addr     regs.Addr
	Old, New uint32
}

// Diff lists the registers of b whose values differ from a. Registers missing
// from a are reported with Old set to zero.
func Diff(a, b *Snapshot) []Change {
	var out []Change
	for _, r := range b.Registers {
		old, _ := a.Value(r.Addr)
		if old != r.Value {
			out = append(out, Change{Name: r.Name, Addr: r.Addr, Old: old, New: r.Value})
		}
	}
	return out
}

// Store persists snapshots.
type Store struct {
	DB *bbolt.DB
}

// Open opens or creates the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// BucketName returns the bucket holding snapshots of device.
func BucketName(device string) string {
	return BucketPrefix + device
}

func timeKey(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixNano()))
	return b
}

func keyTime(b []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(b))).UTC()
}

// Save stores snap under its device and capture time. A snapshot already
// stored at the same instant is replaced.
func (s *Store) Save(snap *Snapshot) error {
	if snap.Device == "" {
		return pkg.ErrInvalidArgument
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BucketName(snap.Device)))
		if err != nil {
			return err
		}
		return b.Put(timeKey(snap.Taken), data)
	}); err != nil {
		return err
	}
	pkg.LogInfo(pkg.ComponentSnapshot, "snapshot saved",
		"device", snap.Device, "taken", snap.Taken)
	return nil
}

// List returns the capture times stored for device, oldest first.
func (s *Store) List(device string) ([]time.Time, error) {
	var times []time.Time
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName(device)))
		if b == nil {
			return fmt.Errorf("%w: device %s", ErrNotFound, device)
		}
		return b.ForEach(func(k, _ []byte) error {
			times = append(times, keyTime(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return times, nil
}

// Get returns the snapshot of device taken at t.
func (s *Store) Get(device string, t time.Time) (*Snapshot, error) {
	var snap *Snapshot
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName(device)))
		if b == nil {
			return fmt.Errorf("%w: device %s", ErrNotFound, device)
		}
		data := b.Get(timeKey(t))
		if data == nil {
			return fmt.Errorf("%w: %s at %s", ErrNotFound, device, t.Format(time.RFC3339Nano))
		}
		snap = &Snapshot{}
		return yaml.Unmarshal(data, snap)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Latest returns the most recent snapshot of device.
func (s *Store) Latest(device string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName(device)))
		if b == nil {
			return fmt.Errorf("%w: device %s", ErrNotFound, device)
		}
		_, data := b.Cursor().Last()
		if data == nil {
			return fmt.Errorf("%w: device %s is empty", ErrNotFound, device)
		}
		snap = &Snapshot{}
		return yaml.Unmarshal(data, snap)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Devices returns the names of every device with a snapshot bucket.
func (s *Store) Devices() ([]string, error) {
	var names []string
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			if n := string(name); len(n) > len(BucketPrefix) && n[:len(BucketPrefix)] == BucketPrefix {
				names = append(names, n[len(BucketPrefix):])
			}
			return nil
		})
	})
	return names, err
}

// Delete removes every snapshot of device.
func (s *Store) Delete(device string) error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket([]byte(BucketName(device)))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("%w: device %s", ErrNotFound, device)
		}
		return err
	})
}
