// Package config loads and persists the YAML device configuration used by
// mugectl.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/ardnew/muge/filter"
	"github.com/ardnew/muge/host/hal"
	"github.com/ardnew/muge/indirect"
	"github.com/ardnew/muge/lan78xx"
	"github.com/ardnew/muge/pkg"
)

// ErrConfigFileExists is returned by Persist when the file exists and
// overwrite is false.
type ErrConfigFileExists struct {
	Path string
}

// Error implements error.
func (e ErrConfigFileExists) Error() string {
	return fmt.Sprintf("config file %s already exists", e.Path)
}

// Duration is a time.Duration written as a string such as "1ms".
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type TimingConfig struct {
	Polls    int      `json:"polls"`
	Interval Duration `json:"interval"`
}

func (t TimingConfig) timing() indirect.Timing {
	return indirect.Timing{Polls: t.Polls, Interval: time.Duration(t.Interval)}
}

func timingConfig(t indirect.Timing) TimingConfig {
	return TimingConfig{Polls: t.Polls, Interval: Duration(t.Interval)}
}

type DeviceConfig struct {
	Path        string `json:"path,omitempty"`
	Speed       string `json:"speed"`
	PHYAddress  uint8  `json:"phyAddress"`
	MDIX        string `json:"mdix"`
	MAC         string `json:"mac,omitempty"`
	FallbackMAC string `json:"fallbackMac,omitempty"`
}

type FIFOConfig struct {
	RxSize       int    `json:"rxSize"`
	TxSize       int    `json:"txSize"`
	BurstCap     int    `json:"burstCap"`
	BulkInDelay  uint32 `json:"bulkInDelay"`
	FlowControl  bool   `json:"flowControl"`
	MaxFrameSize int    `json:"maxFrameSize"`
}

type FilterConfig struct {
	Promiscuous     bool     `json:"promiscuous"`
	AllMulticast    bool     `json:"allMulticast"`
	Multicast       []string `json:"multicast,omitempty"`
	VLANs           []uint16 `json:"vlans,omitempty"`
	ChecksumOffload bool     `json:"checksumOffload"`
}

type PollConfig struct {
	Reset    TimingConfig `json:"reset"`
	MII      TimingConfig `json:"mii"`
	DataPort TimingConfig `json:"dataPort"`
	EEPROM   TimingConfig `json:"eeprom"`
	OTP      TimingConfig `json:"otp"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type SnapshotConfig struct {
	Path string `json:"path"`
}

type Config struct {
	Device   *DeviceConfig   `json:"device,omitempty"`
	FIFO     *FIFOConfig     `json:"fifo,omitempty"`
	Filter   *FilterConfig   `json:"filter,omitempty"`
	Poll     *PollConfig     `json:"poll,omitempty"`
	Log      *LogConfig      `json:"log,omitempty"`
	Snapshot *SnapshotConfig `json:"snapshot,omitempty"`
	filepath string
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func NewDefaultConfig() *Config {
	opts := lan78xx.DefaultOptions()
	return &Config{
		Device: &DeviceConfig{
			Speed:      DefaultSpeed,
			PHYAddress: opts.PHYAddr,
			MDIX:       DefaultMDIX,
		},
		FIFO: &FIFOConfig{
			RxSize:       opts.RxFIFOSize,
			TxSize:       opts.TxFIFOSize,
			BurstCap:     opts.BurstCapSize,
			BulkInDelay:  opts.BulkInDelay,
			FlowControl:  opts.FlowControl,
			MaxFrameSize: opts.MaxFrameSize,
		},
		Filter: &FilterConfig{},
		Poll: &PollConfig{
			Reset:    timingConfig(opts.Reset),
			MII:      timingConfig(opts.Indirect.MII),
			DataPort: timingConfig(opts.Indirect.DataPort),
			EEPROM:   timingConfig(opts.Indirect.EEPROM),
			OTP:      timingConfig(opts.Indirect.OTP),
		},
		Log: &LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Snapshot: &SnapshotConfig{
			Path: filepath.Join(filepath.Dir(DefaultConfigPath()), DefaultSnapshots),
		},
		filepath: DefaultConfigPath(),
	}
}

// Load reads path over the defaults. Sections missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	c := NewDefaultConfig()
	c.filepath = path
	if err := c.LoadConfig(); err != nil {
		return nil, err
	}
	pkg.LogDebug(pkg.ComponentConfig, "loaded", "path", path)
	return c, nil
}

func (c *Config) LoadConfig() error {
	data, err := os.ReadFile(c.filepath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Path returns the file the config is loaded from and persisted to.
func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	err = os.WriteFile(c.filepath, data, 0644)
	if err != nil {
		return err
	}

	pkg.LogInfo(pkg.ComponentConfig, "persisted", "path", c.filepath)
	return nil
}

// Validate checks every section and returns all problems found.
func (c *Config) Validate() error {
	var errs []error
	if c.Device == nil || c.FIFO == nil || c.Filter == nil || c.Poll == nil {
		return fmt.Errorf("%w: incomplete configuration", pkg.ErrInvalidArgument)
	}
	if hal.ParseSpeed(c.Device.Speed) == hal.SpeedUnknown {
		errs = append(errs, fmt.Errorf("%w: speed %q", pkg.ErrInvalidArgument, c.Device.Speed))
	}
	if c.Log != nil {
		if _, err := pkg.ParseLogLevel(c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("%w: log level %q", pkg.ErrInvalidArgument, c.Log.Level))
		}
		switch c.Log.Format {
		case "auto", "text", "json":
		default:
			errs = append(errs, fmt.Errorf("%w: log format %q", pkg.ErrInvalidArgument, c.Log.Format))
		}
	}
	for name, t := range map[string]TimingConfig{
		"reset": c.Poll.Reset, "mii": c.Poll.MII, "dataPort": c.Poll.DataPort,
		"eeprom": c.Poll.EEPROM, "otp": c.Poll.OTP,
	} {
		if t.Polls <= 0 || t.Interval < 0 {
			errs = append(errs, fmt.Errorf("%w: %s poll bound %d x %v",
				pkg.ErrInvalidArgument, name, t.Polls, time.Duration(t.Interval)))
		}
	}
	if _, err := c.DeviceOptions(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DeviceOptions converts c into device options.
func (c *Config) DeviceOptions() (lan78xx.Options, error) {
	opts := lan78xx.DefaultOptions()
	if c.Device == nil || c.FIFO == nil || c.Filter == nil || c.Poll == nil {
		return opts, fmt.Errorf("%w: incomplete configuration", pkg.ErrInvalidArgument)
	}

	opts.PHYAddr = c.Device.PHYAddress
	mdix, err := lan78xx.ParseMDIX(c.Device.MDIX)
	if err != nil {
		return opts, err
	}
	opts.MDIX = mdix
	if c.Device.MAC != "" {
		if opts.MAC, err = lan78xx.ParseMAC(c.Device.MAC); err != nil {
			return opts, err
		}
	}
	if c.Device.FallbackMAC != "" {
		if opts.FallbackMAC, err = lan78xx.ParseMAC(c.Device.FallbackMAC); err != nil {
			return opts, err
		}
	}

	opts.RxFIFOSize = c.FIFO.RxSize
	opts.TxFIFOSize = c.FIFO.TxSize
	opts.BurstCapSize = c.FIFO.BurstCap
	opts.BulkInDelay = c.FIFO.BulkInDelay
	opts.FlowControl = c.FIFO.FlowControl
	opts.MaxFrameSize = c.FIFO.MaxFrameSize

	opts.RxMode = filter.RxMode{
		Promiscuous:  c.Filter.Promiscuous,
		AllMulticast: c.Filter.AllMulticast,
	}
	for _, s := range c.Filter.Multicast {
		mac, err := lan78xx.ParseMAC(s)
		if err != nil {
			return opts, err
		}
		if mac[0]&0x01 == 0 {
			return opts, fmt.Errorf("%w: %s is not a group address", pkg.ErrInvalidArgument, s)
		}
		opts.RxMode.Multicast = append(opts.RxMode.Multicast, mac)
	}
	opts.VLANs = append([]uint16(nil), c.Filter.VLANs...)
	opts.ChecksumOffload = c.Filter.ChecksumOffload

	opts.Reset = c.Poll.Reset.timing()
	opts.Indirect.MII = c.Poll.MII.timing()
	opts.Indirect.DataPort = c.Poll.DataPort.timing()
	opts.Indirect.EEPROM = c.Poll.EEPROM.timing()
	opts.Indirect.OTP = c.Poll.OTP.timing()

	return opts, opts.Validate()
}
