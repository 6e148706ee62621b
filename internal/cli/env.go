package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ardnew/muge/config"
	"github.com/ardnew/muge/host/hal"
	"github.com/ardnew/muge/host/hal/linux"
	"github.com/ardnew/muge/host/hal/sim"
	"github.com/ardnew/muge/lan78xx"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/pkg/prof"
	"github.com/ardnew/muge/regs"
)

// simName identifies the chip model in snapshots.
const simName = "sim"

// env carries the persistent flags and loaded configuration to every
// subcommand.
type env struct {
	logLevel   string
	configPath string
	sim        bool
	device     string
	detach     bool

	cfg *config.Config

	profiles prof.Options
	profile  *prof.Session

	// newSim builds the chip used by --sim. Tests replace it to share one
	// chip across several commands.
	newSim func(sim.Options) hal.Transport
}

// target is an opened device and the name it is recorded under.
type target struct {
	*lan78xx.Device
	name string
}

// Close releases the transport without shutting the MAC down, so that
// whatever a command configured stays in effect.
func (t *target) Close() error {
	return t.Bus().Close()
}

// open connects to the selected device: the chip model with --sim, the node
// given by --device or the config, or else the first LAN78xx in sysfs.
func (e *env) open(ctx context.Context) (*target, error) {
	opts, err := e.cfg.DeviceOptions()
	if err != nil {
		return nil, err
	}

	if e.sim {
		so := sim.DefaultOptions()
		so.PHYAddr = opts.PHYAddr
		if s := hal.ParseSpeed(e.cfg.Device.Speed); s != hal.SpeedUnknown {
			so.Speed = s
		}
		var t hal.Transport
		if e.newSim != nil {
			t = e.newSim(so)
		} else {
			t = sim.New(so)
		}
		return &target{Device: lan78xx.New(t, opts), name: simName}, nil
	}

	path, name := e.device, ""
	if path == "" {
		path = e.cfg.Device.Path
	}
	if path == "" {
		devs, err := linux.FindLAN78xx(linux.SysfsUSBPath)
		if err != nil {
			return nil, err
		}
		if len(devs) == 0 {
			return nil, fmt.Errorf("%w: no LAN78xx found; use --%s or --%s",
				pkg.ErrNoDevice, DeviceOptionName, SimOptionName)
		}
		path, name = devs[0].DevPath, devs[0].Name()
	}
	if name == "" {
		name = nodeName(path)
	}

	lo := linux.DefaultOptions()
	lo.Detach = e.detach
	t, err := linux.Open(path, lo)
	if err != nil {
		return nil, err
	}
	pkg.LogDebug(pkg.ComponentCLI, "opened device", "path", path, "name", name)
	return &target{Device: lan78xx.New(t, opts), name: name}, nil
}

// nodeName turns /dev/bus/usb/002/003 into 002-003.
func nodeName(path string) string {
	dir, dev := filepath.Split(filepath.Clean(path))
	return filepath.Base(dir) + "-" + dev
}

// parseAddr accepts a register mnemonic from the dump set or a number.
func parseAddr(s string) (regs.Addr, error) {
	for _, r := range regs.DumpSet {
		if strings.EqualFold(r.Name, s) {
			return r.Addr, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: register %q", pkg.ErrInvalidArgument, s)
	}
	return regs.Addr(v), nil
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", pkg.ErrInvalidArgument, s)
	}
	return v, nil
}
