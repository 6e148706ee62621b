// Package cli implements the mugectl command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ardnew/muge/config"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/pkg/prof"
)

// Persistent flag names.
const (
	LogLevelOptionName   = "log-level"
	ConfigOptionName     = "config"
	SimOptionName        = "sim"
	DeviceOptionName     = "device"
	DetachOptionName     = "detach"
	CPUProfileOptionName = "cpuprofile"
	MemProfileOptionName = "memprofile"
)

// Execute runs mugectl with the process arguments, writing results to out.
func Execute(ctx context.Context, out io.Writer) error {
	e := &env{}
	err := newRootCommand(out, e).ExecuteContext(ctx)
	return errors.Join(err, e.profile.Stop())
}

func newRootCommand(out io.Writer, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mugectl",
		Short:         "Inspect and configure LAN78xx USB Ethernet controllers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init(cmd)
		},
	}
	cmd.SetOut(out)

	pf := cmd.PersistentFlags()
	pf.StringVar(&e.logLevel, LogLevelOptionName, "", "Log level: debug, info, warn, error")
	pf.StringVar(&e.configPath, ConfigOptionName, "", fmt.Sprintf("Config file (default %s)", config.DefaultConfigPath()))
	pf.BoolVar(&e.sim, SimOptionName, false, "Use the in-memory chip model instead of hardware")
	pf.StringVar(&e.device, DeviceOptionName, "", "usbfs device node, e.g. /dev/bus/usb/002/003")
	pf.BoolVar(&e.detach, DetachOptionName, false, "Detach the kernel driver while the command runs")
	pf.StringVar(&e.profiles.CPU, CPUProfileOptionName, "", "Write a CPU profile to this file")
	pf.StringVar(&e.profiles.Heap, MemProfileOptionName, "", "Write a heap profile to this file on exit")
	_ = pf.MarkHidden(CPUProfileOptionName)
	_ = pf.MarkHidden(MemProfileOptionName)
	cmd.MarkFlagsMutuallyExclusive(SimOptionName, DeviceOptionName)

	cmd.AddCommand(newListCommand(e))
	cmd.AddCommand(newBringupCommand(e))
	cmd.AddCommand(newRegCommand(e))
	cmd.AddCommand(newPHYCommand(e))
	cmd.AddCommand(newEEPROMCommand(e))
	cmd.AddCommand(newOTPCommand(e))
	cmd.AddCommand(newFilterCommand(e))
	cmd.AddCommand(newMACCommand(e))
	cmd.AddCommand(newStatsCommand(e))
	cmd.AddCommand(newSnapshotCommand(e))
	cmd.AddCommand(newConfigCommand(e))
	return cmd
}

// init loads the configuration and applies the logging settings.
func (e *env) init(cmd *cobra.Command) error {
	path := e.configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && e.configPath == "":
		cfg = config.NewDefaultConfig()
	case errors.Is(err, fs.ErrNotExist) && cmd.Name() == "init":
		cfg = config.NewDefaultConfig()
		cfg.SetPath(path)
	default:
		return err
	}
	if cfg.Log == nil {
		cfg.Log = config.NewDefaultConfig().Log
	}
	e.cfg = cfg

	level := cfg.Log.Level
	if e.logLevel != "" {
		level = e.logLevel
	}
	lvl, err := pkg.ParseLogLevel(level)
	if err != nil {
		return fmt.Errorf("%w: log level %q", err, level)
	}
	pkg.SetLogLevel(lvl)
	pkg.SetLogFormat(cmd.ErrOrStderr(), logFormat(cfg.Log.Format, cmd.ErrOrStderr()))

	if e.profiles.Enabled() {
		if e.profile, err = prof.Start(e.profiles); err != nil {
			return err
		}
	}
	return nil
}

// logFormat resolves "auto" to text on a terminal and JSON otherwise.
func logFormat(name string, w io.Writer) pkg.LogFormat {
	switch name {
	case "json":
		return pkg.LogFormatJSON
	case "text":
		return pkg.LogFormatText
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return pkg.LogFormatText
	}
	return pkg.LogFormatJSON
}
