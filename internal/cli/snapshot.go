package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/snapshot"
)

const (
	DBOptionName   = "db"
	DiffOptionName = "diff"
	AtOptionName   = "at"
)

func newSnapshotCommand(e *env) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and inspect register snapshots",
	}
	cmd.PersistentFlags().StringVar(&dbPath, DBOptionName, "", "Snapshot database (default from config)")

	openStore := func() (*snapshot.Store, error) {
		path := dbPath
		if path == "" && e.cfg.Snapshot != nil {
			path = e.cfg.Snapshot.Path
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		return snapshot.Open(path)
	}

	cmd.AddCommand(newSnapshotSaveCommand(e, openStore))
	cmd.AddCommand(newSnapshotShowCommand(e, openStore))
	cmd.AddCommand(newSnapshotListCommand(openStore))
	return cmd
}

func newSnapshotSaveCommand(e *env, openStore func() (*snapshot.Store, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Capture the device registers and store them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()

			snap, err := snapshot.Capture(cmd.Context(), t.Bus(), t.name)
			if err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", snap.Device, snap.Taken.Format(time.RFC3339Nano))
			return nil
		},
	}
}

func newSnapshotShowCommand(e *env, openStore func() (*snapshot.Store, error)) *cobra.Command {
	var at string
	var diff bool
	cmd := &cobra.Command{
		Use:   "show [DEVICE]",
		Short: "Print a stored snapshot, or its difference from the live device",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var device string
			switch {
			case len(args) == 1:
				device = args[0]
			case e.sim:
				device = simName
			default:
				return fmt.Errorf("%w: device name required", pkg.ErrInvalidArgument)
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var snap *snapshot.Snapshot
			if at == "" {
				snap, err = store.Latest(device)
			} else {
				var ts time.Time
				if ts, err = time.Parse(time.RFC3339Nano, at); err != nil {
					return err
				}
				snap, err = store.Get(device, ts)
			}
			if err != nil {
				return err
			}

			if !diff {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s %s\n", snap.Device, snap.Taken.Format(time.RFC3339Nano))
				printRegisters(cmd, snap)
				return nil
			}

			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()
			live, err := snapshot.Capture(cmd.Context(), t.Bus(), t.name)
			if err != nil {
				return err
			}
			for _, c := range snapshot.Diff(snap, live) {
				fmt.Fprintf(cmd.OutOrStdout(), "%v %-16s 0x%08X -> 0x%08X\n", c.Addr, c.Name, c.Old, c.New)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, AtOptionName, "", "Capture time (RFC 3339); latest if empty")
	cmd.Flags().BoolVar(&diff, DiffOptionName, false, "Compare against the live device")
	return cmd
}

func newSnapshotListCommand(openStore func() (*snapshot.Store, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			devices, err := store.Devices()
			if err != nil {
				return err
			}
			for _, d := range devices {
				times, err := store.List(d)
				if err != nil {
					return err
				}
				for _, ts := range times {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", d, ts.Format(time.RFC3339Nano))
				}
			}
			return nil
		},
	}
}
