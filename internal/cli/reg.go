package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ardnew/muge/regs"
	"github.com/ardnew/muge/snapshot"
)

func newRegCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reg",
		Short: "Read and write device registers",
	}
	cmd.AddCommand(newRegGetCommand(e))
	cmd.AddCommand(newRegSetCommand(e))
	cmd.AddCommand(newRegDumpCommand(e))
	return cmd
}

func newRegGetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get ADDR",
		Short: "Read a register by address or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()

			v, err := t.Bus().Read(cmd.Context(), addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v %-16s 0x%08X\n", addr, regs.Lookup(addr), v)
			return nil
		},
	}
}

func newRegSetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set ADDR VALUE",
		Short: "Write a register by address or name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			v, err := parseUint(args[1], 32)
			if err != nil {
				return err
			}
			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()
			return t.Bus().Write(cmd.Context(), addr, uint32(v))
		},
	}
}

func newRegDumpCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Read every directly addressable register",
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
			printRegisters(cmd, snap)
			return nil
		},
	}
}

func printRegisters(cmd *cobra.Command, snap *snapshot.Snapshot) {
	w := cmd.OutOrStdout()
	for _, r := range snap.Registers {
		fmt.Fprintf(w, "%v %-16s 0x%08X\n", r.Addr, r.Name, r.Value)
	}
}
