package cli

import (
	"fmt"

	"github.com/soypat/lneto/ethernet"
	"github.com/spf13/cobra"

	"github.com/ardnew/muge/lan78xx"
)

const SetOptionName = "set"

func newMACCommand(e *env) *cobra.Command {
	var set string
	cmd := &cobra.Command{
		Use:   "mac",
		Short: "Bring the device up and show or change its station address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var mac [6]byte
			if set != "" {
				var err error
				if mac, err = lan78xx.ParseMAC(set); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			t, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer t.Close()

			if err := t.Bringup(ctx); err != nil {
				return err
			}
			if set != "" {
				if err := t.SetMACAddress(ctx, mac); err != nil {
					return err
				}
			}
			addr, src := t.MACAddress()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", ethernet.AppendAddr(nil, addr), src)
			return nil
		},
	}
	cmd.Flags().StringVar(&set, SetOptionName, "", "Station address to program")
	return cmd
}

func newStatsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Read the hardware statistics counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()

			words, err := t.Stats(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i, v := range words {
				fmt.Fprintf(w, "%3d 0x%03X %10d\n", i, 4*i, v)
			}
			return nil
		},
	}
}
