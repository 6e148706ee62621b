package cli

import (
	"fmt"
	"io"

	"github.com/soypat/lneto/ethernet"
	"github.com/spf13/cobra"
)

func newBringupCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "bringup",
		Short: "Reset and configure the device, then enable the data path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer t.Close()

			if err := t.Bringup(ctx); err != nil {
				return err
			}
			return printStatus(cmd, t)
		},
	}
}

// printStatus reports the identity, address and link of t.
func printStatus(cmd *cobra.Command, t *target) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	id, rev, err := t.ChipID(ctx)
	if err != nil {
		return err
	}
	mac, src := t.MACAddress()
	fmt.Fprintf(w, "device:  %s\n", t.name)
	fmt.Fprintf(w, "chip:    %04X rev %d\n", id, rev)
	fmt.Fprintf(w, "speed:   %v\n", t.Bus().Speed())
	fmt.Fprintf(w, "state:   %v\n", t.State())
	fmt.Fprintf(w, "mac:     %s (%v)\n", ethernet.AppendAddr(nil, mac), src)
	return printLink(cmd, w, t)
}

func printLink(cmd *cobra.Command, w io.Writer, t *target) error {
	link, err := t.Link(cmd.Context())
	if err != nil {
		return err
	}
	switch {
	case !link.Up:
		fmt.Fprintln(w, "link:    down")
	case !link.AutoNegDone:
		fmt.Fprintln(w, "link:    up, negotiating")
	default:
		fmt.Fprintf(w, "link:    up, %d Mb/s (mode %d)\n", link.Mode.SpeedMbps(), link.Mode)
	}
	return nil
}
