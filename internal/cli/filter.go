package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ardnew/muge/filter"
	"github.com/ardnew/muge/lan78xx"
	"github.com/ardnew/muge/pkg"
)

const SourceOptionName = "source"

func newFilterCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Inspect and program the perfect address filter",
	}
	cmd.AddCommand(newFilterListCommand(e))
	cmd.AddCommand(newFilterSetCommand(e))
	cmd.AddCommand(newFilterClearCommand(e))
	cmd.AddCommand(newFilterHashCommand())
	return cmd
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || i >= filter.NumEntries {
		return 0, fmt.Errorf("%w: filter index %q", pkg.ErrInvalidIndex, s)
	}
	return i, nil
}

// filters returns an ungated manager: the CLI pokes the tables of a device
// it did not bring up itself.
func filters(t *target) *filter.Manager {
	return filter.New(t.Engine())
}

func newFilterListCommand(e *env) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List perfect filter entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()

			entries, err := filters(t).List(cmd.Context())
			if err != nil {
				return err
			}
			for _, en := range entries {
				if en.Valid || all {
					fmt.Fprintln(cmd.OutOrStdout(), en)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, AllOptionName, false, "Include invalid slots")
	return cmd
}

func newFilterSetCommand(e *env) *cobra.Command {
	var source bool
	cmd := &cobra.Command{
		Use:   "set INDEX MAC",
		Short: "Program a perfect filter slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			mac, err := lan78xx.ParseMAC(args[1])
			if err != nil {
				return err
			}
			en := filter.Entry{Index: index, Addr: mac, Valid: true}
			if source {
				en.Direction = filter.Source
			}

			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()
			return filters(t).Program(cmd.Context(), index, en)
		},
	}
	cmd.Flags().BoolVar(&source, SourceOptionName, false, "Match the source address instead of the destination")
	return cmd
}

func newFilterClearCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear INDEX",
		Short: "Invalidate a perfect filter slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()
			return filters(t).Clear(cmd.Context(), index)
		},
	}
}

func newFilterHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash MAC",
		Short: "Print the multicast hash bit of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mac, err := lan78xx.ParseMAC(args[0])
			if err != nil {
				return err
			}
			bit := filter.MulticastHash(mac)
			fmt.Fprintf(cmd.OutOrStdout(), "%d word %d bit %d\n", bit, bit/32, bit%32)
			return nil
		},
	}
}
