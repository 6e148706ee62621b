package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ardnew/muge/host/hal/linux"
)

const AllOptionName = "all"

func newListCommand(e *env) *cobra.Command {
	var all bool
	var sysfs string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List attached LAN78xx devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devs, err := linux.Scan(sysfs)
			if err != nil {
				return err
			}
			names := linux.NewNames()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NODE\tID\tSPEED\tDRIVER\tNAME\tPRODUCT")
			for _, d := range devs {
				if !all && !d.IsLAN78xx() {
					continue
				}
				driver := d.Driver
				if driver == "" {
					driver = "-"
				}
				fmt.Fprintf(w, "%s\t%04x:%04x\t%v\t%s\t%s\t%s\n",
					d.DevPath, d.VendorID, d.ProductID, d.Speed, driver, d.Name(),
					names.Product(d.VendorID, d.ProductID))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, AllOptionName, false, "List every USB device, not only LAN78xx")
	cmd.Flags().StringVar(&sysfs, "sysfs", linux.SysfsUSBPath, "sysfs USB device directory")
	return cmd
}
