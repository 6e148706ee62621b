package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ardnew/muge/lan78xx"
)

const MDIXOptionName = "mdix"

func newPHYCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phy",
		Short: "Access the internal PHY over MII",
	}
	cmd.AddCommand(newPHYGetCommand(e))
	cmd.AddCommand(newPHYSetCommand(e))
	cmd.AddCommand(newPHYStatusCommand(e))
	return cmd
}

func parsePHYReg(s string) (uint8, error) {
	v, err := parseUint(s, 5)
	return uint8(v), err
}

func newPHYGetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get REG",
		Short: "Read a PHY register (0-31)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := parsePHYReg(args[0])
			if err != nil {
				return err
			}
			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()

			v, err := t.Engine().ReadPHY(cmd.Context(), t.Options().PHYAddr, reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%2d 0x%04X\n", reg, v)
			return nil
		},
	}
}

func newPHYSetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set REG VALUE",
		Short: "Write a PHY register (0-31)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := parsePHYReg(args[0])
			if err != nil {
				return err
			}
			v, err := parseUint(args[1], 16)
			if err != nil {
				return err
			}
			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()
			return t.Engine().WritePHY(cmd.Context(), t.Options().PHYAddr, reg, uint16(v))
		},
	}
}

func newPHYStatusCommand(e *env) *cobra.Command {
	var mdix string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show PHY identity and link state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer t.Close()

			if mdix != "" {
				mode, err := lan78xx.ParseMDIX(mdix)
				if err != nil {
					return err
				}
				if err := t.SetMDIX(ctx, mode); err != nil {
					return err
				}
			}

			p, err := t.PHY(ctx)
			if err != nil {
				return err
			}
			id1, err := p.ID1()
			if err != nil {
				return err
			}
			id2, err := p.ID2()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "phy:     addr %d id %04X:%04X\n", t.Options().PHYAddr, id1, id2)
			return printLink(cmd, w, t)
		},
	}
	cmd.Flags().StringVar(&mdix, MDIXOptionName, "", "Set crossover mode first: auto, mdi, mdix")
	return cmd
}
