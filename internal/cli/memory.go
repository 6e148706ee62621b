package cli

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ardnew/muge/regs"
)

const (
	OffsetOptionName = "offset"
	LengthOptionName = "length"
	ImageOptionName  = "image"
)

// addRangeFlags registers --offset and --length with a default span of size.
func addRangeFlags(cmd *cobra.Command, offset, length *int, size int) {
	cmd.Flags().IntVar(offset, OffsetOptionName, 0, "First byte to read")
	cmd.Flags().IntVar(length, LengthOptionName, size, "Number of bytes to read")
}

func dumpMemory(cmd *cobra.Command, e *env, offset, length int,
	read func(ctx context.Context, t *target, offset int, buf []byte) error) error {
	t, err := e.open(cmd.Context())
	if err != nil {
		return err
	}
	defer t.Close()

	buf := make([]byte, length)
	if err := read(cmd.Context(), t, offset, buf); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), hex.Dump(buf))
	return nil
}

func newEEPROMCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eeprom",
		Short: "Access the configuration EEPROM",
	}

	var offset, length int
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Hex dump EEPROM contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpMemory(cmd, e, offset, length,
				func(ctx context.Context, t *target, off int, buf []byte) error {
					return t.Engine().ReadEEPROM(ctx, off, buf)
				})
		},
	}
	addRangeFlags(dump, &offset, &length, regs.E2PSize)

	present := &cobra.Command{
		Use:   "present",
		Short: "Report whether a programmed EEPROM is attached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()
			ok, err := t.Engine().EEPROMPresent(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}

	write := &cobra.Command{
		Use:   "write OFFSET HEXBYTES",
		Short: "Program bytes into the EEPROM",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := parseUint(args[0], 16)
			if err != nil {
				return err
			}
			data, err := hex.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("decode %q: %w", args[1], err)
			}
			t, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.Close()
			return t.Engine().WriteEEPROM(cmd.Context(), int(off), data)
		},
	}

	cmd.AddCommand(dump, present, write)
	return cmd
}

func newOTPCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Access the one-time-programmable memory",
	}

	var offset, length int
	var image bool
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Hex dump OTP contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpMemory(cmd, e, offset, length,
				func(ctx context.Context, t *target, off int, buf []byte) error {
					if image {
						return t.Engine().ReadOTPImage(ctx, off, buf)
					}
					return t.Engine().ReadOTP(ctx, off, buf)
				})
		},
	}
	addRangeFlags(dump, &offset, &length, 256)
	dump.Flags().BoolVar(&image, ImageOptionName, false, "Read relative to the active image")

	cmd.AddCommand(dump)
	return cmd
}
