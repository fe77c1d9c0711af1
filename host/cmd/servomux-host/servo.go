package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"servomux/host/mcu"
	"servomux/protocol"
)

func parseOID(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid oid %q", s)
	}
	return uint8(n), nil
}

func parseInt(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}

func printState(w io.Writer, st protocol.ServoState) {
	state := "detached"
	if st.Attached {
		state = "attached"
	}
	fmt.Fprintf(w, "oid %d: %s, angle %d, %dus\n", st.OID, state, st.Angle, st.US)
}

func newAttachCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <oid> <pin> [min_us max_us]",
		Short: "Configure a servo and start pulsing its pin",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 && len(args) != 4 {
				return fmt.Errorf("accepts 2 or 4 args, received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOID(args[0])
			if err != nil {
				return err
			}
			pin, err := parseInt("pin", args[1])
			if err != nil || pin < 0 {
				return fmt.Errorf("invalid pin %q", args[1])
			}
			var minUs, maxUs int
			if len(args) == 4 {
				if minUs, err = parseInt("min_us", args[2]); err != nil {
					return err
				}
				if maxUs, err = parseInt("max_us", args[3]); err != nil {
					return err
				}
			}

			return opts.withMCU(cmd, func(m *mcu.MCU) error {
				if err := m.ConfigServo(oid); err != nil {
					return err
				}
				if err := m.Attach(oid, uint32(pin), minUs, maxUs); err != nil {
					return err
				}
				st, err := m.Query(oid)
				if err != nil {
					return err
				}
				printState(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
}

func newDetachCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "detach <oid>",
		Short: "Stop pulsing a servo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOID(args[0])
			if err != nil {
				return err
			}
			return opts.withMCU(cmd, func(m *mcu.MCU) error {
				return m.Detach(oid)
			})
		},
	}
}

func newWriteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "write <oid> <value>",
		Short: "Set a position: degrees below 544, microseconds otherwise",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOID(args[0])
			if err != nil {
				return err
			}
			value, err := parseInt("value", args[1])
			if err != nil {
				return err
			}
			return opts.withMCU(cmd, func(m *mcu.MCU) error {
				return m.Write(oid, value)
			})
		},
	}
}

func newWriteUSCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "write-us <oid> <us>",
		Short: "Set a pulse width in microseconds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOID(args[0])
			if err != nil {
				return err
			}
			us, err := parseInt("pulse width", args[1])
			if err != nil {
				return err
			}
			return opts.withMCU(cmd, func(m *mcu.MCU) error {
				return m.WriteMicroseconds(oid, us)
			})
		},
	}
}

func newQueryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "query <oid>",
		Short: "Read back a servo's state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOID(args[0])
			if err != nil {
				return err
			}
			return opts.withMCU(cmd, func(m *mcu.MCU) error {
				st, err := m.Query(oid)
				if err != nil {
					return err
				}
				printState(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
}

func newIdentifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "identify",
		Short: "Print the firmware version and channel count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withMCU(cmd, func(m *mcu.MCU) error {
				id, err := m.Identify()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "servomux %s, %d channels\n", id.Version, id.Servos)
				return nil
			})
		},
	}
}
