package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"servomux/host/gcode"
	"servomux/host/mcu"
)

func newRunCmd(opts *options) *cobra.Command {
	var applyFirst bool

	cmd := &cobra.Command{
		Use:   "run <file|->",
		Short: "Execute a servo G-code script (M280, M281, M282, M115, G4)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			return opts.withMCU(cmd, func(m *mcu.MCU) error {
				if applyFirst {
					for _, ch := range opts.cfg.Channels {
						if err := applyChannel(m, ch); err != nil {
							return err
						}
					}
				}
				return gcode.NewInterpreter(m, cmd.OutOrStdout()).Run(r)
			})
		},
	}
	cmd.Flags().BoolVar(&applyFirst, "apply", false, "attach the configured channels before running")
	return cmd
}
