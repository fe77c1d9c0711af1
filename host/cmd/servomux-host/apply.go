package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"servomux/host/config"
	"servomux/host/mcu"
)

func newApplyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Attach every channel in the config file and set its position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.cfg.Channels) == 0 {
				return errors.New("no channels configured")
			}
			return opts.withMCU(cmd, func(m *mcu.MCU) error {
				for _, ch := range opts.cfg.Channels {
					if err := applyChannel(m, ch); err != nil {
						return fmt.Errorf("oid %d: %w", ch.OID, err)
					}
					st, err := m.Query(ch.OID)
					if err != nil {
						return err
					}
					printState(cmd.OutOrStdout(), st)
				}
				return nil
			})
		},
	}
}

// applyChannel configures, attaches and positions one channel
func applyChannel(m *mcu.MCU, ch config.Channel) error {
	if err := m.ConfigServo(ch.OID); err != nil {
		return err
	}
	if err := m.Attach(ch.OID, ch.Pin, ch.MinUs, ch.MaxUs); err != nil {
		return err
	}
	if ch.Position != nil {
		return m.Write(ch.OID, *ch.Position)
	}
	return nil
}
