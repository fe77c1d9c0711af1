package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"servomux/core"
	"servomux/host/config"
	"servomux/sim"
)

func newSimCmd(opts *options) *cobra.Command {
	var (
		frames int
		events bool
	)

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the configured channels on the simulator and print the pulse trace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if frames <= 0 {
				return fmt.Errorf("frames must be positive, got %d", frames)
			}
			out := cmd.OutOrStdout()

			channels := opts.cfg.Channels
			if len(channels) == 0 {
				channels = []config.Channel{{OID: 0, Pin: 0}}
			}

			core.ClearEventRing()
			bench := sim.NewBench(opts.cfg.SchedulerConfig())
			for _, ch := range channels {
				sv := bench.Scheduler.NewServo()
				if !sv.AttachRange(core.GPIOPin(ch.Pin), ch.MinUs, ch.MaxUs) {
					return fmt.Errorf("oid %d: attach on pin %d failed", ch.OID, ch.Pin)
				}
				if ch.Position != nil {
					sv.Write(*ch.Position)
				}
			}

			bench.RunFrames(frames)
			if err := bench.WriteTrace(out); err != nil {
				return err
			}

			stats := bench.Scheduler.Stats()
			fmt.Fprintf(out, "frames %d, channels %d, max high %d, last idle %d steps\n",
				stats.Frames, stats.ChannelsUsed, bench.Pins.MaxSimultaneousHigh(), stats.LastIdle)

			if events {
				core.SetDebugWriter(func(s string) { fmt.Fprintln(out, s) })
				defer core.SetDebugWriter(func(string) {})
				core.DumpEventRing()
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&frames, "frames", "n", 3, "frames to simulate")
	cmd.Flags().BoolVar(&events, "events", false, "dump the scheduler event ring")
	return cmd
}
