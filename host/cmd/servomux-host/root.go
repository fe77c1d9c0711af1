package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"servomux/core"
	"servomux/host/config"
	"servomux/host/mcu"
)

// options are the persistent flags shared by every subcommand
type options struct {
	configPath string
	device     string
	baud       int
	timeout    time.Duration
	verbose    bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "servomux-host",
		Short: "Control the servo multiplexer firmware",
		Long: `servomux-host talks to the servo firmware over a serial link. ` +
			`Use --device sim to run against a simulated board.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default "+config.DefaultPath+")")
	flags.StringVarP(&opts.device, "device", "d", "", "serial device, or \""+mcu.VirtualDevice+"\"")
	flags.IntVarP(&opts.baud, "baud", "b", 0, "baud rate")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-command timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print firmware debug output")

	root.AddCommand(
		newAttachCmd(opts),
		newDetachCmd(opts),
		newWriteCmd(opts),
		newWriteUSCmd(opts),
		newQueryCmd(opts),
		newIdentifyCmd(opts),
		newApplyCmd(opts),
		newSimCmd(opts),
		newRunCmd(opts),
	)
	return root
}

// load reads the config file, then applies flags the user set
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Device = o.device
	}
	if flags.Changed("baud") {
		cfg.Baud = o.baud
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	o.cfg = cfg

	if o.verbose {
		out := cmd.ErrOrStderr()
		core.SetDebugWriter(func(s string) { fmt.Fprintln(out, s) })
		core.SetDebugEnabled(true)
	}
	return nil
}

// connect opens the board named by the config
func (o *options) connect(cmd *cobra.Command) (*mcu.MCU, error) {
	m, err := mcu.Connect(o.cfg.SerialConfig())
	if err != nil {
		return nil, err
	}
	m.SetTimeout(o.cfg.Timeout)
	if o.verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "connected to %s\n", o.cfg.Device)
	}
	return m, nil
}

// withMCU runs fn on a connected client and closes it afterwards
func (o *options) withMCU(cmd *cobra.Command, fn func(m *mcu.MCU) error) error {
	m, err := o.connect(cmd)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
