package gcode

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"time"

	"servomux/host/mcu"
	"servomux/protocol"
)

// Controller is the servo command set a script drives; *mcu.MCU
// implements it
type Controller interface {
	Identify() (mcu.Identity, error)
	ConfigServo(oid uint8) error
	Attach(oid uint8, pin uint32, minUs, maxUs int) error
	Detach(oid uint8) error
	Write(oid uint8, value int) error
	Query(oid uint8) (protocol.ServoState, error)
}

// Interpreter executes servo G-code:
//
//	M280 P<oid> S<value>         set position (degrees below 544, else us)
//	M280 P<oid>                  report position
//	M281 P<oid> I<pin> [L<min>] [U<max>]  configure and attach
//	M282 P<oid>                  detach
//	M115                         report firmware version
//	G4 P<ms> | G4 S<seconds>     dwell
type Interpreter struct {
	servos Controller
	out    io.Writer
	sleep  func(time.Duration)
}

// NewInterpreter creates an interpreter writing reports to out
func NewInterpreter(servos Controller, out io.Writer) *Interpreter {
	return &Interpreter{
		servos: servos,
		out:    out,
		sleep:  time.Sleep,
	}
}

// SetSleep replaces the dwell function
func (in *Interpreter) SetSleep(sleep func(time.Duration)) {
	in.sleep = sleep
}

// Run executes every line of r, stopping at the first error
func (in *Interpreter) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		cmd, err := ParseLine(scanner.Text())
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := in.Execute(cmd); err != nil {
			return fmt.Errorf("line %d: %s: %w", lineNo, cmd, err)
		}
	}
	return scanner.Err()
}

// Execute runs one parsed command
func (in *Interpreter) Execute(cmd *Command) error {
	if cmd == nil || cmd.Type == 0 {
		return nil
	}

	switch {
	case cmd.Type == 'G' && cmd.Number == 4:
		return in.dwell(cmd)
	case cmd.Type == 'M' && cmd.Number == 115:
		id, err := in.servos.Identify()
		if err != nil {
			return err
		}
		fmt.Fprintf(in.out, "FIRMWARE_NAME:servomux FIRMWARE_VERSION:%s SERVOS:%d\n", id.Version, id.Servos)
		return nil
	case cmd.Type == 'M' && cmd.Number == 280:
		return in.position(cmd)
	case cmd.Type == 'M' && cmd.Number == 281:
		return in.attach(cmd)
	case cmd.Type == 'M' && cmd.Number == 282:
		oid, err := servoIndex(cmd)
		if err != nil {
			return err
		}
		return in.servos.Detach(oid)
	}
	return fmt.Errorf("unsupported command")
}

func (in *Interpreter) dwell(cmd *Command) error {
	var d time.Duration
	switch {
	case cmd.Has('P'):
		d = time.Duration(cmd.Get('P', 0) * float64(time.Millisecond))
	case cmd.Has('S'):
		d = time.Duration(cmd.Get('S', 0) * float64(time.Second))
	}
	if d < 0 {
		return fmt.Errorf("negative dwell")
	}
	in.sleep(d)
	return nil
}

func (in *Interpreter) position(cmd *Command) error {
	oid, err := servoIndex(cmd)
	if err != nil {
		return err
	}
	if cmd.Has('S') {
		return in.servos.Write(oid, int(math.Round(cmd.Get('S', 0))))
	}

	st, err := in.servos.Query(oid)
	if err != nil {
		return err
	}
	fmt.Fprintf(in.out, " Servo %d: %d\n", st.OID, st.Angle)
	return nil
}

func (in *Interpreter) attach(cmd *Command) error {
	oid, err := servoIndex(cmd)
	if err != nil {
		return err
	}
	if !cmd.Has('I') {
		return fmt.Errorf("missing pin (I)")
	}
	pin := cmd.Get('I', 0)
	if pin < 0 || pin != math.Trunc(pin) {
		return fmt.Errorf("invalid pin %v", pin)
	}

	if err := in.servos.ConfigServo(oid); err != nil {
		return err
	}
	return in.servos.Attach(oid, uint32(pin), int(cmd.Get('L', 0)), int(cmd.Get('U', 0)))
}

// servoIndex reads the P parameter as an oid
func servoIndex(cmd *Command) (uint8, error) {
	if !cmd.Has('P') {
		return 0, fmt.Errorf("missing servo index (P)")
	}
	p := cmd.Get('P', 0)
	if p < 0 || p > math.MaxUint8 || p != math.Trunc(p) {
		return 0, fmt.Errorf("invalid servo index %v", p)
	}
	return uint8(p), nil
}
