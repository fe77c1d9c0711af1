// Package scene plays timed sequences of servo positions and LED brightness
// on top of a servo handle. It holds no scheduler state of its own.
package scene

import (
	"errors"
	"time"

	"servomux/core"
)

// Angles are relative to the servo's center position
const (
	Center   = 90
	MinAngle = -90
	MaxAngle = 90
)

// ErrBadStep is returned by Rotate when the step duration is not positive
var ErrBadStep = errors.New("scene: step must be positive")

// Scene is one step of a sequence
type Scene struct {
	Bright core.PWMValue // LED duty cycle
	Angle  int           // Degrees from center, -90 to +90
	Delay  time.Duration // Hold time after the step is applied
}

// Positioner is the part of a servo handle a Player needs
type Positioner interface {
	Write(value int)
}

// Player drives one servo and one LED through scenes
type Player struct {
	servo  Positioner
	led    core.PWMDriver
	ledPin core.GPIOPin
	angle  int
	sleep  func(time.Duration)
}

// NewPlayer creates a player for servo and the LED on ledPin
func NewPlayer(servo Positioner, led core.PWMDriver, ledPin core.GPIOPin) *Player {
	return &Player{
		servo:  servo,
		led:    led,
		ledPin: ledPin,
		sleep:  time.Sleep,
	}
}

// SetSleep replaces the delay function
func (p *Player) SetSleep(sleep func(time.Duration)) {
	p.sleep = sleep
}

// Angle returns the last angle sent to the servo
func (p *Player) Angle() int {
	return p.angle
}

// Start configures the LED, centers the servo and waits for it to settle
func (p *Player) Start() error {
	if err := p.led.ConfigurePWM(p.ledPin); err != nil {
		return err
	}
	p.angle = 0
	p.servo.Write(Center)
	p.sleep(time.Second)
	return nil
}

// Play applies each scene in order. The servo is only written when the
// angle changes; every scene's delay is honored.
func (p *Player) Play(scenes []Scene) error {
	for _, s := range scenes {
		if err := p.led.SetDutyCycle(p.ledPin, s.Bright); err != nil {
			return err
		}
		angle := clampAngle(s.Angle)
		if angle != p.angle {
			p.servo.Write(Center + angle)
			p.angle = angle
		}
		p.sleep(s.Delay)
	}
	return nil
}

// Rotate moves to target in equal steps spread over total, one step every
// step duration, holding the LED at bright
func (p *Player) Rotate(target int, total, step time.Duration, bright core.PWMValue) error {
	if step <= 0 {
		return ErrBadStep
	}
	target = clampAngle(target)

	count := int(total / step)
	if total%step != 0 || count == 0 {
		count++
	}

	change := target - p.angle
	scenes := make([]Scene, count)
	for i := range scenes {
		scenes[i] = Scene{
			Bright: bright,
			Angle:  p.angle + change*(i+1)/count,
			Delay:  step,
		}
	}

	core.DebugPrintln("[SCENE] rotate " + core.Itoa(p.angle) + " -> " + core.Itoa(target) +
		" in " + core.Itoa(count) + " steps")
	return p.Play(scenes)
}

// Flash ramps the LED up and back down without moving the servo
func (p *Player) Flash() error {
	ramp := []core.PWMValue{63, 127, 195, 255, 195, 127}
	scenes := make([]Scene, 0, len(ramp)+1)
	for _, b := range ramp {
		scenes = append(scenes, Scene{Bright: b, Angle: p.angle, Delay: 300 * time.Millisecond})
	}
	scenes = append(scenes, Scene{Bright: 31, Angle: p.angle, Delay: 500 * time.Millisecond})
	return p.Play(scenes)
}

// Demo runs the built-in routine
func (p *Player) Demo() error {
	steps := []func() error{
		func() error { return p.Play([]Scene{{Bright: 0, Angle: 0, Delay: 2 * time.Second}}) },
		p.Flash,
		p.Flash,
		p.Flash,
		func() error { return p.Play([]Scene{{Bright: 127, Angle: p.angle, Delay: 500 * time.Millisecond}}) },
		p.rotateAndRest(-45, 2000, 500, 127),
		p.rotateAndRest(30, 1200, 400, 127),
		p.Flash,
		func() error { return p.Play([]Scene{{Bright: 255, Angle: p.angle, Delay: 500 * time.Millisecond}}) },
		p.rotateAndRest(0, 1000, 200, 127),
		p.Flash,
		p.Flash,
		p.rotateAndRest(-45, 1000, 500, 127),
		p.rotateAndRest(45, 1000, 500, 255),
		p.Flash,
		p.rotateAndRest(0, 1000, 200, 127),
		p.Flash,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// rotateAndRest rotates, then pauses for a second. Times are milliseconds.
func (p *Player) rotateAndRest(target int, totalMs, stepMs int, bright core.PWMValue) func() error {
	return func() error {
		err := p.Rotate(target, time.Duration(totalMs)*time.Millisecond,
			time.Duration(stepMs)*time.Millisecond, bright)
		if err != nil {
			return err
		}
		p.sleep(time.Second)
		return nil
	}
}

func clampAngle(a int) int {
	if a < MinAngle {
		return MinAngle
	}
	if a > MaxAngle {
		return MaxAngle
	}
	return a
}
