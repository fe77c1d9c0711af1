//go:build attiny85

package main

import (
	"device/avr"
	"machine"
	"runtime/interrupt"
	"servomux/core"
	"servomux/scene"
	"servomux/targets/avrhal"
	"time"
)

// Board wiring
const (
	ledPin   core.GPIOPin = 0 // PB0, OC0A
	servoPin core.GPIOPin = 3 // PB3
	maxPin   core.GPIOPin = 5 // PB5
)

var scheduler *core.Scheduler

func main() {
	cfg := core.DefaultConfig()
	cfg.Clock = core.Clock{CyclesPerMicrosecond: machine.CPUFrequency() / 1000000}

	scheduler = core.NewScheduler(cfg, avrhal.NewGPIODriver(maxPin), Timer1{})
	interrupt.New(avr.IRQ_TIMER1_COMPA, handleTimer1)

	servo := scheduler.NewServo()
	if !servo.Attach(servoPin) {
		// Nothing to drive; leave the LED dark
		for {
			time.Sleep(time.Second)
		}
	}

	player := scene.NewPlayer(servo, avrhal.NewTimer0PWM(ledPin), ledPin)
	if err := player.Start(); err != nil {
		return
	}

	for {
		if err := player.Demo(); err != nil {
			return
		}
		time.Sleep(2 * time.Second)
	}
}

// handleTimer1 routes the Timer1 compare match to the scheduler
func handleTimer1(interrupt.Interrupt) {
	scheduler.HandleCompare()
}
