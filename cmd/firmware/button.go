//go:build tinygo

package main

import "machine"

// buttonInput is bootfsm.UserInput: the Nucleo-F401RE's user button on
// PC13, pulled up and active-low, adapted from original_source's
// user_input.c.
type buttonInput struct {
	pin machine.Pin
}

func newButtonInput() *buttonInput {
	b := &buttonInput{pin: machine.PC13}
	b.pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return b
}

func (b *buttonInput) IsPressed() bool {
	return !b.pin.Get()
}
