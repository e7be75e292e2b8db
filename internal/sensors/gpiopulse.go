package sensors

import (
	"fmt"
	"sync/atomic"
	"time"

	"gobot.io/x/gobot/v2/drivers/gpio"
)

// GPIOPulseCounter counts flow pulses by polling a GPIO input through gobot's
// button driver. Each rising edge is one pulse.
type GPIOPulseCounter struct {
	count  atomic.Int64
	button *gpio.ButtonDriver
}

// NewGPIOPulseCounter starts polling the pin. The reader is the board adaptor,
// which must already be connected.
func NewGPIOPulseCounter(r gpio.DigitalReader, pin string) (*GPIOPulseCounter, error) {
	btn := gpio.NewButtonDriver(r, pin, 2*time.Millisecond)
	c := &GPIOPulseCounter{button: btn}
	if err := btn.On(gpio.ButtonPush, func(any) { c.count.Add(1) }); err != nil {
		return nil, fmt.Errorf("flow pulse counter: %w", err)
	}
	if err := btn.Start(); err != nil {
		return nil, fmt.Errorf("flow pulse counter on pin %s: %w", pin, err)
	}
	return c, nil
}

func (c *GPIOPulseCounter) Reset() { c.count.Store(0) }

func (c *GPIOPulseCounter) Count() int { return int(c.count.Load()) }

// Halt stops polling.
func (c *GPIOPulseCounter) Halt() error { return c.button.Halt() }
