package sensors

import (
	"context"
	"fmt"
	"time"
)

// PulseCounter counts rising edges from the flow sensor's pulse output. Reset
// clears the count, Count reads it. Implemented by the GPIO edge counter on
// the device and by fakes in tests.
type PulseCounter interface {
	Reset()
	Count() int
}

// FlowSensor converts FS300A pulse frequency to L/min. The datasheet relation
// is f(Hz) = factor * Q(L/min), factor 5.5 for this sensor.
type FlowSensor struct {
	counter   PulseCounter
	factor    float64
	window    time.Duration
	tolerance float64
	minFlow   float64 // below this, flow is treated as noise
}

func NewFlowSensor(counter PulseCounter, factor float64) *FlowSensor {
	if factor <= 0 {
		factor = 5.5
	}
	return &FlowSensor{
		counter:   counter,
		factor:    factor,
		window:    time.Second,
		tolerance: 0.2,
		minFlow:   0.5,
	}
}

// Read samples pulses over the window and returns the flow in L/min.
func (s *FlowSensor) Read(ctx context.Context) (float64, error) {
	s.counter.Reset()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(s.window):
	}
	pulses := s.counter.Count()
	hz := float64(pulses) / s.window.Seconds()
	return hz / s.factor, nil
}

// CheckLine compares a measured flow against the expected one. Flow on a
// closed line or above expectation suggests a leak, flow below expectation a
// blockage.
func (s *FlowSensor) CheckLine(measured, expected float64) error {
	if expected == 0 {
		if measured > s.minFlow {
			return fmt.Errorf("%w: %.2f L/min on closed line", ErrLeak, measured)
		}
		return nil
	}
	if measured < expected*(1-s.tolerance) {
		return fmt.Errorf("%w: %.2f L/min, expected %.2f", ErrBlockage, measured, expected)
	}
	if measured > expected*(1+s.tolerance) {
		return fmt.Errorf("%w: %.2f L/min, expected %.2f", ErrLeak, measured, expected)
	}
	return nil
}
