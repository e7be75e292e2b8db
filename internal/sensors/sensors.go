// Package sensors reads the field hardware: a 4-in-1 RS485 soil probe, a
// US-100 ultrasonic tank level sensor and an FS300A flow sensor. Each driver
// takes its transport as an interface so tests and off-device runs can inject
// fakes; simulated implementations live in sim.go.
package sensors

import "errors"

var (
	// ErrOutOfRange marks a calibrated value outside the sensor's physical range.
	ErrOutOfRange = errors.New("sensors: reading out of range")
	// ErrNoSamples is returned when a multi-sample read collected nothing usable.
	ErrNoSamples = errors.New("sensors: no usable samples")
	// ErrLeak is reported when flow is present on a closed line or exceeds the
	// expected rate beyond tolerance.
	ErrLeak = errors.New("sensors: possible line leak")
	// ErrBlockage is reported when flow falls short of the expected rate.
	ErrBlockage = errors.New("sensors: possible line blockage")
)

// SoilValues holds one calibrated sample from the soil probe.
type SoilValues struct {
	Humidity    float64 // %
	Temperature float64 // °C
	EC          float64 // mS/cm
	PH          float64
}
