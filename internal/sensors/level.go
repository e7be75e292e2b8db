package sensors

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"
)

// us100Trigger starts a distance measurement in the sensor's serial mode; the
// reply is the distance in millimetres, big endian.
const us100Trigger = 0x55

// LevelSensor measures the tank fill level with a US-100 ultrasonic sensor
// wired in serial mode. The port is any io.ReadWriter (a tarm/serial port on
// the device, a fake in tests).
type LevelSensor struct {
	mu           sync.Mutex
	port         io.ReadWriter
	tankHeightCM float64
	samples      int
	pause        time.Duration
}

func NewLevelSensor(port io.ReadWriter, tankHeightCM float64, samples int) *LevelSensor {
	if tankHeightCM <= 0 {
		tankHeightCM = 80
	}
	if samples <= 0 {
		samples = 5
	}
	return &LevelSensor{
		port:         port,
		tankHeightCM: tankHeightCM,
		samples:      samples,
		pause:        100 * time.Millisecond,
	}
}

// Read averages several distance measurements and converts to a fill
// percentage, clamped to 0..100.
func (s *LevelSensor) Read() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum float64
	var n int
	for i := 0; i < s.samples; i++ {
		d, err := s.measure()
		if err == nil {
			sum += d
			n++
		}
		if i < s.samples-1 {
			time.Sleep(s.pause)
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("level sensor: %w", ErrNoSamples)
	}

	avgCM := sum / float64(n)
	level := (s.tankHeightCM - avgCM) / s.tankHeightCM * 100
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	return level, nil
}

// measure performs one trigger/response exchange, returning distance in cm.
func (s *LevelSensor) measure() (float64, error) {
	if _, err := s.port.Write([]byte{us100Trigger}); err != nil {
		return 0, fmt.Errorf("level trigger: %w", err)
	}
	buf := make([]byte, 2)
	if _, err := io.ReadFull(s.port, buf); err != nil {
		return 0, fmt.Errorf("level echo: %w", err)
	}
	mm := binary.BigEndian.Uint16(buf)
	return float64(mm) / 10.0, nil
}
