package sensors

import (
	"math/rand"
	"sync"
)

// Simulated sensors mirror the behaviour of the real hardware closely enough
// to exercise the whole control loop off the device.

// SimSoil produces plausible greenhouse soil values.
type SimSoil struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimSoil(seed int64) *SimSoil {
	return &SimSoil{rng: rand.New(rand.NewSource(seed))}
}

func (s *SimSoil) Read() (SoilValues, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SoilValues{
		Humidity:    30 + s.rng.Float64()*40,   // 30..70 %
		Temperature: 10 + s.rng.Float64()*20,   // 10..30 °C
		EC:          1.0 + s.rng.Float64()*1.5, // 1.0..2.5 mS/cm
		PH:          5.5 + s.rng.Float64()*2,   // 5.5..7.5
	}, nil
}

// SimLevel drains the tank while the pump runs and lets it recover slowly
// otherwise. pumpOn reports the live pump state.
type SimLevel struct {
	mu     sync.Mutex
	level  float64
	pumpOn func() bool
}

func NewSimLevel(initial float64, pumpOn func() bool) *SimLevel {
	if initial <= 0 || initial > 100 {
		initial = 79
	}
	return &SimLevel{level: initial, pumpOn: pumpOn}
}

func (s *SimLevel) Read() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pumpOn != nil && s.pumpOn() {
		s.level -= 0.5
	} else {
		s.level += 0.1
	}
	if s.level < 0 {
		s.level = 0
	}
	if s.level > 100 {
		s.level = 100
	}
	return s.level, nil
}

// SimPulses ramps pulse counts up while water should be moving and back down
// otherwise, approximating the FS300A response through the line.
type SimPulses struct {
	mu      sync.Mutex
	rate    float64 // simulated flow, L/min
	factor  float64
	flowing func() bool
}

func NewSimPulses(factor float64, flowing func() bool) *SimPulses {
	if factor <= 0 {
		factor = 5.5
	}
	return &SimPulses{factor: factor, flowing: flowing}
}

func (s *SimPulses) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flowing != nil && s.flowing() {
		s.rate += 5
		if s.rate > 60 {
			s.rate = 60
		}
	} else {
		s.rate -= 5
		if s.rate < 0 {
			s.rate = 0
		}
	}
}

func (s *SimPulses) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.rate * s.factor)
}
