package actuators

import "sync"

// SimSwitch is an in-memory switch for tests and off-device runs.
type SimSwitch struct {
	mu sync.Mutex
	on bool
}

func NewSimSwitch() *SimSwitch { return &SimSwitch{} }

func (s *SimSwitch) On() error {
	s.mu.Lock()
	s.on = true
	s.mu.Unlock()
	return nil
}

func (s *SimSwitch) Off() error {
	s.mu.Lock()
	s.on = false
	s.mu.Unlock()
	return nil
}

func (s *SimSwitch) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}
