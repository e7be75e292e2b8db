// Package conditioning smooths raw sensor values before they reach the
// decision engine. A per-channel median over the last few samples knocks out
// single-sample spikes without lagging the slow soil signals.
package conditioning

import (
	"sort"
	"sync"

	"github.com/edgarvilca/riego/internal/model"
)

const historyDepth = 5

// Filter keeps an independent sample history per sensor kind.
type Filter struct {
	mu      sync.Mutex
	history map[model.SensorKind][]float64
}

func NewFilter() *Filter {
	return &Filter{history: make(map[model.SensorKind][]float64)}
}

// Apply pushes a value into the channel's history and returns the median of
// the retained samples.
func (f *Filter) Apply(kind model.SensorKind, value float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := append(f.history[kind], value)
	if len(h) > historyDepth {
		h = h[len(h)-historyDepth:]
	}
	f.history[kind] = h

	return median(h)
}

// Reset drops the history of one channel, e.g. after the sensor reported
// invalid readings.
func (f *Filter) Reset(kind model.SensorKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.history, kind)
}

func median(vals []float64) float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
