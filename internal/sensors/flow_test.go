package sensors

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePulses struct {
	count  int
	resets int
}

func (f *fakePulses) Reset()     { f.resets++ }
func (f *fakePulses) Count() int { return f.count }

func TestFlowSensorRead(t *testing.T) {
	counter := &fakePulses{count: 11}
	s := NewFlowSensor(counter, 5.5)
	s.window = 100 * time.Millisecond

	// 11 pulses in 100 ms is 110 Hz, 20 L/min at factor 5.5.
	got, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 20 {
		t.Fatalf("flow = %v, want 20", got)
	}
	if counter.resets != 1 {
		t.Fatalf("resets = %d, want 1", counter.resets)
	}
}

func TestFlowSensorReadCancelled(t *testing.T) {
	s := NewFlowSensor(&fakePulses{}, 5.5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Read error = %v, want context.Canceled", err)
	}
}

func TestFlowSensorCheckLine(t *testing.T) {
	s := NewFlowSensor(&fakePulses{}, 5.5)

	cases := []struct {
		name               string
		measured, expected float64
		want               error
	}{
		{"closed line, quiet", 0.1, 0, nil},
		{"closed line, leaking", 3.0, 0, ErrLeak},
		{"nominal", 10, 10, nil},
		{"within tolerance", 8.5, 10, nil},
		{"blocked", 5, 10, ErrBlockage},
		{"over expectation", 13, 10, ErrLeak},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.CheckLine(tc.measured, tc.expected)
			if tc.want == nil && err != nil {
				t.Fatalf("CheckLine = %v, want nil", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("CheckLine = %v, want %v", err, tc.want)
			}
		})
	}
}
