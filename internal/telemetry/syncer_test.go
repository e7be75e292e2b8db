package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/edgarvilca/riego/internal/metrics"
	"github.com/edgarvilca/riego/internal/model"
)

type fakeWriter struct {
	err    error
	points []*write.Point
	calls  int
}

func (f *fakeWriter) WritePoint(ctx context.Context, point ...*write.Point) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, point...)
	return nil
}

func newTestSyncer(w PointWriter) *Syncer {
	met := metrics.New(prometheus.NewRegistry())
	return NewSyncer(w, time.Minute, 100, met, zap.NewNop().Sugar())
}

func sampleReadings() []model.SensorReading {
	now := time.Now().UTC()
	return []model.SensorReading{
		{Kind: model.KindHumidity, Value: 45, Valid: true, Timestamp: now},
		{Kind: model.KindWaterLevel, Value: 70, Valid: true, Timestamp: now},
	}
}

func TestSyncerFlush(t *testing.T) {
	w := &fakeWriter{}
	s := newTestSyncer(w)

	s.Record(sampleReadings())
	s.RecordDecision(model.Decision{ID: "d1", Source: model.SourceModel, Mode: model.ModeAuto, Timestamp: time.Now().UTC()})

	s.Flush(context.Background())

	if len(w.points) != 3 {
		t.Fatalf("wrote %d points, want 3", len(w.points))
	}
	if s.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0", s.Pending())
	}
}

func TestSyncerFlushNothingPending(t *testing.T) {
	w := &fakeWriter{}
	s := newTestSyncer(w)

	s.Flush(context.Background())
	if w.calls != 0 {
		t.Fatalf("writer called %d times with nothing pending", w.calls)
	}
}

func TestSyncerRequeuesOnFailure(t *testing.T) {
	// Permanent error: the in-flush retry gives up immediately.
	w := &fakeWriter{err: backoff.Permanent(errors.New("store down"))}
	s := newTestSyncer(w)

	s.Record(sampleReadings())
	s.Flush(context.Background())

	if s.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2 re-queued", s.Pending())
	}
	if age := s.LastErrorAge(); age > time.Minute {
		t.Fatalf("LastErrorAge = %v, want recent", age)
	}

	// The store recovers; the same readings go through.
	w.err = nil
	s.Flush(context.Background())
	if s.Pending() != 0 || len(w.points) != 2 {
		t.Fatalf("Pending = %d, points = %d after recovery", s.Pending(), len(w.points))
	}
}

func TestSyncerBreakerOpensAfterRepeatedFailures(t *testing.T) {
	w := &fakeWriter{err: backoff.Permanent(errors.New("store down"))}
	s := newTestSyncer(w)

	for i := 0; i < 3; i++ {
		s.Record(sampleReadings())
		s.Flush(context.Background())
	}
	if got := s.BreakerState(); got != "open" {
		t.Fatalf("BreakerState = %q, want open", got)
	}

	// An open breaker fails fast without touching the writer.
	calls := w.calls
	s.Record(sampleReadings())
	s.Flush(context.Background())
	if w.calls != calls {
		t.Fatal("writer called while the breaker is open")
	}
}
