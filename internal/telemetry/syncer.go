// Package telemetry buffers readings and decisions locally and pushes them to
// the cloud time-series store, surviving connectivity loss.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/edgarvilca/riego/internal/metrics"
	"github.com/edgarvilca/riego/internal/model"
)

// PointWriter is the slice of the Influx client the syncer needs; the
// blocking write API satisfies it.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

const (
	measurementReading  = "sensor_reading"
	measurementDecision = "irrigation_decision"
)

// Syncer drains the local buffers into the cloud store on a fixed cadence.
// Writes go through a circuit breaker so a dead uplink fails fast instead of
// stalling every flush.
type Syncer struct {
	readings  *Buffer[model.SensorReading]
	decisions *Buffer[model.Decision]
	writer    PointWriter
	breaker   *gobreaker.CircuitBreaker
	interval  time.Duration
	batchSize int
	met       *metrics.Metrics
	log       *zap.SugaredLogger

	mu      sync.RWMutex
	lastErr time.Time
}

func NewSyncer(writer PointWriter, interval time.Duration, batchSize int, met *metrics.Metrics, log *zap.SugaredLogger) *Syncer {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Syncer{
		readings:  NewBuffer[model.SensorReading](4096),
		decisions: NewBuffer[model.Decision](1024),
		writer:    writer,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "telemetry-store",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
		interval:  interval,
		batchSize: batchSize,
		met:       met,
		log:       log,
		lastErr:   time.Now().Add(-24 * time.Hour),
	}
}

// Record buffers the readings of one cycle.
func (s *Syncer) Record(readings []model.SensorReading) {
	for _, r := range readings {
		s.readings.Push(r)
	}
}

// RecordDecision buffers one decision.
func (s *Syncer) RecordDecision(d model.Decision) {
	s.decisions.Push(d)
}

// Run flushes on a ticker until ctx is cancelled, then makes a final
// best-effort flush.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush pushes everything currently buffered, re-queueing on failure.
func (s *Syncer) Flush(ctx context.Context) {
	rBatch := s.readings.Drain(s.batchSize)
	dBatch := s.decisions.Drain(s.batchSize)
	if len(rBatch) == 0 && len(dBatch) == 0 {
		return
	}

	points := make([]*write.Point, 0, len(rBatch)+len(dBatch))
	for _, r := range rBatch {
		points = append(points, readingPoint(r))
	}
	for _, d := range dBatch {
		points = append(points, decisionPoint(d))
	}

	_, err := s.breaker.Execute(func() (any, error) {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 10 * time.Second
		return nil, backoff.Retry(func() error {
			return s.writer.WritePoint(ctx, points...)
		}, backoff.WithContext(bo, ctx))
	})
	if err != nil {
		s.mu.Lock()
		s.lastErr = time.Now()
		s.mu.Unlock()
		s.met.SyncErrorsTotal.Inc()
		s.log.Warnw("telemetry flush failed, re-queueing",
			"readings", len(rBatch), "decisions", len(dBatch), "breaker", s.breaker.State().String(), "err", err)
		s.readings.Requeue(rBatch)
		s.decisions.Requeue(dBatch)
		return
	}

	s.met.SyncBatchesTotal.Inc()
	s.log.Debugw("telemetry flushed", "readings", len(rBatch), "decisions", len(dBatch))
}

// LastErrorAge reports how long the store has been written without errors.
func (s *Syncer) LastErrorAge() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastErr)
}

// BreakerState exposes the breaker for health reporting.
func (s *Syncer) BreakerState() string { return s.breaker.State().String() }

// Pending reports how many entries wait in the buffers.
func (s *Syncer) Pending() int { return s.readings.Len() + s.decisions.Len() }

func readingPoint(r model.SensorReading) *write.Point {
	return influxdb2.NewPoint(measurementReading,
		map[string]string{"kind": string(r.Kind)},
		map[string]any{"value": r.Value, "valid": r.Valid},
		r.Timestamp)
}

func decisionPoint(d model.Decision) *write.Point {
	return influxdb2.NewPoint(measurementDecision,
		map[string]string{"source": string(d.Source), "mode": string(d.Mode)},
		map[string]any{
			"pump":                d.Pump,
			"irrigation_valve":    d.Irrigation,
			"supply_valve":        d.Supply,
			"fertilizer_injector": d.Fertilizer,
			"dose_mm":             d.DoseMM,
			"humidity":            d.Snapshot.Humidity,
			"water_level":         d.Snapshot.WaterLevel,
		},
		d.Timestamp)
}
