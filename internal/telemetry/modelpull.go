package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/edgarvilca/riego/internal/decision"
)

// ModelPuller periodically fetches the exported forest from the model
// registry and hot-swaps it into the engine. ETag caching avoids
// re-downloading an unchanged model on every cycle.
type ModelPuller struct {
	url      string
	interval time.Duration
	engine   *decision.Engine
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	log      *zap.SugaredLogger

	etag string
}

func NewModelPuller(url string, interval time.Duration, engine *decision.Engine, log *zap.SugaredLogger) *ModelPuller {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &ModelPuller{
		url:      url,
		interval: interval,
		engine:   engine,
		http:     &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "model-registry",
			Timeout: time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
		log: log,
	}
}

// Run pulls immediately, then on the interval, until ctx is cancelled.
func (p *ModelPuller) Run(ctx context.Context) {
	if p.url == "" {
		p.log.Info("no model registry configured, model updates disabled")
		return
	}
	p.tryPull(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tryPull(ctx)
		}
	}
}

func (p *ModelPuller) tryPull(ctx context.Context) {
	if _, err := p.breaker.Execute(func() (any, error) {
		return nil, p.pull(ctx)
	}); err != nil {
		p.log.Warnw("model pull failed", "url", p.url, "err", err)
	}
}

func (p *ModelPuller) pull(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	if p.etag != "" {
		req.Header.Set("If-None-Match", p.etag)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("model registry status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("model download: %w", err)
	}
	forest, err := decision.ParseForest(body)
	if err != nil {
		// A malformed export must not clear a working model.
		return fmt.Errorf("model rejected: %w", err)
	}

	p.etag = resp.Header.Get("ETag")
	p.engine.UpdateModel(forest)
	return nil
}
