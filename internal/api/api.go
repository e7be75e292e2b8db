// Package api exposes the controller's HTTP surface: health, latest data and
// Prometheus metrics.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/edgarvilca/riego/internal/model"
)

// StateSource is the controller surface the API reads from.
type StateSource interface {
	Latest() (model.Snapshot, bool)
	ActuatorStates() []model.ActuatorState
	Mode() model.Mode
}

// SyncStatus reports cloud uplink health.
type SyncStatus interface {
	LastErrorAge() time.Duration
	BreakerState() string
	Pending() int
}

// Connected reports broker connectivity, satisfied by the paho client.
type Connected interface {
	IsConnected() bool
}

type Server struct {
	state  StateSource
	sync   SyncStatus
	broker Connected
	log    *zap.SugaredLogger
}

func NewServer(state StateSource, sync SyncStatus, broker Connected, log *zap.SugaredLogger) *Server {
	return &Server{state: state, sync: sync, broker: broker, log: log}
}

// Handler builds the mux. The metrics endpoint serves the given registry.
func (s *Server) Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/data/latest", s.handleLatest)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

type healthResponse struct {
	Status          string `json:"status"`
	BrokerConnected bool   `json:"broker_connected"`
	SyncBreaker     string `json:"sync_breaker"`
	SyncErrorAgeSec int64  `json:"sync_error_age_sec"`
	SyncPending     int    `json:"sync_pending"`
}

// handleHealth grades the node: degraded when the uplink struggles, down when
// the broker is gone and recent syncs failed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{
		Status:          "ok",
		BrokerConnected: s.broker.IsConnected(),
		SyncBreaker:     s.sync.BreakerState(),
		SyncErrorAgeSec: int64(s.sync.LastErrorAge().Seconds()),
		SyncPending:     s.sync.Pending(),
	}

	w.Header().Set("Content-Type", "application/json")
	recentSyncFailure := s.sync.LastErrorAge() < 5*time.Minute
	switch {
	case !resp.BrokerConnected && recentSyncFailure:
		resp.Status = "down"
		w.WriteHeader(http.StatusServiceUnavailable)
	case !resp.BrokerConnected || recentSyncFailure || resp.SyncBreaker == "open":
		resp.Status = "degraded"
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Errorw("response encode failed", "err", err)
	}
}

type latestResponse struct {
	Mode      model.Mode            `json:"mode"`
	Snapshot  *model.Snapshot       `json:"snapshot,omitempty"`
	Actuators []model.ActuatorState `json:"actuators"`
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := latestResponse{
		Mode:      s.state.Mode(),
		Actuators: s.state.ActuatorStates(),
	}
	w.Header().Set("Content-Type", "application/json")
	if snap, ok := s.state.Latest(); ok {
		resp.Snapshot = &snap
	} else {
		w.WriteHeader(http.StatusAccepted) // no full cycle yet
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Errorw("response encode failed", "err", err)
	}
}
