package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/edgarvilca/riego/internal/metrics"
	"github.com/edgarvilca/riego/internal/model"
)

type fakeState struct {
	snap    model.Snapshot
	hasSnap bool
	mode    model.Mode
}

func (f *fakeState) Latest() (model.Snapshot, bool) { return f.snap, f.hasSnap }
func (f *fakeState) Mode() model.Mode               { return f.mode }
func (f *fakeState) ActuatorStates() []model.ActuatorState {
	return []model.ActuatorState{{Device: model.DevicePump, On: true}}
}

type fakeSync struct {
	errAge  time.Duration
	breaker string
	pending int
}

func (f *fakeSync) LastErrorAge() time.Duration { return f.errAge }
func (f *fakeSync) BreakerState() string        { return f.breaker }
func (f *fakeSync) Pending() int                { return f.pending }

type fakeBroker struct{ connected bool }

func (f *fakeBroker) IsConnected() bool { return f.connected }

func newTestHandler(state *fakeState, sync *fakeSync, broker *fakeBroker) http.Handler {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	return NewServer(state, sync, broker, zap.NewNop().Sugar()).Handler(reg)
}

func TestHealthzOK(t *testing.T) {
	h := newTestHandler(
		&fakeState{mode: model.ModeAuto},
		&fakeSync{errAge: time.Hour, breaker: "closed"},
		&fakeBroker{connected: true},
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || !resp.BrokerConnected {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHealthzDegradedOnSyncFailure(t *testing.T) {
	h := newTestHandler(
		&fakeState{mode: model.ModeAuto},
		&fakeSync{errAge: 30 * time.Second, breaker: "open", pending: 12},
		&fakeBroker{connected: true},
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, degraded still serves 200", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "degraded" || resp.SyncPending != 12 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHealthzDown(t *testing.T) {
	h := newTestHandler(
		&fakeState{mode: model.ModeAuto},
		&fakeSync{errAge: time.Second, breaker: "open"},
		&fakeBroker{},
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestLatest(t *testing.T) {
	state := &fakeState{
		snap:    model.Snapshot{Humidity: 47.5, WaterLevel: 70},
		hasSnap: true,
		mode:    model.ModeManual,
	}
	h := newTestHandler(state, &fakeSync{errAge: time.Hour, breaker: "closed"}, &fakeBroker{connected: true})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data/latest", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp latestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Mode != model.ModeManual || resp.Snapshot == nil || resp.Snapshot.Humidity != 47.5 {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Actuators) != 1 || resp.Actuators[0].Device != model.DevicePump {
		t.Fatalf("actuators = %+v", resp.Actuators)
	}
}

func TestLatestBeforeFirstCycle(t *testing.T) {
	h := newTestHandler(
		&fakeState{mode: model.ModeAuto},
		&fakeSync{errAge: time.Hour, breaker: "closed"},
		&fakeBroker{connected: true},
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data/latest", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var resp latestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Snapshot != nil {
		t.Fatalf("snapshot = %+v, want absent", resp.Snapshot)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(
		&fakeState{mode: model.ModeAuto},
		&fakeSync{errAge: time.Hour, breaker: "closed"},
		&fakeBroker{connected: true},
	)

	for _, path := range []string{"/healthz", "/data/latest"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("POST %s = %d, want 405", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(
		&fakeState{mode: model.ModeAuto},
		&fakeSync{errAge: time.Hour, breaker: "closed"},
		&fakeBroker{connected: true},
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
