// Package metrics registers the controller's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ReadingsTotal        *prometheus.CounterVec
	InvalidReadingsTotal *prometheus.CounterVec
	DecisionsTotal       *prometheus.CounterVec
	ActuationsTotal      *prometheus.CounterVec
	InterlockVetoesTotal *prometheus.CounterVec
	SyncBatchesTotal     prometheus.Counter
	SyncErrorsTotal      prometheus.Counter
	SoilHumidity         prometheus.Gauge
	WaterLevel           prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ReadingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riego_readings_total",
			Help: "Sensor readings acquired, by channel.",
		}, []string{"kind"}),
		InvalidReadingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riego_invalid_readings_total",
			Help: "Readings rejected by calibration or range checks.",
		}, []string{"kind"}),
		DecisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riego_decisions_total",
			Help: "Irrigation decisions, by source.",
		}, []string{"source"}),
		ActuationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riego_actuations_total",
			Help: "Actuator transitions applied.",
		}, []string{"device", "state"}),
		InterlockVetoesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riego_interlock_vetoes_total",
			Help: "Actuator intents vetoed by safety interlocks.",
		}, []string{"rule"}),
		SyncBatchesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "riego_sync_batches_total",
			Help: "Telemetry batches written to the cloud store.",
		}),
		SyncErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "riego_sync_errors_total",
			Help: "Failed telemetry batch writes.",
		}),
		SoilHumidity: f.NewGauge(prometheus.GaugeOpts{
			Name: "riego_soil_humidity_percent",
			Help: "Latest conditioned soil humidity.",
		}),
		WaterLevel: f.NewGauge(prometheus.GaugeOpts{
			Name: "riego_water_level_percent",
			Help: "Latest conditioned tank level.",
		}),
	}
}
