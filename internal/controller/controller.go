// Package controller runs the acquisition, decision and actuation loop and
// owns the AUTO/MANUAL mode gate.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgarvilca/riego/internal/actuators"
	"github.com/edgarvilca/riego/internal/conditioning"
	"github.com/edgarvilca/riego/internal/decision"
	"github.com/edgarvilca/riego/internal/metrics"
	"github.com/edgarvilca/riego/internal/model"
	"github.com/edgarvilca/riego/internal/sensors"
	"github.com/edgarvilca/riego/internal/telemetry"
)

// SoilReader and LevelReader abstract the hardware drivers so the loop runs
// identically against real sensors and simulators.
type SoilReader interface {
	Read() (sensors.SoilValues, error)
}

type LevelReader interface {
	Read() (float64, error)
}

// Sink receives the outcome of every cycle, e.g. the dashboard bridge.
type Sink interface {
	PublishTelemetry(model.Snapshot) error
	PublishActuators([]model.ActuatorState) error
	PublishMode(model.Mode) error
	PublishSuggestion(model.Suggestion) error
}

// ErrManualMode rejects manual commands while the controller is in AUTO.
var ErrManualMode = errors.New("controller: manual commands require manual mode")

type Config struct {
	Interval     time.Duration // acquisition cadence
	ErrorPause   time.Duration // wait after a failed cycle
	ExpectedFlow float64       // L/min through an open line, for leak checks
}

type Controller struct {
	cfg    Config
	soil   SoilReader
	level  LevelReader
	flow   *sensors.FlowSensor
	filter *conditioning.Filter
	engine *decision.Engine
	bank   *actuators.Bank
	budget *decision.Budget
	syncer *telemetry.Syncer
	sink   Sink
	met    *metrics.Metrics
	log    *zap.SugaredLogger

	mu        sync.RWMutex
	mode      model.Mode
	lastSnap  model.Snapshot
	haveSnap  bool
	lastLevel float64
}

func New(cfg Config, soil SoilReader, level LevelReader, flow *sensors.FlowSensor,
	engine *decision.Engine, bank *actuators.Bank, budget *decision.Budget,
	syncer *telemetry.Syncer, sink Sink, met *metrics.Metrics, log *zap.SugaredLogger) *Controller {

	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.ErrorPause <= 0 {
		cfg.ErrorPause = 5 * time.Second
	}
	c := &Controller{
		cfg:    cfg,
		soil:   soil,
		level:  level,
		flow:   flow,
		filter: conditioning.NewFilter(),
		engine: engine,
		bank:   bank,
		budget: budget,
		syncer: syncer,
		sink:   sink,
		met:    met,
		log:    log,
		mode:   model.ModeAuto,
	}
	bank.VetoHook = func(rule string, _ model.Device) {
		met.InterlockVetoesTotal.WithLabelValues(rule).Inc()
	}
	return c
}

// Run executes cycles until ctx is cancelled, then forces all actuators off.
func (c *Controller) Run(ctx context.Context) {
	c.log.Infow("control loop started", "interval", c.cfg.Interval, "mode", c.Mode())

	for {
		if err := c.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			c.log.Errorw("cycle failed, holding actuators", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.ErrorPause):
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		select {
		case <-ctx.Done():
		case <-time.After(c.cfg.Interval):
			continue
		}
		break
	}

	if err := c.bank.AllOff(); err != nil {
		c.log.Errorw("shutdown: failed to switch actuators off", "err", err)
	} else {
		c.log.Info("shutdown: all actuators off")
	}
}

// SetSink attaches the publish sink. Must be called before Run.
func (c *Controller) SetSink(s Sink) { c.sink = s }

// Mode returns the current control mode.
func (c *Controller) Mode() model.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// SetMode switches between AUTO and MANUAL. Automatic decisions resume on the
// next cycle after a switch back to AUTO.
func (c *Controller) SetMode(m model.Mode) {
	c.mu.Lock()
	changed := c.mode != m
	c.mode = m
	c.mu.Unlock()
	if !changed {
		return
	}
	c.log.Infow("control mode changed", "mode", m)
	if c.sink != nil {
		if err := c.sink.PublishMode(m); err != nil {
			c.log.Warnw("mode publish failed", "err", err)
		}
	}
}

// ManualCommand drives one device while in MANUAL. Interlocks still apply.
func (c *Controller) ManualCommand(dev model.Device, on bool) error {
	if c.Mode() != model.ModeManual {
		return ErrManualMode
	}

	c.mu.RLock()
	level := c.lastLevel
	c.mu.RUnlock()

	if err := c.bank.Command(dev, on, level); err != nil {
		return err
	}
	c.met.ActuationsTotal.WithLabelValues(string(dev), stateLabel(on)).Inc()

	d := model.Decision{
		ID:        uuid.NewString(),
		Source:    model.SourceManual,
		Mode:      model.ModeManual,
		Timestamp: time.Now().UTC(),
	}
	states := c.bank.States()
	for _, st := range states {
		switch st.Device {
		case model.DevicePump:
			d.Pump = st.On
		case model.DeviceIrrigation:
			d.Irrigation = st.On
		case model.DeviceSupply:
			d.Supply = st.On
		case model.DeviceFertilizer:
			d.Fertilizer = st.On
		}
	}
	c.syncer.RecordDecision(d)
	c.met.DecisionsTotal.WithLabelValues(string(model.SourceManual)).Inc()

	if c.sink != nil {
		if err := c.sink.PublishActuators(states); err != nil {
			c.log.Warnw("actuator publish failed", "err", err)
		}
	}
	return nil
}

// Latest returns the last full snapshot, false before the first good cycle.
func (c *Controller) Latest() (model.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSnap, c.haveSnap
}

// ActuatorStates snapshots the bank for the HTTP surface.
func (c *Controller) ActuatorStates() []model.ActuatorState {
	return c.bank.States()
}

// cycle runs one full pass: acquire, condition, decide, actuate, publish.
func (c *Controller) cycle(ctx context.Context) error {
	now := time.Now().UTC()
	readings := make([]model.SensorReading, 0, 6)
	record := func(kind model.SensorKind, value float64, valid bool) {
		c.met.ReadingsTotal.WithLabelValues(string(kind)).Inc()
		if !valid {
			c.met.InvalidReadingsTotal.WithLabelValues(string(kind)).Inc()
			c.filter.Reset(kind)
		}
		readings = append(readings, model.SensorReading{Kind: kind, Value: value, Valid: valid, Timestamp: now})
	}
	defer func() { c.syncer.Record(readings) }()

	soil, soilErr := c.soil.Read()
	record(model.KindHumidity, soil.Humidity, soilErr == nil)
	record(model.KindTemperature, soil.Temperature, soilErr == nil)
	record(model.KindEC, soil.EC, soilErr == nil)
	record(model.KindPH, soil.PH, soilErr == nil)

	level, levelErr := c.level.Read()
	record(model.KindWaterLevel, level, levelErr == nil)

	var flow float64
	var flowErr error
	if c.flow != nil {
		flow, flowErr = c.flow.Read(ctx)
		record(model.KindFlow, flow, flowErr == nil)
	}

	if soilErr != nil {
		return fmt.Errorf("soil acquisition: %w", soilErr)
	}
	if levelErr != nil {
		return fmt.Errorf("level acquisition: %w", levelErr)
	}

	snap := model.Snapshot{
		Humidity:    c.filter.Apply(model.KindHumidity, soil.Humidity),
		Temperature: c.filter.Apply(model.KindTemperature, soil.Temperature),
		EC:          c.filter.Apply(model.KindEC, soil.EC),
		PH:          c.filter.Apply(model.KindPH, soil.PH),
		WaterLevel:  c.filter.Apply(model.KindWaterLevel, level),
		Timestamp:   now,
	}
	if flowErr == nil {
		snap.Flow = c.filter.Apply(model.KindFlow, flow)
	}

	c.mu.Lock()
	c.lastSnap = snap
	c.haveSnap = true
	c.lastLevel = snap.WaterLevel
	mode := c.mode
	c.mu.Unlock()

	c.met.SoilHumidity.Set(snap.Humidity)
	c.met.WaterLevel.Set(snap.WaterLevel)

	c.checkLine(snap.Flow, flowErr)

	switch mode {
	case model.ModeAuto:
		c.autoCycle(ctx, snap)
	case model.ModeManual:
		sugg := c.engine.Suggest(ctx, snap)
		if c.sink != nil {
			if err := c.sink.PublishSuggestion(sugg); err != nil {
				c.log.Warnw("suggestion publish failed", "err", err)
			}
		}
	}

	if c.sink != nil {
		if err := c.sink.PublishTelemetry(snap); err != nil {
			c.log.Warnw("telemetry publish failed", "err", err)
		}
		if err := c.sink.PublishActuators(c.bank.States()); err != nil {
			c.log.Warnw("actuator publish failed", "err", err)
		}
	}
	return nil
}

func (c *Controller) autoCycle(ctx context.Context, snap model.Snapshot) {
	d := c.engine.Evaluate(ctx, snap, model.ModeAuto)
	c.met.DecisionsTotal.WithLabelValues(string(d.Source)).Inc()

	before := stateMap(c.bank.States())
	states, errs := c.bank.Apply(d, snap.WaterLevel)
	for _, err := range errs {
		var il *actuators.InterlockError
		if !errors.As(err, &il) {
			c.log.Errorw("actuation failed", "err", err)
		}
	}
	for _, st := range states {
		if before[st.Device] != st.On {
			c.met.ActuationsTotal.WithLabelValues(string(st.Device), stateLabel(st.On)).Inc()
		}
	}

	// Only water that actually flows counts against the budget.
	if c.budget != nil && d.DoseMM > 0 && c.bank.PumpOn() {
		rem := c.budget.Consume(d.Timestamp, d.DoseMM)
		c.log.Debugw("budget consumed", "dose_mm", d.DoseMM, "remaining_mm", rem)
	}

	c.syncer.RecordDecision(d)
	c.log.Infow("decision applied",
		"id", d.ID, "source", d.Source, "pump", c.bank.PumpOn(),
		"humidity", snap.Humidity, "water_level", snap.WaterLevel)
}

// checkLine compares measured flow with what the pump state implies.
func (c *Controller) checkLine(flow float64, flowErr error) {
	if c.flow == nil || flowErr != nil {
		return
	}
	expected := 0.0
	if c.bank.PumpOn() && c.bank.IrrigationOpen() {
		expected = c.cfg.ExpectedFlow
	}
	if expected == 0 && c.cfg.ExpectedFlow == 0 {
		return
	}
	if err := c.flow.CheckLine(flow, expected); err != nil {
		c.log.Warnw("line check", "err", err)
	}
}

func stateMap(states []model.ActuatorState) map[model.Device]bool {
	m := make(map[model.Device]bool, len(states))
	for _, st := range states {
		m[st.Device] = st.On
	}
	return m
}

func stateLabel(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
