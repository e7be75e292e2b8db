// Package decision turns conditioned sensor snapshots into actuator intents.
// A random-forest model gives the irrigate/hold verdict when one is loaded;
// threshold rules cover the no-model case and out-of-band emergencies always
// take precedence. A daily water budget caps how much automatic irrigation
// may apply.
package decision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgarvilca/riego/internal/model"
)

// Range is an inclusive acceptance band.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Thresholds are the acceptance bands for each decision input.
type Thresholds struct {
	Humidity   Range `yaml:"humidity"`
	PH         Range `yaml:"ph"`
	EC         Range `yaml:"ec"`
	WaterLevel Range `yaml:"water_level"`
}

// DefaultThresholds matches the bands the forest was trained against.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Humidity:   Range{Min: 20, Max: 80},
		PH:         Range{Min: 5.5, Max: 7.5},
		EC:         Range{Min: 1.0, Max: 2.5},
		WaterLevel: Range{Min: 20, Max: 80},
	}
}

// Engine evaluates snapshots into decisions.
type Engine struct {
	th          Thresholds
	budget      *Budget
	cycleDoseMM float64
	log         *zap.SugaredLogger

	mu     sync.RWMutex
	forest *Forest
}

// NewEngine builds an engine. budget may be nil (no dose cap); cycleDoseMM is
// the water applied by one pump-on control cycle.
func NewEngine(th Thresholds, budget *Budget, cycleDoseMM float64, log *zap.SugaredLogger) *Engine {
	return &Engine{th: th, budget: budget, cycleDoseMM: cycleDoseMM, log: log}
}

// UpdateModel swaps the loaded forest. Passing nil drops back to threshold
// rules.
func (e *Engine) UpdateModel(f *Forest) {
	e.mu.Lock()
	e.forest = f
	e.mu.Unlock()
	if f != nil {
		e.log.Infow("decision model updated", "version", f.Version, "trees", len(f.Trees))
	} else {
		e.log.Warn("decision model cleared, using threshold rules")
	}
}

// ModelVersion reports the loaded model version, empty when none is loaded.
func (e *Engine) ModelVersion() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.forest == nil {
		return ""
	}
	return e.forest.Version
}

// Evaluate produces the actuator intent for one snapshot.
func (e *Engine) Evaluate(ctx context.Context, snap model.Snapshot, mode model.Mode) model.Decision {
	d := model.Decision{
		ID:        uuid.NewString(),
		Mode:      mode,
		Snapshot:  snap,
		Timestamp: time.Now().UTC(),
	}

	switch {
	case !e.withinThresholds(snap):
		d.Source = model.SourceEmergency
		e.emergency(&d, snap)
	default:
		verdict, fromModel := e.modelVerdict(snap)
		if fromModel {
			d.Source = model.SourceModel
			irrigate := verdict == 1 && snap.Humidity < e.th.Humidity.Max
			d.Pump, d.Irrigation = irrigate, irrigate
		} else {
			// No model loaded: in-band readings hold; humidity under the
			// band is handled by the emergency rule above.
			d.Source = model.SourceThresholds
		}
	}

	e.applyBudget(ctx, &d)
	return d
}

// Suggest produces operator guidance for manual mode. The same evaluation
// runs, it just never reaches the actuators.
func (e *Engine) Suggest(ctx context.Context, snap model.Snapshot) model.Suggestion {
	d := e.Evaluate(ctx, snap, model.ModeManual)

	s := model.Suggestion{
		Action:     "hold",
		Fertilizer: "hold",
		Supply:     "close",
		Timestamp:  d.Timestamp,
	}
	if d.Irrigation {
		s.Action = "irrigate"
	}
	if d.Fertilizer {
		s.Fertilizer = "inject"
	}
	if d.Supply {
		s.Supply = "open"
	}
	s.Comments = e.comments(snap)
	return s
}

func (e *Engine) modelVerdict(snap model.Snapshot) (int, bool) {
	e.mu.RLock()
	f := e.forest
	e.mu.RUnlock()
	if f == nil {
		return 0, false
	}
	return f.Predict([FeatureCount]float64{snap.Humidity, snap.PH, snap.EC, snap.WaterLevel}), true
}

func (e *Engine) withinThresholds(snap model.Snapshot) bool {
	return e.th.Humidity.Contains(snap.Humidity) &&
		e.th.PH.Contains(snap.PH) &&
		e.th.EC.Contains(snap.EC) &&
		e.th.WaterLevel.Contains(snap.WaterLevel)
}

// emergency handles out-of-band readings with immediate corrective intents.
func (e *Engine) emergency(d *model.Decision, snap model.Snapshot) {
	if snap.Humidity < e.th.Humidity.Min {
		d.Pump, d.Irrigation = true, true
	} else if snap.Humidity > e.th.Humidity.Max {
		d.Pump, d.Irrigation = false, false
	}

	// Out-of-band pH is corrected by dosing solution through the injector.
	if !e.th.PH.Contains(snap.PH) {
		d.Fertilizer = true
	}

	if snap.EC < e.th.EC.Min {
		d.Fertilizer = true
	} else if snap.EC > e.th.EC.Max {
		// Too salty: dilute from the alternate supply.
		d.Supply = true
	}

	if snap.WaterLevel < e.th.WaterLevel.Min {
		d.Supply = true
	} else if snap.WaterLevel > e.th.WaterLevel.Max {
		d.Supply = false
	}
}

// applyBudget caps the irrigation intent against the daily allowance.
func (e *Engine) applyBudget(ctx context.Context, d *model.Decision) {
	if !d.Irrigation || e.budget == nil {
		return
	}
	rem := e.budget.Remaining(ctx, d.Timestamp)
	if rem <= 0 {
		e.log.Infow("daily budget exhausted, holding irrigation", "decision", d.ID)
		d.Pump, d.Irrigation = false, false
		return
	}
	d.DoseMM = e.cycleDoseMM
	if d.DoseMM > rem {
		d.DoseMM = rem
	}
}

func (e *Engine) comments(snap model.Snapshot) []string {
	var out []string
	check := func(name string, v float64, r Range) {
		if v < r.Min {
			out = append(out, fmt.Sprintf("%s below minimum (%.1f < %.1f)", name, v, r.Min))
		} else if v > r.Max {
			out = append(out, fmt.Sprintf("%s above maximum (%.1f > %.1f)", name, v, r.Max))
		}
	}
	check("humidity", snap.Humidity, e.th.Humidity)
	check("ph", snap.PH, e.th.PH)
	check("ec", snap.EC, e.th.EC)
	check("water level", snap.WaterLevel, e.th.WaterLevel)
	return out
}
