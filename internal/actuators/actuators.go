// Package actuators drives the pump, valves and fertilizer injector. All
// transitions pass through safety interlocks: the pump never runs dry or
// dead-headed, and the irrigation and alternate-supply valves never open at
// the same time.
package actuators

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgarvilca/riego/internal/model"
)

// Switch is a binary output. Relay-backed on the device, in-memory in tests.
type Switch interface {
	On() error
	Off() error
}

// Interlock rule names, also used as metric labels.
const (
	RuleDryRun        = "dry_run"
	RuleDeadHead      = "dead_head"
	RuleValveConflict = "valve_conflict"
)

// InterlockError reports a vetoed transition.
type InterlockError struct {
	Rule   string
	Device model.Device
}

func (e *InterlockError) Error() string {
	return fmt.Sprintf("actuators: %s interlock vetoed %s", e.Rule, e.Device)
}

// actuator tracks the desired state of one device and keeps transitions
// idempotent.
type actuator struct {
	device    model.Device
	sw        Switch
	mu        sync.Mutex
	on        bool
	changedAt time.Time
}

// set flips the switch only on an actual transition.
func (a *actuator) set(on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.on == on {
		return nil
	}
	var err error
	if on {
		err = a.sw.On()
	} else {
		err = a.sw.Off()
	}
	if err != nil {
		return fmt.Errorf("switch %s: %w", a.device, err)
	}
	a.on = on
	a.changedAt = time.Now().UTC()
	return nil
}

func (a *actuator) isOn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

func (a *actuator) state() model.ActuatorState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return model.ActuatorState{Device: a.device, On: a.on, LastTransition: a.changedAt}
}

// Bank owns all four actuators.
type Bank struct {
	pump       *actuator
	irrigation *actuator
	supply     *actuator
	fertilizer *actuator

	// dryRunFloor is the tank level (%) under which the pump must not run.
	dryRunFloor float64
	log         *zap.SugaredLogger

	// VetoHook is called for every interlock veto, e.g. to count metrics.
	VetoHook func(rule string, dev model.Device)
}

// NewBank wires one Switch per device.
func NewBank(switches map[model.Device]Switch, dryRunFloor float64, log *zap.SugaredLogger) (*Bank, error) {
	for _, dev := range model.Devices {
		if switches[dev] == nil {
			return nil, fmt.Errorf("actuators: no switch for %s", dev)
		}
	}
	if dryRunFloor <= 0 {
		dryRunFloor = 10
	}
	mk := func(dev model.Device) *actuator {
		return &actuator{device: dev, sw: switches[dev]}
	}
	return &Bank{
		pump:        mk(model.DevicePump),
		irrigation:  mk(model.DeviceIrrigation),
		supply:      mk(model.DeviceSupply),
		fertilizer:  mk(model.DeviceFertilizer),
		dryRunFloor: dryRunFloor,
		log:         log,
	}, nil
}

func (b *Bank) veto(rule string, dev model.Device) *InterlockError {
	b.log.Warnw("interlock veto", "rule", rule, "device", dev)
	if b.VetoHook != nil {
		b.VetoHook(rule, dev)
	}
	return &InterlockError{Rule: rule, Device: dev}
}

// Apply maps a decision onto the devices. Valves move before the pump starts
// and the pump stops before valves close. Vetoed intents are reported, not
// silently dropped; the remaining intents still apply.
func (b *Bank) Apply(d model.Decision, waterLevel float64) ([]model.ActuatorState, []error) {
	var errs []error

	pump, irrigation, supply := d.Pump, d.Irrigation, d.Supply

	if irrigation && supply {
		// Refilling the tank takes priority over watering.
		errs = append(errs, b.veto(RuleValveConflict, model.DeviceIrrigation))
		irrigation = false
		pump = false
	}
	if pump && !irrigation {
		errs = append(errs, b.veto(RuleDeadHead, model.DevicePump))
		pump = false
	}
	if pump && waterLevel < b.dryRunFloor {
		errs = append(errs, b.veto(RuleDryRun, model.DevicePump))
		pump = false
	}

	// Shutdown order first: a stopping pump must not push against closing
	// valves.
	if !pump {
		if err := b.pump.set(false); err != nil {
			errs = append(errs, err)
		}
	}
	for _, step := range []struct {
		a  *actuator
		on bool
	}{
		{b.irrigation, irrigation},
		{b.supply, supply},
		{b.fertilizer, d.Fertilizer},
	} {
		if err := step.a.set(step.on); err != nil {
			errs = append(errs, err)
		}
	}
	if pump {
		if err := b.pump.set(true); err != nil {
			errs = append(errs, err)
		}
	}

	return b.States(), errs
}

// Command drives a single device, used by manual mode. The same interlocks
// hold against the bank's current state.
func (b *Bank) Command(dev model.Device, on bool, waterLevel float64) error {
	switch dev {
	case model.DevicePump:
		if on {
			if !b.irrigation.isOn() {
				return b.veto(RuleDeadHead, dev)
			}
			if waterLevel < b.dryRunFloor {
				return b.veto(RuleDryRun, dev)
			}
		}
		return b.pump.set(on)
	case model.DeviceIrrigation:
		if on && b.supply.isOn() {
			return b.veto(RuleValveConflict, dev)
		}
		if !on && b.pump.isOn() {
			// Closing the line under a running pump would dead-head it.
			if err := b.pump.set(false); err != nil {
				return err
			}
		}
		return b.irrigation.set(on)
	case model.DeviceSupply:
		if on && b.irrigation.isOn() {
			return b.veto(RuleValveConflict, dev)
		}
		return b.supply.set(on)
	case model.DeviceFertilizer:
		return b.fertilizer.set(on)
	default:
		return fmt.Errorf("actuators: unknown device %q", dev)
	}
}

// AllOff forces every device off, pump first. Used on shutdown.
func (b *Bank) AllOff() error {
	var firstErr error
	for _, a := range []*actuator{b.pump, b.irrigation, b.supply, b.fertilizer} {
		if err := a.set(false); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PumpOn reports the live pump state; the simulated sensors feed off it.
func (b *Bank) PumpOn() bool { return b.pump.isOn() }

// IrrigationOpen reports the irrigation valve state.
func (b *Bank) IrrigationOpen() bool { return b.irrigation.isOn() }

// States snapshots every device.
func (b *Bank) States() []model.ActuatorState {
	return []model.ActuatorState{
		b.pump.state(),
		b.irrigation.state(),
		b.supply.state(),
		b.fertilizer.state(),
	}
}
