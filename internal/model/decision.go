package model

import "time"

// DecisionSource records how a decision was produced.
type DecisionSource string

const (
	SourceModel      DecisionSource = "model"      // random-forest verdict
	SourceThresholds DecisionSource = "thresholds" // fallback rules, no model loaded
	SourceEmergency  DecisionSource = "emergency"  // out-of-band readings
	SourceManual     DecisionSource = "manual"     // operator command
)

// Decision is the actuator intent produced for one acquisition cycle.
type Decision struct {
	ID         string         `json:"id"`
	Pump       bool           `json:"pump"`
	Irrigation bool           `json:"irrigation_valve"`
	Supply     bool           `json:"supply_valve"`
	Fertilizer bool           `json:"fertilizer_injector"`
	Source     DecisionSource `json:"source"`
	Mode       Mode           `json:"mode"`
	DoseMM     float64        `json:"dose_mm,omitempty"`
	Snapshot   Snapshot       `json:"snapshot"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Intent reports the desired state for a device.
func (d Decision) Intent(dev Device) bool {
	switch dev {
	case DevicePump:
		return d.Pump
	case DeviceIrrigation:
		return d.Irrigation
	case DeviceSupply:
		return d.Supply
	case DeviceFertilizer:
		return d.Fertilizer
	}
	return false
}

// Suggestion is the operator guidance published while in manual mode.
type Suggestion struct {
	Action     string    `json:"action"`     // "irrigate" | "hold"
	Fertilizer string    `json:"fertilizer"` // "inject" | "hold"
	Supply     string    `json:"supply"`     // "open" | "close"
	Comments   []string  `json:"comments,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
