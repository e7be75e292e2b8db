package model

import "time"

// SensorKind identifies a measurement channel.
type SensorKind string

const (
	KindHumidity    SensorKind = "humidity"    // soil humidity, %
	KindTemperature SensorKind = "temperature" // soil temperature, °C
	KindEC          SensorKind = "ec"          // electrical conductivity, mS/cm
	KindPH          SensorKind = "ph"
	KindWaterLevel  SensorKind = "water_level" // tank level, %
	KindFlow        SensorKind = "flow"        // line flow, L/min
)

// SensorReading is one calibrated sample from a sensor.
type SensorReading struct {
	Kind      SensorKind `json:"kind"`
	Value     float64    `json:"value"`
	Valid     bool       `json:"valid"`
	Timestamp time.Time  `json:"timestamp"`
}

// Snapshot groups the conditioned readings of one acquisition cycle.
type Snapshot struct {
	Humidity    float64   `json:"humidity"`
	Temperature float64   `json:"temperature"`
	EC          float64   `json:"ec"`
	PH          float64   `json:"ph"`
	WaterLevel  float64   `json:"water_level"`
	Flow        float64   `json:"flow"`
	Timestamp   time.Time `json:"timestamp"`
}

// Readings flattens the snapshot into per-kind readings for persistence.
func (s Snapshot) Readings() []SensorReading {
	mk := func(k SensorKind, v float64) SensorReading {
		return SensorReading{Kind: k, Value: v, Valid: true, Timestamp: s.Timestamp}
	}
	return []SensorReading{
		mk(KindHumidity, s.Humidity),
		mk(KindTemperature, s.Temperature),
		mk(KindEC, s.EC),
		mk(KindPH, s.PH),
		mk(KindWaterLevel, s.WaterLevel),
		mk(KindFlow, s.Flow),
	}
}
