package model

import "time"

// Device identifies a physical actuator.
type Device string

const (
	DevicePump       Device = "pump"
	DeviceIrrigation Device = "irrigation_valve"
	DeviceSupply     Device = "supply_valve"
	DeviceFertilizer Device = "fertilizer_injector"
)

// Devices lists every actuator in wiring order.
var Devices = []Device{DevicePump, DeviceIrrigation, DeviceSupply, DeviceFertilizer}

// ActuatorState is the observed state of one device.
type ActuatorState struct {
	Device         Device    `json:"device"`
	On             bool      `json:"on"`
	LastTransition time.Time `json:"last_transition"`
}
