package sensors

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// RegisterReader is the slice of the Modbus client the probe needs. The
// goburrow/modbus RTU client satisfies it.
type RegisterReader interface {
	ReadHoldingRegisters(address, quantity uint16) (results []byte, err error)
}

const (
	soilRegisterBase  = 0x0000
	soilRegisterCount = 4 // humidity, temperature, EC, pH
)

// SoilProbe drives the 4-in-1 RS485 probe over Modbus RTU. One holding
// register read yields all four channels.
type SoilProbe struct {
	mu     sync.Mutex // RS485 is a shared half-duplex bus
	client RegisterReader
}

func NewSoilProbe(client RegisterReader) *SoilProbe {
	return &SoilProbe{client: client}
}

// Read fetches and calibrates one sample. A transport failure or an
// out-of-range channel returns an error; callers must treat the reading as
// invalid in that case.
func (p *SoilProbe) Read() (SoilValues, error) {
	p.mu.Lock()
	raw, err := p.client.ReadHoldingRegisters(soilRegisterBase, soilRegisterCount)
	p.mu.Unlock()
	if err != nil {
		return SoilValues{}, fmt.Errorf("soil probe read: %w", err)
	}
	if len(raw) < soilRegisterCount*2 {
		return SoilValues{}, fmt.Errorf("soil probe read: short response (%d bytes)", len(raw))
	}

	v := SoilValues{
		Humidity:    float64(binary.BigEndian.Uint16(raw[0:2])) / 10.0,
		Temperature: calibrateTemperature(binary.BigEndian.Uint16(raw[2:4])),
		EC:          float64(binary.BigEndian.Uint16(raw[4:6])) / 1000.0,
		PH:          float64(binary.BigEndian.Uint16(raw[6:8])) / 10.0,
	}
	if err := v.Validate(); err != nil {
		return v, err
	}
	return v, nil
}

// calibrateTemperature scales a raw register to °C, handling two's-complement
// negatives as the probe encodes them.
func calibrateTemperature(raw uint16) float64 {
	if raw >= 0x8000 {
		return -float64(0x10000-uint32(raw)) / 10.0
	}
	return float64(raw) / 10.0
}

// Validate checks every channel against the probe's physical range.
func (v SoilValues) Validate() error {
	switch {
	case v.Humidity < 0 || v.Humidity > 100:
		return fmt.Errorf("%w: humidity %.1f%%", ErrOutOfRange, v.Humidity)
	case v.Temperature < -40 || v.Temperature > 80:
		return fmt.Errorf("%w: temperature %.1f°C", ErrOutOfRange, v.Temperature)
	case v.EC < 0 || v.EC > 20:
		return fmt.Errorf("%w: EC %.2f mS/cm", ErrOutOfRange, v.EC)
	case v.PH < 3 || v.PH > 9:
		return fmt.Errorf("%w: pH %.1f", ErrOutOfRange, v.PH)
	}
	return nil
}
