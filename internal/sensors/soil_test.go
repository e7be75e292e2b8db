package sensors

import (
	"encoding/binary"
	"errors"
	"testing"
)

type fakeRegisters struct {
	payload []byte
	err     error
	calls   int
}

func (f *fakeRegisters) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func registers(values ...uint16) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.BigEndian.PutUint16(out[i*2:], v)
	}
	return out
}

func TestSoilProbeRead(t *testing.T) {
	// raw: humidity 45.3%, temperature 21.7°C, EC 1.35 mS/cm, pH 6.8
	probe := NewSoilProbe(&fakeRegisters{payload: registers(453, 217, 1350, 68)})

	got, err := probe.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := SoilValues{Humidity: 45.3, Temperature: 21.7, EC: 1.35, PH: 6.8}
	if got != want {
		t.Fatalf("Read = %+v, want %+v", got, want)
	}
}

func TestSoilProbeNegativeTemperature(t *testing.T) {
	// -12.5°C encoded as two's complement: 0x10000 - 125
	probe := NewSoilProbe(&fakeRegisters{payload: registers(500, 0xFF83, 1000, 70)})

	got, err := probe.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Temperature != -12.5 {
		t.Fatalf("Temperature = %v, want -12.5", got.Temperature)
	}
}

func TestSoilProbeOutOfRange(t *testing.T) {
	cases := []struct {
		name string
		raw  []uint16
	}{
		{"humidity above 100", []uint16{1200, 217, 1350, 68}},
		{"temperature below -40", []uint16{500, 0xFE0B, 1350, 68}}, // -50.1°C
		{"ec above 20", []uint16{500, 217, 25000, 68}},
		{"ph below 3", []uint16{500, 217, 1350, 25}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			probe := NewSoilProbe(&fakeRegisters{payload: registers(tc.raw...)})
			if _, err := probe.Read(); !errors.Is(err, ErrOutOfRange) {
				t.Fatalf("Read error = %v, want ErrOutOfRange", err)
			}
		})
	}
}

func TestSoilProbeTransportError(t *testing.T) {
	probe := NewSoilProbe(&fakeRegisters{err: errors.New("bus timeout")})
	if _, err := probe.Read(); err == nil {
		t.Fatal("Read should fail on transport error")
	}
}

func TestSoilProbeShortResponse(t *testing.T) {
	probe := NewSoilProbe(&fakeRegisters{payload: registers(453, 217)})
	if _, err := probe.Read(); err == nil {
		t.Fatal("Read should fail on short response")
	}
}
