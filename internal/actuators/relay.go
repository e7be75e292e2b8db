package actuators

import (
	"gobot.io/x/gobot/v2/drivers/gpio"
)

// RelaySwitch drives a relay output through gobot. On the device the writer
// is the raspi adaptor; pins follow BCM numbering.
type RelaySwitch struct {
	relay *gpio.RelayDriver
}

func NewRelaySwitch(w gpio.DigitalWriter, pin string) *RelaySwitch {
	return &RelaySwitch{relay: gpio.NewRelayDriver(w, pin)}
}

func (r *RelaySwitch) On() error  { return r.relay.On() }
func (r *RelaySwitch) Off() error { return r.relay.Off() }
