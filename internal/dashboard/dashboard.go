// Package dashboard bridges the controller to the operator dashboard over
// MQTT: state out on the riego/* topics, commands in on riego/cmd/*.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/edgarvilca/riego/internal/model"
	"github.com/edgarvilca/riego/pkg/dedup"
	"github.com/edgarvilca/riego/pkg/mqttx"
)

const (
	TopicTelemetry   = "riego/telemetry"
	TopicActuators   = "riego/actuators"
	TopicMode        = "riego/mode"
	TopicSuggestions = "riego/suggestions"

	topicCmdMode         = "riego/cmd/mode"
	topicCmdActuatorBase = "riego/cmd/actuator/" // + device name
)

// Commander is the controller surface the bridge drives. Commands are
// accepted only in MANUAL mode; the controller enforces that.
type Commander interface {
	Mode() model.Mode
	SetMode(model.Mode)
	ManualCommand(dev model.Device, on bool) error
}

// Commands carry a client-generated id so redeliveries can be told apart from
// a repeated operator action with an identical payload.
type modeCommand struct {
	ID   string `json:"id,omitempty"`
	Mode string `json:"mode"`
}

type actuatorCommand struct {
	ID string `json:"id,omitempty"`
	On bool   `json:"on"`
}

type telemetryMessage struct {
	model.Snapshot
	Mode model.Mode `json:"mode"`
}

// Bridge publishes controller state and consumes dashboard commands.
// Command topics are QoS1; redeliveries are dropped by command id so a
// toggle is never applied twice.
type Bridge struct {
	pub    mqttx.Publisher
	cmd    Commander
	window *dedup.Window
	log    *zap.SugaredLogger

	consumer *mqttx.Consumer
}

func NewBridge(client mqtt.Client, cmd Commander, log *zap.SugaredLogger) *Bridge {
	b := &Bridge{
		pub:    mqttx.NewPublisher(client),
		cmd:    cmd,
		window: dedup.New(5*time.Minute, 1024),
		log:    log,
	}
	filters := map[string]byte{
		topicCmdMode:               1,
		topicCmdActuatorBase + "+": 1,
	}
	b.consumer = mqttx.NewConsumer(client, filters, b.handle, log)
	return b
}

// Run consumes command topics until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	b.consumer.Run(ctx)
}

func (b *Bridge) PublishTelemetry(snap model.Snapshot) error {
	return b.pub.PublishJSON(TopicTelemetry, 0, telemetryMessage{Snapshot: snap, Mode: b.cmd.Mode()})
}

func (b *Bridge) PublishActuators(states []model.ActuatorState) error {
	return b.pub.PublishJSON(TopicActuators, 0, states)
}

// PublishMode retains the mode so a reconnecting dashboard sees it at once.
func (b *Bridge) PublishMode(m model.Mode) error {
	payload, err := json.Marshal(modeCommand{Mode: string(m)})
	if err != nil {
		return err
	}
	return b.pub.Publish(TopicMode, 1, true, payload)
}

func (b *Bridge) PublishSuggestion(s model.Suggestion) error {
	return b.pub.PublishJSON(TopicSuggestions, 0, s)
}

func (b *Bridge) handle(topic string, msg mqtt.Message) error {
	if key := commandKey(topic, msg); key != "" && !b.window.Admit(key) {
		b.log.Debugw("duplicate command dropped", "topic", topic)
		return nil
	}

	switch {
	case topic == topicCmdMode:
		return b.handleMode(msg.Payload())
	case strings.HasPrefix(topic, topicCmdActuatorBase):
		return b.handleActuator(strings.TrimPrefix(topic, topicCmdActuatorBase), msg.Payload())
	default:
		return fmt.Errorf("unexpected command topic %q", topic)
	}
}

// commandKey derives the dedup key for one delivery. A command id keys the
// delivery exactly; without one, only broker-flagged redeliveries are keyed by
// payload hash. An empty key means the delivery is never deduplicated, so an
// operator repeating the same toggle still gets through.
func commandKey(topic string, msg mqtt.Message) string {
	var env struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(msg.Payload(), &env); err == nil && env.ID != "" {
		return topic + "\n" + env.ID
	}
	if msg.Duplicate() {
		return topic + "\n" + dedup.Key(msg.Payload())
	}
	return ""
}

func (b *Bridge) handleMode(payload []byte) error {
	var cmd modeCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("mode command: %w", err)
	}
	mode, ok := model.ParseMode(cmd.Mode)
	if !ok {
		return fmt.Errorf("mode command: unknown mode %q", cmd.Mode)
	}
	b.cmd.SetMode(mode)
	return nil
}

func (b *Bridge) handleActuator(name string, payload []byte) error {
	var dev model.Device
	for _, d := range model.Devices {
		if string(d) == name {
			dev = d
			break
		}
	}
	if dev == "" {
		return fmt.Errorf("actuator command: unknown device %q", name)
	}

	var cmd actuatorCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("actuator command: %w", err)
	}
	if err := b.cmd.ManualCommand(dev, cmd.On); err != nil {
		return fmt.Errorf("actuator command %s: %w", dev, err)
	}
	b.log.Infow("manual command applied", "device", dev, "on", cmd.On)
	return nil
}
