package mqttx

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher sends messages to MQTT topics.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	PublishJSON(topic string, qos byte, v any) error
}

type publisher struct {
	client mqtt.Client
}

func NewPublisher(client mqtt.Client) Publisher {
	return &publisher{client: client}
}

func (p *publisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *publisher) PublishJSON(topic string, qos byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal for %s: %w", topic, err)
	}
	return p.Publish(topic, qos, false, b)
}
