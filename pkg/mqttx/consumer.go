package mqttx

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Handler processes one inbound message.
type Handler func(topic string, msg mqtt.Message) error

// Consumer subscribes to a set of topic filters and dispatches messages to a
// handler. It blocks in Run until the context is cancelled.
type Consumer struct {
	client  mqtt.Client
	filters map[string]byte // filter -> qos
	handler Handler
	log     *zap.SugaredLogger
}

func NewConsumer(client mqtt.Client, filters map[string]byte, handler Handler, log *zap.SugaredLogger) *Consumer {
	return &Consumer{client: client, filters: filters, handler: handler, log: log}
}

func (c *Consumer) SetHandler(h Handler) { c.handler = h }

// Run subscribes and blocks until ctx is done, then unsubscribes.
func (c *Consumer) Run(ctx context.Context) {
	for filter, qos := range c.filters {
		filter := filter
		token := c.client.Subscribe(filter, qos, func(_ mqtt.Client, msg mqtt.Message) {
			if c.handler == nil {
				c.log.Warnw("no handler for topic", "topic", msg.Topic())
				return
			}
			if err := c.handler(msg.Topic(), msg); err != nil {
				c.log.Errorw("message handler failed", "topic", msg.Topic(), "err", err)
			}
		})
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Errorw("subscribe failed", "filter", filter, "err", err)
			continue
		}
		c.log.Infow("subscribed", "filter", filter, "qos", qos)
	}

	<-ctx.Done()

	for filter := range c.filters {
		tok := c.client.Unsubscribe(filter)
		tok.Wait()
	}
}
