package mq

import (
	"context"
	"fmt"

	"github.com/fundraiseer/apiserver/config"
)

// Message is one event as seen by a subscriber. Notifier puts the
// notification type in Attributes["type"].
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler consumes a message. A non-nil error asks the broker to redeliver it.
type Handler func(ctx context.Context, msg Message) error

// Backend is a message broker. A channel names a queue or topic.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Open connects to the broker selected by cfg.Backend. It returns a nil
// Backend for "none".
func Open(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		return NewRabbitMQBroker(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubBroker(ctx, cfg.PubSub)
	case "kafka":
		return NewKafkaBroker(cfg.Kafka)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
