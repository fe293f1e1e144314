package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fundraiseer/apiserver/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQBroker maps channels to queues on the default exchange. Publishers
// share one AMQP channel; every subscriber opens its own so the prefetch
// window applies per mailer.
type RabbitMQBroker struct {
	conn *amqp.Connection
	cfg  config.RabbitMQConfig

	mu       sync.Mutex
	pub      *amqp.Channel
	declared map[string]bool
}

func NewRabbitMQBroker(cfg config.RabbitMQConfig) (*RabbitMQBroker, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	return &RabbitMQBroker{conn: conn, cfg: cfg, pub: pub, declared: map[string]bool{}}, nil
}

// Publish stores a persistent notification on the queue named channel. The
// "type" attribute doubles as the AMQP message type.
func (r *RabbitMQBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         attrs["type"],
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{},
		Body:         data,
	}
	for key, value := range attrs {
		msg.Headers[key] = value
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.declare(r.pub, channel); err != nil {
		return "", err
	}
	if err := r.pub.PublishWithContext(ctx, "", channel, false, false, msg); err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return msg.MessageId, nil
}

// Subscribe consumes the queue until ctx ends. A failed delivery goes back
// on the queue once and is dropped on its second failure.
func (r *RabbitMQBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	defer ch.Close()

	if r.cfg.PrefetchCount > 0 {
		if err := ch.Qos(r.cfg.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("set prefetch: %w", err)
		}
	}
	r.mu.Lock()
	err = r.declare(ch, channel)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	deliveries, err := ch.Consume(channel, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", channel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq deliveries closed")
			}
			if err := handler(ctx, Message{ID: d.MessageId, Data: d.Body, Attributes: deliveryAttributes(d)}); err != nil {
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (r *RabbitMQBroker) Close() error {
	_ = r.pub.Close()
	return r.conn.Close()
}

// declare must be called with r.mu held.
func (r *RabbitMQBroker) declare(ch *amqp.Channel, queue string) error {
	if r.declared[queue] {
		return nil
	}
	if _, err := ch.QueueDeclare(queue, r.cfg.QueueDurable, r.cfg.QueueAutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	r.declared[queue] = true
	return nil
}

func deliveryAttributes(d amqp.Delivery) map[string]string {
	attrs := make(map[string]string, len(d.Headers)+1)
	for key, value := range d.Headers {
		if s, ok := value.(string); ok {
			attrs[key] = s
		} else {
			attrs[key] = fmt.Sprint(value)
		}
	}
	if _, ok := attrs["type"]; !ok && d.Type != "" {
		attrs["type"] = d.Type
	}
	return attrs
}
