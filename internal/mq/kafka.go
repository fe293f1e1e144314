package mq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fundraiseer/apiserver/config"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const messageIDHeader = "message-id"

// KafkaBroker maps channels to topics. Subscribers join the configured
// consumer group so replicas share the work.
type KafkaBroker struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewKafkaBroker(cfg config.KafkaConfig) (*KafkaBroker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka group id is required")
	}
	return &KafkaBroker{
		brokers: cfg.Brokers,
		groupID: cfg.GroupID,
		writers: map[string]*kafka.Writer{},
	}, nil
}

func (k *KafkaBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("kafka channel is required")
	}

	messageID := uuid.NewString()
	headers := []kafka.Header{{Key: messageIDHeader, Value: []byte(messageID)}}
	for key, value := range attrs {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	err := k.writer(channel).WriteMessages(ctx, kafka.Message{
		Key:     []byte(messageID),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe reads the topic until ctx ends. Offsets are committed only after
// the handler succeeds; a failing message is retried after a pause.
func (k *KafkaBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("kafka channel is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: k.brokers,
		GroupID: k.groupID,
		Topic:   channel,
	})
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		message := Message{Data: msg.Value, Attributes: map[string]string{}}
		for _, h := range msg.Headers {
			if h.Key == messageIDHeader {
				message.ID = string(h.Value)
				continue
			}
			message.Attributes[h.Key] = string(h.Value)
		}

		for attempt := 0; ; attempt++ {
			if err := handler(ctx, message); err == nil || attempt >= 2 {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (k *KafkaBroker) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	var errs []error
	for _, w := range k.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

func (k *KafkaBroker) writer(topic string) *kafka.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()
	if w, ok := k.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	k.writers[topic] = w
	return w
}
