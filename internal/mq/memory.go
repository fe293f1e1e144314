package mq

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// retainedPerChannel bounds how many published messages Memory keeps per channel.
const retainedPerChannel = 256

// Memory is an in-process broker. The most recent messages of each channel are
// kept for inspection, and every message goes to the channel's subscribers.
type Memory struct {
	mu          sync.Mutex
	published   map[string][]Message
	subscribers map[string][]chan Message
}

func NewMemory() *Memory {
	return &Memory{
		published:   map[string][]Message{},
		subscribers: map[string][]chan Message{},
	}
}

func (m *Memory) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}

	m.mu.Lock()
	kept := append(m.published[channel], msg)
	if len(kept) > retainedPerChannel {
		kept = append([]Message(nil), kept[len(kept)-retainedPerChannel:]...)
	}
	m.published[channel] = kept
	subs := append([]chan Message(nil), m.subscribers[channel]...)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return msg.ID, nil
}

// Subscribe delivers messages published after the call until ctx ends.
func (m *Memory) Subscribe(ctx context.Context, channel string, handler Handler) error {
	ch := make(chan Message, 64)
	m.mu.Lock()
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subscribers[channel]
		for i, c := range subs {
			if c == ch {
				m.subscribers[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			_ = handler(ctx, msg)
		}
	}
}

// Published returns the most recent messages sent to channel, oldest first.
func (m *Memory) Published(channel string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.published[channel]...)
}

func (m *Memory) Close() error { return nil }
