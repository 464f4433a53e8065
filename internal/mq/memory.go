package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process broker. Messages published before a subscriber
// attaches are buffered per channel.
type Memory struct {
	mu     sync.Mutex
	queues map[string]chan Message
	closed bool
}

const memoryQueueSize = 256

func NewMemory() *Memory {
	return &Memory{queues: make(map[string]chan Message)}
}

func (m *Memory) queue(channel string) (chan Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("memory broker closed")
	}
	q, ok := m.queues[channel]
	if !ok {
		q = make(chan Message, memoryQueueSize)
		m.queues[channel] = q
	}
	return q, nil
}

func (m *Memory) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", errors.New("memory channel is required")
	}
	q, err := m.queue(channel)
	if err != nil {
		return "", err
	}
	msg := Message{ID: uuid.NewString(), Data: data, Attributes: attrs}
	select {
	case q <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Subscribe delivers messages until ctx is done. Failed messages are requeued once.
func (m *Memory) Subscribe(ctx context.Context, channel string, handler Handler) error {
	q, err := m.queue(channel)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				if msg.Attributes == nil || msg.Attributes["redelivered"] == "" {
					attrs := map[string]string{"redelivered": "true"}
					for k, v := range msg.Attributes {
						attrs[k] = v
					}
					msg.Attributes = attrs
					select {
					case q <- msg:
					default:
					}
				}
			}
		}
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
