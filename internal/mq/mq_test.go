package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alumnijourney/apiserver/config"
)

func TestNewFromConfigDisabled(t *testing.T) {
	q, err := NewFromConfig(context.Background(), config.MQConfig{Backend: "none"})
	if err != nil || q != nil {
		t.Fatalf("expected nil broker, got %v %v", q, err)
	}
}

func TestNewFromConfigUnknownBackend(t *testing.T) {
	if _, err := NewFromConfig(context.Background(), config.MQConfig{Backend: "kafka"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestMemoryDeliversPublishedMessages(t *testing.T) {
	q := New(NewMemory())
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, err := q.Publish(ctx, "events", []byte(`{"n":1}`), map[string]string{"type": "x"})
	if err != nil || id == "" {
		t.Fatalf("publish: %q %v", id, err)
	}

	got := make(chan Message, 1)
	go func() {
		_ = q.Subscribe(ctx, "events", func(_ context.Context, msg Message) error {
			got <- msg
			cancel()
			return nil
		})
	}()

	select {
	case msg := <-got:
		if msg.ID != id || string(msg.Data) != `{"n":1}` || msg.Attributes["type"] != "x" {
			t.Fatalf("unexpected message %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("message not delivered")
	}
}

func TestMemoryRedeliversOnce(t *testing.T) {
	broker := NewMemory()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := broker.Publish(ctx, "events", []byte("x"), nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	attempts := 0
	_ = broker.Subscribe(ctx, "events", func(_ context.Context, msg Message) error {
		attempts++
		if attempts == 2 {
			if msg.Attributes["redelivered"] != "true" {
				t.Errorf("expected redelivered flag")
			}
			cancel()
		}
		return errors.New("fail")
	})
	if attempts != 2 {
		t.Fatalf("expected exactly two attempts, got %d", attempts)
	}
}

func TestRoutingKeyAppendsEventType(t *testing.T) {
	cases := []struct {
		channel string
		attrs   map[string]string
		want    string
	}{
		{"journey-events", map[string]string{"type": "post.created"}, "journey-events.post.created"},
		{"journey-events", map[string]string{"type": "  "}, "journey-events"},
		{"journey-events", nil, "journey-events"},
	}
	for _, tc := range cases {
		if got := routingKey(tc.channel, tc.attrs); got != tc.want {
			t.Errorf("routingKey(%q, %v) = %q, want %q", tc.channel, tc.attrs, got, tc.want)
		}
	}
}
