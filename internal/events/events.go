// Package events describes the domain events emitted after successful writes
// and ships them over the message queue.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alumnijourney/apiserver/internal/mq"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Type string

const (
	UserRegistered Type = "user.registered"
	PostCreated    Type = "post.created"
	PostLiked      Type = "post.liked"
	CommentCreated Type = "comment.created"
)

// Event is the JSON document published for every domain event.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	// ActorID is the user who caused the event. Anonymous likes have none.
	ActorID *int `json:"actor_id,omitempty"`

	PostID      int  `json:"post_id,omitempty"`
	PostOwnerID *int `json:"post_owner_id,omitempty"`
	CommentID   int  `json:"comment_id,omitempty"`
	Likes       int  `json:"likes,omitempty"`
}

// New stamps a fresh event of type t.
func New(t Type, actorID *int) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// MQPublisher sends events as JSON to a single channel.
type MQPublisher struct {
	queue   *mq.MQ
	channel string
}

func NewMQPublisher(queue *mq.MQ, channel string) *MQPublisher {
	return &MQPublisher{queue: queue, channel: channel}
}

func (p *MQPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.queue.Publish(ctx, p.channel, data, map[string]string{"type": string(event.Type)})
	return err
}

// Handler processes one decoded event.
type Handler func(ctx context.Context, event Event) error

// Consume decodes events from channel and hands them to h until ctx is done.
// Undecodable messages are acknowledged and dropped.
func Consume(ctx context.Context, queue *mq.MQ, channel string, log logrus.FieldLogger, h Handler) error {
	return queue.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.WithError(err).WithField("message_id", msg.ID).Warn("dropping malformed event")
			return nil
		}
		if err := h(ctx, event); err != nil {
			return fmt.Errorf("handle %s %s: %w", event.Type, event.ID, err)
		}
		return nil
	})
}

// LogHandler writes each event to log as a structured entry.
func LogHandler(log logrus.FieldLogger) Handler {
	return func(_ context.Context, event Event) error {
		fields := logrus.Fields{
			"event_id":    event.ID,
			"event_type":  event.Type,
			"occurred_at": event.OccurredAt,
		}
		if event.ActorID != nil {
			fields["actor_id"] = *event.ActorID
		}
		if event.PostID != 0 {
			fields["post_id"] = event.PostID
		}
		if event.PostOwnerID != nil {
			fields["post_owner_id"] = *event.PostOwnerID
		}
		if event.CommentID != 0 {
			fields["comment_id"] = event.CommentID
		}
		if event.Type == PostLiked {
			fields["likes"] = event.Likes
		}
		log.WithFields(fields).Info("event received")
		return nil
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
