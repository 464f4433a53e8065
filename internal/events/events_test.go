package events

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alumnijourney/apiserver/internal/mq"
	"github.com/sirupsen/logrus"
)

func TestMQPublisherRoundTrip(t *testing.T) {
	queue := mq.New(mq.NewMemory())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	actor := 3
	sent := New(PostLiked, &actor)
	sent.PostID = 9
	sent.Likes = 4
	if err := NewMQPublisher(queue, "journey-events").Publish(ctx, sent); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var got Event
	err := Consume(ctx, queue, "journey-events", logrus.New(), func(_ context.Context, e Event) error {
		got = e
		cancel()
		return nil
	})
	if err != context.Canceled {
		t.Fatalf("expected consume to stop on cancel, got %v", err)
	}
	if got.ID != sent.ID || got.Type != PostLiked || got.PostID != 9 || got.Likes != 4 || *got.ActorID != 3 {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestEventJSONOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(New(UserRegistered, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{"actor_id", "post_id", "comment_id", "likes"} {
		if strings.Contains(string(data), key) {
			t.Errorf("unexpected %s in %s", key, data)
		}
	}
}

func TestLogHandlerWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	e := New(CommentCreated, nil)
	e.PostID = 2
	e.CommentID = 5
	if err := LogHandler(log)(context.Background(), e); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["event_type"] != string(CommentCreated) || entry["comment_id"] != float64(5) {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestRecorderKeepsOrder(t *testing.T) {
	var r Recorder
	_ = r.Publish(context.Background(), New(PostCreated, nil))
	_ = r.Publish(context.Background(), New(PostLiked, nil))
	got := r.Events()
	if len(got) != 2 || got[0].Type != PostCreated || got[1].Type != PostLiked {
		t.Fatalf("unexpected events %+v", got)
	}
}
