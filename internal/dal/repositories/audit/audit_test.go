package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corray333/coffeeshop/internal/service/models/auditlog"
	"github.com/corray333/coffeeshop/internal/service/models/outbox"
	"github.com/streadway/amqp"
)

type fakePublisher struct {
	mu       sync.Mutex
	failFor  map[string]bool
	messages []amqp.Publishing
}

func (p *fakePublisher) Publish(_, _ string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[msg.MessageId] {
		return errors.New("channel closed")
	}
	p.messages = append(p.messages, msg)

	return nil
}

type fakeOutbox struct {
	mu       sync.Mutex
	err      error
	messages []outbox.ParkedEvent
}

func (o *fakeOutbox) Park(_ context.Context, event outbox.ParkedEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.messages = append(o.messages, event)

	return nil
}

func (o *fakeOutbox) Due(context.Context, time.Time, int) ([]outbox.ParkedEvent, error) {
	return nil, nil
}

func (o *fakeOutbox) Release(context.Context, int64) error { return nil }

func (o *fakeOutbox) Reschedule(context.Context, int64, int, string, time.Time) error { return nil }

func events(ids ...string) []auditlog.OrderEvent {
	out := make([]auditlog.OrderEvent, len(ids))
	for i, id := range ids {
		out[i] = auditlog.OrderEvent{ID: id, Type: auditlog.EventOrderCreated, OrderID: "o-" + id}
	}

	return out
}

func TestLogOrderEvents_PublishesAll(t *testing.T) {
	pub := &fakePublisher{}
	box := &fakeOutbox{}
	repo := newAuditRepository(pub, box, "audit")

	if err := repo.LogOrderEvents(context.Background(), events("e1", "e2", "e3")); err != nil {
		t.Fatalf("log events: %v", err)
	}
	if len(pub.messages) != 3 {
		t.Fatalf("expected 3 published, got %d", len(pub.messages))
	}
	if len(box.messages) != 0 {
		t.Fatalf("expected empty outbox, got %d", len(box.messages))
	}
	if pub.messages[0].ContentType != contentTypeJSON {
		t.Fatalf("content type = %q", pub.messages[0].ContentType)
	}
	for _, msg := range pub.messages {
		if msg.DeliveryMode != amqp.Persistent {
			t.Fatalf("message %s delivery mode = %d, want persistent", msg.MessageId, msg.DeliveryMode)
		}
	}
}

func TestLogOrderEvents_ParksFailedPublish(t *testing.T) {
	pub := &fakePublisher{failFor: map[string]bool{"e2": true}}
	box := &fakeOutbox{}
	repo := newAuditRepository(pub, box, "audit")

	if err := repo.LogOrderEvents(context.Background(), events("e1", "e2")); err != nil {
		t.Fatalf("log events: %v", err)
	}
	if len(box.messages) != 1 {
		t.Fatalf("expected 1 parked message, got %d", len(box.messages))
	}
	msg := box.messages[0]
	if msg.Queue != "audit" || msg.EventID != "e2" || msg.EventType != string(auditlog.EventOrderCreated) {
		t.Fatalf("unexpected parked event: %+v", msg)
	}
	if msg.LastError == "" || msg.MaxAttempts == 0 || msg.Exhausted() {
		t.Fatalf("retry metadata not set: %+v", msg)
	}
}

func TestLogOrderEvents_OutboxFailureIsReported(t *testing.T) {
	pub := &fakePublisher{failFor: map[string]bool{"e1": true}}
	box := &fakeOutbox{err: errors.New("db down")}
	repo := newAuditRepository(pub, box, "audit")

	if err := repo.LogOrderEvents(context.Background(), events("e1")); err == nil {
		t.Fatalf("expected error")
	}
}
