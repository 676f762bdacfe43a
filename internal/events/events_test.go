package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
)

type fakeChannel struct {
	declared   string
	kind       string
	published  []amqp.Publishing
	keys       []string
	declareErr error
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.declared, f.kind = name, kind
	return f.declareErr
}

func (f *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisherPublishesJSON(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, "sphinx.outcomes", nil)
	if err != nil {
		t.Fatalf("newAMQPPublisher failed: %v", err)
	}
	if ch.declared != "sphinx.outcomes" || ch.kind != "fanout" {
		t.Fatalf("unexpected exchange declaration %q/%q", ch.declared, ch.kind)
	}

	e := New(TypeDefeat, "42")
	e.Subject = "PEPE"
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("expected one message, got %d", len(ch.published))
	}
	if ch.keys[0] != "sphinx.outcomes/defeat" {
		t.Errorf("unexpected routing %q", ch.keys[0])
	}
	msg := ch.published[0]
	if msg.MessageId != e.ID || msg.ContentType != "application/json" {
		t.Errorf("unexpected publishing %+v", msg)
	}
	var got Event
	if err := json.Unmarshal(msg.Body, &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got.Subject != "PEPE" || got.UserID != "42" {
		t.Errorf("unexpected event %+v", got)
	}

	if err := p.Close(); err != nil || !ch.closed {
		t.Errorf("expected channel to close cleanly, err=%v", err)
	}
}

func TestAMQPPublisherDeclareFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("access refused")
	if _, err := newAMQPPublisher(&fakeChannel{declareErr: boom}, "x", nil); !errors.Is(err, boom) {
		t.Fatalf("expected declare error, got %v", err)
	}
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	p, _ := newAMQPPublisher(ch, "x", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, New(TypeVictory, "1")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(ch.published) != 0 {
		t.Fatal("nothing should be published")
	}
}
