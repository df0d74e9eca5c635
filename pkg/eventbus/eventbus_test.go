package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishKeysByOwner(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	if err := p.Publish(context.Background(), "u-1", "todo.created", map[string]int{"id": 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "u-1" {
		t.Fatalf("key = %q", w.msgs[0].Key)
	}
	var evt busEvent
	if err := json.Unmarshal(w.msgs[0].Value, &evt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Type != "todo.created" || evt.Owner != "u-1" {
		t.Fatalf("event = %+v", evt)
	}
}

func TestPublishWriterError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}
	if err := p.Publish(context.Background(), "u-1", "todo.created", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *KafkaPublisher
	if err := p.Publish(context.Background(), "u-1", "todo.created", nil); err != nil {
		t.Fatalf("nil publisher must no-op, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("nil close must no-op, got %v", err)
	}
}

func TestNewKafkaValidation(t *testing.T) {
	if _, err := NewKafka(Config{Topic: "events"}); err == nil {
		t.Fatal("expected error for missing brokers")
	}
	if _, err := NewKafka(Config{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatal("expected error for missing topic")
	}
	p, err := NewKafka(Config{Brokers: []string{" localhost:9092 "}, Topic: "events"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer p.Close()
}

func TestNewFromEnvUnset(t *testing.T) {
	t.Setenv("TASK_EVENTS_BROKERS", "")
	t.Setenv("TASK_EVENTS_TOPIC", "")
	p, err := NewFromEnv()
	if err != nil || p != nil {
		t.Fatalf("unset env must yield (nil, nil), got (%v, %v)", p, err)
	}
}

func TestNewFromEnvPartialConfig(t *testing.T) {
	t.Setenv("TASK_EVENTS_BROKERS", "localhost:9092")
	t.Setenv("TASK_EVENTS_TOPIC", "")
	if _, err := NewFromEnv(); err == nil {
		t.Fatal("brokers without topic must error")
	}
}

func TestCloseClosesWriter(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !w.closed {
		t.Fatal("writer not closed")
	}
}
