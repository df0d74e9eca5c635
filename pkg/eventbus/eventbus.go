// Package eventbus mirrors task-mutation events to Kafka for downstream
// consumers. It is optional: without broker configuration Publish is a
// no-op, and publish failures are the caller's to log, never the client's.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(ctx context.Context, owner, eventType string, payload interface{}) error
	Close() error
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer kafkaWriter
}

type Config struct {
	Brokers []string
	Topic   string
}

func NewKafka(cfg Config) (*KafkaPublisher, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka topic required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{writer: w}, nil
}

// NewFromEnv builds a publisher from TASK_EVENTS_BROKERS/TASK_EVENTS_TOPIC.
// Returns (nil, nil) when the bus is not configured.
func NewFromEnv() (*KafkaPublisher, error) {
	brokers := strings.TrimSpace(os.Getenv("TASK_EVENTS_BROKERS"))
	topic := strings.TrimSpace(os.Getenv("TASK_EVENTS_TOPIC"))
	if brokers == "" && topic == "" {
		return nil, nil
	}
	return NewKafka(Config{Brokers: strings.Split(brokers, ","), Topic: topic})
}

type busEvent struct {
	Type  string      `json:"type"`
	Owner string      `json:"owner"`
	At    string      `json:"at"`
	Data  interface{} `json:"data,omitempty"`
}

// Publish keys messages by owner so one user's events stay ordered within a
// partition.
func (p *KafkaPublisher) Publish(ctx context.Context, owner, eventType string, payload interface{}) error {
	if p == nil || p.writer == nil {
		return nil
	}
	value, err := json.Marshal(busEvent{
		Type:  eventType,
		Owner: owner,
		At:    time.Now().UTC().Format(time.RFC3339Nano),
		Data:  payload,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(owner), Value: value})
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
