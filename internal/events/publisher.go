// Package events exports decision events to Kafka for fleet-level review.
// Fire-and-forget: a broker outage never affects a decision.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// DecisionEvent mirrors one audit-logged decision on the wire.
type DecisionEvent struct {
	TraceID    string    `json:"trace_id,omitempty"`
	Kind       string    `json:"kind"` // inbound, tool, outbound
	Identifier string    `json:"identifier"`
	Platform   string    `json:"platform,omitempty"`
	Decision   string    `json:"decision"`
	Reason     string    `json:"reason"`
	Ts         time.Time `json:"ts"`
}

// Publisher writes decision events to one Kafka topic.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher builds a publisher for a comma-separated broker list.
func NewPublisher(brokers, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			// Async writes report delivery errors here, not from WriteMessages.
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					slog.Warn("decision event publish failed", "topic", topic, "error", err)
				}
			},
		},
	}
}

// Publish sends one event. Nil-safe; failures are logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, e DecisionEvent) {
	if p == nil {
		return
	}
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	value, err := json.Marshal(e)
	if err != nil {
		slog.Warn("decision event marshal failed", "error", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(e.Kind + ":" + e.Identifier),
		Value: value,
		Time:  e.Ts,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Warn("decision event publish failed", "topic", p.writer.Topic, "error", err)
	}
}

// Close flushes and releases the writer. Nil-safe.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
