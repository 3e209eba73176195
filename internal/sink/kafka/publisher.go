// Package kafka publishes status transitions to a Kafka topic so downstream
// consumers (warehouse loaders, alerting) can react to queue movement
// without polling the canonical tables.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/gridatlas/queue-etl/internal/changelog"
	"github.com/gridatlas/queue-etl/internal/domain"
)

const dateFormat = "2006-01-02"

// Publisher produces transition messages. It is only constructed when
// publishing is enabled; a nil *Publisher is a no-op.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the transition topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishDelta publishes one message per closed, opened, and corrected
// interval in a single WriteMessages call. Messages are keyed by entity so
// consumers see each project's transitions in order.
func (p *Publisher) PublishDelta(ctx context.Context, runDate string, delta changelog.Delta) error {
	if p == nil || delta.Empty() {
		return nil
	}

	msgs := make([]kafkago.Message, 0, len(delta.Closed)+len(delta.Opened)+len(delta.Updated))
	for _, iv := range delta.Closed {
		msg, err := serializeTransition(iv, "closed", runDate)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	for _, iv := range delta.Opened {
		msg, err := serializeTransition(iv, "opened", runDate)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	for _, iv := range delta.Updated {
		msg, err := serializeTransition(iv, "corrected", runDate)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publishing %d transitions: %w", len(msgs), err)
	}
	p.logger.Info("published transitions", "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

type transitionEvent struct {
	EntityID      string  `json:"entity_id"`
	Attribute     string  `json:"attribute"`
	Value         string  `json:"value"`
	Transition    string  `json:"transition"`
	EffectiveDate string  `json:"effective_date"`
	EndDate       *string `json:"end_date,omitempty"`
	RunDate       string  `json:"run_date"`
}

// serializeTransition marshals one interval change into a Kafka message.
func serializeTransition(iv domain.StatusInterval, transition, runDate string) (kafkago.Message, error) {
	event := transitionEvent{
		EntityID:      iv.EntityID,
		Attribute:     iv.Attribute,
		Value:         iv.Value,
		Transition:    transition,
		EffectiveDate: iv.EffectiveDate.Format(dateFormat),
		RunDate:       runDate,
	}
	if iv.EndDate != nil {
		end := iv.EndDate.Format(dateFormat)
		event.EndDate = &end
	}

	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize transition for %s: %w", iv.EntityID, err)
	}
	return kafkago.Message{
		Key:   []byte(iv.EntityID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "attribute", Value: []byte(iv.Attribute)},
			{Key: "transition", Value: []byte(transition)},
		},
	}, nil
}
