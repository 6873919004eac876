package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/tripmark/tour-marketplace-backend/internal/config"
)

// EventType identifies a booking lifecycle event
type EventType string

const (
	BookingConfirmed EventType = "booking.confirmed"
	BookingRefunded  EventType = "booking.refunded"
	BookingRaceLost  EventType = "booking.race_lost"
	BookingFailed    EventType = "booking.failed"
)

// BookingEvent is the payload published after a payment transition
type BookingEvent struct {
	Type          EventType `json:"type"`
	PaymentID     string    `json:"payment_id"`
	TransactionID string    `json:"transaction_id"`
	TourID        string    `json:"tour_id,omitempty"`
	CustomTourID  string    `json:"custom_tour_id,omitempty"`
	Seats         int       `json:"seats"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher emits booking events to Kafka. Publishing is best-effort:
// a broker outage is logged but never fails the booking that triggered
// the event. A disabled publisher swallows events silently, which keeps
// local development broker-free.
type Publisher struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

// NewPublisher creates a booking event publisher. Returns a no-op
// publisher when Kafka is disabled in config.
func NewPublisher(cfg config.KafkaConfig, logger *logrus.Logger) *Publisher {
	if !cfg.Enabled {
		return &Publisher{logger: logger}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // Hash by key so events per tour stay ordered
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}

	return &Publisher{
		writer: writer,
		logger: logger,
	}
}

// Publish emits one booking event. The key is the tour ID when present so
// all events for one tour land on the same partition.
func (p *Publisher) Publish(ctx context.Context, event BookingEvent) {
	if p.writer == nil {
		return
	}

	event.OccurredAt = time.Now()

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal booking event")
		return
	}

	key := event.TourID
	if key == "" {
		key = event.PaymentID
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"event_type": event.Type,
			"payment_id": event.PaymentID,
		}).WithError(err).Error("Failed to publish booking event")
		return
	}

	p.logger.WithFields(logrus.Fields{
		"event_type": event.Type,
		"payment_id": event.PaymentID,
	}).Debug("Booking event published")
}

// Close flushes and closes the underlying writer
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
