// Package events publishes a record of every prediction for downstream
// consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"brandguard/internal/model"
)

// PredictionEvent describes one answered /predict call.
type PredictionEvent struct {
	Username   string      `json:"username"`
	Brand      string      `json:"brand"`
	Comment    string      `json:"comment"`
	Label      model.Label `json:"label"`
	Risk       string      `json:"risk"`
	Confidence *float64    `json:"confidence"`
	At         time.Time   `json:"at"`
}

// Publisher delivers prediction events.
type Publisher interface {
	Publish(ctx context.Context, e PredictionEvent) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, PredictionEvent) error { return nil }

func (Nop) Close() error { return nil }

// messageWriter is the part of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a topic, keyed by brand.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaPublisher connects to a comma separated broker list.
func NewKafkaPublisher(brokers, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e PredictionEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strings.ToLower(e.Brand)),
		Value: value,
		Time:  e.At,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topic, err)
	}
	p.logger.Debug("prediction event published", zap.String("topic", p.topic), zap.String("brand", e.Brand))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
