package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/oaracle/oaracle/internal/domain/conditions"
	"github.com/oaracle/oaracle/internal/domain/rowability"
)

// EventTypeScore tags score messages.
const EventTypeScore = "rowability.score"

// ScoreEvent is the message value published for each persisted score.
type ScoreEvent struct {
	EventID         string              `json:"event_id"`
	LocationID      int64               `json:"location_id"`
	Timestamp       time.Time           `json:"timestamp"`
	Score           int                 `json:"score"`
	Category        rowability.Category `json:"category"`
	Factors         []rowability.Factor `json:"factors"`
	Recommendations []string            `json:"recommendations"`
	PublishedAt     time.Time           `json:"published_at"`
}

// KafkaPublisher produces score events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewKafkaPublisher creates a producer for topic.
func NewKafkaPublisher(brokers []string, topic string, writeTimeout time.Duration, clock clockwork.Clock, logger *slog.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, clock: clock, logger: logger.With("component", "events.kafka")}
}

// PublishScore writes one message keyed by location so a location's scores stay ordered.
func (p *KafkaPublisher) PublishScore(ctx context.Context, record conditions.ScoreRecord) error {
	msg, err := serializeToMessage(record, uuid.NewString(), p.clock.Now().UTC())
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish score event: %w", err)
	}
	p.logger.Debug("score event published", "location_id", record.LocationID, "category", record.Category)
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(record conditions.ScoreRecord, eventID string, publishedAt time.Time) (kafkago.Message, error) {
	event := ScoreEvent{
		EventID:         eventID,
		LocationID:      record.LocationID,
		Timestamp:       record.Timestamp.UTC(),
		Score:           record.Score,
		Category:        record.Category,
		Factors:         record.Factors,
		Recommendations: record.Recommendations,
		PublishedAt:     publishedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize score event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(record.LocationID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventTypeScore)},
			{Key: "category", Value: []byte(record.Category)},
			{Key: "scored_at", Value: []byte(record.Timestamp.UTC().Format(time.RFC3339))},
		},
	}, nil
}

// Discard drops every event. Used when publishing is disabled.
type Discard struct{}

// PublishScore implements conditions.ScorePublisher.
func (Discard) PublishScore(context.Context, conditions.ScoreRecord) error { return nil }

var (
	_ conditions.ScorePublisher = (*KafkaPublisher)(nil)
	_ conditions.ScorePublisher = Discard{}
)
