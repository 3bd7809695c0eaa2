// ABOUTME: Publishes sync completion events to Kafka
// ABOUTME: A no-op publisher is used when no brokers are configured
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harperreed/cellsync/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventContactsSynced is emitted after a successful sync run.
const EventContactsSynced = "contacts.synced"

// ContactsSynced describes the outcome of one sync run.
type ContactsSynced struct {
	EventType     string         `json:"event_type"`
	RunID         string         `json:"run_id"`
	CRMType       models.CRMType `json:"crm_type"`
	UserID        string         `json:"user_id"`
	OrgID         string         `json:"org_id,omitempty"`
	CellIDs       []string       `json:"cell_ids"`
	InsertedCount int            `json:"inserted_count"`
	MergedCount   int            `json:"merged_count"`
	SkippedCount  int            `json:"skipped_count"`
	TotalContacts int            `json:"total_contacts"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Publisher emits sync events.
type Publisher interface {
	PublishContactsSynced(ctx context.Context, event *ContactsSynced) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) PublishContactsSynced(context.Context, *ContactsSynced) error { return nil }
func (Nop) Close() error                                                 { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes events to a Kafka topic.
type Producer struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// NewProducer creates a Kafka producer.
func NewProducer(cfg ProducerConfig, logger *zap.Logger) *Producer {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg.Topic, logger)
}

func newProducer(w messageWriter, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{writer: w, topic: topic, logger: logger}
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishContactsSynced publishes a sync event keyed by user so a user's runs stay ordered.
func (p *Producer) PublishContactsSynced(ctx context.Context, event *ContactsSynced) error {
	if event.EventType == "" {
		event.EventType = EventContactsSynced
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.UserID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "crm_type", Value: []byte(event.CRMType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish sync event", zap.String("run_id", event.RunID), zap.Error(err))
		return err
	}

	p.logger.Debug("published sync event",
		zap.String("event_type", event.EventType),
		zap.String("run_id", event.RunID),
	)
	return nil
}
