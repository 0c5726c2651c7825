package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"barbuddy/pkg/logger"
)

// Producer publishes reservation domain events
type Producer interface {
	PublishHoldEvent(ctx context.Context, event *HoldEvent) error
	PublishBookingConfirmed(ctx context.Context, event *BookingConfirmedEvent) error
	Close() error
}

// KafkaProducerConfig contains configuration for the Kafka event producer
type KafkaProducerConfig struct {
	Brokers          []string
	ClientID         string
	HoldTopic        string
	BookingTopic     string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		ClientID:         "barbuddy-reservation",
		HoldTopic:        "table-holds",
		BookingTopic:     "bookings",
		RetryMax:         3,
		TimeoutMs:        10000,             // 10 seconds
		RequiredAcks:     sarama.WaitForAll, // Wait for all in-sync replicas
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000, // 1MB
	}
}

// KafkaEventProducer handles publishing domain events to Kafka
type KafkaEventProducer struct {
	producer sarama.SyncProducer
	config   *KafkaProducerConfig
	log      *logger.Logger
}

// NewKafkaEventProducer creates a new Kafka event producer
func NewKafkaEventProducer(config *KafkaProducerConfig, log *logger.Logger) (*KafkaEventProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = config.ClientID

	// Producer configuration
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes

	// Idempotent producers require a single in-flight request
	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keeps one bar's events on one partition
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Info("Kafka event producer created", "brokers", config.Brokers)
	return NewKafkaEventProducerWithClient(producer, config, log), nil
}

// NewKafkaEventProducerWithClient wraps an existing sarama producer
func NewKafkaEventProducerWithClient(producer sarama.SyncProducer, config *KafkaProducerConfig, log *logger.Logger) *KafkaEventProducer {
	return &KafkaEventProducer{
		producer: producer,
		config:   config,
		log:      log,
	}
}

// PublishHoldEvent publishes a held, released or consumed table event
func (kp *KafkaEventProducer) PublishHoldEvent(ctx context.Context, event *HoldEvent) error {
	messageBytes, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal hold event: %w", err)
	}

	headers := kp.createHeaders(string(event.Type), event.ID.String(), event.OccurredAt)
	headers = append(headers,
		sarama.RecordHeader{Key: []byte("bar_id"), Value: []byte(event.BarID)},
		sarama.RecordHeader{Key: []byte("table_id"), Value: []byte(event.TableID)},
	)

	return kp.send(ctx, &sarama.ProducerMessage{
		Topic:     kp.config.HoldTopic,
		Key:       sarama.StringEncoder(event.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   headers,
		Timestamp: event.OccurredAt,
	})
}

// PublishBookingConfirmed publishes a confirmed booking
func (kp *KafkaEventProducer) PublishBookingConfirmed(ctx context.Context, event *BookingConfirmedEvent) error {
	messageBytes, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	headers := kp.createHeaders("BOOKING_CONFIRMED", event.ID.String(), event.OccurredAt)
	headers = append(headers,
		sarama.RecordHeader{Key: []byte("bar_id"), Value: []byte(event.BarID)},
		sarama.RecordHeader{Key: []byte("booking_id"), Value: []byte(event.BookingID)},
	)

	return kp.send(ctx, &sarama.ProducerMessage{
		Topic:     kp.config.BookingTopic,
		Key:       sarama.StringEncoder(event.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   headers,
		Timestamp: event.OccurredAt,
	})
}

func (kp *KafkaEventProducer) send(ctx context.Context, message *sarama.ProducerMessage) error {
	partition, offset, err := kp.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send event to Kafka topic %s: %w", message.Topic, err)
	}

	kp.log.DebugWithContext(ctx, "Event published to Kafka", map[string]interface{}{
		"topic":     message.Topic,
		"partition": partition,
		"offset":    offset,
	})
	return nil
}

// createHeaders creates the Kafka headers common to every event
func (kp *KafkaEventProducer) createHeaders(eventType, eventID string, occurredAt time.Time) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("event_id"), Value: []byte(eventID)},
		{Key: []byte("event_type"), Value: []byte(eventType)},
		{Key: []byte("version"), Value: []byte("1.0")},
		{Key: []byte("producer"), Value: []byte(kp.config.ClientID)},
		{Key: []byte("occurred_at"), Value: []byte(occurredAt.Format(time.RFC3339))},
	}
}

// Close closes the Kafka producer
func (kp *KafkaEventProducer) Close() error {
	if kp.producer != nil {
		if err := kp.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
		kp.log.Info("Kafka event producer closed")
	}
	return nil
}

// NoopProducer drops every event; used when Kafka is disabled
type NoopProducer struct{}

func (NoopProducer) PublishHoldEvent(context.Context, *HoldEvent) error { return nil }

func (NoopProducer) PublishBookingConfirmed(context.Context, *BookingConfirmedEvent) error {
	return nil
}

func (NoopProducer) Close() error { return nil }
