package broker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/thedomainai/agentic-stack/internal/config"
	kafkadb "github.com/thedomainai/agentic-stack/internal/database/kafka"
	"github.com/thedomainai/agentic-stack/internal/models"
	"github.com/thedomainai/agentic-stack/pkg/logger"
)

// KafkaBroker implements Broker over two durable Kafka topics, one per
// channel. Messages are written with RequireAll acks so they are persisted
// before Publish returns.
type KafkaBroker struct {
	client       *kafkadb.Client
	cfg          *config.KafkaConfig
	logger       *logger.Logger
	writers      map[Channel]*kafka.Writer
	retryBackoff time.Duration

	mu      sync.Mutex
	readers []*kafka.Reader
}

// messageReader is the slice of kafka.Reader the consume loop needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

var _ Broker = (*KafkaBroker)(nil)

// NewKafkaBroker builds writers for both channels on an already-initialized
// Kafka client (topics are created by the client at startup).
func NewKafkaBroker(client *kafkadb.Client, cfg *config.KafkaConfig, log *logger.Logger) *KafkaBroker {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		}
	}
	return &KafkaBroker{
		client:       client,
		cfg:          cfg,
		logger:       log,
		retryBackoff: 2 * time.Second,
		writers: map[Channel]*kafka.Writer{
			ChannelDefault: newWriter(cfg.DefaultTopic),
			ChannelHigh:    newWriter(cfg.HighTopic),
		},
	}
}

func (b *KafkaBroker) Publish(ctx context.Context, msg *models.TaskMessage, channel Channel) error {
	writer, ok := b.writers[channel]
	if !ok {
		return fmt.Errorf("unknown channel: %s", channel)
	}

	data, err := msg.Encode()
	if err != nil {
		return err
	}

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.TaskID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(msg.MessageID)},
			{Key: "correlation_id", Value: []byte(msg.CorrelationID)},
			{Key: "priority", Value: []byte(strconv.Itoa(PriorityHint(msg.Priority)))},
		},
	})
	if err != nil {
		b.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "broker_error"}).
			WithPayload(map[string]interface{}{"channel": string(channel), "message_id": msg.MessageID}).
			Error("Failed to write message to Kafka")
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Consume fetches one message at a time and commits the offset only after
// the handler returns nil. An unacknowledged message is redelivered when the
// group next rebalances or the process restarts.
func (b *KafkaBroker) Consume(ctx context.Context, channel Channel, groupID string, handler Handler) error {
	topic := b.cfg.DefaultTopic
	if channel == ChannelHigh {
		topic = b.cfg.HighTopic
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxAttempts: 10,
		Dialer: &kafka.Dialer{
			Timeout: 10 * time.Second,
		},
	})

	b.mu.Lock()
	b.readers = append(b.readers, reader)
	b.mu.Unlock()

	go b.consumeLoop(ctx, channel, reader, handler)

	return nil
}

// consumeLoop fetches and handles one message at a time. Kafka offset commits
// are cumulative per partition: fetching past an unacknowledged message and
// committing a later one would also confirm the failed offset. So a failing
// handler is retried on the same message with backoff and the loop never
// advances past an uncommitted offset.
func (b *KafkaBroker) consumeLoop(ctx context.Context, channel Channel, reader messageReader, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping Kafka consumer for " + string(channel))
			return
		default:
			raw, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					b.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "broker_error"}).Error("Error fetching message from Kafka")
				}
				continue
			}

			msg, err := models.DecodeTaskMessage(raw.Value)
			if err != nil {
				// Malformed payloads cannot succeed on redelivery, commit and move on.
				b.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "protocol_error"}).
					WithPayload(map[string]interface{}{"topic": raw.Topic, "offset": raw.Offset}).
					Error("Dropping malformed message")
				if err := reader.CommitMessages(ctx, raw); err != nil {
					b.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to commit Kafka message")
				}
				continue
			}

			for {
				err := handler(ctx, msg)
				if err == nil {
					break
				}
				b.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
					"topic":      raw.Topic,
					"offset":     raw.Offset,
					"message_id": msg.MessageID,
				}).Error("Handler failed, retrying delivery")
				select {
				case <-ctx.Done():
					return
				case <-time.After(b.retryBackoff):
				}
			}

			if err := reader.CommitMessages(ctx, raw); err != nil {
				b.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to commit Kafka message")
			}
		}
	}
}

func (b *KafkaBroker) Ping(ctx context.Context) error {
	return b.client.HealthCheck(ctx)
}

func (b *KafkaBroker) Close() error {
	var firstErr error
	for _, w := range b.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
