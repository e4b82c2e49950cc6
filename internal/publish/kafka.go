package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes each message keyed by session id, so one session's
// series stay ordered within a partition.
type KafkaSink struct {
	w     messageWriter
	topic string
}

// NewKafkaSink returns a sink writing to cfg.Topic. Connections are made
// lazily on first write.
func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &KafkaSink{
		w: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: cfg.WriteTimeout,
		},
		topic: cfg.Topic,
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, m Message) error {
	payload, err := m.Encode()
	if err != nil {
		return err
	}
	err = s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.SessionID),
		Value: payload,
		Time:  m.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.w.Close() }
