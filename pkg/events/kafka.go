package events

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig describes the target brokers and topic.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaSink writes events keyed by session or tutor so per-key ordering holds.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink builds a writer for the configured topic.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaSink{writer: writer}, nil
}

// Write publishes one message.
func (s *KafkaSink) Write(ctx context.Context, key string, value []byte) error {
	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
