// Package events publishes tutoring domain events (escrow transitions and
// review submissions) to Kafka through an in-memory retrying dispatch queue.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/badger-tutors-api/pkg/jobs"
)

// Event types emitted by the services.
const (
	TypeEscrowCreated    = "escrow.created"
	TypeSessionConfirmed = "session.confirmed"
	TypeEscrowReleased   = "escrow.released"
	TypeSessionDisputed  = "session.disputed"
	TypeSessionCancelled = "session.cancelled"
	TypeReviewSubmitted  = "review.submitted"
)

// Event is the envelope written to the broker.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Key        string                 `json:"key"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

// Sink delivers an encoded event to the broker.
type Sink interface {
	Write(ctx context.Context, key string, value []byte) error
	Close() error
}

// Dispatcher hands events to the job queue so request paths never block on the
// broker.
type Dispatcher struct {
	queue  *jobs.Queue
	sink   Sink
	logger *zap.Logger
}

// DispatcherConfig tunes the underlying queue.
type DispatcherConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewDispatcher wires a queue whose handler writes to sink.
func NewDispatcher(sink Sink, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{sink: sink, logger: logger}
	d.queue = jobs.NewQueue("events", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnDrop: func(job jobs.Job, err error) {
			logger.Error("event dropped", zap.String("event_id", job.ID), zap.String("type", job.Type), zap.Error(err))
		},
	})
	return d
}

// Start launches the dispatch workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains workers and closes the sink.
func (d *Dispatcher) Stop() error {
	d.queue.Stop()
	return d.sink.Close()
}

// Publish enqueues an event. Delivery failures are retried in the background;
// only encoding and queue admission errors are returned.
func (d *Dispatcher) Publish(ctx context.Context, eventType, key string, data map[string]interface{}) error {
	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", eventType, err)
	}
	return d.queue.Enqueue(jobs.Job{ID: evt.ID, Type: evt.Type, Payload: payload})
}

func (d *Dispatcher) handle(ctx context.Context, job jobs.Job) error {
	var evt Event
	if err := json.Unmarshal(job.Payload, &evt); err != nil {
		d.logger.Error("discarding undecodable event", zap.String("event_id", job.ID), zap.Error(err))
		return nil
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return d.sink.Write(writeCtx, evt.Key, job.Payload)
}

// LogSink is used when no broker is configured; events are only logged.
type LogSink struct {
	Logger *zap.Logger
}

// Write logs the event payload at debug level.
func (s LogSink) Write(ctx context.Context, key string, value []byte) error {
	if s.Logger != nil {
		s.Logger.Debug("event", zap.String("key", key), zap.ByteString("payload", value))
	}
	return nil
}

// Close is a no-op.
func (LogSink) Close() error { return nil }
