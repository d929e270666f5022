package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu       sync.Mutex
	failures int
	messages [][]byte
	keys     []string
	written  chan struct{}
}

func (s *recordingSink) Write(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.keys = append(s.keys, key)
	s.messages = append(s.messages, value)
	s.written <- struct{}{}
	return nil
}

func (s *recordingSink) Close() error { return nil }

func TestDispatcherDeliversAfterRetry(t *testing.T) {
	sink := &recordingSink{failures: 1, written: make(chan struct{}, 1)}
	d := NewDispatcher(sink, DispatcherConfig{MaxRetries: 3, RetryDelay: time.Millisecond}, zap.NewNop())
	d.Start(context.Background())
	defer func() { _ = d.Stop() }()

	require.NoError(t, d.Publish(context.Background(), TypeEscrowReleased, "S1", map[string]interface{}{"reason": "both_confirmed"}))

	select {
	case <-sink.written:
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.messages, 1)
	assert.Equal(t, "S1", sink.keys[0])

	var evt Event
	require.NoError(t, json.Unmarshal(sink.messages[0], &evt))
	assert.Equal(t, TypeEscrowReleased, evt.Type)
	assert.Equal(t, "both_confirmed", evt.Data["reason"])
	assert.NotEmpty(t, evt.ID)
}

func TestNewKafkaSinkRequiresBrokers(t *testing.T) {
	_, err := NewKafkaSink(KafkaConfig{Topic: "t"})
	assert.Error(t, err)
	_, err = NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}
