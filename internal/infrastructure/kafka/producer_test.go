package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"balscan/internal/domain"
	"balscan/internal/streaming"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func newTestProducer(w *fakeWriter) *Producer {
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return &Producer{writer: w, topic: DefaultTopic, now: func() time.Time { return fixed }}
}

func TestPublishHits(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	err := p.PublishHits(context.Background(), "cycle-1", []domain.Hit{
		{Chain: domain.ChainBTC, Address: "1abc"},
		{Chain: domain.ChainETH, Address: "0xdef"},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 2)
	assert.Equal(t, "BTC:1abc", string(w.messages[0].Key))

	msg, err := streaming.Decode(w.messages[1].Value)
	require.NoError(t, err)
	assert.Equal(t, streaming.MessageTypeHit, msg.Type)
	assert.Equal(t, "ETH", msg.Chain)
	assert.Equal(t, "0xdef", msg.Address)
	assert.Equal(t, "cycle-1", msg.CycleID)
}

func TestPublishHitsEmptyIsNoop(t *testing.T) {
	w := &fakeWriter{err: errors.New("should not be called")}
	assert.NoError(t, newTestProducer(w).PublishHits(context.Background(), "c", nil))
}

func TestPublishHitsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	err := newTestProducer(w).PublishHits(context.Background(), "c", []domain.Hit{{Chain: domain.ChainBTC, Address: "1a"}})
	assert.EqualError(t, err, "broker down")
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(ProducerConfig{})
	assert.Error(t, err)
}
