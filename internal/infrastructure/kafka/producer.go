package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"balscan/internal/domain"
	"balscan/internal/infrastructure/telemetry"
	"balscan/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTopic = "balscan-hits"

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
}

// Producer publishes one hit message per newly found address, keyed by address.
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 500 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer, topic: cfg.Topic, now: time.Now}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) PublishHits(ctx context.Context, cycleID string, hits []domain.Hit) error {
	if len(hits) == 0 {
		return nil
	}
	ctx, span := otel.Tracer("balscan/kafka").Start(ctx, "cycle.publish_hits",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination", p.topic),
			attribute.Int("hits", len(hits)),
		))
	defer span.End()

	observed := p.now().UTC()
	traceID := telemetry.TraceID(ctx)
	messages := make([]kafka.Message, 0, len(hits))
	for _, hit := range hits {
		payload, err := streaming.Encode(streaming.Message{
			Type:       streaming.MessageTypeHit,
			Chain:      hit.Chain.String(),
			Address:    string(hit.Address),
			CycleID:    cycleID,
			TraceID:    traceID,
			ObservedAt: observed,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		headers := make([]kafka.Header, 0, 2)
		telemetry.InjectKafkaHeaders(ctx, &headers)
		messages = append(messages, kafka.Message{
			Key:     []byte(hit.Chain.String() + ":" + string(hit.Address)),
			Value:   payload,
			Headers: headers,
		})
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
