// Command balscan-hits tails the hit topic and prints one "CHAIN ADDRESS" line per event.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"balscan/internal/config"
	"balscan/internal/infrastructure/logging"
	"balscan/internal/infrastructure/telemetry"
	"balscan/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	if len(cfg.KafkaBrokers) == 0 {
		slog.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}

	if _, logFile, err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		slog.Error("logger init error", "err", err)
	} else if logFile != nil {
		defer logFile.Close()
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName: "balscan-hits",
		Endpoint:    cfg.OtelEndpoint,
	})
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	slog.Info("tailing hits", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	consume(ctx, reader, os.Stdout)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func consume(ctx context.Context, reader messageReader, out io.Writer) {
	tracer := otel.Tracer("balscan/hits")
	for {
		message, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return
			}
			slog.Warn("kafka fetch error", "err", err)
			continue
		}

		hit, err := streaming.Decode(message.Value)
		if err != nil {
			slog.Warn("message decode error", "offset", message.Offset, "err", err)
			_ = reader.CommitMessages(ctx, message)
			continue
		}

		msgCtx := telemetry.ExtractKafkaHeaders(ctx, message.Headers)
		_, span := tracer.Start(msgCtx, "hits.consume", trace.WithSpanKind(trace.SpanKindConsumer))
		span.SetAttributes(
			attribute.String("chain", hit.Chain),
			attribute.String("cycle.id", hit.CycleID),
		)
		if _, err := fmt.Fprintf(out, "%s %s\n", hit.Chain, hit.Address); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if err := reader.CommitMessages(ctx, message); err != nil {
			slog.Warn("kafka commit error", "err", err)
		}
	}
}
