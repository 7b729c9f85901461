package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"balscan/internal/domain"
	"balscan/internal/ratelimit"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("balscan/application")

// BalanceProvider resolves the balances of one batch against an external API.
type BalanceProvider interface {
	Chain() domain.Chain
	FetchBalances(ctx context.Context, batch domain.Batch) ([]domain.BalanceRecord, error)
}

// FetchObserver is notified once per planned batch, including abandoned ones.
type FetchObserver interface {
	OnBatchFetched(result BatchResult)
}

// BatchResult is the outcome of one batch. Records only holds non-zero balances.
type BatchResult struct {
	Batch     domain.Batch
	Records   []domain.BalanceRecord
	Err       error
	Abandoned bool
	Duration  time.Duration
}

func (r BatchResult) Failed() bool {
	return r.Err != nil
}

// ServiceFetcher performs rate-limited batch requests against one provider.
type ServiceFetcher struct {
	provider BalanceProvider
	limiter  *ratelimit.Limiter
	packSize int
	observer FetchObserver
	logger   *slog.Logger
}

func NewServiceFetcher(provider BalanceProvider, limiter *ratelimit.Limiter, packSize int, observer FetchObserver, logger *slog.Logger) (*ServiceFetcher, error) {
	if provider == nil || limiter == nil {
		return nil, errors.New("service fetcher dependencies must not be nil")
	}
	if packSize <= 0 {
		return nil, errors.New("service fetcher pack size must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceFetcher{
		provider: provider,
		limiter:  limiter,
		packSize: packSize,
		observer: observer,
		logger:   logger.With("component", "fetcher", "chain", provider.Chain().String()),
	}, nil
}

func (f *ServiceFetcher) Chain() domain.Chain {
	return f.provider.Chain()
}

func (f *ServiceFetcher) PackSize() int {
	return f.packSize
}

// Fetch never returns an error to the caller. Failures are logged and carried in the result so
// one failing batch cannot affect its siblings.
func (f *ServiceFetcher) Fetch(ctx context.Context, batch domain.Batch) BatchResult {
	ctx, span := tracer.Start(ctx, "cycle.fetch_batch", trace.WithAttributes(
		attribute.String("chain", batch.Chain.String()),
		attribute.Int("batch.seq", batch.Seq),
		attribute.Int("batch.size", batch.Len()),
	))
	defer span.End()

	start := time.Now()
	result := BatchResult{Batch: batch}
	defer func() {
		result.Duration = time.Since(start)
		if f.observer != nil {
			f.observer.OnBatchFetched(result)
		}
	}()

	permit, err := f.limiter.Acquire(ctx)
	if err != nil {
		result.Err = err
		result.Abandoned = true
		span.SetStatus(codes.Error, "abandoned")
		f.logger.Debug("batch abandoned before dispatch", "seq", batch.Seq, "size", batch.Len())
		return result
	}

	// The request itself is not cancelled mid-flight. The HTTP timeout bounds it instead.
	records, err := f.provider.FetchBalances(context.WithoutCancel(ctx), batch)
	permit.Release()

	if err != nil {
		result.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
		f.logFailure(batch, err)
		return result
	}

	result.Records = f.nonZero(records)
	span.SetAttributes(attribute.Int("batch.hits", len(result.Records)))
	return result
}

func (f *ServiceFetcher) logFailure(batch domain.Batch, err error) {
	attrs := []any{
		"seq", batch.Seq,
		"addresses", batch.Strings(),
		"kind", string(domain.KindOf(err)),
		"err", err,
	}
	// The provider body is already part of err's message.
	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) && fetchErr.Status != 0 {
		attrs = append(attrs, "status", fetchErr.Status)
	}
	f.logger.Error("batch fetch failed", attrs...)
}

func (f *ServiceFetcher) nonZero(records []domain.BalanceRecord) []domain.BalanceRecord {
	out := make([]domain.BalanceRecord, 0, len(records))
	for _, rec := range records {
		positive, ok := PositiveBalance(rec.Balance)
		if !ok {
			f.logger.Warn("dropping unparsable balance", "address", string(rec.Address), "balance", rec.Balance)
			continue
		}
		if positive {
			out = append(out, rec)
		}
	}
	return out
}

// PositiveBalance parses an integer or decimal balance string. ok is false for empty, malformed
// or negative values.
func PositiveBalance(raw string) (positive bool, ok bool) {
	if raw == "" {
		return false, false
	}
	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() {
		return false, false
	}
	return value.IsPositive(), true
}
