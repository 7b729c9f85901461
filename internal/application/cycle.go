package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"balscan/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type RunMode string

const (
	RunModeOnce       RunMode = "once"
	RunModeContinuous RunMode = "continuous"
)

func ParseRunMode(raw string) (RunMode, error) {
	switch mode := RunMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case RunModeOnce, RunModeContinuous:
		return mode, nil
	case "":
		return RunModeOnce, nil
	default:
		return "", fmt.Errorf("unknown run mode %q", raw)
	}
}

// AddressSource yields a fresh address snapshot. An error means the input is unavailable.
type AddressSource interface {
	Load(ctx context.Context) (domain.AddressBook, error)
}

// ResultSink receives the complete result set of a cycle.
type ResultSink interface {
	Emit(ctx context.Context, results domain.ResultSet) error
}

type HitPublisher interface {
	PublishHits(ctx context.Context, cycleID string, hits []domain.Hit) error
}

type CycleRepository interface {
	RecordCycle(ctx context.Context, summary domain.CycleSummary) error
	RecentCycles(ctx context.Context, limit int) ([]domain.CycleSummary, error)
}

type CycleObserver interface {
	OnCycleCompleted(summary domain.CycleSummary)
}

// ErrInputUnavailable marks a failed address load. It ends the run in every mode.
var ErrInputUnavailable = errors.New("address input unavailable")

type DriverConfig struct {
	Mode     RunMode
	Interval time.Duration
}

// CycleReport is the last completed cycle as exposed to operators.
type CycleReport struct {
	Summary domain.CycleSummary
	Results []domain.Address
}

type CycleDriver struct {
	source    AddressSource
	scanner   *Scanner
	sink      ResultSink
	mirrors   []ResultSink
	tracker   *HitTracker
	publisher HitPublisher
	ledger    CycleRepository
	observer  CycleObserver
	logger    *slog.Logger
	cfg       DriverConfig
	newID     func() string

	mu     sync.RWMutex
	latest *CycleReport
}

type DriverOption func(*CycleDriver)

// WithMirror adds a best-effort sink written after the primary one.
func WithMirror(sink ResultSink) DriverOption {
	return func(d *CycleDriver) {
		if sink != nil {
			d.mirrors = append(d.mirrors, sink)
		}
	}
}

func WithHitPublisher(tracker *HitTracker, publisher HitPublisher) DriverOption {
	return func(d *CycleDriver) {
		d.tracker = tracker
		d.publisher = publisher
	}
}

func WithLedger(ledger CycleRepository) DriverOption {
	return func(d *CycleDriver) {
		d.ledger = ledger
	}
}

func WithCycleObserver(observer CycleObserver) DriverOption {
	return func(d *CycleDriver) {
		d.observer = observer
	}
}

func WithLogger(logger *slog.Logger) DriverOption {
	return func(d *CycleDriver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func withIDGenerator(fn func() string) DriverOption {
	return func(d *CycleDriver) {
		d.newID = fn
	}
}

func NewCycleDriver(source AddressSource, scanner *Scanner, sink ResultSink, cfg DriverConfig, opts ...DriverOption) (*CycleDriver, error) {
	if source == nil || scanner == nil || sink == nil {
		return nil, errors.New("cycle driver dependencies must not be nil")
	}
	if cfg.Mode == "" {
		cfg.Mode = RunModeOnce
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	d := &CycleDriver{
		source:  source,
		scanner: scanner,
		sink:    sink,
		cfg:     cfg,
		logger:  slog.Default(),
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.logger = d.logger.With("component", "cycle")
	return d, nil
}

// Run executes one cycle in once mode, or cycles until ctx is cancelled in continuous mode.
// Cancellation is checked before every load, so a cycle is never started after an interrupt.
func (d *CycleDriver) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := d.RunCycle(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrInputUnavailable):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		case d.cfg.Mode == RunModeOnce:
			return err
		default:
			d.logger.Error("cycle failed", "err", err)
		}

		if d.cfg.Mode == RunModeOnce {
			return nil
		}

		if d.cfg.Interval > 0 {
			timer := time.NewTimer(d.cfg.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// RunCycle performs Load, Fetch, Aggregate and Emit once. If ctx is cancelled while batches
// are in flight the partial results are discarded and nothing is emitted.
func (d *CycleDriver) RunCycle(ctx context.Context) (domain.CycleSummary, error) {
	summary := domain.CycleSummary{
		ID:        d.newID(),
		Mode:      string(d.cfg.Mode),
		StartedAt: time.Now().UTC(),
	}
	ctx, span := tracer.Start(ctx, "cycle.run", trace.WithAttributes(
		attribute.String("cycle.id", summary.ID),
		attribute.String("cycle.mode", summary.Mode),
	))
	defer span.End()
	logger := d.logger.With("cycle_id", summary.ID)

	book, err := d.source.Load(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInputUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return d.finish(context.WithoutCancel(ctx), summary, err, nil), err
	}

	batches, skipped := PlanAll(book, d.scanner.PackSizes())
	for _, chain := range skipped {
		logger.Warn("no provider configured, skipping chain", "chain", chain.String(), "addresses", len(book[chain]))
	}
	for _, batch := range batches {
		summary.Addresses += batch.Len()
	}
	summary.Batches = len(batches)
	span.SetAttributes(attribute.Int("cycle.batches", len(batches)))

	results := d.scanner.Scan(ctx, batches)
	for _, result := range results {
		if result.Failed() {
			summary.FailedBatches++
		}
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("cycle interrupted, discarding partial results", "batches", len(batches))
		span.SetStatus(codes.Error, "interrupted")
		return d.finish(context.WithoutCancel(ctx), summary, err, nil), err
	}

	set, records := Aggregate(results, logger)
	summary.Hits = set.Len()

	if err := d.sink.Emit(ctx, set); err != nil {
		err = fmt.Errorf("emit results: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "emit failed")
		return d.finish(context.WithoutCancel(ctx), summary, err, nil), err
	}
	summary.Emitted = true

	for _, mirror := range d.mirrors {
		if err := mirror.Emit(ctx, set); err != nil {
			logger.Warn("mirror emit failed", "err", err)
		}
	}

	if d.tracker != nil {
		fresh := d.tracker.Observe(records)
		summary.NewHits = len(fresh)
		if d.publisher != nil && len(fresh) > 0 {
			if err := d.publisher.PublishHits(ctx, summary.ID, fresh); err != nil {
				logger.Warn("publishing hits failed", "hits", len(fresh), "err", err)
			}
		}
	}

	logger.Info("cycle completed",
		"addresses", summary.Addresses,
		"batches", summary.Batches,
		"failed_batches", summary.FailedBatches,
		"hits", summary.Hits,
		"new_hits", summary.NewHits,
	)
	return d.finish(ctx, summary, nil, set), nil
}

func (d *CycleDriver) finish(ctx context.Context, summary domain.CycleSummary, cycleErr error, set domain.ResultSet) domain.CycleSummary {
	summary.FinishedAt = time.Now().UTC()
	if cycleErr != nil {
		summary.Error = cycleErr.Error()
	}
	if d.ledger != nil {
		if err := d.ledger.RecordCycle(ctx, summary); err != nil {
			d.logger.Warn("recording cycle failed", "cycle_id", summary.ID, "err", err)
		}
	}
	if d.observer != nil {
		d.observer.OnCycleCompleted(summary)
	}
	if summary.Emitted {
		report := &CycleReport{Summary: summary, Results: set.Sorted()}
		d.mu.Lock()
		d.latest = report
		d.mu.Unlock()
	}
	return summary
}

// Latest returns the last cycle that emitted results.
func (d *CycleDriver) Latest() (CycleReport, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.latest == nil {
		return CycleReport{}, false
	}
	return *d.latest, true
}
