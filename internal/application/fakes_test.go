package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"balscan/internal/domain"
	"balscan/internal/ratelimit"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	chain domain.Chain
	mu    sync.Mutex
	calls []domain.Batch
	fetch func(ctx context.Context, batch domain.Batch) ([]domain.BalanceRecord, error)
}

func (p *fakeProvider) Chain() domain.Chain {
	return p.chain
}

func (p *fakeProvider) FetchBalances(ctx context.Context, batch domain.Batch) ([]domain.BalanceRecord, error) {
	p.mu.Lock()
	p.calls = append(p.calls, batch)
	p.mu.Unlock()
	if p.fetch == nil {
		return nil, nil
	}
	return p.fetch(ctx, batch)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// balancesFrom answers every batch member from table, defaulting to zero.
func balancesFrom(chain domain.Chain, table map[domain.Address]string) func(context.Context, domain.Batch) ([]domain.BalanceRecord, error) {
	return func(_ context.Context, batch domain.Batch) ([]domain.BalanceRecord, error) {
		out := make([]domain.BalanceRecord, 0, batch.Len())
		for _, addr := range batch.Addresses {
			balance, ok := table[addr]
			if !ok {
				balance = "0"
			}
			out = append(out, domain.BalanceRecord{Chain: chain, Address: addr, Balance: balance})
		}
		return out, nil
	}
}

func fastLimiter(t *testing.T, name string) *ratelimit.Limiter {
	t.Helper()
	limiter, err := ratelimit.New(name, 5, ratelimit.WithInterval(time.Millisecond))
	require.NoError(t, err)
	return limiter
}

func newFetcher(t *testing.T, provider *fakeProvider, packSize int, observer FetchObserver) *ServiceFetcher {
	t.Helper()
	fetcher, err := NewServiceFetcher(provider, fastLimiter(t, provider.chain.String()), packSize, observer, nil)
	require.NoError(t, err)
	return fetcher
}

type recordingFetchObserver struct {
	mu      sync.Mutex
	results []BatchResult
}

func (o *recordingFetchObserver) OnBatchFetched(result BatchResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

type staticSource struct {
	mu    sync.Mutex
	books []domain.AddressBook
	err   error
	loads int
}

func (s *staticSource) Load(ctx context.Context) (domain.AddressBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.books) == 0 {
		return domain.AddressBook{}, nil
	}
	book := s.books[0]
	if len(s.books) > 1 {
		s.books = s.books[1:]
	}
	return book, nil
}

// cancellingSource cancels the run while loading, as a signal arriving mid-read would.
type cancellingSource struct {
	cancel context.CancelFunc
}

func (s *cancellingSource) Load(ctx context.Context) (domain.AddressBook, error) {
	s.cancel()
	return nil, ctx.Err()
}

type memorySink struct {
	mu      sync.Mutex
	emitted []domain.ResultSet
	err     error
}

func (s *memorySink) Emit(ctx context.Context, results domain.ResultSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.emitted = append(s.emitted, results)
	return nil
}

func (s *memorySink) last() domain.ResultSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.emitted) == 0 {
		return nil
	}
	return s.emitted[len(s.emitted)-1]
}

type memoryLedger struct {
	mu        sync.Mutex
	summaries []domain.CycleSummary
}

func (l *memoryLedger) RecordCycle(ctx context.Context, summary domain.CycleSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summaries = append(l.summaries, summary)
	return nil
}

func (l *memoryLedger) RecentCycles(ctx context.Context, limit int) ([]domain.CycleSummary, error) {
	return nil, errors.New("not implemented")
}

type recordingPublisher struct {
	mu   sync.Mutex
	hits [][]domain.Hit
}

func (p *recordingPublisher) PublishHits(ctx context.Context, cycleID string, hits []domain.Hit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hits = append(p.hits, hits)
	return nil
}
