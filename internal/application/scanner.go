package application

import (
	"context"
	"fmt"

	"balscan/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Fetcher is satisfied by ServiceFetcher.
type Fetcher interface {
	Chain() domain.Chain
	PackSize() int
	Fetch(ctx context.Context, batch domain.Batch) BatchResult
}

// Scanner dispatches every planned batch concurrently and waits for all of them.
type Scanner struct {
	fetchers   map[domain.Chain]Fetcher
	maxWorkers int
}

// NewScanner registers one fetcher per chain. maxWorkers caps the number of goroutines in a
// cycle; zero leaves it unbounded and concurrency is governed by the limiters alone.
func NewScanner(maxWorkers int, fetchers ...Fetcher) (*Scanner, error) {
	s := &Scanner{fetchers: make(map[domain.Chain]Fetcher, len(fetchers)), maxWorkers: maxWorkers}
	for _, f := range fetchers {
		if f == nil {
			continue
		}
		if _, dup := s.fetchers[f.Chain()]; dup {
			return nil, fmt.Errorf("duplicate fetcher for chain %s", f.Chain())
		}
		s.fetchers[f.Chain()] = f
	}
	return s, nil
}

// PackSizes reports the configured pack size per registered chain.
func (s *Scanner) PackSizes() map[domain.Chain]int {
	out := make(map[domain.Chain]int, len(s.fetchers))
	for chain, f := range s.fetchers {
		out[chain] = f.PackSize()
	}
	return out
}

// Scan returns one result per batch, in batch order. A batch for an unregistered chain fails
// without a request.
func (s *Scanner) Scan(ctx context.Context, batches []domain.Batch) []BatchResult {
	results := make([]BatchResult, len(batches))
	var g errgroup.Group
	if s.maxWorkers > 0 {
		g.SetLimit(s.maxWorkers)
	}
	for i, batch := range batches {
		fetcher, ok := s.fetchers[batch.Chain]
		if !ok {
			results[i] = BatchResult{Batch: batch, Err: fmt.Errorf("no fetcher for chain %s", batch.Chain)}
			continue
		}
		g.Go(func() error {
			results[i] = fetcher.Fetch(ctx, batch)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
