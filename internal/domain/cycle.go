package domain

import "time"

// Hit is an address seen with a non-zero balance for the first time in this run.
type Hit struct {
	Chain   Chain
	Address Address
}

// CycleSummary records the outcome of one scan cycle. It carries counts only, never balances.
type CycleSummary struct {
	ID            string
	Mode          string
	StartedAt     time.Time
	FinishedAt    time.Time
	Addresses     int
	Batches       int
	FailedBatches int
	Hits          int
	NewHits       int
	Emitted       bool
	Error         string
}

func (s CycleSummary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
