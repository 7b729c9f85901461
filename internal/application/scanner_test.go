package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"balscan/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerFailureDoesNotAffectSiblings(t *testing.T) {
	eth := &fakeProvider{chain: domain.ChainETH}
	hits := balancesFrom(domain.ChainETH, map[domain.Address]string{"0x1": "5", "0x4": "9"})
	eth.fetch = func(ctx context.Context, batch domain.Batch) ([]domain.BalanceRecord, error) {
		if batch.Seq == 1 {
			return nil, errors.New("connection reset")
		}
		return hits(ctx, batch)
	}
	scanner, err := NewScanner(0, newFetcher(t, eth, 2, nil))
	require.NoError(t, err)

	batches := PlanBatches(domain.ChainETH, addrs("0x1", "0x2", "0x3", "0x4"), 2)
	results := scanner.Scan(context.Background(), batches)
	require.Len(t, results, 2)
	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())

	set, _ := Aggregate(results, nil)
	assert.Equal(t, domain.NewResultSet("0x1"), set)
}

func TestScannerRunsAllBatchesWithWorkerCap(t *testing.T) {
	btc := &fakeProvider{chain: domain.ChainBTC}
	btc.fetch = func(_ context.Context, batch domain.Batch) ([]domain.BalanceRecord, error) {
		return []domain.BalanceRecord{{Chain: domain.ChainBTC, Address: batch.Addresses[0], Balance: "1"}}, nil
	}
	scanner, err := NewScanner(2, newFetcher(t, btc, 1, nil))
	require.NoError(t, err)

	var input []domain.Address
	for i := 0; i < 12; i++ {
		input = append(input, domain.Address(fmt.Sprintf("b%02d", i)))
	}
	results := scanner.Scan(context.Background(), PlanBatches(domain.ChainBTC, input, 1))
	assert.Len(t, results, 12)
	assert.Equal(t, 12, btc.callCount())
	set, _ := Aggregate(results, nil)
	assert.Equal(t, 12, set.Len())
}

func TestScannerUnregisteredChainFails(t *testing.T) {
	scanner, err := NewScanner(0)
	require.NoError(t, err)
	results := scanner.Scan(context.Background(), []domain.Batch{{Chain: domain.ChainETH, Addresses: addrs("0x1")}})
	require.Len(t, results, 1)
	assert.True(t, results[0].Failed())
}

func TestNewScannerRejectsDuplicateChains(t *testing.T) {
	a := newFetcher(t, &fakeProvider{chain: domain.ChainBTC}, 20, nil)
	b := newFetcher(t, &fakeProvider{chain: domain.ChainBTC}, 20, nil)
	_, err := NewScanner(0, a, b)
	assert.Error(t, err)
}
