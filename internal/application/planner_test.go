package application

import (
	"fmt"
	"math/rand"
	"testing"

	"balscan/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrs(values ...string) []domain.Address {
	out := make([]domain.Address, len(values))
	for i, v := range values {
		out[i] = domain.Address(v)
	}
	return out
}

func TestPlanBatchesSplitsByPackSize(t *testing.T) {
	batches := PlanBatches(domain.ChainETH, addrs("a", "b", "c", "d", "e"), 2)
	require.Len(t, batches, 3)
	assert.Equal(t, addrs("a", "b"), batches[0].Addresses)
	assert.Equal(t, addrs("c", "d"), batches[1].Addresses)
	assert.Equal(t, addrs("e"), batches[2].Addresses)
	for i, b := range batches {
		assert.Equal(t, domain.ChainETH, b.Chain)
		assert.Equal(t, i, b.Seq)
	}
}

func TestPlanBatchesEmptyInput(t *testing.T) {
	assert.Empty(t, PlanBatches(domain.ChainBTC, nil, 20))
	assert.Empty(t, PlanBatches(domain.ChainBTC, addrs("", "  "), 20))
}

func TestPlanBatchesDeduplicates(t *testing.T) {
	batches := PlanBatches(domain.ChainBTC, addrs("x", "y", "x", " y ", "z"), 20)
	require.Len(t, batches, 1)
	assert.Equal(t, addrs("x", "y", "z"), batches[0].Addresses)
}

func TestPlanBatchesNonPositivePackSize(t *testing.T) {
	batches := PlanBatches(domain.ChainBTC, addrs("a", "b"), 0)
	assert.Len(t, batches, 2)
}

func TestPlanBatchesDoesNotAliasInput(t *testing.T) {
	input := addrs("a", "b", "c")
	batches := PlanBatches(domain.ChainBTC, input, 3)
	input[0] = "mutated"
	assert.Equal(t, domain.Address("a"), batches[0].Addresses[0])
}

func TestPlanBatchesPartitionsInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		n := rng.Intn(120)
		k := 1 + rng.Intn(25)
		input := make([]domain.Address, n)
		distinct := make(map[domain.Address]struct{})
		for i := range input {
			addr := domain.Address(fmt.Sprintf("addr-%d", rng.Intn(80)))
			input[i] = addr
			distinct[addr] = struct{}{}
		}

		batches := PlanBatches(domain.ChainETH, input, k)
		covered := make(map[domain.Address]int)
		for _, b := range batches {
			assert.LessOrEqual(t, b.Len(), k)
			assert.Positive(t, b.Len())
			for _, addr := range b.Addresses {
				covered[addr]++
			}
		}
		assert.Len(t, covered, len(distinct), "round %d", round)
		for addr, count := range covered {
			assert.Equal(t, 1, count, "address %s planned more than once", addr)
			assert.Contains(t, distinct, addr)
		}
	}
}

func TestPlanAllSkipsChainsWithoutPackSize(t *testing.T) {
	book := domain.AddressBook{}
	book.Add(domain.ChainBTC, "b1")
	book.Add(domain.ChainETH, "e1")
	book.Add(domain.ChainETH, "e2")

	batches, skipped := PlanAll(book, map[domain.Chain]int{domain.ChainETH: 1})
	assert.Len(t, batches, 2)
	assert.Equal(t, []domain.Chain{domain.ChainBTC}, skipped)
}
