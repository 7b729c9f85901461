package application

import (
	"slices"
	"strings"

	"balscan/internal/domain"
)

// PlanBatches deduplicates addresses and splits them into batches of at most packSize members.
// Blank entries are dropped. An empty input yields no batches.
func PlanBatches(chain domain.Chain, addresses []domain.Address, packSize int) []domain.Batch {
	if packSize <= 0 {
		packSize = 1
	}
	unique := make([]domain.Address, 0, len(addresses))
	seen := make(map[domain.Address]struct{}, len(addresses))
	for _, addr := range addresses {
		addr = domain.Address(strings.TrimSpace(string(addr)))
		if addr == "" {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		unique = append(unique, addr)
	}
	if len(unique) == 0 {
		return nil
	}

	batches := make([]domain.Batch, 0, (len(unique)+packSize-1)/packSize)
	for start := 0; start < len(unique); start += packSize {
		end := min(start+packSize, len(unique))
		batches = append(batches, domain.Batch{
			Chain:     chain,
			Seq:       len(batches),
			Addresses: slices.Clone(unique[start:end]),
		})
	}
	return batches
}

// PlanAll plans batches for every chain in book that has a pack size. Chains without one are
// returned separately so the caller can report them.
func PlanAll(book domain.AddressBook, packSizes map[domain.Chain]int) ([]domain.Batch, []domain.Chain) {
	var batches []domain.Batch
	var skipped []domain.Chain
	for _, chain := range sortedChains(book) {
		size, ok := packSizes[chain]
		if !ok {
			skipped = append(skipped, chain)
			continue
		}
		batches = append(batches, PlanBatches(chain, book[chain], size)...)
	}
	return batches, skipped
}

func sortedChains(book domain.AddressBook) []domain.Chain {
	chains := make([]domain.Chain, 0, len(book))
	for chain := range book {
		chains = append(chains, chain)
	}
	slices.Sort(chains)
	return chains
}
