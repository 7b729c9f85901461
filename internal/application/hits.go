package application

import (
	"fmt"
	"sort"

	"balscan/internal/domain"

	lru "github.com/hashicorp/golang-lru/v2"
)

// HitTracker remembers which hits were already reported during this process so repeated
// cycles only publish addresses that are new. The memory is bounded; evicted entries are
// reported again if they reappear.
type HitTracker struct {
	seen *lru.Cache[domain.Hit, struct{}]
}

func NewHitTracker(size int) (*HitTracker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("hit tracker size must be positive, got %d", size)
	}
	cache, err := lru.New[domain.Hit, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &HitTracker{seen: cache}, nil
}

// Observe returns the hits among records not seen before, sorted by chain then address.
func (t *HitTracker) Observe(records []domain.BalanceRecord) []domain.Hit {
	var fresh []domain.Hit
	for _, rec := range records {
		hit := domain.Hit{Chain: rec.Chain, Address: rec.Address}
		if t.seen.Contains(hit) {
			t.seen.Get(hit)
			continue
		}
		t.seen.Add(hit, struct{}{})
		fresh = append(fresh, hit)
	}
	sort.Slice(fresh, func(i, j int) bool {
		if fresh[i].Chain != fresh[j].Chain {
			return fresh[i].Chain < fresh[j].Chain
		}
		return fresh[i].Address < fresh[j].Address
	})
	return fresh
}

func (t *HitTracker) Len() int {
	return t.seen.Len()
}
