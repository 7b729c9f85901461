package application

import (
	"log/slog"

	"balscan/internal/domain"
)

// Aggregate merges the per-batch hits of all chains into one set. Failed batches contribute
// nothing. Records tagged with an unknown chain are logged and skipped.
func Aggregate(results []BatchResult, logger *slog.Logger) (domain.ResultSet, []domain.BalanceRecord) {
	if logger == nil {
		logger = slog.Default()
	}
	perChain := make(map[domain.Chain]domain.ResultSet, len(domain.Chains))
	var hits []domain.BalanceRecord
	for _, result := range results {
		if result.Failed() {
			continue
		}
		for _, rec := range result.Records {
			if !rec.Chain.Valid() {
				logger.Warn("skipping record for unknown chain", "chain", rec.Chain.String(), "address", string(rec.Address))
				continue
			}
			set, ok := perChain[rec.Chain]
			if !ok {
				set = domain.NewResultSet()
				perChain[rec.Chain] = set
			}
			if set.Contains(rec.Address) {
				continue
			}
			set.Add(rec.Address)
			hits = append(hits, rec)
		}
	}

	merged := domain.NewResultSet()
	for _, chain := range domain.Chains {
		if set, ok := perChain[chain]; ok {
			merged.Union(set)
		}
	}
	return merged, hits
}
