package domain

// BalanceRecord is a non-zero balance reported by a provider, in the chain's smallest unit
// (satoshi for BTC, wei for ETH).
type BalanceRecord struct {
	Chain   Chain
	Address Address
	Balance string
}
