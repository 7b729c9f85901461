package domain

import (
	"fmt"
	"strings"
)

// Chain identifies a supported network.
type Chain string

const (
	ChainBTC Chain = "BTC"
	ChainETH Chain = "ETH"
)

// Chains lists every supported chain in a stable order.
var Chains = []Chain{ChainBTC, ChainETH}

func (c Chain) String() string {
	return string(c)
}

func (c Chain) Valid() bool {
	switch c {
	case ChainBTC, ChainETH:
		return true
	default:
		return false
	}
}

func ParseChain(raw string) (Chain, error) {
	chain := Chain(strings.ToUpper(strings.TrimSpace(raw)))
	if !chain.Valid() {
		return "", fmt.Errorf("unknown chain %q", raw)
	}
	return chain, nil
}

// Address is an opaque chain-specific account identifier. Uniqueness is per chain.
type Address string
