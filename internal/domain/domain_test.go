package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchError_Message(t *testing.T) {
	err := &FetchError{Kind: ErrorKindProtocol, Chain: ChainBTC, Status: 503, Body: "unavailable"}
	assert.Equal(t, "BTC protocol error: status 503: unavailable", err.Error())

	err = &FetchError{Kind: ErrorKindTransport, Chain: ChainETH, Err: errors.New("dial tcp: refused")}
	assert.Equal(t, "ETH transport error: dial tcp: refused", err.Error())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("batch 3: %w", &FetchError{Kind: ErrorKindData, Chain: ChainETH})
	assert.Equal(t, ErrorKindData, KindOf(wrapped))
	assert.Equal(t, ErrorKindTransport, KindOf(errors.New("plain")))
}

func TestResultSet_SortedAndUnion(t *testing.T) {
	set := NewResultSet("b", "a")
	set.Union(NewResultSet("a", "c"))

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []Address{"a", "b", "c"}, set.Sorted())
	assert.True(t, set.Contains("c"))
}

func TestParseChain(t *testing.T) {
	chain, err := ParseChain(" eth ")
	assert.NoError(t, err)
	assert.Equal(t, ChainETH, chain)

	_, err = ParseChain("DOGE")
	assert.Error(t, err)
}
