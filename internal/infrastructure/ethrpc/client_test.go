package ethrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balscan/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)
	return client
}

func decodeRequests(t *testing.T, r *http.Request) []rpcRequest {
	t.Helper()
	var reqs []rpcRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&reqs))
	return reqs
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestFetchBalances_SendsBatchAndMatchesByID(t *testing.T) {
	balances := map[string]string{"0xa": "0x0", "0xb": "0x1bc16d674ec80000"}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reqs := decodeRequests(t, r)
		require.Len(t, reqs, 2)
		// Answer in reverse order.
		out := "["
		for i := len(reqs) - 1; i >= 0; i-- {
			req := reqs[i]
			assert.Equal(t, "eth_getBalance", req.Method)
			assert.Equal(t, "latest", req.Params[1])
			out += fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%q}`, req.ID, balances[req.Params[0].(string)])
			if i > 0 {
				out += ","
			}
		}
		_, _ = w.Write([]byte(out + "]"))
	})

	records, err := client.FetchBalances(context.Background(), domain.Batch{
		Chain:     domain.ChainETH,
		Addresses: []domain.Address{"0xa", "0xb"},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.BalanceRecord{
		{Chain: domain.ChainETH, Address: "0xa", Balance: "0"},
		{Chain: domain.ChainETH, Address: "0xb", Balance: "2000000000000000000"},
	}, records)
}

func TestFetchBalances_ItemErrorFailsBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reqs := decodeRequests(t, r)
		_, _ = fmt.Fprintf(w, `[{"jsonrpc":"2.0","id":%d,"result":"0x1"},{"jsonrpc":"2.0","id":%d,"error":{"code":-32602,"message":"invalid argument"}}]`,
			reqs[0].ID, reqs[1].ID)
	})

	_, err := client.FetchBalances(context.Background(), domain.Batch{Chain: domain.ChainETH, Addresses: []domain.Address{"0xa", "bad"}})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindProvider, domain.KindOf(err))
	assert.Contains(t, err.Error(), "invalid argument")
}

func TestFetchBalances_WholeBatchRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32005,"message":"batch limit exceeded"}}`))
	})

	_, err := client.FetchBalances(context.Background(), domain.Batch{Chain: domain.ChainETH, Addresses: []domain.Address{"0xa"}})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindProvider, domain.KindOf(err))
}

func TestFetchBalances_MalformedQuantityIsDataError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reqs := decodeRequests(t, r)
		_, _ = fmt.Fprintf(w, `[{"jsonrpc":"2.0","id":%d,"result":"0xzz"}]`, reqs[0].ID)
	})

	_, err := client.FetchBalances(context.Background(), domain.Batch{Chain: domain.ChainETH, Addresses: []domain.Address{"0xa"}})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindData, domain.KindOf(err))
}

func TestFetchBalances_MissingResponseIsDataError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.FetchBalances(context.Background(), domain.Batch{Chain: domain.ChainETH, Addresses: []domain.Address{"0xa"}})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindData, domain.KindOf(err))
}

func TestFetchBalances_HTTPFailureIsProtocolError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchBalances(context.Background(), domain.Batch{Chain: domain.ChainETH, Addresses: []domain.Address{"0xa"}})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindProtocol, domain.KindOf(err))
}

func TestBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reqs := decodeRequests(t, r)
		require.Len(t, reqs, 1)
		assert.Equal(t, "0xabc", reqs[0].Params[0])
		_, _ = fmt.Fprintf(w, `[{"jsonrpc":"2.0","id":%d,"result":"0xff"}]`, reqs[0].ID)
	})

	wei, err := client.Balance(context.Background(), " 0xabc ")
	require.NoError(t, err)
	assert.Equal(t, "255", wei.String())

	_, err = client.Balance(context.Background(), "")
	require.Error(t, err)
}
