package ethrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"balscan/internal/domain"
	"balscan/internal/infrastructure/httpclient"
)

// Client reads ETH balances from a JSON-RPC node. A batch is sent as one JSON-RPC batch
// request of eth_getBalance calls.
type Client struct {
	url        string
	userAgent  string
	httpClient *http.Client
	idCounter  uint64
}

type Config struct {
	URL        string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	rawURL := strings.TrimSpace(cfg.URL)
	if rawURL == "" {
		return nil, errors.New("rpc url is required")
	}
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("invalid rpc url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(cfg.Timeout)
	}
	return &Client{url: rawURL, userAgent: cfg.UserAgent, httpClient: client}, nil
}

func (c *Client) Chain() domain.Chain {
	return domain.ChainETH
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// FetchBalances returns one record per batch address in batch order, zero balances included.
// Any per-call error fails the whole batch.
func (c *Client) FetchBalances(ctx context.Context, batch domain.Batch) ([]domain.BalanceRecord, error) {
	if batch.Len() == 0 {
		return nil, nil
	}
	requests := make([]rpcRequest, 0, batch.Len())
	for _, address := range batch.Addresses {
		requests = append(requests, c.balanceRequest(string(address)))
	}
	responses, body, err := c.callBatch(ctx, requests)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint64]rpcResponse, len(responses))
	for _, resp := range responses {
		byID[resp.ID] = resp
	}
	records := make([]domain.BalanceRecord, 0, len(requests))
	for i, req := range requests {
		resp, ok := byID[req.ID]
		if !ok {
			return nil, dataError(fmt.Errorf("missing response for %s", batch.Addresses[i]))
		}
		wei, err := decodeBalance(resp, body)
		if err != nil {
			return nil, err
		}
		records = append(records, domain.BalanceRecord{
			Chain:   domain.ChainETH,
			Address: batch.Addresses[i],
			Balance: wei.String(),
		})
	}
	return records, nil
}

// Balance returns the wei balance of a single address.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("address is required")
	}
	responses, body, err := c.callBatch(ctx, []rpcRequest{c.balanceRequest(address)})
	if err != nil {
		return nil, err
	}
	if len(responses) != 1 {
		return nil, dataError(fmt.Errorf("expected 1 response, got %d", len(responses)))
	}
	return decodeBalance(responses[0], body)
}

func (c *Client) balanceRequest(address string) rpcRequest {
	return rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&c.idCounter, 1),
		Method:  "eth_getBalance",
		Params:  []any{address, "latest"},
	}
}

func (c *Client) callBatch(ctx context.Context, requests []rpcRequest) ([]rpcResponse, []byte, error) {
	payload, err := json.Marshal(requests)
	if err != nil {
		return nil, nil, err
	}
	body, err := httpclient.PostJSON(ctx, c.httpClient, domain.ChainETH, c.url, payload, c.userAgent)
	if err != nil {
		return nil, nil, err
	}

	var responses []rpcResponse
	if err := json.Unmarshal(body, &responses); err != nil {
		// A node that rejects the whole batch answers with a single error object.
		var single rpcResponse
		if json.Unmarshal(body, &single) == nil && single.Error != nil {
			return nil, nil, providerError(single.Error, body)
		}
		return nil, nil, dataError(fmt.Errorf("decode batch response: %w", err))
	}
	return responses, body, nil
}

func decodeBalance(resp rpcResponse, body []byte) (*big.Int, error) {
	if resp.Error != nil {
		return nil, providerError(resp.Error, body)
	}
	var raw string
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, dataError(fmt.Errorf("decode result %d: %w", resp.ID, err))
	}
	return parseHexBig(raw)
}

func parseHexBig(value string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return nil, dataError(errors.New("empty hex value"))
	}
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, dataError(fmt.Errorf("invalid hex quantity %q", value))
	}
	return n, nil
}

func providerError(err *rpcError, body []byte) error {
	return &domain.FetchError{
		Kind:  domain.ErrorKindProvider,
		Chain: domain.ChainETH,
		Body:  httpclient.Truncate(string(body)),
		Err:   err,
	}
}

func dataError(err error) error {
	return &domain.FetchError{Kind: domain.ErrorKindData, Chain: domain.ChainETH, Err: err}
}
