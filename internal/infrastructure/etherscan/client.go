package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"balscan/internal/domain"
	"balscan/internal/infrastructure/httpclient"
)

const (
	DefaultBaseURL = "https://api.etherscan.io/api"
	statusOK       = "1"
)

type Config struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client queries the Etherscan account module. Balances are returned in wei.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid etherscan url: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("etherscan api key is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(cfg.Timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		userAgent:  cfg.UserAgent,
		httpClient: client,
		logger:     logger.With("component", "etherscan"),
	}, nil
}

func (c *Client) Chain() domain.Chain {
	return domain.ChainETH
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (r apiResponse) succeeded() bool {
	return r.Status == statusOK
}

type accountBalance struct {
	Account *string `json:"account"`
	Balance *string `json:"balance"`
}

// FetchBalances issues one balancemulti request for the whole batch and returns every account
// the provider reported, zero balances included.
func (c *Client) FetchBalances(ctx context.Context, batch domain.Batch) ([]domain.BalanceRecord, error) {
	if batch.Len() == 0 {
		return nil, nil
	}
	resp, err := c.get(ctx, "balancemulti", strings.Join(batch.Strings(), ","))
	if err != nil {
		return nil, err
	}

	var entries []accountBalance
	if err := json.Unmarshal(resp.Result, &entries); err != nil {
		return nil, dataError(fmt.Errorf("decode balancemulti result: %w", err))
	}
	records := make([]domain.BalanceRecord, 0, len(entries))
	for i, entry := range entries {
		if entry.Account == nil || strings.TrimSpace(*entry.Account) == "" {
			return nil, dataError(fmt.Errorf("result[%d]: missing account", i))
		}
		if entry.Balance == nil {
			return nil, dataError(fmt.Errorf("result[%d]: missing balance for %s", i, *entry.Account))
		}
		records = append(records, domain.BalanceRecord{
			Chain:   domain.ChainETH,
			Address: domain.Address(*entry.Account),
			Balance: strings.TrimSpace(*entry.Balance),
		})
	}
	if len(records) != batch.Len() {
		c.warnUnreported(batch, records)
	}
	return records, nil
}

// warnUnreported logs requested accounts the provider left out of a balancemulti result.
// Etherscan echoes accounts in mixed case, so matching ignores case.
func (c *Client) warnUnreported(batch domain.Batch, records []domain.BalanceRecord) {
	reported := make(map[string]struct{}, len(records))
	for _, rec := range records {
		reported[strings.ToLower(string(rec.Address))] = struct{}{}
	}
	var missing []string
	for _, addr := range batch.Strings() {
		if _, ok := reported[strings.ToLower(addr)]; !ok {
			missing = append(missing, addr)
		}
	}
	c.logger.Warn("balancemulti result does not cover batch",
		"kind", string(domain.ErrorKindData),
		"seq", batch.Seq,
		"requested", batch.Len(),
		"reported", len(records),
		"missing", missing,
	)
}

// Balance returns the wei balance of a single address.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("address is required")
	}
	resp, err := c.get(ctx, "balance", address)
	if err != nil {
		return nil, err
	}
	var raw string
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, dataError(fmt.Errorf("decode balance result: %w", err))
	}
	wei, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || wei.Sign() < 0 {
		return nil, dataError(fmt.Errorf("invalid balance %q", raw))
	}
	return wei, nil
}

func (c *Client) get(ctx context.Context, action, address string) (apiResponse, error) {
	query := url.Values{}
	query.Set("module", "account")
	query.Set("action", action)
	query.Set("address", address)
	query.Set("tag", "latest")
	query.Set("apikey", c.apiKey)

	body, err := httpclient.Get(ctx, c.httpClient, domain.ChainETH, c.baseURL+"?"+query.Encode(), c.userAgent)
	if err != nil {
		return apiResponse{}, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return apiResponse{}, dataError(fmt.Errorf("decode response: %w", err))
	}
	if !resp.succeeded() {
		return apiResponse{}, &domain.FetchError{
			Kind:  domain.ErrorKindProvider,
			Chain: domain.ChainETH,
			Body:  httpclient.Truncate(string(body)),
			Err:   fmt.Errorf("status %q: %s", resp.Status, resp.Message),
		}
	}
	return resp, nil
}

func dataError(err error) error {
	return &domain.FetchError{Kind: domain.ErrorKindData, Chain: domain.ChainETH, Err: err}
}
