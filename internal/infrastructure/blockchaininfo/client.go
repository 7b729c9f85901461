package blockchaininfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"balscan/internal/domain"
	"balscan/internal/infrastructure/httpclient"
)

const DefaultBaseURL = "https://blockchain.info"

// Shape selects how the multi-address response is decoded.
type Shape string

const (
	// ShapeMap decodes /balance, which keys an object per address.
	ShapeMap Shape = "map"
	// ShapeList decodes /multiaddr, which returns {"addresses": [...]}.
	ShapeList Shape = "list"
)

func ParseShape(raw string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ShapeMap:
		return ShapeMap, nil
	case ShapeList:
		return ShapeList, nil
	default:
		return "", fmt.Errorf("unknown btc response shape %q", raw)
	}
}

type Config struct {
	BaseURL    string
	Shape      Shape
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client queries blockchain.info for final balances in satoshi.
type Client struct {
	baseURL    string
	shape      Shape
	userAgent  string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid blockchain.info url: %w", err)
	}
	shape, err := ParseShape(string(cfg.Shape))
	if err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(cfg.Timeout)
	}
	return &Client{baseURL: baseURL, shape: shape, userAgent: cfg.UserAgent, httpClient: client}, nil
}

func (c *Client) Chain() domain.Chain {
	return domain.ChainBTC
}

type addressInfo struct {
	Address      *string      `json:"address"`
	FinalBalance *json.Number `json:"final_balance"`
}

type listResponse struct {
	Addresses *[]addressInfo `json:"addresses"`
}

// FetchBalances requests every address of the batch in one call and returns the final balance
// of each address in the response, zero balances included.
func (c *Client) FetchBalances(ctx context.Context, batch domain.Batch) ([]domain.BalanceRecord, error) {
	if batch.Len() == 0 {
		return nil, nil
	}
	path := "/balance"
	if c.shape == ShapeList {
		path = "/multiaddr"
	}
	query := url.Values{}
	query.Set("active", strings.Join(batch.Strings(), "|"))

	body, err := httpclient.Get(ctx, c.httpClient, domain.ChainBTC, c.baseURL+path+"?"+query.Encode(), c.userAgent)
	if err != nil {
		return nil, err
	}
	if c.shape == ShapeList {
		return decodeList(body)
	}
	return decodeMap(body)
}

func decodeMap(body []byte) ([]domain.BalanceRecord, error) {
	var payload map[string]addressInfo
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, dataError(fmt.Errorf("decode balance map: %w", err))
	}
	records := make([]domain.BalanceRecord, 0, len(payload))
	for address, info := range payload {
		if strings.TrimSpace(address) == "" {
			return nil, dataError(fmt.Errorf("empty address key"))
		}
		if info.FinalBalance == nil {
			return nil, dataError(fmt.Errorf("%s: missing final_balance", address))
		}
		records = append(records, domain.BalanceRecord{
			Chain:   domain.ChainBTC,
			Address: domain.Address(address),
			Balance: info.FinalBalance.String(),
		})
	}
	return records, nil
}

func decodeList(body []byte) ([]domain.BalanceRecord, error) {
	var payload listResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, dataError(fmt.Errorf("decode address list: %w", err))
	}
	if payload.Addresses == nil {
		return nil, dataError(fmt.Errorf("missing addresses field"))
	}
	records := make([]domain.BalanceRecord, 0, len(*payload.Addresses))
	for i, info := range *payload.Addresses {
		if info.Address == nil || strings.TrimSpace(*info.Address) == "" {
			return nil, dataError(fmt.Errorf("addresses[%d]: missing address", i))
		}
		if info.FinalBalance == nil {
			return nil, dataError(fmt.Errorf("addresses[%d]: missing final_balance for %s", i, *info.Address))
		}
		records = append(records, domain.BalanceRecord{
			Chain:   domain.ChainBTC,
			Address: domain.Address(*info.Address),
			Balance: info.FinalBalance.String(),
		})
	}
	return records, nil
}

func dataError(err error) error {
	return &domain.FetchError{Kind: domain.ErrorKindData, Chain: domain.ChainBTC, Err: err}
}
