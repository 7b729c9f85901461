package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"balscan/internal/domain"
)

const (
	maxBodyBytes   = 2 << 20
	maxLoggedBytes = 512
)

func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Get issues a GET and returns the body of a 2xx response. Connection failures come back as
// transport errors and other status codes as protocol errors carrying a truncated body.
func Get(ctx context.Context, client *http.Client, chain domain.Chain, rawURL string, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.ErrorKindTransport, Chain: chain, Err: err}
	}
	return do(client, chain, req, userAgent)
}

// PostJSON sends payload as a JSON body and classifies failures like Get.
func PostJSON(ctx context.Context, client *http.Client, chain domain.Chain, rawURL string, payload []byte, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.ErrorKindTransport, Chain: chain, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return do(client, chain, req, userAgent)
}

func do(client *http.Client, chain domain.Chain, req *http.Request, userAgent string) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.ErrorKindTransport, Chain: chain, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.ErrorKindTransport, Chain: chain, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{
			Kind:   domain.ErrorKindProtocol,
			Chain:  chain,
			Status: resp.StatusCode,
			Body:   Truncate(string(body)),
		}
	}
	return body, nil
}

// Truncate shortens provider payloads before they reach logs.
func Truncate(body string) string {
	body = strings.TrimSpace(body)
	if len(body) <= maxLoggedBytes {
		return body
	}
	return body[:maxLoggedBytes] + "..."
}
