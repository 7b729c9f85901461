package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balscan/internal/domain"
)

func TestGet_ReturnsBodyOnOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "balscan-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := Get(context.Background(), New(time.Second), domain.ChainBTC, srv.URL, "balscan-test")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestGet_NonOKIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	_, err := Get(context.Background(), New(time.Second), domain.ChainETH, srv.URL, "")
	require.Error(t, err)

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, domain.ErrorKindProtocol, fetchErr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, fetchErr.Status)
	assert.Equal(t, "slow down", fetchErr.Body)
}

func TestGet_ConnectionFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := Get(context.Background(), New(time.Second), domain.ChainETH, url, "")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindTransport, domain.KindOf(err))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("  short \n"))
	long := strings.Repeat("x", 600)
	assert.Len(t, Truncate(long), maxLoggedBytes+3)
}

func TestPostJSON_SendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		payload, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(payload))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	body, err := PostJSON(context.Background(), New(time.Second), domain.ChainETH, srv.URL, []byte(`{"a":1}`), "")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
}
