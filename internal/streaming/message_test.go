package streaming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRejectsIncompleteMessages(t *testing.T) {
	_, err := Encode(Message{Chain: "BTC", Address: "1a"})
	assert.Error(t, err)
	_, err = Encode(Message{Type: MessageTypeHit, Address: "1a"})
	assert.Error(t, err)
	_, err = Encode(Message{Type: MessageTypeHit, Chain: "BTC"})
	assert.Error(t, err)
}

func TestDecodeHit(t *testing.T) {
	observed := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	payload, err := Encode(Message{Type: MessageTypeHit, Chain: "ETH", Address: "0xabc", CycleID: "c-1", ObservedAt: observed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"hit","chain":"ETH","address":"0xabc","cycle_id":"c-1","observed_at":"2024-05-01T08:30:00Z"}`, string(payload))

	msg, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", msg.Address)
	assert.True(t, observed.Equal(msg.ObservedAt))
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	_, err := Decode([]byte(`{"type":"hit","chain":"BTC"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
