package streaming

import (
	"encoding/json"
	"errors"
	"time"
)

type MessageType string

const (
	MessageTypeHit MessageType = "hit"
)

// Message is the JSON payload published for each newly found address. Balances are not
// carried.
type Message struct {
	Type       MessageType `json:"type"`
	Chain      string      `json:"chain"`
	Address    string      `json:"address"`
	CycleID    string      `json:"cycle_id"`
	TraceID    string      `json:"trace_id,omitempty"`
	ObservedAt time.Time   `json:"observed_at"`
}

func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, errors.New("message type is required")
	}
	if msg.Chain == "" {
		return nil, errors.New("chain is required")
	}
	if msg.Address == "" {
		return nil, errors.New("address is required")
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		return Message{}, errors.New("message type is missing")
	}
	if msg.Chain == "" {
		return Message{}, errors.New("chain is missing")
	}
	if msg.Address == "" {
		return Message{}, errors.New("address is missing")
	}
	return msg, nil
}
