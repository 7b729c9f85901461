package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"balscan/internal/streaming"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	messages  []kafka.Message
	committed int
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *scriptedReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed += len(msgs)
	return nil
}

func TestConsumePrintsHitsAndCommitsAll(t *testing.T) {
	payload, err := streaming.Encode(streaming.Message{Type: streaming.MessageTypeHit, Chain: "BTC", Address: "1abc", CycleID: "c"})
	require.NoError(t, err)
	reader := &scriptedReader{messages: []kafka.Message{
		{Value: payload},
		{Value: []byte("garbage")},
	}}

	var out bytes.Buffer
	consume(context.Background(), reader, &out)
	assert.Equal(t, "BTC 1abc\n", out.String())
	assert.Equal(t, 2, reader.committed)
}
