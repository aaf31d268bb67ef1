package mq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage(MessageTypeStatusUpdated, "job-1", map[string]any{"state": 3})

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "job-1", msg.JobID)
	assert.Equal(t, MessageTypeStatusUpdated, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestParsePayload(t *testing.T) {
	type status struct {
		State       int    `json:"state"`
		Description string `json:"description"`
	}

	msg := NewMessage(MessageTypeStatusUpdated, "job-1", map[string]any{"state": 3, "description": "ok"})
	got, err := ParsePayload[status](msg)
	require.NoError(t, err)
	assert.Equal(t, status{State: 3, Description: "ok"}, got)
}

func TestWithChannel_NoChannel(t *testing.T) {
	c := &Connection{}
	err := c.WithChannel(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoChannel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.WithChannel(ctx, nil), context.Canceled)
}

func TestNewConnection_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, err := NewConnection(ctx, DefaultURL, nil)
	assert.Nil(t, conn)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnection_CloseIdempotent(t *testing.T) {
	c := &Connection{logger: zap.NewNop(), done: make(chan struct{})}

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())

	select {
	case <-c.done:
	default:
		t.Fatal("done channel must be closed")
	}
}
