package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestClientSend(t *testing.T) {
	client := newTestClient("c1", "doc", "A")

	require.NoError(t, client.Send(NewPong()))

	raw := <-client.send
	assert.JSONEq(t, `{"type":"pong"}`, string(raw))
}

func TestClientSendAfterClose(t *testing.T) {
	client := newTestClient("c1", "doc", "A")
	client.Close()

	assert.True(t, client.IsClosed())
	assert.ErrorIs(t, client.Send(NewPong()), ErrConnectionClosed)

	// closing twice is harmless
	assert.NotPanics(t, client.Close)
}

func TestClientSendBufferFull(t *testing.T) {
	client := &Client{ID: "c1", send: make(chan []byte, 1)}

	require.NoError(t, client.SendRaw([]byte(`{}`)))
	assert.ErrorIs(t, client.SendRaw([]byte(`{}`)), ErrConnectionClosed)

	assert.Eventually(t, client.IsClosed, time.Second, 10*time.Millisecond)
}

func TestClientSendError(t *testing.T) {
	client := newTestClient("c1", "doc", "A")

	client.SendError("bad_request", "unsupported message type")

	f := frame{}
	raw := <-client.send
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, "bad_request", f.Code)
	assert.NotEmpty(t, f.Message)
}

func TestClientMessageRateLimit(t *testing.T) {
	client := newTestClient("c1", "doc", "A")
	client.limiter = rate.NewLimiter(rate.Limit(1), 3)

	for i := 0; i < 3; i++ {
		assert.True(t, client.allowMessage(), "message %d should be allowed", i+1)
	}

	assert.False(t, client.allowMessage(), "burst exhausted")
}

func TestClientWithoutLimiter(t *testing.T) {
	client := newTestClient("c1", "doc", "A")

	for i := 0; i < 1000; i++ {
		require.True(t, client.allowMessage())
	}
}

func TestNewClientLimiterFollowsHubRate(t *testing.T) {
	unlimited := NewClient("c1", "doc", "A", "", "127.0.0.1", nil, newTestHub(t, Options{}))
	assert.Nil(t, unlimited.limiter)
	assert.Equal(t, "A", unlimited.DisplayName)

	limited := NewClient("c2", "doc", "B", "Bee", "127.0.0.1", nil, newTestHub(t, Options{MessagesPerSecond: 5}))
	require.NotNil(t, limited.limiter)
	assert.Equal(t, rate.Limit(5), limited.limiter.Limit())
	assert.Equal(t, defaultMessageBurst, limited.limiter.Burst())
}
