package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func runHub(t *testing.T) (*Hub, func()) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	return hub, func() {
		cancel()
		<-done
	}
}

func TestHub_BroadcastReachesOnlyTheAuctionGroup(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, stop := runHub(t)
	defer stop()

	watching := NewClient(hub, nil, "auction-1", uuid.New())
	other := NewClient(hub, nil, "auction-2", uuid.Nil)
	hub.RegisterClient(watching)
	hub.RegisterClient(other)
	require.Eventually(t, func() bool {
		return hub.ClientCount("auction-1") == 1 && hub.ClientCount("auction-2") == 1
	}, time.Second, time.Millisecond)

	require.True(t, hub.Broadcast("auction-1", []byte(`{"type":"x"}`)))

	select {
	case msg := <-watching.Send:
		assert.JSONEq(t, `{"type":"x"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("broadcast not delivered")
	}
	assert.Empty(t, other.Send)
}

func TestHub_UnregisterClosesSendOnce(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, stop := runHub(t)
	defer stop()

	client := NewClient(hub, nil, "auction-1", uuid.Nil)
	hub.RegisterClient(client)
	require.Eventually(t, func() bool { return hub.ClientCount("auction-1") == 1 }, time.Second, time.Millisecond)

	hub.UnregisterClient(client)
	hub.UnregisterClient(client)
	require.Eventually(t, func() bool { return hub.ClientCount("auction-1") == 0 }, time.Second, time.Millisecond)

	_, open := <-client.Send
	assert.False(t, open)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, stop := runHub(t)
	defer stop()

	slow := NewClient(hub, nil, "auction-1", uuid.Nil)
	hub.RegisterClient(slow)
	require.Eventually(t, func() bool { return hub.ClientCount("auction-1") == 1 }, time.Second, time.Millisecond)

	for i := 0; i <= SendBufferSize; i++ {
		hub.Broadcast("auction-1", []byte("{}"))
	}
	require.Eventually(t, func() bool { return hub.ClientCount("auction-1") == 0 }, time.Second, time.Millisecond)
}
