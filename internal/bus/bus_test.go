package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAfterPublishDoesNotSeeIt(t *testing.T) {
	b := New()
	b.Publish("before")
	r := b.Subscribe()
	b.Publish("after")

	res := r.Recv()
	require.False(t, res.Closed)
	assert.Equal(t, "after", res.Msg)
}

func TestPublishOrderPreservedPerSubscriber(t *testing.T) {
	b := New()
	r := b.Subscribe()
	for i := 0; i < 10; i++ {
		b.Publish(i)
	}
	for i := 0; i < 10; i++ {
		res := r.Recv()
		require.False(t, res.Closed)
		assert.Equal(t, i, res.Msg)
	}
}

func TestLagSignalAfterOverflow(t *testing.T) {
	b := New()
	r := b.Subscribe()
	for i := 0; i < inboxSize; i++ {
		b.Publish(i)
	}
	b.Publish(inboxSize) // 101st message: inbox is full, this one is dropped

	res := r.Recv()
	require.True(t, res.Lag > 0)
	assert.Equal(t, uint64(1), res.Lag)
}

func TestFastSubscriberUnaffectedBySlowOne(t *testing.T) {
	b := New()
	slow := b.Subscribe()
	fast := b.Subscribe()

	const n = 200
	for i := 0; i < n; i++ {
		b.Publish(i)
	}

	for i := 0; i < n; i++ {
		res := fast.Recv()
		require.False(t, res.Closed)
		assert.Equal(t, i, res.Msg)
	}

	sawLag := false
	for {
		res := slow.Recv()
		if res.Lag > 0 {
			sawLag = true
			break
		}
		if res.Closed {
			break
		}
	}
	assert.True(t, sawLag, "slow subscriber should observe at least one Lagged signal")
}

func TestCloseSignalsClosedExactlyOnce(t *testing.T) {
	b := New()
	r := b.Subscribe()
	b.Close()

	res := r.Recv()
	assert.True(t, res.Closed)

	res = r.Recv()
	assert.True(t, res.Closed)
}

func TestSubscribeAfterCloseIsImmediatelyClosed(t *testing.T) {
	b := New()
	b.Close()
	r := b.Subscribe()

	res := r.Recv()
	assert.True(t, res.Closed)
}

func TestPublishWithNoSubscribersDoesNotPanic(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() { b.Publish("nobody home") })
}

func TestUnsubscribeRemovesReceiver(t *testing.T) {
	b := New()
	r := b.Subscribe()
	b.Unsubscribe(r)
	b.Publish("after unsubscribe")

	select {
	case <-r.ch:
		t.Fatal("unsubscribed receiver should not receive further publishes")
	default:
	}
}
