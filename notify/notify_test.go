package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu       sync.Mutex
	channels []string
	events   []BlockIndexed
	fail     bool
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	var ev BlockIndexed
	if err := json.Unmarshal(message.([]byte), &ev); err != nil {
		cmd.SetErr(err)
		return cmd
	}
	f.channels = append(f.channels, channel)
	f.events = append(f.events, ev)
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestNotifierPublishesInOrder(t *testing.T) {
	client := &fakeRedis{}
	n := NewNotifier(logging.NewLoggerTag("notify"), client)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	at := time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)
	for h := int64(1); h <= 5; h++ {
		n.Enqueue(&BlockIndexed{ChainID: "columbus-5", Height: h, Timestamp: at, Txs: int(h)})
	}
	require.Eventually(t, func() bool { return client.count() == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "collector:columbus-5:block.indexed", client.channels[0])
	for i, ev := range client.events {
		assert.Equal(t, int64(i+1), ev.Height)
	}
	assert.True(t, at.Equal(client.events[0].Timestamp))
}

func TestNotifierSurvivesPublishErrors(t *testing.T) {
	client := &fakeRedis{fail: true}
	n := NewNotifier(logging.NewLoggerTag("notify"), client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Enqueue(&BlockIndexed{ChainID: "c", Height: 1})
	time.Sleep(20 * time.Millisecond)
	client.mu.Lock()
	client.fail = false
	client.mu.Unlock()
	n.Enqueue(&BlockIndexed{ChainID: "c", Height: 2})
	require.Eventually(t, func() bool { return client.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), client.events[0].Height)
}
