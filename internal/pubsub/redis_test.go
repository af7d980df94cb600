package pubsub

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"chess-session/internal/config"
	"chess-session/internal/shared"
)

type delivery struct {
	roomID string
	data   []byte
}

type sink struct {
	mu  sync.Mutex
	got []delivery
}

func (s *sink) Deliver(roomID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, delivery{roomID: roomID, data: data})
}

func (s *sink) snapshot() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.got...)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func startBridge(t *testing.T, rdb *redis.Client, local Deliverer) *Bridge {
	t.Helper()
	br := NewBridge(rdb, "chess:room:", local, zaptest.NewLogger(t))
	done := make(chan error, 1)
	go func() { done <- br.Start() }()
	select {
	case <-br.Ready():
	case err := <-done:
		t.Fatalf("bridge exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not subscribe")
	}
	t.Cleanup(func() {
		br.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("bridge did not stop")
		}
	})
	return br
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	rdb, err := NewClient(context.Background(), config.PubSubConfig{RedisAddr: addr})
	require.NoError(t, err)
	require.NoError(t, rdb.Close())

	mr.Close()
	_, err = NewClient(context.Background(), config.PubSubConfig{RedisAddr: addr})
	assert.Error(t, err)
}

func TestBroadcaster_PublishesOnRoomChannel(t *testing.T) {
	mr, rdb := newRedis(t)
	b := NewRedisBroadcaster(rdb, "chess:room:", time.Second)
	assert.Equal(t, "chess:room:abc", b.Channel("abc"))

	sub := mr.NewSubscriber()
	sub.Subscribe("chess:room:abc")

	ev := shared.MoveEvent{RoomID: "abc", From: "e2", To: "e4", BoardState: "fen", WhiteTime: 600, BlackTime: 600}
	require.NoError(t, b.Broadcast(context.Background(), "abc", ev))

	select {
	case msg := <-sub.Messages():
		var got shared.MoveEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Message), &got))
		assert.Equal(t, ev, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestBroadcaster_PublishFailure(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	err := NewRedisBroadcaster(rdb, "chess:room:", time.Second).Broadcast(context.Background(), "abc", shared.MoveEvent{})
	assert.Error(t, err)
}

func TestBridge_RoundTrip(t *testing.T) {
	_, rdb := newRedis(t)
	local := &sink{}
	startBridge(t, rdb, local)

	b := NewRedisBroadcaster(rdb, "chess:room:", time.Second)
	ctx := context.Background()
	require.NoError(t, b.Broadcast(ctx, "r1", shared.MoveEvent{RoomID: "r1", From: "e2", To: "e4"}))
	require.NoError(t, b.Broadcast(ctx, "r2", shared.JoinNotice("r2")))
	require.NoError(t, b.Broadcast(ctx, "r1", shared.MoveEvent{RoomID: "r1", From: "e7", To: "e5"}))

	require.Eventually(t, func() bool { return len(local.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)

	got := local.snapshot()
	var first, third shared.MoveEvent
	require.NoError(t, json.Unmarshal(got[0].data, &first))
	require.NoError(t, json.Unmarshal(got[2].data, &third))
	assert.Equal(t, "r1", got[0].roomID)
	assert.Equal(t, "r2", got[1].roomID)
	assert.Equal(t, "r1", got[2].roomID)
	assert.Equal(t, "e2", first.From)
	assert.Equal(t, "e7", third.From)
}

func TestBridge_IgnoresOtherChannels(t *testing.T) {
	_, rdb := newRedis(t)
	local := &sink{}
	startBridge(t, rdb, local)

	require.NoError(t, rdb.Publish(context.Background(), "other:abc", "x").Err())
	require.NoError(t, rdb.Publish(context.Background(), "chess:room:abc", "y").Err())

	require.Eventually(t, func() bool { return len(local.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "abc", local.snapshot()[0].roomID)
}

func TestBroadcaster_PublishGivesUpAfterTimeout(t *testing.T) {
	// accepts connections and never answers
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	var held []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range held {
			_ = c.Close()
		}
	})

	rdb := redis.NewClient(&redis.Options{Addr: ln.Addr().String(), MaxRetries: -1, ContextTimeoutEnabled: true})
	t.Cleanup(func() { _ = rdb.Close() })
	b := NewRedisBroadcaster(rdb, "chess:room:", 100*time.Millisecond)

	began := time.Now()
	err = b.Broadcast(context.Background(), "abc", shared.MoveEvent{RoomID: "abc"})
	assert.Error(t, err)
	assert.Less(t, time.Since(began), 2*time.Second)
}
