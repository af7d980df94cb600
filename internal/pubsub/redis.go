// Package pubsub fans room events out across server instances over Redis pub/sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chess-session/internal/config"
	"chess-session/internal/shared"
)

// NewClient opens a Redis client from cfg and checks it with PING.
func NewClient(ctx context.Context, cfg config.PubSubConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		// publish deadlines come from the caller's context
		ContextTimeoutEnabled: true,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}

// RedisBroadcaster publishes each event on the room's channel instead of delivering it
// locally. Every instance, this one included, receives it back through a Bridge.
type RedisBroadcaster struct {
	rdb     *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisBroadcaster returns a broadcaster whose publishes give up after timeout.
func NewRedisBroadcaster(rdb *redis.Client, prefix string, timeout time.Duration) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, prefix: prefix, timeout: timeout}
}

// Channel returns the pub/sub channel for roomID.
func (b *RedisBroadcaster) Channel(roomID string) string {
	return b.prefix + roomID
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, roomID string, ev shared.MoveEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.rdb.Publish(ctx, b.Channel(roomID), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", roomID, err)
	}
	return nil
}

// Deliverer hands an encoded event to the local subscribers of a room.
type Deliverer interface {
	Deliver(roomID string, data []byte)
}

// Bridge pattern-subscribes to every room channel and forwards messages to a Deliverer.
type Bridge struct {
	rdb    *redis.Client
	prefix string
	local  Deliverer
	logger *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	ready     chan struct{}
	readyOnce sync.Once
}

func NewBridge(rdb *redis.Client, prefix string, local Deliverer, logger *zap.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		rdb:    rdb,
		prefix: prefix,
		local:  local,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the subscription has been confirmed by Redis.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// Start subscribes and forwards messages until Stop is called.
func (b *Bridge) Start() error {
	ps := b.rdb.PSubscribe(b.ctx, b.prefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(b.ctx); err != nil {
		if b.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("psubscribe %s*: %w", b.prefix, err)
	}
	b.readyOnce.Do(func() { close(b.ready) })
	b.logger.Info("redis bridge subscribed", zap.String("pattern", b.prefix+"*"))

	ch := ps.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			roomID := strings.TrimPrefix(msg.Channel, b.prefix)
			b.local.Deliver(roomID, []byte(msg.Payload))
		}
	}
}

func (b *Bridge) Stop() {
	b.cancel()
}
