package room_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"chess-session/internal/config"
	"chess-session/internal/game"
	"chess-session/internal/observability"
	"chess-session/internal/room"
	"chess-session/internal/shared"
	"chess-session/internal/store"
)

const (
	// black to move: white just played e4
	afterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	// white to move: black just played e5
	afterE5 = "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2"
)

type recorder struct {
	mu     sync.Mutex
	events map[string][]shared.MoveEvent
	err    error
}

func newRecorder() *recorder {
	return &recorder{events: map[string][]shared.MoveEvent{}}
}

func (r *recorder) Broadcast(_ context.Context, roomID string, ev shared.MoveEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events[roomID] = append(r.events[roomID], ev)
	return nil
}

func (r *recorder) For(roomID string) []shared.MoveEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shared.MoveEvent(nil), r.events[roomID]...)
}

func (r *recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evs := range r.events {
		n += len(evs)
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store   *store.MemoryStore
	rooms   *room.Manager
	relay   *room.Relay
	hub     *recorder
	clock   *fakeClock
	metrics *observability.Metrics
}

func newFixture(t *testing.T, validate bool) *fixture {
	t.Helper()
	f := &fixture{
		store:   store.NewMemoryStore(),
		hub:     newRecorder(),
		clock:   newFakeClock(),
		metrics: observability.NewNopMetrics(),
	}
	cfg := config.GameConfig{DefaultBudgetSeconds: 600, ValidateMoves: validate}
	logger := zaptest.NewLogger(t)
	f.rooms = room.NewManager(f.store, cfg, f.hub, logger, f.metrics, room.WithClock(f.clock.Now))
	f.relay = room.NewRelay(f.rooms, game.NewChess(), f.hub, cfg, logger, f.metrics)
	return f
}

func (f *fixture) move(t *testing.T, roomID, from, to, fen string) error {
	t.Helper()
	return f.relay.HandleMove(context.Background(), shared.MoveEvent{
		RoomID:     roomID,
		From:       from,
		To:         to,
		BoardState: fen,
	})
}

func gameCfg() config.GameConfig {
	return config.GameConfig{DefaultBudgetSeconds: 600}
}

func zapNop() *zap.Logger {
	return zap.NewNop()
}
