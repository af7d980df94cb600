package room_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"chess-session/internal/game"
	"chess-session/internal/observability"
	"chess-session/internal/room"
	"chess-session/internal/shared"
	"chess-session/internal/store"
)

func TestSweep_EvictsOnlyIdleRooms(t *testing.T) {
	f := newFixture(t, false)
	sw := room.NewSweeper(f.rooms, time.Hour, time.Minute, zaptest.NewLogger(t), f.metrics)

	idle := f.rooms.CreateRoom()
	joined := f.rooms.CreateRoom()
	played := f.rooms.CreateRoom()

	f.clock.Advance(50 * time.Minute)
	_, err := f.rooms.JoinRoom(context.Background(), joined.ID)
	require.NoError(t, err)
	require.NoError(t, f.move(t, played.ID, "e2", "e4", afterE4))

	f.clock.Advance(20 * time.Minute)
	assert.Equal(t, 1, sw.Sweep())

	_, ok := f.rooms.Get(idle.ID)
	assert.False(t, ok)
	_, ok = f.rooms.Get(joined.ID)
	assert.True(t, ok)
	_, ok = f.rooms.Get(played.ID)
	assert.True(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RoomsEvicted))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RoomsActive))
}

func TestSweeper_StartStop(t *testing.T) {
	f := newFixture(t, false)
	sw := room.NewSweeper(f.rooms, time.Hour, 5*time.Millisecond, zaptest.NewLogger(t), f.metrics)
	f.rooms.CreateRoom()
	f.clock.Advance(2 * time.Hour)

	done := make(chan error, 1)
	go func() { done <- sw.Start() }()

	assert.Eventually(t, func() bool { return f.store.Len() == 0 }, time.Second, 5*time.Millisecond)

	sw.Stop()
	sw.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

// deleteHookStore runs onDelete before the room leaves the map, which is the window
// between the sweeper marking a room and removing it.
type deleteHookStore struct {
	*store.MemoryStore
	onDelete func(id string)
}

func (s *deleteHookStore) DeleteRoom(id string) {
	if s.onDelete != nil {
		s.onDelete(id)
	}
	s.MemoryStore.DeleteRoom(id)
}

func TestSweep_JoinDuringEvictionIsRejected(t *testing.T) {
	clock := newFakeClock()
	metrics := observability.NewNopMetrics()
	hub := newRecorder()
	st := &deleteHookStore{MemoryStore: store.NewMemoryStore()}
	rooms := room.NewManager(st, gameCfg(), hub, zapNop(), metrics, room.WithClock(clock.Now))
	relay := room.NewRelay(rooms, game.NewChess(), hub, gameCfg(), zapNop(), metrics)
	sw := room.NewSweeper(rooms, time.Hour, time.Minute, zapNop(), metrics)

	r := rooms.CreateRoom()
	clock.Advance(2 * time.Hour)

	var joinErr, moveErr error
	st.onDelete = func(id string) {
		_, joinErr = rooms.JoinRoom(context.Background(), id)
		moveErr = relay.HandleMove(context.Background(), shared.MoveEvent{RoomID: id, From: "e2", To: "e4", BoardState: afterE4})
	}

	assert.Equal(t, 1, sw.Sweep())
	assert.ErrorIs(t, joinErr, room.ErrRoomNotFound)
	assert.ErrorIs(t, moveErr, room.ErrRoomNotFound)
	assert.Empty(t, hub.For(r.ID))
	assert.Empty(t, r.Snapshot().White)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MovesDropped.WithLabelValues(observability.ReasonRoomNotFound)))
}

func TestSweep_JoinBeforeEvictionKeepsRoom(t *testing.T) {
	f := newFixture(t, false)
	sw := room.NewSweeper(f.rooms, time.Hour, time.Minute, zapNop(), f.metrics)

	r := f.rooms.CreateRoom()
	f.clock.Advance(2 * time.Hour)
	sa, err := f.rooms.JoinRoom(context.Background(), r.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, sw.Sweep())
	require.NoError(t, f.move(t, sa.RoomID, "e2", "e4", afterE4))
	_, ok := f.rooms.Get(r.ID)
	assert.True(t, ok)
}
