package room

import (
	"sync"
	"time"

	"chess-session/internal/shared"
)

// Room is one game session. Its mutable fields are guarded by mu; callers outside the
// package read them through Snapshot.
type Room struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	boardState string
	white      string
	black      string
	clocks     Clocks
	lastActive time.Time
	// evicted is set once by the sweeper; an evicted room accepts no joins or moves.
	evicted bool
}

func newRoom(id, boardState string, now time.Time) *Room {
	return &Room{
		ID:         id,
		CreatedAt:  now,
		boardState: boardState,
		lastActive: now,
	}
}

// Snapshot copies the room's state under its lock.
func (r *Room) Snapshot() shared.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return shared.RoomSnapshot{
		ID:         r.ID,
		BoardState: r.boardState,
		White:      r.white,
		Black:      r.black,
		WhiteTime:  r.clocks.White,
		BlackTime:  r.clocks.Black,
		Started:    r.clocks.Started,
	}
}

// LastMove returns the instant of the last accepted move, zero if none.
func (r *Room) LastMove() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clocks.LastMove
}

// evictIfIdle marks the room evicted if it has been idle since cutoff. The check and the
// mark happen under one lock, so a join or move either lands first and keeps the room
// alive or lands after and sees it gone.
func (r *Room) evictIfIdle(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted || !r.lastActive.Before(cutoff) {
		return false
	}
	r.evicted = true
	return true
}

func (r *Room) touch(now time.Time) {
	if now.After(r.lastActive) {
		r.lastActive = now
	}
}

// Store holds rooms by id. Implementations must be safe for concurrent use.
type Store interface {
	GetRoom(id string) (*Room, bool)
	// SaveRoom inserts r and reports false if the id is already taken.
	SaveRoom(r *Room) bool
	DeleteRoom(id string)
	Rooms() []*Room
	Len() int
}
