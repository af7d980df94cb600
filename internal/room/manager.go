package room

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chess-session/internal/config"
	"chess-session/internal/game"
	"chess-session/internal/observability"
	"chess-session/internal/shared"
)

var ErrRoomNotFound = errors.New("room not found")

// Manager is the room registry and seat assigner.
type Manager struct {
	store   Store
	hub     Broadcaster
	budget  int64
	now     func() time.Time
	newID   func() string
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator replaces the uuid room and participant id source.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

func NewManager(s Store, cfg config.GameConfig, hub Broadcaster, logger *zap.Logger, metrics *observability.Metrics, opts ...Option) *Manager {
	m := &Manager{
		store:   s,
		hub:     hub,
		budget:  cfg.DefaultBudgetSeconds,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRoom registers a room at the starting position with unset seats and clocks.
func (m *Manager) CreateRoom() *Room {
	for {
		r := newRoom(m.newID(), game.StartingPosition, m.now())
		if m.store.SaveRoom(r) {
			m.metrics.RoomsCreated.Inc()
			m.metrics.RoomsActive.Set(float64(m.store.Len()))
			m.logger.Info("room created", zap.String("room", r.ID))
			return r
		}
	}
}

func (m *Manager) Get(id string) (*Room, bool) {
	return m.store.GetRoom(id)
}

// OpenRoom creates a room and seats its creator. No join notice is published since
// nobody can be subscribed yet.
func (m *Manager) OpenRoom() shared.SeatAssignment {
	for {
		// a room swept between creation and seating is replaced
		if sa, err := m.assignSeat(m.CreateRoom()); err == nil {
			return sa
		}
	}
}

// JoinRoom seats a new participant in room id and announces the join on the room channel.
func (m *Manager) JoinRoom(ctx context.Context, id string) (shared.SeatAssignment, error) {
	r, ok := m.store.GetRoom(id)
	if !ok {
		return shared.SeatAssignment{}, ErrRoomNotFound
	}
	sa, err := m.assignSeat(r)
	if err != nil {
		return shared.SeatAssignment{}, err
	}

	if err := m.hub.Broadcast(ctx, id, shared.JoinNotice(id)); err != nil {
		m.logger.Warn("join notice not delivered", zap.String("room", id), zap.Error(err))
	}
	return sa, nil
}

// Remove drops a room from the registry.
func (m *Manager) Remove(id string) {
	m.store.DeleteRoom(id)
	m.metrics.RoomsActive.Set(float64(m.store.Len()))
}

// Rooms lists every registered room.
func (m *Manager) Rooms() []*Room {
	return m.store.Rooms()
}

// assignSeat gives the first free playing seat, white before black, else spectator.
// The whole decision runs under the room's lock so concurrent joins cannot share a seat.
func (m *Manager) assignSeat(r *Room) (shared.SeatAssignment, error) {
	pid := m.newID()

	r.mu.Lock()
	if r.evicted {
		r.mu.Unlock()
		return shared.SeatAssignment{}, ErrRoomNotFound
	}
	seat := shared.SeatSpectator
	switch {
	case r.white == "":
		r.white = pid
		seat = shared.SeatWhite
	case r.black == "":
		r.black = pid
		seat = shared.SeatBlack
	}
	r.touch(m.now())

	whiteTime, blackTime := r.clocks.White, r.clocks.Black
	if !r.clocks.Started {
		whiteTime, blackTime = m.budget, m.budget
	}
	sa := shared.SeatAssignment{
		RoomID:        r.ID,
		ParticipantID: pid,
		Seat:          seat,
		BoardState:    r.boardState,
		WhiteTime:     whiteTime,
		BlackTime:     blackTime,
	}
	r.mu.Unlock()

	m.metrics.SeatsAssigned.WithLabelValues(string(seat)).Inc()
	m.logger.Debug("seat assigned",
		zap.String("room", r.ID),
		zap.String("participant", pid),
		zap.String("seat", string(seat)),
	)
	return sa, nil
}
