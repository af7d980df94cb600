package room

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chess-session/internal/config"
	"chess-session/internal/game"
	"chess-session/internal/observability"
	"chess-session/internal/shared"
)

// Relay accepts move submissions, runs clock accounting and republishes them to the room.
type Relay struct {
	rooms    *Manager
	rules    game.Rules
	clock    Accountant
	hub      Broadcaster
	validate bool
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewRelay(rooms *Manager, rules game.Rules, hub Broadcaster, cfg config.GameConfig, logger *zap.Logger, metrics *observability.Metrics) *Relay {
	return &Relay{
		rooms:    rooms,
		rules:    rules,
		clock:    NewAccountant(cfg.DefaultBudgetSeconds),
		hub:      hub,
		validate: cfg.ValidateMoves,
		logger:   logger,
		metrics:  metrics,
	}
}

// HandleMove applies ev to its room and broadcasts the accepted event to every subscriber,
// the sender included. Nothing is replied on success. A rejected move leaves the room
// untouched and is not broadcast; the returned error is for the sender's transport only.
//
// Without validation the submitted board state is stored verbatim. With validation the
// from/to/promotion move is played on the stored state and the resulting position replaces
// the submitted one.
func (rl *Relay) HandleMove(ctx context.Context, ev shared.MoveEvent) error {
	r, ok := rl.rooms.Get(ev.RoomID)
	if !ok {
		rl.drop(ev, observability.ReasonRoomNotFound, ErrRoomNotFound)
		return fmt.Errorf("%w: %s", ErrRoomNotFound, ev.RoomID)
	}

	var pos game.Position
	if !rl.validate {
		var err error
		if pos, err = rl.rules.Parse(ev.BoardState); err != nil {
			rl.drop(ev, reasonFor(err), err)
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		rl.drop(ev, observability.ReasonRoomNotFound, ErrRoomNotFound)
		return fmt.Errorf("%w: %s", ErrRoomNotFound, ev.RoomID)
	}

	state := ev.BoardState
	if rl.validate {
		var err error
		mv := game.Move{From: ev.From, To: ev.To, Promotion: ev.Promotion}
		if pos, err = rl.rules.Apply(r.boardState, mv); err != nil {
			rl.drop(ev, reasonFor(err), err)
			return err
		}
		state = pos.String()
	}

	now := rl.rooms.now()
	r.boardState = state
	rl.clock.Charge(&r.clocks, pos.SideToMove(), now)
	r.touch(now)

	out := ev
	out.BoardState = state
	out.WhiteTime, out.BlackTime = r.clocks.White, r.clocks.Black
	rl.metrics.MovesAccepted.Inc()
	rl.logger.Debug("move accepted",
		zap.String("room", r.ID),
		zap.String("from", ev.From),
		zap.String("to", ev.To),
		zap.Stringer("next", pos.SideToMove()),
		zap.Int64("white_time", out.WhiteTime),
		zap.Int64("black_time", out.BlackTime),
	)

	// Published under the room lock so subscribers see a room's moves in acceptance order.
	if err := rl.hub.Broadcast(ctx, r.ID, out); err != nil {
		rl.drop(ev, observability.ReasonBroadcastFailed, err)
		return fmt.Errorf("broadcasting move: %w", err)
	}
	return nil
}

func (rl *Relay) drop(ev shared.MoveEvent, reason string, err error) {
	rl.metrics.MovesDropped.WithLabelValues(reason).Inc()
	rl.logger.Warn("move dropped",
		zap.String("room", ev.RoomID),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func reasonFor(err error) string {
	if errors.Is(err, game.ErrIllegalMove) {
		return observability.ReasonIllegalMove
	}
	return observability.ReasonMalformedBoard
}
