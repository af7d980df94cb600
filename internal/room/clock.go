package room

import (
	"time"

	"chess-session/internal/game"
)

// Clocks is a room's per-side remaining time in whole seconds.
type Clocks struct {
	White    int64
	Black    int64
	Started  bool
	LastMove time.Time
}

// Accountant charges elapsed wall-clock time to the side that just moved.
type Accountant struct {
	budget int64
}

func NewAccountant(budgetSeconds int64) Accountant {
	return Accountant{budget: budgetSeconds}
}

// Charge records a move accepted at now whose resulting position has next to move.
// The first move starts both clocks at the full budget without a deduction. Later moves
// deduct the whole seconds since the previous move from next's opponent, floored at zero.
//
// The mover is inferred from next, so a duplicated or reordered update charges the wrong side.
func (a Accountant) Charge(c *Clocks, next game.Side, now time.Time) {
	if !c.Started {
		c.White, c.Black = a.budget, a.budget
		c.Started = true
		c.LastMove = now
		return
	}

	elapsed := int64(now.Sub(c.LastMove) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	switch next.Opponent() {
	case game.SideWhite:
		c.White = max(0, c.White-elapsed)
	case game.SideBlack:
		c.Black = max(0, c.Black-elapsed)
	}
	if now.After(c.LastMove) {
		c.LastMove = now
	}
}
