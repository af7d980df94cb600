package game

import "errors"

// StartingPosition is the board state every new room begins with.
const StartingPosition = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrMalformedBoardState = errors.New("malformed board state")
	ErrIllegalMove         = errors.New("illegal move")
)

// Side identifies one of the two playing sides.
type Side int

const (
	SideWhite Side = iota
	SideBlack
)

func (s Side) String() string {
	if s == SideBlack {
		return "black"
	}
	return "white"
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideBlack {
		return SideWhite
	}
	return SideBlack
}

// Position is a parsed board state.
type Position interface {
	SideToMove() Side
	String() string
}

// Move is a from/to square pair in algebraic coordinates, e.g. "e2" -> "e4".
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// Rules parses board states and, optionally, applies moves to them.
type Rules interface {
	// Parse fails with ErrMalformedBoardState when state cannot be read.
	Parse(state string) (Position, error)
	// Apply plays mv on state and returns the resulting position. It fails with
	// ErrMalformedBoardState for an unreadable state and ErrIllegalMove otherwise.
	Apply(state string, mv Move) (Position, error)
}
