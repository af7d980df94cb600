package game

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// Chess implements Rules for standard chess positions in FEN.
type Chess struct{}

func NewChess() Chess {
	return Chess{}
}

type chessPosition struct {
	pos *chess.Position
}

func (p chessPosition) SideToMove() Side {
	if p.pos.Turn() == chess.Black {
		return SideBlack
	}
	return SideWhite
}

func (p chessPosition) String() string {
	return p.pos.String()
}

func (Chess) Parse(state string) (Position, error) {
	g, err := load(state)
	if err != nil {
		return nil, err
	}
	return chessPosition{pos: g.Position()}, nil
}

func (Chess) Apply(state string, mv Move) (Position, error) {
	g, err := load(state)
	if err != nil {
		return nil, err
	}
	uci, err := mv.uci()
	if err != nil {
		return nil, err
	}
	if err := g.MoveStr(uci); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIllegalMove, uci, err)
	}
	return chessPosition{pos: g.Position()}, nil
}

func load(state string) (*chess.Game, error) {
	fen, err := chess.FEN(strings.TrimSpace(state))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBoardState, err)
	}
	return chess.NewGame(fen, chess.UseNotation(chess.UCINotation{})), nil
}

// uci renders the move in UCI long algebraic form, e.g. "e7e8q".
func (m Move) uci() (string, error) {
	from := strings.ToLower(strings.TrimSpace(m.From))
	to := strings.ToLower(strings.TrimSpace(m.To))
	if !isSquare(from) || !isSquare(to) {
		return "", fmt.Errorf("%w: bad squares %q -> %q", ErrIllegalMove, m.From, m.To)
	}
	promo := strings.ToLower(strings.TrimSpace(m.Promotion))
	if promo != "" {
		promo = promo[:1]
		if !strings.Contains("qrbn", promo) {
			return "", fmt.Errorf("%w: bad promotion %q", ErrIllegalMove, m.Promotion)
		}
	}
	return from + to + promo, nil
}

func isSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}
