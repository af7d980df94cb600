package shared

// Seat is the role a participant holds in a room.
type Seat string

const (
	SeatWhite     Seat = "white"
	SeatBlack     Seat = "black"
	SeatSpectator Seat = "spectator"
)

// PlayerJoined is carried in MoveEvent.BoardState to announce a join instead of a position.
// Consumers must check for it before treating the field as a board state.
const PlayerJoined = "PLAYER_JOINED"

// MoveEvent is both the inbound move submission and the outbound room broadcast.
type MoveEvent struct {
	RoomID     string `json:"roomId"`
	From       string `json:"from"`
	To         string `json:"to"`
	Promotion  string `json:"promotion,omitempty"`
	BoardState string `json:"fen"`
	WhiteTime  int64  `json:"whiteTime"`
	BlackTime  int64  `json:"blackTime"`
}

// IsJoinNotice reports whether the event is a join notification rather than a move.
func (e MoveEvent) IsJoinNotice() bool {
	return e.BoardState == PlayerJoined
}

// JoinNotice builds the join notification published to a room's channel.
func JoinNotice(roomID string) MoveEvent {
	return MoveEvent{RoomID: roomID, BoardState: PlayerJoined}
}

// SeatAssignment is the reply to a create or join.
type SeatAssignment struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"playerId"`
	Seat          Seat   `json:"color"`
	BoardState    string `json:"fen"`
	WhiteTime     int64  `json:"whiteTime"`
	BlackTime     int64  `json:"blackTime"`
}

// RoomSnapshot is a read-only copy of a room's state.
type RoomSnapshot struct {
	ID         string `json:"id"`
	BoardState string `json:"fen"`
	White      string `json:"whitePlayerId,omitempty"`
	Black      string `json:"blackPlayerId,omitempty"`
	WhiteTime  int64  `json:"whiteTime"`
	BlackTime  int64  `json:"blackTime"`
	Started    bool   `json:"started"`
}
