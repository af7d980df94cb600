package http

// JoinRoomRequest represents the payload for /api/join-room.
type JoinRoomRequest struct {
	RoomID string `json:"roomId" binding:"required"`
}
