package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chess-session/internal/room"
)

// StatusMessage is returned by the liveness probe.
const StatusMessage = "Chess Game Server is running! Please open the Frontend application to play."

// @Summary Liveness probe
// @Tags Status
// @Produce plain
// @Success 200 {string} string
// @Router / [get]
func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, StatusMessage)
	}
}

// @Summary Create new room
// @Description Create a room and seat the caller as white
// @Tags Room
// @Produce json
// @Success 200 {object} shared.SeatAssignment
// @Router /api/create-room [post]
func CreateRoomHandler(rm *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, rm.OpenRoom())
	}
}

// @Summary Join a room
// @Description Take the first free seat (white, black) or watch as a spectator
// @Tags Room
// @Accept json
// @Produce json
// @Param request body JoinRoomRequest true "Room to join"
// @Success 200 {object} shared.SeatAssignment
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/join-room [post]
func JoinRoomHandler(rm *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req JoinRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomId required"})
			return
		}
		sa, err := rm.JoinRoom(c.Request.Context(), req.RoomID)
		if errors.Is(err, room.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, sa)
	}
}

// @Summary Room state
// @Description Current board state, seats and clocks of a room
// @Tags Room
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} shared.RoomSnapshot
// @Failure 404 {object} map[string]interface{}
// @Router /api/rooms/{id} [get]
func GetRoomHandler(rm *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		rx, ok := rm.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, rx.Snapshot())
	}
}
