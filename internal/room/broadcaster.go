package room

import (
	"context"

	"chess-session/internal/shared"
)

// Broadcaster publishes an event to every current subscriber of a room's channel.
// Delivery is best-effort; there is no persistence or replay.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID string, ev shared.MoveEvent) error
}
