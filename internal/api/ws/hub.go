package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chess-session/internal/config"
	"chess-session/internal/observability"
	"chess-session/internal/shared"
)

// MoveHandler receives move submissions read from subscriber connections.
type MoveHandler interface {
	HandleMove(ctx context.Context, ev shared.MoveEvent) error
}

// ErrorFrame is sent only to the connection whose submission failed.
type ErrorFrame struct {
	Error  string `json:"error"`
	RoomID string `json:"roomId,omitempty"`
}

type client struct {
	id     string
	roomID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub is the per-room publish/subscribe channel over websockets.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*client]struct{}
	handler MoveHandler

	upgrader websocket.Upgrader
	cfg      config.WebsocketConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewHub returns a hub accepting upgrades from allowedOrigin, or from anywhere for "*".
func NewHub(cfg config.WebsocketConfig, allowedOrigin string, logger *zap.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigin)},
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// SetMoveHandler wires the relay in after construction, since the relay publishes through the hub.
func (h *Hub) SetMoveHandler(mh MoveHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = mh
}

// originChecker admits any origin for "*", otherwise only an exact match. Requests
// without an Origin header come from non-browser clients and are admitted.
func originChecker(allowed string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return allowed == "*" || origin == "" || origin == allowed
	}
}

// HandleWS subscribes the connection to ?roomId= and feeds its inbound frames to the move handler.
func (h *Hub) HandleWS(c *gin.Context) {
	roomID := c.Query("roomId")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing roomId"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:     uuid.NewString(),
		roomID: roomID,
		conn:   conn,
		send:   make(chan []byte, h.cfg.SendBuffer),
	}
	h.register(cl)
	defer h.unregister(cl)

	go h.writePump(cl)
	h.readPump(c.Request.Context(), cl)
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	if _, ok := h.rooms[cl.roomID]; !ok {
		h.rooms[cl.roomID] = make(map[*client]struct{})
	}
	h.rooms[cl.roomID][cl] = struct{}{}
	h.mu.Unlock()

	h.metrics.Subscribers.Inc()
	h.logger.Debug("subscriber joined", zap.String("room", cl.roomID), zap.String("conn", cl.id))
}

// unregister removes cl and closes its send queue; the write pump then closes the socket.
func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	subs, ok := h.rooms[cl.roomID]
	if _, member := subs[cl]; !ok || !member {
		h.mu.Unlock()
		return
	}
	delete(subs, cl)
	if len(subs) == 0 {
		delete(h.rooms, cl.roomID)
	}
	close(cl.send)
	h.mu.Unlock()

	h.metrics.Subscribers.Dec()
	h.logger.Debug("subscriber left", zap.String("room", cl.roomID), zap.String("conn", cl.id))
}

func (h *Hub) readPump(ctx context.Context, cl *client) {
	cl.conn.SetReadLimit(h.cfg.ReadLimit)
	_ = cl.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("conn", cl.id), zap.Error(err))
			}
			return
		}

		var ev shared.MoveEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			h.reply(cl, ErrorFrame{Error: "invalid move payload", RoomID: cl.roomID})
			continue
		}
		if ev.RoomID == "" {
			ev.RoomID = cl.roomID
		}

		h.mu.RLock()
		mh := h.handler
		h.mu.RUnlock()
		if mh == nil {
			h.reply(cl, ErrorFrame{Error: "moves are not accepted", RoomID: ev.RoomID})
			continue
		}
		if err := mh.HandleMove(ctx, ev); err != nil {
			h.reply(cl, ErrorFrame{Error: err.Error(), RoomID: ev.RoomID})
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warn("websocket write failed", zap.String("conn", cl.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast implements room.Broadcaster for a single-process deployment.
func (h *Hub) Broadcast(_ context.Context, roomID string, ev shared.MoveEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.Deliver(roomID, data)
	return nil
}

// Deliver queues an encoded event for every subscriber of roomID. A subscriber whose queue
// is full is disconnected rather than allowed to stall the room.
func (h *Hub) Deliver(roomID string, data []byte) {
	var slow []*client

	h.mu.RLock()
	for cl := range h.rooms[roomID] {
		select {
		case cl.send <- data:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		h.logger.Warn("dropping slow subscriber", zap.String("room", roomID), zap.String("conn", cl.id))
		h.unregister(cl)
	}
}

func (h *Hub) reply(cl *client, frame ErrorFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.rooms[cl.roomID][cl]; !ok {
		return
	}
	select {
	case cl.send <- data:
	default:
	}
}

// Subscribers returns how many connections are subscribed to roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*client
	for _, subs := range h.rooms {
		for cl := range subs {
			all = append(all, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range all {
		h.unregister(cl)
	}
}
