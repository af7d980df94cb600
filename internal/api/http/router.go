package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chess-session/internal/api/ws"
	"chess-session/internal/config"
	"chess-session/internal/room"
)

func NewRouter(rm *room.Manager, hub *ws.Hub, gatherer prometheus.Gatherer, cfg config.ServerConfig, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), corsMiddleware(cfg.AllowedOrigin))

	r.GET("/", StatusHandler())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// room channel: subscribe, submit moves, receive broadcasts
	r.GET("/ws", hub.HandleWS)

	api := r.Group("/api")
	api.POST("/create-room", CreateRoomHandler(rm))
	api.POST("/join-room", JoinRoomHandler(rm))
	api.GET("/rooms/:id", GetRoomHandler(rm))

	return r
}

func corsMiddleware(allowed string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if allowed == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{allowed}
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
