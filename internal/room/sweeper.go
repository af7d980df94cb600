package room

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"chess-session/internal/observability"
)

// Sweeper evicts rooms that have been idle for longer than a TTL.
type Sweeper struct {
	rooms    *Manager
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics

	stopOnce sync.Once
	stop     chan struct{}
}

func NewSweeper(rooms *Manager, ttl, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Sweeper {
	return &Sweeper{
		rooms:    rooms,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		stop:     make(chan struct{}),
	}
}

// Sweep removes every room with no create, join or move activity within the TTL and
// returns how many were removed.
func (s *Sweeper) Sweep() int {
	cutoff := s.rooms.now().Add(-s.ttl)
	evicted := 0
	for _, r := range s.rooms.Rooms() {
		if !r.evictIfIdle(cutoff) {
			continue
		}
		s.rooms.Remove(r.ID)
		evicted++
		s.metrics.RoomsEvicted.Inc()
		s.logger.Info("room evicted", zap.String("room", r.ID), zap.Duration("ttl", s.ttl))
	}
	return evicted
}

// Start runs Sweep every interval until Stop is called.
func (s *Sweeper) Start() error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Stop ends Start. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
