// Package server runs the process's long-lived components and stops them in order.
package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a component that blocks in Start until Stop is called.
type Service interface {
	Start() error
	Stop()
}

// FuncService adapts a pair of functions into a Service.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

func (f *FuncService) Start() error { return f.StartFn() }
func (f *FuncService) Stop()        { f.StopFn() }

type unit struct {
	name string
	svc  Service
	done chan struct{}
}

// Readier is implemented by services that need time after Start before later services
// may rely on them.
type Readier interface {
	Ready() <-chan struct{}
}

// Lifecycle starts services in registration order and stops them in reverse. Each Start runs
// in its own goroutine; when a service implements Readier, the next one is started only after
// its Ready channel closes.
type Lifecycle struct {
	logger      *zap.Logger
	units       []*unit
	stopTimeout time.Duration
}

func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger, stopTimeout: 15 * time.Second}
}

// Add registers svc under name. Must be called before Run.
func (l *Lifecycle) Add(name string, svc Service) {
	l.units = append(l.units, &unit{name: name, svc: svc, done: make(chan struct{})})
}

// Run starts every service and waits for SIGINT, SIGTERM, ctx cancellation or the first
// service failure. It returns that failure, if any, after all started services have stopped.
func (l *Lifecycle) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := make(chan error, len(l.units))
	started, runErr := l.startAll(ctx, failed)

	if started == len(l.units) && runErr == nil {
		select {
		case <-ctx.Done():
			l.logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
		case runErr = <-failed:
			l.logger.Error("service failed, shutting down", zap.Error(runErr))
		}
	}

	l.stopAll(l.units[:started])

	// collect failures reported while stopping
	for {
		select {
		case err := <-failed:
			runErr = errors.Join(runErr, err)
		default:
			return runErr
		}
	}
}

// startAll returns how many units were started. It stops early on a failure or on ctx
// while waiting for a Readier.
func (l *Lifecycle) startAll(ctx context.Context, failed chan error) (int, error) {
	for i, u := range l.units {
		go func(u *unit) {
			defer close(u.done)
			l.logger.Info("service starting", zap.String("service", u.name))
			if err := u.svc.Start(); err != nil {
				failed <- fmt.Errorf("%s: %w", u.name, err)
			}
		}(u)

		r, ok := u.svc.(Readier)
		if !ok {
			continue
		}
		select {
		case <-r.Ready():
			l.logger.Info("service ready", zap.String("service", u.name))
		case err := <-failed:
			l.logger.Error("service failed during startup", zap.Error(err))
			return i + 1, err
		case <-ctx.Done():
			l.logger.Info("shutting down during startup", zap.NamedError("cause", context.Cause(ctx)))
			return i + 1, nil
		}
	}
	return len(l.units), nil
}

func (l *Lifecycle) stopAll(units []*unit) {
	for i := len(units) - 1; i >= 0; i-- {
		u := units[i]
		began := time.Now()
		u.svc.Stop()
		select {
		case <-u.done:
			l.logger.Info("service stopped", zap.String("service", u.name), zap.Duration("elapsed", time.Since(began)))
		case <-time.After(l.stopTimeout):
			l.logger.Warn("service did not stop in time", zap.String("service", u.name))
		}
	}
}
