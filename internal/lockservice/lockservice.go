// Package lockservice implements the tiny cluster-wide topology lock
// (spec §5/§6.3): a single flag with condition-variable semantics,
// serialising concurrent join/depart across the ring.
package lockservice

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

// Service is the single global mutual-exclusion flag. lock-acquire
// blocks until the flag is free, then claims it; lock-release frees it
// and wakes one waiter.
type Service struct {
	mu   sync.Mutex
	cond *sync.Cond
	held bool
	log  *slog.Logger
}

func New(log *slog.Logger) *Service {
	s := &Service{log: log}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Register binds /lock-acquire and /lock-release onto e.
func (s *Service) Register(e *echo.Echo) {
	e.POST("/lock-acquire", s.acquire)
	e.POST("/lock-release", s.release)
}

func (s *Service) acquire(c echo.Context) error {
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for s.held {
			s.cond.Wait()
		}
		s.held = true
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		s.log.Debug("lock-acquire: granted")
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	case <-c.Request().Context().Done():
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "request cancelled while waiting for lock"})
	}
}

func (s *Service) release(c echo.Context) error {
	s.mu.Lock()
	s.held = false
	s.cond.Signal()
	s.mu.Unlock()

	s.log.Debug("lock-release: released")
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Acquire and Release below let an in-process caller (e.g. tests) use
// the same primitive without going over HTTP.

func (s *Service) Acquire(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for s.held {
			s.cond.Wait()
		}
		s.held = true
		s.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) Release(ctx context.Context) error {
	s.mu.Lock()
	s.held = false
	s.cond.Signal()
	s.mu.Unlock()
	return nil
}
