package game

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reaper runs the orphaned-game scan on a fixed interval, independent of
// connection activity. It implements the server.Service start/stop shape.
type Reaper struct {
	coordinator *Coordinator
	interval    time.Duration
	logger      *zap.Logger

	quit    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewReaper creates a Reaper over the given coordinator.
//
// Precondition: coordinator and logger must be non-nil; interval must be
// positive.
func NewReaper(coordinator *Coordinator, interval time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{
		coordinator: coordinator,
		interval:    interval,
		logger:      logger,
		quit:        make(chan struct{}),
	}
}

// Start runs the reap loop. It blocks until Stop is called.
//
// Precondition: The reaper must not already be running.
func (r *Reaper) Start() error {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	r.logger.Info("orphan reaper started",
		zap.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := r.coordinator.ReapOrphans(); removed > 0 {
				r.logger.Debug("reap cycle complete",
					zap.Int("removed", removed),
				)
			}
		case <-r.quit:
			return nil
		}
	}
}

// Stop terminates the reap loop.
//
// Postcondition: Start returns. Stop is safe to call once.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.running = false
	close(r.quit)
}
