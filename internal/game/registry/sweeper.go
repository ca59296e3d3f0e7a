package registry

import (
	"time"

	"go.uber.org/zap"

	"github.com/duelhall/duelhall/internal/game/state"
)

// Sweeper periodically abandons idle sessions. It implements the
// server.Service start/stop contract.
type Sweeper struct {
	registry  *Registry
	interval  time.Duration
	idleFor   time.Duration
	onAbandon func(sess *Session, snap state.Snapshot)
	logger    *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// NewSweeper creates a Sweeper over the given registry.
//
// Precondition: registry and logger must be non-nil; interval and
// idleFor must be > 0. onAbandon may be nil (rooms are not notified).
func NewSweeper(registry *Registry, interval, idleFor time.Duration, onAbandon func(*Session, state.Snapshot), logger *zap.Logger) *Sweeper {
	return &Sweeper{
		registry:  registry,
		interval:  interval,
		idleFor:   idleFor,
		onAbandon: onAbandon,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (s *Sweeper) Start() error {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return nil
		}
	}
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) sweep() {
	start := time.Now()
	abandoned := s.registry.SweepIdle(s.idleFor)
	if len(abandoned) == 0 {
		return
	}
	s.logger.Info("sweep complete",
		zap.Int("abandoned", len(abandoned)),
		zap.Duration("elapsed", time.Since(start)),
	)
	if s.onAbandon == nil {
		return
	}
	for _, sess := range abandoned {
		s.onAbandon(sess, sess.Snapshot())
	}
}
