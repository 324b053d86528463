package artifact

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/log"
)

// Sweeper periodically expires artifacts whose expires_at has passed
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger
}

// NewSweeper creates a sweeper over the manager. A zero interval
// defaults to one minute.
func NewSweeper(manager *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		manager:  manager,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   log.WithComponent("sweeper"),
	}
}

// Start begins the sweep loop
func (s *Sweeper) Start() {
	go s.run()
}

// Stop stops the sweeper. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// run is the main sweep loop
func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.sweep(); err != nil {
				// Log error but continue
				s.logger.Error().Err(err).Msg("Sweep failed")
			}
		case <-s.stopCh:
			return
		}
	}
}

// sweep performs one expiry cycle
func (s *Sweeper) sweep() error {
	swept, err := s.manager.SweepExpired()
	if err != nil {
		return err
	}
	if len(swept) > 0 {
		s.logger.Info().Strs("artifact_ids", swept).Msg("Artifacts expired")
	}
	return nil
}
