package metrics

import (
	"sync"
	"time"
)

// ArtifactSource reports manifest record counts by status
type ArtifactSource interface {
	CountsByStatus() map[string]int
}

// LockSource reports the number of currently claimed locks
type LockSource interface {
	ActiveClaims() int
}

// DebounceSource reports buffered message counts
type DebounceSource interface {
	PendingCount() int
}

// Collector periodically samples gauge metrics from live components.
// Nil sources are skipped so partial deployments (watch-only, courier-
// only) can reuse it.
type Collector struct {
	artifacts ArtifactSource
	locks     LockSource
	debounce  DebounceSource
	interval  time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(artifacts ArtifactSource, locks LockSource, debounce DebounceSource) *Collector {
	return &Collector{
		artifacts: artifacts,
		locks:     locks,
		debounce:  debounce,
		interval:  15 * time.Second,
		stopCh:    make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Collector) collect() {
	if c.artifacts != nil {
		for status, count := range c.artifacts.CountsByStatus() {
			ArtifactsTotal.WithLabelValues(status).Set(float64(count))
		}
	}
	if c.locks != nil {
		LocksActive.Set(float64(c.locks.ActiveClaims()))
	}
	if c.debounce != nil {
		DebouncePending.Set(float64(c.debounce.PendingCount()))
	}
}
