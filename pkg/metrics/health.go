package metrics

import (
	"sync"
	"time"
)

// HealthStatus is the aggregate health report served by the Courier
// /health endpoint
type HealthStatus struct {
	Status    string            `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time         `json:"timestamp"`
	Adapters  map[string]string `json:"adapters,omitempty"`
	Message   string            `json:"message,omitempty"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Metrics   map[string]any    `json:"metrics,omitempty"`
	StartTime time.Time         `json:"-"`
}

var (
	healthChecker = &HealthChecker{
		adapters:  make(map[string]AdapterHealth),
		startTime: time.Now(),
	}
)

// AdapterHealth tracks the health of a single adapter or component
type AdapterHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

// HealthChecker manages health state for registered adapters
type HealthChecker struct {
	mu        sync.RWMutex
	adapters  map[string]AdapterHealth
	startTime time.Time
	version   string
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// RegisterAdapter registers an adapter for health reporting
func RegisterAdapter(name string, healthy bool, message string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	healthChecker.adapters[name] = AdapterHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

// UpdateAdapter updates the health status of an adapter
func UpdateAdapter(name string, healthy bool, message string) {
	RegisterAdapter(name, healthy, message) // Same implementation
}

// GetHealth returns the overall health status
func GetHealth() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()

	status := "healthy"
	adapters := make(map[string]string)

	for name, a := range healthChecker.adapters {
		if !a.Healthy {
			status = "unhealthy"
			adapters[name] = "unhealthy: " + a.Message
		} else {
			adapters[name] = "healthy"
		}
	}

	uptime := time.Since(healthChecker.startTime)

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Adapters:  adapters,
		Version:   healthChecker.version,
		Uptime:    uptime.String(),
		StartTime: healthChecker.startTime,
	}
}

// Reset clears registered adapters. Intended for tests.
func Reset() {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.adapters = make(map[string]AdapterHealth)
	healthChecker.version = ""
}
