package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// Scheduler accepts agent task specs and tracks the resulting
// sessions. Implementations enforce their own concurrency policy.
type Scheduler interface {
	// Schedule submits a task and returns the session id
	Schedule(ctx context.Context, spec types.TaskSpec) (string, error)

	// Stats reports scheduling counters
	Stats() Stats

	// ActiveTasks returns the number of sessions currently pending or
	// running
	ActiveTasks() int
}

// Stats summarizes scheduler activity
type Stats struct {
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Rejected  int `json:"rejected"`
	Active    int `json:"active"`
}

// Launcher starts an agent session out of process. It is called on a
// dedicated goroutine per session; the returned error marks the
// session failed.
type Launcher func(ctx context.Context, session *types.Session) error

// Local schedules sessions in-process with a fixed concurrency cap
type Local struct {
	maxConcurrent int
	launcher      Launcher
	bus           *bus.Bus
	logger        zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*types.Session
	stats    Stats
}

// NewLocal creates a local scheduler. A non-positive maxConcurrent
// defaults to 3. launcher may be nil, in which case sessions complete
// immediately; that is the bookkeeping-only mode used by tests and
// dry runs.
func NewLocal(maxConcurrent int, launcher Launcher) *Local {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Local{
		maxConcurrent: maxConcurrent,
		launcher:      launcher,
		logger:        log.WithComponent("scheduler"),
		sessions:      map[string]*types.Session{},
	}
}

// WithBus makes the scheduler publish session.completed and
// session.failed events when sessions finish
func (s *Local) WithBus(b *bus.Bus) *Local {
	s.bus = b
	return s
}

// Schedule admits the task if capacity allows and starts it
func (s *Local) Schedule(ctx context.Context, spec types.TaskSpec) (string, error) {
	if spec.Role == "" {
		return "", fmt.Errorf("failed to schedule session: role is required")
	}

	s.mu.Lock()
	if s.activeLocked() >= s.maxConcurrent {
		s.stats.Rejected++
		s.mu.Unlock()
		metrics.SessionsRejected.Inc()
		return "", fmt.Errorf("failed to schedule session: at capacity (%d active)", s.maxConcurrent)
	}

	session := &types.Session{
		ID:        uuid.New().String(),
		Spec:      spec,
		Status:    types.SessionPending,
		CreatedAt: time.Now().UTC(),
	}
	s.sessions[session.ID] = session
	s.stats.Scheduled++
	s.mu.Unlock()

	metrics.SessionsScheduled.Inc()
	s.logger.Info().
		Str("session_id", session.ID).
		Str("role", spec.Role).
		Str("issue_id", spec.IssueID).
		Msg("Session scheduled")

	if s.launcher == nil {
		s.finish(session.ID, nil)
		return session.ID, nil
	}

	go s.launch(ctx, session.ID)
	return session.ID, nil
}

// launch runs the launcher for one session and records the outcome
func (s *Local) launch(ctx context.Context, id string) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	session.Status = types.SessionRunning
	session.StartedAt = &now
	s.mu.Unlock()

	err := s.launcher(ctx, session)
	s.finish(id, err)
}

// finish marks a session completed or failed
func (s *Local) finish(id string, err error) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	session.FinishedAt = &now
	eventType := types.EventSessionCompleted
	payload := map[string]any{
		"session_id": session.ID,
		"issue_id":   session.Spec.IssueID,
		"role":       session.Spec.Role,
	}
	if err != nil {
		session.Status = types.SessionFailed
		session.Error = err.Error()
		s.stats.Failed++
		eventType = types.EventSessionFailed
		payload["error"] = err.Error()
		s.logger.Warn().Str("session_id", id).Err(err).Msg("Session failed")
	} else {
		session.Status = types.SessionCompleted
		s.stats.Completed++
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(context.Background(), &types.Event{
			Type:    eventType,
			Payload: payload,
			Source:  "scheduler",
		})
	}
}

// GetSession returns a session by id
func (s *Local) GetSession(id string) (*types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// ListSessions returns all sessions in unspecified order
func (s *Local) ListSessions() []*types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

// ActiveTasks returns the number of pending or running sessions
func (s *Local) ActiveTasks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked()
}

// Stats reports scheduling counters
func (s *Local) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := s.stats
	stats.Active = s.activeLocked()
	return stats
}

// activeLocked counts pending and running sessions; callers hold mu
func (s *Local) activeLocked() int {
	active := 0
	for _, session := range s.sessions {
		if session.Status == types.SessionPending || session.Status == types.SessionRunning {
			active++
		}
	}
	return active
}
