package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/types"
)

func TestLocalScheduleCompletesWithoutLauncher(t *testing.T) {
	s := NewLocal(3, nil)

	id, err := s.Schedule(context.Background(), types.TaskSpec{Role: "Engineer", Prompt: "do it"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	session, ok := s.GetSession(id)
	require.True(t, ok)
	assert.Equal(t, types.SessionCompleted, session.Status)
	assert.Equal(t, 0, s.ActiveTasks())

	stats := s.Stats()
	assert.Equal(t, 1, stats.Scheduled)
	assert.Equal(t, 1, stats.Completed)
}

func TestLocalPublishesSessionEvents(t *testing.T) {
	b := bus.New()
	var mu sync.Mutex
	var seen []*types.Event
	record := func(ctx context.Context, e *types.Event) error {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
		return nil
	}
	b.Subscribe(types.EventSessionCompleted, record)
	b.Subscribe(types.EventSessionFailed, record)

	s := NewLocal(3, nil).WithBus(b)
	id, err := s.Schedule(context.Background(), types.TaskSpec{Role: "Engineer", IssueID: "FEAT-7"})
	require.NoError(t, err)

	failing := NewLocal(3, func(ctx context.Context, session *types.Session) error {
		return errors.New("engine exploded")
	}).WithBus(b)
	_, err = failing.Schedule(context.Background(), types.TaskSpec{Role: "Engineer"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, types.EventSessionCompleted, seen[0].Type)
	assert.Equal(t, id, seen[0].Payload["session_id"])
	assert.Equal(t, "FEAT-7", seen[0].Payload["issue_id"])
	assert.Equal(t, types.EventSessionFailed, seen[1].Type)
	assert.Equal(t, "engine exploded", seen[1].Payload["error"])
}

func TestLocalScheduleRequiresRole(t *testing.T) {
	s := NewLocal(3, nil)
	_, err := s.Schedule(context.Background(), types.TaskSpec{Prompt: "no role"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role is required")
}

func TestLocalCapacityGate(t *testing.T) {
	release := make(chan struct{})
	s := NewLocal(2, func(ctx context.Context, session *types.Session) error {
		<-release
		return nil
	})

	_, err := s.Schedule(context.Background(), types.TaskSpec{Role: "Engineer"})
	require.NoError(t, err)
	_, err = s.Schedule(context.Background(), types.TaskSpec{Role: "Engineer"})
	require.NoError(t, err)

	_, err = s.Schedule(context.Background(), types.TaskSpec{Role: "Engineer"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at capacity")
	assert.Equal(t, 1, s.Stats().Rejected)

	close(release)
	require.Eventually(t, func() bool {
		return s.ActiveTasks() == 0
	}, time.Second, 10*time.Millisecond)

	_, err = s.Schedule(context.Background(), types.TaskSpec{Role: "Engineer"})
	assert.NoError(t, err)
}

func TestLocalLauncherFailureMarksSession(t *testing.T) {
	s := NewLocal(3, func(ctx context.Context, session *types.Session) error {
		return errors.New("agent crashed")
	})

	id, err := s.Schedule(context.Background(), types.TaskSpec{Role: "Reviewer"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		session, ok := s.GetSession(id)
		return ok && session.Status == types.SessionFailed
	}, time.Second, 10*time.Millisecond)

	session, _ := s.GetSession(id)
	assert.Equal(t, "agent crashed", session.Error)
	assert.Equal(t, 1, s.Stats().Failed)
}

func TestLocalConcurrentScheduling(t *testing.T) {
	s := NewLocal(100, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Schedule(context.Background(), types.TaskSpec{Role: "Engineer"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, s.Stats().Scheduled)
	assert.Len(t, s.ListSessions(), 20)
}
