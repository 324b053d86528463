package action

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/scheduler"
	"github.com/monoco-io/fabric/pkg/types"
)

// RoleSpec maps an agent role to its prompt template and engine
type RoleSpec struct {
	Prompt string
	Engine string
}

// defaultRoles is the built-in role table. Unknown roles fall back to
// Engineer.
var defaultRoles = map[string]RoleSpec{
	"Engineer": {
		Prompt: "Work the issue {issue_id}: {title}",
		Engine: "default",
	},
	"Reviewer": {
		Prompt: "Review the changes for issue {issue_id}",
		Engine: "default",
	},
	"Planner": {
		Prompt: "Break down issue {issue_id} into tasks",
		Engine: "default",
	},
}

// SpawnAgent submits an agent session to the scheduler in response to
// an event. The concurrency guard refuses execution while the
// scheduler is at capacity; the router records that as skipped.
type SpawnAgent struct {
	scheduler     scheduler.Scheduler
	maxConcurrent int
	role          string
	roles         map[string]RoleSpec
	logger        zerolog.Logger
}

// NewSpawnAgent creates a spawn action for the given role. A
// non-positive maxConcurrent defaults to 3.
func NewSpawnAgent(sched scheduler.Scheduler, role string, maxConcurrent int) *SpawnAgent {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	if role == "" {
		role = "Engineer"
	}
	return &SpawnAgent{
		scheduler:     sched,
		maxConcurrent: maxConcurrent,
		role:          role,
		roles:         defaultRoles,
		logger:        log.WithComponent("action"),
	}
}

// Name returns the action name
func (a *SpawnAgent) Name() string {
	return "spawn-agent"
}

// CanExecute refuses while the scheduler is at capacity
func (a *SpawnAgent) CanExecute(ctx context.Context, event *types.Event) (bool, error) {
	return a.scheduler.ActiveTasks() < a.maxConcurrent, nil
}

// Execute schedules the agent session and returns the session id
func (a *SpawnAgent) Execute(ctx context.Context, event *types.Event) (*types.ActionResult, error) {
	roleSpec, ok := a.roles[a.role]
	if !ok {
		roleSpec = a.roles["Engineer"]
	}

	spec := types.TaskSpec{
		Role:   a.role,
		Prompt: ExpandTemplate(roleSpec.Prompt, event),
		Engine: roleSpec.Engine,
	}
	if issueID, ok := event.Payload["issue_id"].(string); ok {
		spec.IssueID = issueID
	}
	if workspace, ok := event.Payload["workspace"].(string); ok {
		spec.Workspace = workspace
	}

	sessionID, err := a.scheduler.Schedule(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule agent session: %w", err)
	}

	a.logger.Info().
		Str("session_id", sessionID).
		Str("role", a.role).
		Str("issue_id", spec.IssueID).
		Msg("Agent session spawned")
	return SuccessResult(map[string]any{"session_id": sessionID}), nil
}
