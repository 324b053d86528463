package action

import (
	"context"
	"fmt"
	"time"

	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// Action is a routable capability. CanExecute guards execution;
// Execute performs it. Actions are invoked through Run, which
// enforces the result contract: guards, panics, and errors all
// become ActionResults, never propagated errors.
type Action interface {
	Name() string
	CanExecute(ctx context.Context, event *types.Event) (bool, error)
	Execute(ctx context.Context, event *types.Event) (*types.ActionResult, error)
}

// SuccessResult builds a success result carrying output
func SuccessResult(output any) *types.ActionResult {
	return &types.ActionResult{
		Success:  true,
		Status:   types.ActionSuccess,
		Output:   output,
		Metadata: map[string]any{},
	}
}

// FailureResult builds a failed result carrying the error text
func FailureResult(errText string) *types.ActionResult {
	return &types.ActionResult{
		Success:  false,
		Status:   types.ActionFailed,
		Error:    errText,
		Metadata: map[string]any{},
	}
}

// SkippedResult builds a skipped result carrying the reason
func SkippedResult(reason string) *types.ActionResult {
	return &types.ActionResult{
		Success:  false,
		Status:   types.ActionSkipped,
		Error:    reason,
		Metadata: map[string]any{},
	}
}

// Run invokes an action under the result contract: it timestamps the
// attempt, consults the guard, converts guard refusal into a skipped
// result and any error or panic into a failure result, and backfills
// timestamps on whatever the action returned.
func Run(ctx context.Context, a Action, event *types.Event) (result *types.ActionResult) {
	started := time.Now().UTC()

	defer func() {
		if r := recover(); r != nil {
			result = FailureResult(fmt.Sprintf("panic: %v", r))
		}
		finish(result, started)
		metrics.ActionsExecuted.WithLabelValues(a.Name(), string(result.Status)).Inc()
	}()

	ok, err := a.CanExecute(ctx, event)
	if err != nil {
		return FailureResult(err.Error())
	}
	if !ok {
		return SkippedResult("Conditions not met")
	}

	res, err := a.Execute(ctx, event)
	if err != nil {
		return FailureResult(err.Error())
	}
	if res == nil {
		res = SuccessResult(nil)
	}
	return res
}

// finish backfills timestamps and the success flag
func finish(result *types.ActionResult, started time.Time) {
	if result.StartedAt == nil {
		result.StartedAt = &started
	}
	if result.CompletedAt == nil {
		completed := time.Now().UTC()
		result.CompletedAt = &completed
	}
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Success = result.Status == types.ActionSuccess
}
