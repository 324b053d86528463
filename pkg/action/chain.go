package action

import (
	"context"
	"strings"

	"github.com/monoco-io/fabric/pkg/types"
)

// ChainContextKey is the event payload key under which a running
// chain exposes its shared context to member actions
const ChainContextKey = "chain_context"

// ActionChain runs member actions sequentially over a shared context
// map. A member failure short-circuits the chain: remaining members
// are recorded as skipped and the chain's outcome is failure. Each
// successful member's output is stored in the context under
// "<name>_output" so later members can read it through the event
// payload.
type ActionChain struct {
	name    string
	actions []Action
}

// NewChain creates a chain over the given members
func NewChain(name string, actions ...Action) *ActionChain {
	return &ActionChain{
		name:    name,
		actions: actions,
	}
}

// Name returns the chain name
func (c *ActionChain) Name() string {
	return c.name
}

// Actions returns the member actions in execution order
func (c *ActionChain) Actions() []Action {
	return append([]Action(nil), c.actions...)
}

// CanExecute always allows the chain; member guards run per member
func (c *ActionChain) CanExecute(ctx context.Context, event *types.Event) (bool, error) {
	return true, nil
}

// Execute runs the members in order with short-circuit on failure
func (c *ActionChain) Execute(ctx context.Context, event *types.Event) (*types.ActionResult, error) {
	chainCtx := map[string]any{}

	// Members see the shared context through a payload copy so the
	// caller's event is not mutated.
	scoped := &types.Event{
		ID:        event.ID,
		Type:      event.Type,
		Timestamp: event.Timestamp,
		Source:    event.Source,
		Payload:   make(map[string]any, len(event.Payload)+1),
	}
	for k, v := range event.Payload {
		scoped.Payload[k] = v
	}
	scoped.Payload[ChainContextKey] = chainCtx

	results := make([]*types.ActionResult, 0, len(c.actions))
	failedAt := -1

	for i, member := range c.actions {
		if failedAt >= 0 {
			results = append(results, SkippedResult("Previous action failed"))
			continue
		}

		res := Run(ctx, member, scoped)
		results = append(results, res)

		if res.Status == types.ActionFailed {
			failedAt = i
			continue
		}
		if res.Status == types.ActionSuccess {
			chainCtx[contextKey(member.Name())] = res.Output
		}
	}

	outcome := SuccessResult(chainCtx)
	if failedAt >= 0 {
		outcome = FailureResult(c.actions[failedAt].Name() + ": " + results[failedAt].Error)
	}
	outcome.Metadata = map[string]any{
		"chain":   c.name,
		"results": results,
	}
	return outcome, nil
}

// contextKey derives the context slot name for a member's output
func contextKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "-", "_") + "_output"
}
