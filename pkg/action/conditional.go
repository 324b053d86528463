package action

import (
	"context"

	"github.com/monoco-io/fabric/pkg/types"
)

// Predicate guards a conditional action
type Predicate func(ctx context.Context, event *types.Event) (bool, error)

// Body is the work a conditional action performs. A returned
// *types.ActionResult passes through unchanged; any other value is
// wrapped as a success output.
type Body func(ctx context.Context, event *types.Event) (any, error)

// ConditionalAction pairs a predicate with a body under a name. It is
// the lightweight way to register a closure with the router without
// declaring a new type.
type ConditionalAction struct {
	name      string
	predicate Predicate
	body      Body
}

// NewConditional creates a conditional action. A nil predicate always
// allows execution.
func NewConditional(name string, predicate Predicate, body Body) *ConditionalAction {
	return &ConditionalAction{
		name:      name,
		predicate: predicate,
		body:      body,
	}
}

// Name returns the action name
func (a *ConditionalAction) Name() string {
	return a.name
}

// CanExecute consults the predicate
func (a *ConditionalAction) CanExecute(ctx context.Context, event *types.Event) (bool, error) {
	if a.predicate == nil {
		return true, nil
	}
	return a.predicate(ctx, event)
}

// Execute runs the body, wrapping plain return values as success
// output
func (a *ConditionalAction) Execute(ctx context.Context, event *types.Event) (*types.ActionResult, error) {
	out, err := a.body(ctx, event)
	if err != nil {
		return nil, err
	}
	if res, ok := out.(*types.ActionResult); ok {
		return res, nil
	}
	return SuccessResult(out), nil
}
