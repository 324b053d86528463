package router

import (
	"fmt"

	"github.com/monoco-io/fabric/pkg/action"
	"github.com/monoco-io/fabric/pkg/types"
)

// FieldEquals matches events whose payload field equals value. Values
// are compared through their string form so numeric payloads match
// string configuration.
func FieldEquals(field string, value any) Condition {
	want := fmt.Sprintf("%v", value)
	return func(event *types.Event) bool {
		got, ok := event.Payload[field]
		if !ok {
			return false
		}
		return fmt.Sprintf("%v", got) == want
	}
}

// AllOf matches events whose payload carries every listed field with
// the expected value
func AllOf(fields map[string]any) Condition {
	conditions := make([]Condition, 0, len(fields))
	for field, value := range fields {
		conditions = append(conditions, FieldEquals(field, value))
	}
	return func(event *types.Event) bool {
		for _, cond := range conditions {
			if !cond(event) {
				return false
			}
		}
		return true
	}
}

// ConditionalRouter layers matcher sugar over a Router so common
// rules read declaratively at the call site.
type ConditionalRouter struct {
	*Router
}

// NewConditional wraps r with matcher helpers
func NewConditional(r *Router) *ConditionalRouter {
	return &ConditionalRouter{Router: r}
}

// When registers act for eventType gated on one payload field
func (cr *ConditionalRouter) When(eventType types.EventType, field string, value any, act action.Action, priority int) {
	cr.Register([]types.EventType{eventType}, act, FieldEquals(field, value), priority)
}

// WhenAll registers act for eventType gated on every listed field
func (cr *ConditionalRouter) WhenAll(eventType types.EventType, fields map[string]any, act action.Action, priority int) {
	cr.Register([]types.EventType{eventType}, act, AllOf(fields), priority)
}
