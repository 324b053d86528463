/*
Package bus implements Fabric's typed in-process event bus.

The bus is the seam between producers (watchers, the courier webhook
path) and consumers (the action router, the websocket stream bridge).
Subscribers register a handler per event type; Publish delivers to all
subscribers for that type in registration order and returns once the
last handler has finished.

# Architecture

	Watcher ──┐
	Courier ──┼─► Bus.Publish ─► [handler, handler, ...] (registration order)
	...    ───┘                      │
	                                 └─► errors/panics logged, siblings continue

# Delivery Semantics

  - In-process, synchronous, single goroutine per publish call
  - Per-event-type subscriber lists; no wildcard subscriptions
  - Registration order preserved within a type
  - A handler error or panic is isolated and logged; it never blocks
    sibling handlers or the publisher
  - No persistence and no cross-publish ordering guarantees between
    different publishers

# Usage

	b := bus.New()
	id := b.Subscribe(types.EventIssueStageChanged, func(ctx context.Context, e *types.Event) error {
		fmt.Println(e.Payload["issue_id"])
		return nil
	})
	defer b.Unsubscribe(types.EventIssueStageChanged, id)

	b.Publish(ctx, &types.Event{
		Type:    types.EventIssueStageChanged,
		Payload: map[string]any{"issue_id": "FEAT-012"},
	})

# Integration Points

  - pkg/watcher publishes semantic file events
  - pkg/router subscribes one dispatch handler per routed event type
  - pkg/courier bridges bus events onto the /events websocket stream
*/
package bus
