package courier

import (
	"context"

	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/types"
)

// Bridge mirrors every bus event onto the websocket hub so external
// consumers can follow the fabric in real time
type Bridge struct {
	bus *bus.Bus
	hub *Hub

	subs map[types.EventType]string
}

// NewBridge creates an unstarted bridge between b and hub
func NewBridge(b *bus.Bus, hub *Hub) *Bridge {
	return &Bridge{
		bus:  b,
		hub:  hub,
		subs: map[types.EventType]string{},
	}
}

// Start subscribes the bridge to every event type
func (br *Bridge) Start() {
	for _, eventType := range types.AllEventTypes() {
		br.subs[eventType] = br.bus.Subscribe(eventType, func(ctx context.Context, event *types.Event) error {
			br.hub.Broadcast(event)
			return nil
		})
	}
}

// Stop unsubscribes the bridge
func (br *Bridge) Stop() {
	for eventType, id := range br.subs {
		br.bus.Unsubscribe(eventType, id)
		delete(br.subs, eventType)
	}
}
