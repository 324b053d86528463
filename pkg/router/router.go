package router

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/action"
	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// Condition decides whether a rule matches an event. Conditions run
// synchronously on the dispatch path; keep them cheap.
type Condition func(event *types.Event) bool

// Rule binds event types to an action under a priority
type Rule struct {
	EventTypes []types.EventType
	Action     action.Action
	Condition  Condition
	Priority   int

	seq int // insertion order, tiebreaker within a priority
}

// Stats summarizes router activity
type Stats struct {
	EventsSeen   int `json:"events_seen"`
	RulesMatched int `json:"rules_matched"`
	Executed     int `json:"executed"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
}

// HistoryEntry is one recorded action execution
type HistoryEntry struct {
	EventID    string              `json:"event_id"`
	EventType  types.EventType     `json:"event_type"`
	ActionName string              `json:"action_name"`
	Result     *types.ActionResult `json:"result"`
}

// DefaultHistoryCap bounds the dispatch history ring
const DefaultHistoryCap = 100

// Router dispatches bus events to registered actions by priority. One
// bus subscription is held per distinct event type across all rules;
// matching rules execute sequentially in priority order.
type Router struct {
	bus        *bus.Bus
	historyCap int
	logger     zerolog.Logger

	mu       sync.RWMutex
	rules    []*Rule
	registry map[string]action.Action
	subs     map[types.EventType]string
	history  []HistoryEntry
	stats    Stats
	nextSeq  int
	started  bool
}

// New creates a router over b with the default history cap
func New(b *bus.Bus) *Router {
	return &Router{
		bus:        b,
		historyCap: DefaultHistoryCap,
		logger:     log.WithComponent("router"),
		registry:   map[string]action.Action{},
		subs:       map[types.EventType]string{},
	}
}

// WithHistoryCap overrides the dispatch history bound
func (r *Router) WithHistoryCap(cap int) *Router {
	if cap > 0 {
		r.historyCap = cap
	}
	return r
}

// Register adds a rule. Rules are kept sorted by priority descending;
// rules of equal priority dispatch in registration order. Chain
// members are added to the action registry alongside the chain
// itself. Registering after Start subscribes any new event types
// immediately.
func (r *Router) Register(eventTypes []types.EventType, act action.Action, condition Condition, priority int) {
	r.mu.Lock()

	rule := &Rule{
		EventTypes: append([]types.EventType(nil), eventTypes...),
		Action:     act,
		Condition:  condition,
		Priority:   priority,
		seq:        r.nextSeq,
	}
	r.nextSeq++
	r.rules = append(r.rules, rule)
	sort.SliceStable(r.rules, func(i, j int) bool {
		if r.rules[i].Priority != r.rules[j].Priority {
			return r.rules[i].Priority > r.rules[j].Priority
		}
		return r.rules[i].seq < r.rules[j].seq
	})

	r.registry[act.Name()] = act
	if chain, ok := act.(*action.ActionChain); ok {
		for _, member := range chain.Actions() {
			r.registry[member.Name()] = member
		}
	}

	started := r.started
	r.mu.Unlock()

	if started {
		r.subscribeTypes(eventTypes)
	}
}

// GetAction looks up a registered action by name
func (r *Router) GetAction(name string) (action.Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	act, ok := r.registry[name]
	return act, ok
}

// Start subscribes one dispatch handler per distinct event type
// appearing in any rule. Calling Start twice is a no-op.
func (r *Router) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	var eventTypes []types.EventType
	for _, rule := range r.rules {
		eventTypes = append(eventTypes, rule.EventTypes...)
	}
	r.mu.Unlock()

	r.subscribeTypes(eventTypes)
	r.logger.Info().Int("rules", len(r.Rules())).Msg("Router started")
}

// Stop unsubscribes all dispatch handlers
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for eventType, id := range r.subs {
		r.bus.Unsubscribe(eventType, id)
		delete(r.subs, eventType)
	}
	r.started = false
	r.logger.Info().Msg("Router stopped")
}

// subscribeTypes registers dispatch handlers for types not yet held
func (r *Router) subscribeTypes(eventTypes []types.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, eventType := range eventTypes {
		if _, ok := r.subs[eventType]; ok {
			continue
		}
		r.subs[eventType] = r.bus.Subscribe(eventType, func(ctx context.Context, event *types.Event) error {
			r.Dispatch(ctx, event)
			return nil
		})
	}
}

// Dispatch runs every matching rule against the event in priority
// order. Each result lands in the bounded history; a rule failure
// never halts sibling rules.
func (r *Router) Dispatch(ctx context.Context, event *types.Event) []*types.ActionResult {
	r.mu.Lock()
	r.stats.EventsSeen++
	matched := make([]*Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if r.matches(rule, event) {
			matched = append(matched, rule)
		}
	}
	r.stats.RulesMatched += len(matched)
	r.mu.Unlock()

	results := make([]*types.ActionResult, 0, len(matched))
	for _, rule := range matched {
		metrics.RulesMatched.Inc()
		res := action.Run(ctx, rule.Action, event)
		results = append(results, res)
		r.record(event, rule.Action.Name(), res)
	}
	return results
}

// matches checks the type filter and the optional condition; callers
// hold mu
func (r *Router) matches(rule *Rule, event *types.Event) bool {
	typeOK := false
	for _, eventType := range rule.EventTypes {
		if eventType == event.Type {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return false
	}
	if rule.Condition == nil {
		return true
	}
	return rule.Condition(event)
}

// record appends the result to the history ring and updates counters
func (r *Router) record(event *types.Event, actionName string, res *types.ActionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, HistoryEntry{
		EventID:    event.ID,
		EventType:  event.Type,
		ActionName: actionName,
		Result:     res,
	})
	if len(r.history) > r.historyCap {
		r.history = r.history[len(r.history)-r.historyCap:]
	}

	switch res.Status {
	case types.ActionSuccess:
		r.stats.Executed++
	case types.ActionFailed:
		r.stats.Failed++
		r.logger.Warn().
			Str("action", actionName).
			Str("event_type", string(event.Type)).
			Str("error", res.Error).
			Msg("Action failed")
	case types.ActionSkipped:
		r.stats.Skipped++
	}
}

// Rules returns the rules in dispatch order
func (r *Router) Rules() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Rule(nil), r.rules...)
}

// History returns the recorded results, oldest first
func (r *Router) History() []HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]HistoryEntry(nil), r.history...)
}

// Stats reports dispatch counters
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}
