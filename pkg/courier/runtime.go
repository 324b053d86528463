package courier

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/clock"
	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/mailbox"
	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// RuntimeOptions configures an in-process courier
type RuntimeOptions struct {
	Addr            string
	MailboxRoot     string
	ControlDir      string
	RegistryPath    string
	DebounceWindow  time.Duration
	DebounceMaxWait time.Duration
	LockTimeout     time.Duration
	Bus             *bus.Bus
	Clock           clock.Clock
}

// Runtime is a fully wired in-process courier: mailbox store, lock
// and state managers, debouncer, registry, websocket hub, and the
// HTTP server.
type Runtime struct {
	opts      RuntimeOptions
	store     *mailbox.Store
	locks     *LockManager
	state     *MessageStateManager
	debouncer *Debouncer
	registry  *Registry
	hub       *Hub
	bridge    *Bridge
	server    *Server
	collector *metrics.Collector
	logger    zerolog.Logger
}

// NewRuntime wires all courier components. Zero-value options fall
// back to defaults; a nil bus disables the event stream bridge.
func NewRuntime(opts RuntimeOptions) (*Runtime, error) {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = 2 * time.Second
	}
	if opts.DebounceMaxWait <= 0 {
		opts.DebounceMaxWait = 10 * time.Second
	}

	store, err := mailbox.NewStore(opts.MailboxRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open mailbox: %w", err)
	}

	locks, err := NewLockManager(store, opts.Clock)
	if err != nil {
		return nil, err
	}
	state := NewMessageStateManager(locks, store)

	if opts.RegistryPath == "" {
		opts.RegistryPath = filepath.Join(opts.ControlDir, "courier", "registry.json")
	}
	registry, err := NewRegistry(opts.RegistryPath)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		opts:     opts,
		store:    store,
		locks:    locks,
		state:    state,
		registry: registry,
		logger:   log.WithComponent("courier"),
	}

	rt.debouncer = NewDebouncer(opts.DebounceWindow, opts.DebounceMaxWait, opts.Clock, rt.flushConversation)

	var hub *Hub
	if opts.Bus != nil {
		hub = NewHub()
		rt.hub = hub
		rt.bridge = NewBridge(opts.Bus, hub)
	}

	rt.server = NewServer(opts.Addr, state, store, registry, hub, rt.acceptInbound).
		WithClaimTimeout(opts.LockTimeout)
	rt.collector = metrics.NewCollector(nil, locks, rt.debouncer)
	return rt, nil
}

// Store exposes the mailbox store
func (rt *Runtime) Store() *mailbox.Store { return rt.store }

// State exposes the message state manager
func (rt *Runtime) State() *MessageStateManager { return rt.state }

// Registry exposes the project registry
func (rt *Runtime) Registry() *Registry { return rt.registry }

// Debouncer exposes the debounce handler
func (rt *Runtime) Debouncer() *Debouncer { return rt.debouncer }

// acceptInbound persists a webhook message and feeds the debouncer
func (rt *Runtime) acceptInbound(project *Project, msg *types.Message) error {
	if _, err := rt.store.CreateInbound(msg); err != nil {
		return err
	}
	if err := rt.debouncer.Add(msg); err != nil {
		return err
	}
	return nil
}

// flushConversation publishes one mailbox.inbound_received event per
// debounced conversation batch
func (rt *Runtime) flushConversation(key string, messages []*types.Message) {
	rt.logger.Info().
		Str("key", key).
		Int("count", len(messages)).
		Msg("Conversation flushed")

	if rt.opts.Bus == nil {
		return
	}
	last := messages[len(messages)-1]
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	rt.opts.Bus.Publish(context.Background(), &types.Event{
		Type:   types.EventMailboxInbound,
		Source: "courier",
		Payload: map[string]any{
			"conversation_key": key,
			"message_ids":      ids,
			"message_id":       last.ID,
			"provider":         last.Provider,
			"session_id":       last.Session.ID,
		},
	})
}

// Run starts the courier and blocks until ctx is cancelled or a
// shutdown signal arrives. Shutdown drains the debouncer and stops
// the HTTP server gracefully.
func (rt *Runtime) Run(ctx context.Context) error {
	metrics.RegisterAdapter("mailbox", true, "")
	metrics.RegisterAdapter("locks", true, "")

	if rt.hub != nil {
		go rt.hub.Run()
		rt.bridge.Start()
	}
	rt.collector.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		rt.shutdown()
		return err
	case sig := <-sigCh:
		rt.logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-ctx.Done():
		rt.logger.Info().Msg("Context cancelled")
	}

	rt.shutdown()
	return nil
}

// shutdown drains buffers and stops the server
func (rt *Runtime) shutdown() {
	rt.debouncer.FlushAll()
	rt.collector.Stop()
	if rt.bridge != nil {
		rt.bridge.Stop()
	}
	if rt.hub != nil {
		rt.hub.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.server.Shutdown(shutdownCtx); err != nil {
		rt.logger.Error().Err(err).Msg("Server shutdown failed")
	}
	rt.logger.Info().Msg("Courier stopped")
}
