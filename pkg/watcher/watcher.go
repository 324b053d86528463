package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/artifact"
	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// Config describes what a watcher observes and how often
type Config struct {
	Name         string
	Path         string
	Patterns     []string // include globs matched against base names; empty means all
	Exclude      []string // exclude globs matched against base names
	Recursive    bool
	PollInterval time.Duration
}

// Callback receives semantic events before they reach the bus.
// Callback errors and panics are isolated and logged.
type Callback func(ctx context.Context, event *types.Event) error

// Reducer turns one raw file event into zero or more semantic bus
// events. The concrete watchers (issue, memo, task, mailbox) each
// supply one.
type Reducer func(fe *types.FileEvent) []*types.Event

// fileState is one file's snapshot entry from the last scan
type fileState struct {
	modTime time.Time
	size    int64
	content []byte
	hash    string
}

// Poller is the polling watcher core. Each tick it scans the watched
// path, diffs against the previous snapshot, reduces raw changes into
// semantic events, and emits them to local callbacks and the bus.
type Poller struct {
	cfg    Config
	bus    *bus.Bus
	reduce Reducer
	logger zerolog.Logger

	mu        sync.Mutex
	callbacks []Callback
	snapshot  map[string]*fileState
	running   bool
	stopCh    chan struct{}
}

// NewPoller creates a watcher core. The reducer may be nil, in which
// case raw changes are logged but nothing is emitted.
func NewPoller(cfg Config, b *bus.Bus, reduce Reducer) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Poller{
		cfg:      cfg,
		bus:      b,
		reduce:   reduce,
		logger:   log.WithWatcher(cfg.Name),
		snapshot: make(map[string]*fileState),
		stopCh:   make(chan struct{}),
	}
}

// Name returns the watcher name
func (p *Poller) Name() string {
	return p.cfg.Name
}

// OnEvent registers a local callback invoked for every semantic event
// before bus publication
func (p *Poller) OnEvent(cb Callback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, cb)
}

// Start begins the polling loop. Starting a running watcher is a
// no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	p.logger.Info().
		Str("path", p.cfg.Path).
		Dur("interval", p.cfg.PollInterval).
		Msg("Watcher started")
	go p.run(stopCh)
}

// Stop halts the polling loop. Idempotent; pending scans are
// abandoned at the next tick boundary.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stopCh)
	p.logger.Info().Msg("Watcher stopped")
}

// run is the polling loop
func (p *Poller) run(stopCh chan struct{}) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Tick(context.Background())
		case <-stopCh:
			return
		}
	}
}

// Tick runs one scan cycle: scan, diff, reduce, emit. Exposed so
// tests and callers can poll deterministically.
func (p *Poller) Tick(ctx context.Context) {
	metrics.WatcherScans.WithLabelValues(p.cfg.Name).Inc()

	current, err := p.scan()
	if err != nil {
		p.logger.Error().Err(err).Msg("Scan failed")
		return
	}

	p.mu.Lock()
	previous := p.snapshot
	p.snapshot = current
	p.mu.Unlock()

	now := time.Now().UTC()
	for path, state := range current {
		old, existed := previous[path]
		if !existed {
			p.emitFileEvent(ctx, &types.FileEvent{
				Path:        path,
				ChangeType:  types.ChangeCreated,
				WatcherName: p.cfg.Name,
				NewContent:  string(state.content),
				Timestamp:   now,
			})
			continue
		}
		if old.hash != state.hash {
			p.emitFileEvent(ctx, &types.FileEvent{
				Path:        path,
				ChangeType:  types.ChangeModified,
				WatcherName: p.cfg.Name,
				OldContent:  string(old.content),
				NewContent:  string(state.content),
				Timestamp:   now,
			})
		}
	}
	for path, old := range previous {
		if _, exists := current[path]; !exists {
			p.emitFileEvent(ctx, &types.FileEvent{
				Path:        path,
				ChangeType:  types.ChangeDeleted,
				WatcherName: p.cfg.Name,
				OldContent:  string(old.content),
				Timestamp:   now,
			})
		}
	}
}

// scan reads every matching file under the watched path
func (p *Poller) scan() (map[string]*fileState, error) {
	out := make(map[string]*fileState)

	root := p.cfg.Path
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			// Watched path may appear later; treat as empty.
			return out, nil
		}
		return nil, err
	}

	// A watcher may point at a single file (memo inbox, task list).
	if !info.IsDir() {
		if p.matches(filepath.Base(root)) {
			if state, err := readFileState(root, info); err == nil {
				out[root] = state
			}
		}
		return out, nil
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Files may vanish mid-scan; skip them.
			return nil
		}
		if info.IsDir() {
			if path != root && !p.cfg.Recursive {
				return filepath.SkipDir
			}
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !p.matches(info.Name()) {
			return nil
		}
		state, err := readFileState(path, info)
		if err != nil {
			return nil
		}
		out[path] = state
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// matches applies the include and exclude globs to a base name
func (p *Poller) matches(name string) bool {
	for _, pattern := range p.cfg.Exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return false
		}
	}
	if len(p.cfg.Patterns) == 0 {
		return true
	}
	for _, pattern := range p.cfg.Patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func readFileState(path string, info os.FileInfo) (*fileState, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &fileState{
		modTime: info.ModTime(),
		size:    info.Size(),
		content: content,
		hash:    artifact.HashBytes(content),
	}, nil
}

// emitFileEvent reduces a raw change and emits the resulting semantic
// events
func (p *Poller) emitFileEvent(ctx context.Context, fe *types.FileEvent) {
	metrics.WatcherEvents.WithLabelValues(p.cfg.Name, string(fe.ChangeType)).Inc()

	if p.reduce == nil {
		p.logger.Debug().
			Str("path", fe.Path).
			Str("change", string(fe.ChangeType)).
			Msg("File change observed")
		return
	}

	for _, event := range p.reduce(fe) {
		p.Emit(ctx, event)
	}
}

// Emit delivers one semantic event to local callbacks, then publishes
// it on the bus. Callback failures are isolated.
func (p *Poller) Emit(ctx context.Context, event *types.Event) {
	if event.Source == "" {
		event.Source = p.cfg.Name
	}

	p.mu.Lock()
	callbacks := append([]Callback(nil), p.callbacks...)
	p.mu.Unlock()

	for _, cb := range callbacks {
		p.invokeCallback(ctx, cb, event)
	}
	if p.bus != nil {
		p.bus.Publish(ctx, event)
	}
}

func (p *Poller) invokeCallback(ctx context.Context, cb Callback, event *types.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("event_type", string(event.Type)).
				Interface("panic", r).
				Msg("Watcher callback panicked")
		}
	}()
	if err := cb(ctx, event); err != nil {
		p.logger.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("Watcher callback failed")
	}
}
