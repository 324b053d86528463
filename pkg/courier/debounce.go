package courier

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/clock"
	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// FlushFunc receives the ordered messages of one debounce key
type FlushFunc func(key string, messages []*types.Message)

// debounceBuffer accumulates messages for one key
type debounceBuffer struct {
	first    time.Time
	last     time.Time
	messages []*types.Message
	cancel   chan struct{}
}

// Debouncer groups rapid-fire inbound messages per conversation and
// flushes each group once the sender pauses (idle window) or the
// group has waited long enough (max wait). One timer goroutine runs
// per active key; the injected clock keeps timing deterministic in
// tests.
type Debouncer struct {
	window  time.Duration
	maxWait time.Duration
	clk     clock.Clock
	flush   FlushFunc
	logger  zerolog.Logger

	mu      sync.Mutex
	buffers map[string]*debounceBuffer
	closed  bool
}

// NewDebouncer creates a debouncer. window is the idle gap that
// triggers a flush; maxWait bounds how long a busy conversation can
// defer it.
func NewDebouncer(window, maxWait time.Duration, clk clock.Clock, flush FlushFunc) *Debouncer {
	return &Debouncer{
		window:  window,
		maxWait: maxWait,
		clk:     clk,
		flush:   flush,
		logger:  log.WithComponent("debounce"),
		buffers: map[string]*debounceBuffer{},
	}
}

// DebounceKey groups messages by conversation: session id and thread
// key, each defaulting to "_"
func DebounceKey(msg *types.Message) string {
	session := msg.Session.ID
	if session == "" {
		session = "_"
	}
	thread := msg.Session.ThreadKey
	if thread == "" {
		thread = "_"
	}
	return session + ":" + thread
}

// Add buffers a message under its conversation key. A message landing
// after the idle window or past the max wait flushes the whole buffer
// immediately.
func (d *Debouncer) Add(msg *types.Message) error {
	key := DebounceKey(msg)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrHandlerClosed
	}

	now := d.clk.Now()
	buf, ok := d.buffers[key]
	if !ok {
		buf = &debounceBuffer{
			first:  now,
			last:   now,
			cancel: make(chan struct{}),
		}
		buf.messages = append(buf.messages, msg)
		d.buffers[key] = buf
		d.updateGaugeLocked()
		d.mu.Unlock()

		go d.watch(key, buf.cancel)
		return nil
	}

	flushNow := now.Sub(buf.last) >= d.window || now.Sub(buf.first) >= d.maxWait
	buf.messages = append(buf.messages, msg)
	buf.last = now
	if !flushNow {
		d.updateGaugeLocked()
		d.mu.Unlock()
		return nil
	}

	detached := d.detachLocked(key)
	d.mu.Unlock()
	d.deliver(key, detached)
	return nil
}

// watch waits for the key's buffer to fall idle and flushes it
func (d *Debouncer) watch(key string, cancel chan struct{}) {
	wait := d.window
	for {
		select {
		case <-cancel:
			return
		case <-d.clk.After(wait):
		}

		d.mu.Lock()
		buf, ok := d.buffers[key]
		if !ok {
			d.mu.Unlock()
			return
		}
		now := d.clk.Now()
		idle := now.Sub(buf.last)
		elapsed := now.Sub(buf.first)
		if idle >= d.window || elapsed >= d.maxWait {
			detached := d.detachLocked(key)
			d.mu.Unlock()
			d.deliver(key, detached)
			return
		}
		// Messages kept arriving; re-arm for the earlier of the two
		// deadlines.
		wait = d.window - idle
		if remaining := d.maxWait - elapsed; remaining < wait {
			wait = remaining
		}
		d.mu.Unlock()
	}
}

// detachLocked removes the key's buffer and stops its timer; callers
// hold mu
func (d *Debouncer) detachLocked(key string) *debounceBuffer {
	buf, ok := d.buffers[key]
	if !ok {
		return nil
	}
	delete(d.buffers, key)
	close(buf.cancel)
	d.updateGaugeLocked()
	return buf
}

// deliver invokes the flush callback for a detached buffer
func (d *Debouncer) deliver(key string, buf *debounceBuffer) {
	if buf == nil || len(buf.messages) == 0 {
		return
	}
	d.logger.Debug().
		Str("key", key).
		Int("count", len(buf.messages)).
		Msg("Flushing debounced messages")
	d.flush(key, buf.messages)
}

// FlushAll drains every buffer and closes the debouncer to further
// input
func (d *Debouncer) FlushAll() {
	d.mu.Lock()
	d.closed = true
	detached := map[string]*debounceBuffer{}
	for key := range d.buffers {
		detached[key] = d.detachLocked(key)
	}
	d.mu.Unlock()

	for key, buf := range detached {
		d.deliver(key, buf)
	}
}

// PendingCount returns the number of buffered messages across all
// keys
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingLocked()
}

// pendingLocked counts buffered messages; callers hold mu
func (d *Debouncer) pendingLocked() int {
	pending := 0
	for _, buf := range d.buffers {
		pending += len(buf.messages)
	}
	return pending
}

// updateGaugeLocked refreshes the pending gauge; callers hold mu
func (d *Debouncer) updateGaugeLocked() {
	metrics.DebouncePending.Set(float64(d.pendingLocked()))
}
