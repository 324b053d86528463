package watcher

import (
	"path/filepath"

	"github.com/monoco-io/fabric/pkg/bus"
	"github.com/monoco-io/fabric/pkg/frontmatter"
	"github.com/monoco-io/fabric/pkg/types"
)

// MailboxWatcher observes a provider-sharded inbound directory and
// emits mailbox.inbound_received for every new message file. The
// frontmatter supplies provider, session, and message identity; the
// provider shard directory is the fallback when the block omits it.
type MailboxWatcher struct {
	*Poller
}

// NewMailboxWatcher creates a watcher over the mailbox inbound root
func NewMailboxWatcher(cfg Config, b *bus.Bus) *MailboxWatcher {
	if cfg.Name == "" {
		cfg.Name = "mailbox"
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = []string{"*.md"}
	}
	cfg.Recursive = true

	w := &MailboxWatcher{}
	w.Poller = NewPoller(cfg, b, w.reduce)
	return w
}

func (w *MailboxWatcher) reduce(fe *types.FileEvent) []*types.Event {
	// Only arrivals matter; claims and archive moves show up as
	// deletions here and are handled by the lock manager.
	if fe.ChangeType != types.ChangeCreated {
		return nil
	}

	meta, _, err := frontmatter.Parse([]byte(fe.NewContent))
	if err != nil {
		w.logger.Warn().Err(err).Str("path", fe.Path).Msg("Failed to parse message frontmatter")
		return nil
	}

	messageID := metaString(meta, "id")
	if messageID == "" {
		w.logger.Warn().Str("path", fe.Path).Msg("Inbound message missing id")
		return nil
	}

	provider := metaString(meta, "provider")
	if provider == "" {
		provider = filepath.Base(filepath.Dir(fe.Path))
	}

	sessionID := ""
	if session, ok := meta["session"].(map[string]any); ok {
		sessionID = metaString(session, "id")
	}

	payload := map[string]any{
		"message_id": messageID,
		"provider":   provider,
		"path":       fe.Path,
	}
	if sessionID != "" {
		payload["session_id"] = sessionID
	}
	return []*types.Event{{Type: types.EventMailboxInbound, Payload: payload}}
}
