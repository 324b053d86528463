package mailbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/atomicfile"
	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/types"
)

const (
	dirInbound    = "inbound"
	dirOutbound   = "outbound"
	dirArchive    = "archive"
	dirState      = ".state"
	dirDeadletter = ".deadletter"

	locksFile = "locks.json"
)

// Store manages the on-disk mailbox: provider-sharded message
// directories plus the lock state file. All writes are temp+rename.
//
//	inbound/<provider>/   outbound/<provider>/   archive/<provider>/
//	.state/               .deadletter/<provider>/
type Store struct {
	root   string
	logger zerolog.Logger
}

// NewStore opens (and lays out) a mailbox rooted at root
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{dirInbound, dirOutbound, dirArchive, dirState, dirDeadletter} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create mailbox directory: %w", err)
		}
	}
	return &Store{
		root:   root,
		logger: log.WithComponent("mailbox"),
	}, nil
}

// Root returns the mailbox root directory
func (s *Store) Root() string {
	return s.root
}

// ReadMessage decodes the message file at path
func (s *Store) ReadMessage(path string) (*types.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}
	return DecodeMessage(data)
}

// CreateInbound writes an inbound message into its provider shard
// atomically and returns the file path
func (s *Store) CreateInbound(msg *types.Message) (string, error) {
	return s.create(dirInbound, msg)
}

// CreateOutboundDraft assigns a draft id when missing and writes the
// message under outbound/<provider>/
func (s *Store) CreateOutboundDraft(msg *types.Message) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return s.create(dirOutbound, msg)
}

// create encodes and writes msg under <kind>/<provider>/
func (s *Store) create(kind string, msg *types.Message) (string, error) {
	data, err := EncodeMessage(msg)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, kind, msg.Provider)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create provider shard: %w", err)
	}

	path := filepath.Join(dir, Filename(msg))
	if err := atomicfile.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}

	s.logger.Debug().
		Str("id", msg.ID).
		Str("provider", msg.Provider).
		Str("path", path).
		Msg("Message written")
	return path, nil
}

// GetByID finds a message by scanning inbound, then outbound, then
// archive. Returns the message and its current path.
func (s *Store) GetByID(id string) (*types.Message, string, error) {
	for _, kind := range []string{dirInbound, dirOutbound, dirArchive} {
		path, err := s.findInKind(kind, id)
		if err != nil {
			return nil, "", err
		}
		if path == "" {
			continue
		}
		msg, err := s.ReadMessage(path)
		if err != nil {
			return nil, "", err
		}
		return msg, path, nil
	}
	return nil, "", ErrMessageNotFound
}

// findInKind scans every provider shard of kind for the id suffix
func (s *Store) findInKind(kind, id string) (string, error) {
	suffix := "_" + id + ".md"
	base := filepath.Join(s.root, kind)

	providers, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to scan %s: %w", kind, err)
	}

	for _, provider := range providers {
		if !provider.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(base, provider.Name()))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.HasSuffix(entry.Name(), suffix) {
				return filepath.Join(base, provider.Name(), entry.Name()), nil
			}
		}
	}
	return "", nil
}

// ListInbound returns inbound messages, optionally filtered by
// provider and minimum timestamp, ordered oldest first. Unreadable
// files are skipped with a warning.
func (s *Store) ListInbound(provider string, since time.Time) ([]*types.Message, error) {
	base := filepath.Join(s.root, dirInbound)
	var shards []string
	if provider != "" {
		shards = []string{filepath.Join(base, provider)}
	} else {
		entries, err := os.ReadDir(base)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inbound: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				shards = append(shards, filepath.Join(base, entry.Name()))
			}
		}
	}

	var messages []*types.Message
	for _, shard := range shards {
		entries, err := os.ReadDir(shard)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to scan provider shard: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			path := filepath.Join(shard, entry.Name())
			msg, err := s.ReadMessage(path)
			if err != nil {
				s.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable message")
				continue
			}
			if !since.IsZero() && msg.Timestamp.Before(since) {
				continue
			}
			messages = append(messages, msg)
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, nil
}

// Archive moves the message file to archive/<provider>/ and returns
// the new path
func (s *Store) Archive(id string) (string, error) {
	return s.moveTo(id, dirArchive)
}

// MoveToDeadletter moves the message file to .deadletter/<provider>/
// and returns the new path
func (s *Store) MoveToDeadletter(id string) (string, error) {
	return s.moveTo(id, dirDeadletter)
}

// moveTo relocates a message into dest/<provider>/, preserving the
// filename
func (s *Store) moveTo(id, dest string) (string, error) {
	msg, path, err := s.GetByID(id)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, dest, msg.Provider)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s shard: %w", dest, err)
	}

	target := filepath.Join(dir, filepath.Base(path))
	if err := atomicfile.Move(path, target); err != nil {
		return "", fmt.Errorf("failed to move message: %w", err)
	}

	s.logger.Debug().
		Str("id", id).
		Str("from", path).
		Str("to", target).
		Msg("Message moved")
	return target, nil
}

// LoadLocks reads the lock map from .state/locks.json. A missing file
// yields an empty map.
func (s *Store) LoadLocks() (map[string]*types.LockEntry, error) {
	path := filepath.Join(s.root, dirState, locksFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*types.LockEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read locks file: %w", err)
	}

	locks := map[string]*types.LockEntry{}
	if err := json.Unmarshal(data, &locks); err != nil {
		return nil, fmt.Errorf("failed to parse locks file: %w", err)
	}
	return locks, nil
}

// SaveLocks atomically persists the lock map to .state/locks.json
func (s *Store) SaveLocks(locks map[string]*types.LockEntry) error {
	data, err := json.MarshalIndent(locks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode locks: %w", err)
	}
	path := filepath.Join(s.root, dirState, locksFile)
	if err := atomicfile.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write locks file: %w", err)
	}
	return nil
}
