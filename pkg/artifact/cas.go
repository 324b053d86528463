package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/atomicfile"
	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/metrics"
)

// CAS is a content-addressable blob store. A blob with SHA-256 hash h
// lives at <root>/<h[0:2]>/<h[2:4]>/<h>; identical bytes share one
// file. Writers may race for the same hash: the bytes are identical by
// construction, so last-writer-wins is benign.
type CAS struct {
	root   string
	logger zerolog.Logger
}

// NewCAS opens (creating if needed) a blob store rooted at root
func NewCAS(root string) (*CAS, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root %s: %w", root, err)
	}
	return &CAS{
		root:   root,
		logger: log.WithComponent("cas"),
	}, nil
}

// Root returns the store root directory
func (s *CAS) Root() string {
	return s.root
}

// HashBytes returns the lowercase hex SHA-256 digest of data
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateHash checks that hash is exactly 64 lowercase hex characters
func ValidateHash(hash string) error {
	if len(hash) != 64 {
		return fmt.Errorf("%w: expected 64 hex characters, got %d", ErrInvalidHash, len(hash))
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%w: non-hex character %q", ErrInvalidHash, c)
		}
	}
	return nil
}

func (s *CAS) shardPath(hash string) string {
	return filepath.Join(s.root, hash[0:2], hash[2:4], hash)
}

// Store writes data under its content hash and returns the hash and
// blob path. When the blob already exists the write is skipped; this
// is the deduplication point.
func (s *CAS) Store(data []byte) (string, string, error) {
	hash := HashBytes(data)
	path := s.shardPath(hash)

	if _, err := os.Stat(path); err == nil {
		metrics.ArtifactsDeduplicated.Inc()
		s.logger.Debug().Str("hash", hash).Msg("Blob already stored, skipping write")
		return hash, path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", "", fmt.Errorf("failed to create shard directory: %w", err)
	}
	if err := atomicfile.WriteFile(path, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to store blob %s: %w", hash, err)
	}

	s.logger.Debug().Str("hash", hash).Int("size", len(data)).Msg("Blob stored")
	return hash, path, nil
}

// PathOf returns the blob path for hash. ErrInvalidHash for malformed
// hashes, ErrNotFound when no blob exists.
func (s *CAS) PathOf(hash string) (string, error) {
	if err := ValidateHash(hash); err != nil {
		return "", err
	}
	path := s.shardPath(hash)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: no blob for hash %s", ErrNotFound, hash)
		}
		return "", fmt.Errorf("failed to stat blob %s: %w", hash, err)
	}
	return path, nil
}

// Exists reports whether a blob for hash is stored
func (s *CAS) Exists(hash string) bool {
	if ValidateHash(hash) != nil {
		return false
	}
	_, err := os.Stat(s.shardPath(hash))
	return err == nil
}

// Read returns the blob bytes for hash
func (s *CAS) Read(hash string) ([]byte, error) {
	path, err := s.PathOf(hash)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", hash, err)
	}
	return data, nil
}

// Remove unlinks the blob for hash and prunes now-empty shard
// directories best-effort. Removing an absent blob is not an error.
func (s *CAS) Remove(hash string) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}
	path := s.shardPath(hash)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove blob %s: %w", hash, err)
	}

	// Remove fails on non-empty directories, which ends the pruning.
	dir := filepath.Dir(path)
	for i := 0; i < 2; i++ {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}

	s.logger.Debug().Str("hash", hash).Msg("Blob removed")
	return nil
}
