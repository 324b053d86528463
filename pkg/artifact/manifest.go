package artifact

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/atomicfile"
	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// DefaultManifestPath returns the project-local manifest location,
// <project>/.monoco/artifacts/manifest.jsonl.
func DefaultManifestPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".monoco", "artifacts", "manifest.jsonl")
}

// Filter narrows List results
type Filter struct {
	Status         types.ArtifactStatus
	SourceType     types.SourceType
	Tags           []string // every tag must be present on the record
	IncludeExpired bool
}

// Stats summarizes the registry contents
type Stats struct {
	Total          int                          `json:"total"`
	ByStatus       map[types.ArtifactStatus]int `json:"by_status"`
	TotalSizeBytes int64                        `json:"total_size_bytes"`
	ManifestPath   string                       `json:"manifest_path"`
	CorruptLines   int                          `json:"corrupt_lines"`
}

// Registry is the JSONL manifest of artifact records. One JSON object
// per line, deleted records retained for audit until hard-deleted.
// Creates append a line; updates and hard-deletes rewrite the whole
// file to a temp sibling and rename over it. A single mutex serializes
// writers; readers tolerate the rename race.
type Registry struct {
	path    string
	mu      sync.Mutex
	records map[string]*types.Artifact
	corrupt int
	logger  zerolog.Logger
}

// OpenRegistry loads (or initializes) the manifest at path.
// Unparseable lines are dropped with a diagnostic counter; failure to
// create the manifest directory is fatal to the caller.
func OpenRegistry(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	r := &Registry{
		path:    path,
		records: make(map[string]*types.Artifact),
		logger:  log.WithComponent("manifest"),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open manifest %s: %w", r.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var a types.Artifact
		if err := json.Unmarshal(line, &a); err != nil || a.ArtifactID == "" {
			r.corrupt++
			metrics.ManifestCorruptLines.Inc()
			continue
		}
		r.records[a.ArtifactID] = &a
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", r.path, err)
	}

	if r.corrupt > 0 {
		r.logger.Warn().Int("corrupt_lines", r.corrupt).Msg("Dropped unparseable manifest lines")
	}
	return nil
}

// Path returns the manifest file location
func (r *Registry) Path() string {
	return r.path
}

// CorruptLines returns the number of lines dropped on load
func (r *Registry) CorruptLines() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.corrupt
}

// Append records a newly created artifact. The record is serialized
// to one line and appended; the file is never rewritten on create.
func (r *Registry) Append(a *types.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[a.ArtifactID]; exists {
		return fmt.Errorf("artifact %s already registered", a.ArtifactID)
	}

	line, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode manifest record: %w", err)
	}
	if err := atomicfile.AppendLine(r.path, line, 0644); err != nil {
		return err
	}

	clone := cloneArtifact(a)
	r.records[a.ArtifactID] = clone
	return nil
}

// Get returns the record for id. Only active artifacts are visible
// through Get; everything else reports ErrNotFound.
func (r *Registry) Get(id string) (*types.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.records[id]
	if !ok || a.Status != types.ArtifactActive {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneArtifact(a), nil
}

// lookup returns the record for id regardless of status
func (r *Registry) lookup(id string) (*types.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneArtifact(a), nil
}

// Update applies mutate to the record for id, stamps updated_at, and
// rewrites the manifest. Content-derived fields must not change.
func (r *Registry) Update(id string, now time.Time, mutate func(*types.Artifact)) (*types.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated := cloneArtifact(a)
	mutate(updated)
	if updated.ContentHash != a.ContentHash || updated.SizeBytes != a.SizeBytes {
		return nil, fmt.Errorf("%w: %s", ErrContentImmutable, id)
	}
	updated.ArtifactID = a.ArtifactID
	updated.CreatedAt = a.CreatedAt
	updated.UpdatedAt = now

	r.records[id] = updated
	if err := r.rewriteLocked(); err != nil {
		r.records[id] = a
		return nil, err
	}
	return cloneArtifact(updated), nil
}

// Delete removes the record for id from the manifest entirely (hard
// delete) and rewrites the file.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	delete(r.records, id)
	if err := r.rewriteLocked(); err != nil {
		r.records[id] = a
		return err
	}
	return nil
}

// List returns records matching the filter, newest first. Without an
// explicit status filter, deleted records are hidden and expired
// records are hidden unless IncludeExpired is set.
func (r *Registry) List(f Filter) []*types.Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*types.Artifact
	for _, a := range r.records {
		if f.Status != "" {
			if a.Status != f.Status {
				continue
			}
		} else {
			if a.Status == types.ArtifactDeleted {
				continue
			}
			if a.Status == types.ArtifactExpired && !f.IncludeExpired {
				continue
			}
		}
		if f.SourceType != "" && a.SourceType != f.SourceType {
			continue
		}
		if !hasAllTags(a.Tags, f.Tags) {
			continue
		}
		out = append(out, cloneArtifact(a))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ArtifactID < out[j].ArtifactID
	})
	return out
}

// Stats reports counts by status, total stored size, and the manifest
// location
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Total:        len(r.records),
		ByStatus:     make(map[types.ArtifactStatus]int),
		ManifestPath: r.path,
		CorruptLines: r.corrupt,
	}
	for _, a := range r.records {
		s.ByStatus[a.Status]++
		s.TotalSizeBytes += a.SizeBytes
	}
	return s
}

// CountsByStatus implements the metrics gauge source
func (r *Registry) CountsByStatus() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int)
	for _, a := range r.records {
		out[string(a.Status)]++
	}
	return out
}

// LiveReferences counts non-deleted records sharing hash. The blob
// for hash may be reclaimed only when this reaches zero.
func (r *Registry) LiveReferences(hash string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, a := range r.records {
		if a.ContentHash == hash && a.Status != types.ArtifactDeleted {
			n++
		}
	}
	return n
}

// SweepExpired marks every active record whose expires_at has passed
// as expired and returns the affected ids.
func (r *Registry) SweepExpired(now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var swept []string
	for id, a := range r.records {
		if a.Status != types.ArtifactActive || a.ExpiresAt == nil {
			continue
		}
		if a.ExpiresAt.After(now) {
			continue
		}
		a.Status = types.ArtifactExpired
		a.UpdatedAt = now
		swept = append(swept, id)
	}

	if len(swept) == 0 {
		return nil, nil
	}
	if err := r.rewriteLocked(); err != nil {
		return nil, err
	}
	sort.Strings(swept)
	r.logger.Info().Int("count", len(swept)).Msg("Expired artifacts swept")
	return swept, nil
}

// rewriteLocked serializes every record and atomically replaces the
// manifest. Callers must hold r.mu. File order is stable (created_at,
// then id) so rewrites are diffable.
func (r *Registry) rewriteLocked() error {
	ordered := make([]*types.Artifact, 0, len(r.records))
	for _, a := range r.records {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ArtifactID < ordered[j].ArtifactID
	})

	var buf bytes.Buffer
	for _, a := range ordered {
		line, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode manifest record %s: %w", a.ArtifactID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return atomicfile.WriteFile(r.path, buf.Bytes(), 0644)
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cloneArtifact(a *types.Artifact) *types.Artifact {
	clone := *a
	if a.Tags != nil {
		clone.Tags = append([]string(nil), a.Tags...)
	}
	if a.Metadata != nil {
		clone.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			clone.Metadata[k] = v
		}
	}
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		clone.ExpiresAt = &t
	}
	return &clone
}
