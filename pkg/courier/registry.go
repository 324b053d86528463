package courier

import (
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
)

// Project is one registered workspace reachable through the courier
type Project struct {
	Slug         string            `json:"slug"`
	Path         string            `json:"path"`
	Config       map[string]string `json:"config,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
}

// WebhookSecret returns the per-project webhook secret, empty when
// unset
func (p *Project) WebhookSecret() string {
	return p.Config["webhook_secret"]
}

// Registry maps webhook slugs to project workspaces, persisted as a
// JSON file under the control directory
type Registry struct {
	path   string
	logger zerolog.Logger

	mu       sync.RWMutex
	projects map[string]*Project
}

// NewRegistry loads (or initializes) the registry file at path
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:     path,
		logger:   log.WithComponent("registry"),
		projects: map[string]*Project{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	if err := json.Unmarshal(data, &r.projects); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	return r, nil
}

// Register adds or replaces a project under slug and persists
func (r *Registry) Register(slug, path string, config map[string]string) (*Project, error) {
	if slug == "" || path == "" {
		return nil, fmt.Errorf("slug and path are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	project := &Project{
		Slug:         slug,
		Path:         path,
		Config:       config,
		RegisteredAt: time.Now().UTC(),
	}
	r.projects[slug] = project

	if err := r.persistLocked(); err != nil {
		return nil, err
	}
	r.logger.Info().Str("slug", slug).Str("path", path).Msg("Project registered")
	return project, nil
}

// Get looks up a project by slug
func (r *Registry) Get(slug string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	project, ok := r.projects[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, slug)
	}
	return project, nil
}

// List returns all projects ordered by slug
func (r *Registry) List() []*Project {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Project, 0, len(r.projects))
	for _, project := range r.projects {
		out = append(out, project)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// persistLocked saves the registry atomically; callers hold mu
func (r *Registry) persistLocked() error {
	data, err := json.MarshalIndent(r.projects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	if err := atomicfile.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	return nil
}
