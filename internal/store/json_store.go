// Package store is the local project cache: a JSON file holding lightweight
// project snapshots and their revision history.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/nano-editor/internal/model"
)

// DefaultMaxRevisions caps the revision history of one project.
const DefaultMaxRevisions = 20

var (
	// ErrProjectNotFound is returned when a project is not found.
	ErrProjectNotFound = errors.New("project not found")
	// ErrAlreadyExists is returned when saving a project whose ID is taken.
	ErrAlreadyExists = errors.New("project already exists")
	// ErrRevisionNotFound is returned when restoring an unknown revision.
	ErrRevisionNotFound = errors.New("revision not found")
)

// data represents the JSON file structure.
type data struct {
	Projects []model.Project `json:"projects"`
}

// JSONStore keeps projects in memory and persists every change to one file.
type JSONStore struct {
	mu           sync.RWMutex
	path         string
	data         data
	maxRevisions int
	clock        model.Clock
}

// NewJSONStore opens the cache file at path, creating it when missing.
func NewJSONStore(path string, maxRevisions int, clock model.Clock) (*JSONStore, error) {
	if maxRevisions <= 0 {
		maxRevisions = DefaultMaxRevisions
	}
	if clock == nil {
		clock = model.RealClock{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	s := &JSONStore{
		path:         path,
		data:         data{Projects: []model.Project{}},
		maxRevisions: maxRevisions,
		clock:        clock,
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := s.save(); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("stat cache file: %w", err)
	}

	return s, nil
}

func (s *JSONStore) load() error {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(content) == 0 {
		return nil
	}
	if err := json.Unmarshal(content, &s.data); err != nil {
		return fmt.Errorf("decode cache file: %w", err)
	}
	for i := range s.data.Projects {
		s.data.Projects[i].Adjustments = s.data.Projects[i].Adjustments.Clone()
	}
	return nil
}

// save writes the file through a temp file and a rename.
func (s *JSONStore) save() error {
	content, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// List returns the projects of owner, most recently updated first. An empty
// owner lists every project.
func (s *JSONStore) List(_ context.Context, owner string) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Project, 0, len(s.data.Projects))
	for _, p := range s.data.Projects {
		if owner == "" || p.Owner == owner {
			result = append(result, clone(p))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	return result, nil
}

// Get retrieves a project by ID.
func (s *JSONStore) Get(_ context.Context, id uuid.UUID) (model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.index(id)
	if i < 0 {
		return model.Project{}, ErrProjectNotFound
	}
	return clone(s.data.Projects[i]), nil
}

// Save adds a new project and records its first revision.
func (s *JSONStore) Save(_ context.Context, p model.Project) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if s.index(p.ID) >= 0 {
		return model.Project{}, ErrAlreadyExists
	}

	now := s.clock.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Adjustments = p.Adjustments.Clone()
	p.Revisions = []model.Revision{s.revision(p, "created", now)}

	s.data.Projects = append(s.data.Projects, p)
	if err := s.save(); err != nil {
		s.data.Projects = s.data.Projects[:len(s.data.Projects)-1]
		return model.Project{}, err
	}

	return clone(p), nil
}

// Update replaces the name, image and adjustments of a project and appends a
// revision. The oldest revisions are dropped beyond the cap.
func (s *JSONStore) Update(_ context.Context, p model.Project, note string) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(p.ID)
	if i < 0 {
		return model.Project{}, ErrProjectNotFound
	}

	prev := s.data.Projects[i]
	now := s.clock.Now()

	next := prev
	if p.Name != "" {
		next.Name = p.Name
	}
	if p.Image.URL != "" {
		next.Image = p.Image
	}
	next.Adjustments = p.Adjustments.Clone()
	next.UpdatedAt = now
	next.Revisions = s.appendRevision(prev.Revisions, s.revision(next, note, now))

	s.data.Projects[i] = next
	if err := s.save(); err != nil {
		s.data.Projects[i] = prev
		return model.Project{}, err
	}

	return clone(next), nil
}

// Restore makes a past revision the current state, recorded as a new revision.
func (s *JSONStore) Restore(_ context.Context, id, revisionID uuid.UUID) (model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return model.Project{}, ErrProjectNotFound
	}

	prev := s.data.Projects[i]
	var rev *model.Revision
	for k := range prev.Revisions {
		if prev.Revisions[k].ID == revisionID {
			rev = &prev.Revisions[k]
			break
		}
	}
	if rev == nil {
		return model.Project{}, ErrRevisionNotFound
	}

	now := s.clock.Now()
	next := prev
	next.Image = rev.Image
	next.Adjustments = rev.Adjustments.Clone()
	next.UpdatedAt = now
	next.Revisions = s.appendRevision(prev.Revisions, s.revision(next, "restored", now))

	s.data.Projects[i] = next
	if err := s.save(); err != nil {
		s.data.Projects[i] = prev
		return model.Project{}, err
	}

	return clone(next), nil
}

// Remove deletes a project by ID.
func (s *JSONStore) Remove(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return ErrProjectNotFound
	}

	prev := s.data.Projects
	s.data.Projects = append(append([]model.Project{}, prev[:i]...), prev[i+1:]...)
	if err := s.save(); err != nil {
		s.data.Projects = prev
		return err
	}
	return nil
}

func (s *JSONStore) index(id uuid.UUID) int {
	for i := range s.data.Projects {
		if s.data.Projects[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *JSONStore) revision(p model.Project, note string, now time.Time) model.Revision {
	return model.Revision{
		ID:          uuid.New(),
		Image:       p.Image,
		Adjustments: p.Adjustments.Clone(),
		Note:        note,
		CreatedAt:   now,
	}
}

func (s *JSONStore) appendRevision(revs []model.Revision, r model.Revision) []model.Revision {
	out := append(append([]model.Revision{}, revs...), r)
	if over := len(out) - s.maxRevisions; over > 0 {
		out = out[over:]
	}
	return out
}

// clone copies a project so callers never share maps or slices with the cache.
func clone(p model.Project) model.Project {
	p.Adjustments = p.Adjustments.Clone()
	p.Revisions = append([]model.Revision(nil), p.Revisions...)
	for i := range p.Revisions {
		p.Revisions[i].Adjustments = p.Revisions[i].Adjustments.Clone()
	}
	return p
}
