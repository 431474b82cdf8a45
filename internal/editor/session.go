// Package editor holds editing sessions: the images a user is working on,
// their adjustments and the undo/redo history of every change.
package editor

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/nano-editor/internal/adjust"
	"github.com/aliskhannn/nano-editor/internal/history"
	"github.com/aliskhannn/nano-editor/internal/model"
)

// MaxReferences is how many reference images a session accepts.
const MaxReferences = 4

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoImage           = errors.New("session has no image")
	ErrVersionNotFound   = errors.New("version not found")
	ErrReferenceNotFound = errors.New("reference image not found")
	ErrTooManyReferences = errors.New("too many reference images")
	ErrUnknownFilter     = errors.New("unknown filter")
	ErrInvalidImage      = errors.New("image url is empty")
)

// snapshot is everything an undo can restore.
type snapshot struct {
	primary     *model.StoredImage
	versions    []model.StoredImage
	current     int
	references  []model.StoredImage
	adjustments model.ImageAdjustments
}

// Session is the explicit editing state of one user and one image.
//
// Every mutation applies immediately and records an entry whose Apply and
// Undo restore the full state after and before the change. History closures
// run while the session lock is held and never lock it themselves.
type Session struct {
	mu sync.Mutex

	id        uuid.UUID
	owner     string
	createdAt time.Time
	updatedAt time.Time

	primary     *model.StoredImage
	versions    []model.StoredImage // generated results, oldest first
	current     int                 // index into versions, -1 shows the primary
	references  []model.StoredImage
	adjustments model.ImageAdjustments

	history *history.Stack
	clock   model.Clock
}

// NewSession creates an empty session.
func NewSession(owner string, opts history.Options, clock model.Clock) *Session {
	if clock == nil {
		clock = model.RealClock{}
	}
	if opts.Clock == nil {
		opts.Clock = clock
	}

	now := clock.Now()
	return &Session{
		id:          uuid.New(),
		owner:       owner,
		createdAt:   now,
		updatedAt:   now,
		current:     -1,
		adjustments: model.DefaultAdjustments(),
		history:     history.New(opts),
		clock:       clock,
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Owner returns the opaque owner id the session was created for.
func (s *Session) Owner() string { return s.owner }

func (s *Session) snapshot() snapshot {
	snap := snapshot{
		current:     s.current,
		versions:    append([]model.StoredImage(nil), s.versions...),
		references:  append([]model.StoredImage(nil), s.references...),
		adjustments: s.adjustments.Clone(),
	}
	if s.primary != nil {
		p := *s.primary
		snap.primary = &p
	}
	return snap
}

func (s *Session) restore(snap snapshot) {
	s.primary = nil
	if snap.primary != nil {
		p := *snap.primary
		s.primary = &p
	}
	s.versions = append([]model.StoredImage(nil), snap.versions...)
	s.current = snap.current
	s.references = append([]model.StoredImage(nil), snap.references...)
	s.adjustments = snap.adjustments.Clone()
	s.updatedAt = s.clock.Now()
}

// mutate runs fn under the lock and records the change in the history.
func (s *Session) mutate(label string, meta history.Metadata, fn func() error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.snapshot()
	if err := fn(); err != nil {
		s.restore(before)
		return State{}, err
	}
	after := s.snapshot()
	s.updatedAt = s.clock.Now()

	s.history.Push(history.Entry{
		Label: label,
		Op: history.Func{
			ApplyFn: func() error { s.restore(after); return nil },
			UndoFn:  func() error { s.restore(before); return nil },
		},
		Meta: meta,
	})

	return s.state(), nil
}

// SetImage makes img the primary image. Versions are dropped and adjustments reset.
func (s *Session) SetImage(img model.StoredImage) (State, error) {
	if img.URL == "" {
		return State{}, ErrInvalidImage
	}
	img.Kind = model.KindPrimary

	return s.mutate("Load image", history.Metadata{Action: "image", Payload: map[string]string{"name": img.Name}}, func() error {
		s.primary = &img
		s.versions = nil
		s.current = -1
		s.adjustments = model.DefaultAdjustments()
		return nil
	})
}

// SetAdjustment sets one slider by its JSON name.
func (s *Session) SetAdjustment(field string, value float64) (State, error) {
	meta := history.Metadata{
		Action:  "adjust",
		Tags:    []string{field},
		Payload: map[string]string{"field": field, "value": strconv.FormatFloat(value, 'f', -1, 64)},
	}

	return s.mutate("Adjust "+field, meta, func() error {
		adj, err := adjust.Set(s.adjustments, field, value)
		if err != nil {
			return err
		}
		s.adjustments = adj
		return nil
	})
}

// SetHSL sets one component of one HSL channel.
func (s *Session) SetHSL(channel, component string, value float64) (State, error) {
	meta := history.Metadata{
		Action:  "hsl",
		Tags:    []string{channel, component},
		Payload: map[string]string{"value": strconv.FormatFloat(value, 'f', -1, 64)},
	}

	return s.mutate(fmt.Sprintf("HSL %s %s", channel, component), meta, func() error {
		adj, err := adjust.SetHSL(s.adjustments, channel, component, value)
		if err != nil {
			return err
		}
		s.adjustments = adj
		return nil
	})
}

// SetColorGrading replaces the color grading.
func (s *Session) SetColorGrading(cg model.ColorGrading) (State, error) {
	return s.mutate("Color grading", history.Metadata{Action: "grading"}, func() error {
		adj := s.adjustments.Clone()
		adj.ColorGrading = cg
		s.adjustments = adjust.Clamp(adj)
		return nil
	})
}

// SetAdjustments replaces every adjustment at once, keeping the current filter
// when adj names none.
func (s *Session) SetAdjustments(adj model.ImageAdjustments) (State, error) {
	return s.mutate("Apply adjustments", history.Metadata{Action: "adjustments"}, func() error {
		switch adj.Filter {
		case "":
			adj.Filter = s.adjustments.Filter
		case adjust.Identity:
			adj.Filter = ""
		default:
			if _, ok := adjust.LookupPreset(adj.Filter); !ok {
				return fmt.Errorf("%w: %q", ErrUnknownFilter, adj.Filter)
			}
		}
		s.adjustments = adjust.Clamp(adj)
		return nil
	})
}

// SetFilter selects a named filter. An empty name or "none" clears it.
func (s *Session) SetFilter(name string) (State, error) {
	if name != "" && name != adjust.Identity {
		if _, ok := adjust.LookupPreset(name); !ok {
			return State{}, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
		}
	}
	if name == adjust.Identity {
		name = ""
	}

	return s.mutate("Filter "+nonEmpty(name, adjust.Identity), history.Metadata{Action: "filter", Tags: []string{name}}, func() error {
		s.adjustments.Filter = name
		return nil
	})
}

// Reset replaces the adjustments with the identity.
func (s *Session) Reset() (State, error) {
	return s.mutate("Reset adjustments", history.Metadata{Action: "reset"}, func() error {
		s.adjustments = model.DefaultAdjustments()
		return nil
	})
}

// AddVersion appends a generated image and shows it.
func (s *Session) AddVersion(img model.StoredImage) (State, error) {
	if img.URL == "" {
		return State{}, ErrInvalidImage
	}
	img.Kind = model.KindGenerated

	return s.mutate("Generate", history.Metadata{Action: "generate", Payload: map[string]string{"version": img.ID.String()}}, func() error {
		if s.primary == nil {
			return ErrNoImage
		}
		s.versions = append(s.versions, img)
		s.current = len(s.versions) - 1
		return nil
	})
}

// SelectVersion shows a generated version, or the primary image for its ID or uuid.Nil.
func (s *Session) SelectVersion(id uuid.UUID) (State, error) {
	return s.mutate("Select version", history.Metadata{Action: "version", Payload: map[string]string{"version": id.String()}}, func() error {
		if s.primary == nil {
			return ErrNoImage
		}
		if id == uuid.Nil || id == s.primary.ID {
			s.current = -1
			return nil
		}
		for i, v := range s.versions {
			if v.ID == id {
				s.current = i
				return nil
			}
		}
		return ErrVersionNotFound
	})
}

// AddReference attaches a reference image used by generation.
func (s *Session) AddReference(img model.StoredImage) (State, error) {
	if img.URL == "" {
		return State{}, ErrInvalidImage
	}
	img.Kind = model.KindReference

	return s.mutate("Add reference", history.Metadata{Action: "reference", Tags: []string{"add"}}, func() error {
		if len(s.references) >= MaxReferences {
			return fmt.Errorf("%w: at most %d", ErrTooManyReferences, MaxReferences)
		}
		s.references = append(s.references, img)
		return nil
	})
}

// RemoveReference detaches a reference image.
func (s *Session) RemoveReference(id uuid.UUID) (State, error) {
	return s.mutate("Remove reference", history.Metadata{Action: "reference", Tags: []string{"remove"}}, func() error {
		for i, r := range s.references {
			if r.ID == id {
				s.references = append(s.references[:i:i], s.references[i+1:]...)
				return nil
			}
		}
		return ErrReferenceNotFound
	})
}

// Undo reverts the last recorded change. The bool is false when there was none.
func (s *Session) Undo() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.history.Undo()
	return s.state(), ok
}

// Redo reapplies the last undone change.
func (s *Session) Redo() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.history.Redo()
	return s.state(), ok
}

// ClearHistory forgets every recorded change without touching the state.
func (s *Session) ClearHistory() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Clear()
	return s.state()
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

// Current returns the displayed image: the selected version or the primary.
func (s *Session) Current() (model.StoredImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img := s.currentImage()
	if img == nil {
		return model.StoredImage{}, ErrNoImage
	}
	return *img, nil
}

// Adjustments returns a copy of the current adjustments.
func (s *Session) Adjustments() model.ImageAdjustments {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustments.Clone()
}

// References returns the attached reference images.
func (s *Session) References() []model.StoredImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StoredImage(nil), s.references...)
}

func (s *Session) currentImage() *model.StoredImage {
	if s.current >= 0 && s.current < len(s.versions) {
		return &s.versions[s.current]
	}
	return s.primary
}

func nonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
