package editor

import (
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/nano-editor/internal/adjust"
	"github.com/aliskhannn/nano-editor/internal/model"
)

// State is a read-only snapshot of a session, ready to render: the CSS
// filter, transform and vignette overlay are resolved from the adjustments.
type State struct {
	ID          uuid.UUID              `json:"id"`
	Owner       string                 `json:"owner,omitempty"`
	Image       *model.StoredImage     `json:"image,omitempty"`
	Primary     *model.StoredImage     `json:"primary,omitempty"`
	Versions    []model.StoredImage    `json:"versions"`
	References  []model.StoredImage    `json:"references"`
	Adjustments model.ImageAdjustments `json:"adjustments"`

	Filter      string         `json:"filter"`
	CSSFilter   string         `json:"css_filter"`
	Transform   string         `json:"transform"`
	Vignette    adjust.Overlay `json:"vignette"`
	VignetteCSS string         `json:"vignette_css"`
	Grain       float64        `json:"grain"`

	CanUndo bool     `json:"can_undo"`
	CanRedo bool     `json:"can_redo"`
	History []string `json:"history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// state builds the snapshot. The caller holds the lock.
func (s *Session) state() State {
	adj := s.adjustments.Clone()
	p := adjust.Compute(adj)

	st := State{
		ID:          s.id,
		Owner:       s.owner,
		Versions:    append([]model.StoredImage{}, s.versions...),
		References:  append([]model.StoredImage{}, s.references...),
		Adjustments: adj,
		Filter:      nonEmpty(adj.Filter, adjust.Identity),
		CSSFilter:   p.Filter(),
		Transform:   adjust.Transform(adj),
		Vignette:    p.Vignette,
		VignetteCSS: p.Vignette.CSS(),
		Grain:       p.Grain,
		CanUndo:     s.history.CanUndo(),
		CanRedo:     s.history.CanRedo(),
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}

	if s.primary != nil {
		primary := *s.primary
		st.Primary = &primary
	}
	if img := s.currentImage(); img != nil {
		cur := *img
		st.Image = &cur
	}

	past := s.history.Past()
	st.History = make([]string, len(past))
	for i, e := range past {
		st.History[i] = e.Label
	}

	return st
}
