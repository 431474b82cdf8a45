package model

import (
	"time"

	"github.com/google/uuid"
)

// Image kinds a StoredImage can play in a session.
const (
	KindPrimary   = "primary"
	KindGenerated = "generated"
	KindReference = "reference"
	KindExport    = "export"
)

// StoredImage is an immutable reference to an image: a base64 data URL or a remote URL.
// It is replaced, never mutated.
type StoredImage struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStoredImage creates a StoredImage with a fresh ID.
func NewStoredImage(url, name, kind string, now time.Time) StoredImage {
	return StoredImage{
		ID:        uuid.New(),
		URL:       url,
		Name:      name,
		Kind:      kind,
		CreatedAt: now,
	}
}
