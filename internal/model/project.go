package model

import (
	"time"

	"github.com/google/uuid"
)

// Revision is one saved state of a project.
type Revision struct {
	ID          uuid.UUID        `json:"id"`
	Image       StoredImage      `json:"image"`
	Adjustments ImageAdjustments `json:"adjustments"`
	Note        string           `json:"note,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Project is a lightweight snapshot kept in the local project cache.
type Project struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Owner       string           `json:"owner,omitempty"`
	Image       StoredImage      `json:"image"`
	Adjustments ImageAdjustments `json:"adjustments"`
	Revisions   []Revision       `json:"revisions"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
