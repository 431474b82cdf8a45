package model

import (
	"time"

	"github.com/google/uuid"
)

// Export job statuses. Transitions are pending -> processing -> completed | failed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Resize modes.
const (
	ResizeNone    = "none"
	ResizeFit     = "fit"     // fit inside width x height, keep aspect ratio
	ResizeFill    = "fill"    // cover width x height and crop the center
	ResizeExact   = "exact"   // stretch to width x height
	ResizePercent = "percent" // scale by Percent
)

// Resize describes the output dimensions of an export.
type Resize struct {
	Mode    string  `json:"mode"`
	Width   int     `json:"width,omitempty"`
	Height  int     `json:"height,omitempty"`
	Percent float64 `json:"percent,omitempty"`
}

// ExportConfig is one requested output variant.
type ExportConfig struct {
	Format           string `json:"format"`  // jpeg, png, gif, tiff, bmp
	Quality          int    `json:"quality"` // 1..100, jpeg only
	Resize           Resize `json:"resize"`
	ColorSpace       string `json:"color_space,omitempty"`
	Preset           string `json:"preset,omitempty"`
	FilenameTemplate string `json:"filename_template,omitempty"`
}

// ExportJob is a queued export of one source image with baked-in adjustments.
type ExportJob struct {
	ID          uuid.UUID        `json:"id"`
	Owner       string           `json:"owner,omitempty"`
	Config      ExportConfig     `json:"config"`
	Source      StoredImage      `json:"source"`
	Adjustments ImageAdjustments `json:"adjustments"`
	Status      string           `json:"status"`
	Progress    int              `json:"progress"`
	Filename    string           `json:"filename,omitempty"`
	ResultURL   string           `json:"result_url,omitempty"`
	Result      []byte           `json:"-"`
	ContentType string           `json:"content_type,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Finished reports whether the job reached a terminal status.
func (j ExportJob) Finished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// ExportBatch is the message published to the broker for asynchronous exports.
type ExportBatch struct {
	ID          uuid.UUID        `json:"id"`
	Owner       string           `json:"owner,omitempty"`
	Source      StoredImage      `json:"source"`
	Adjustments ImageAdjustments `json:"adjustments"`
	Configs     []ExportConfig   `json:"configs"`
}
