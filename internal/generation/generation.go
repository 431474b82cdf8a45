// Package generation talks to the image-generation model.
//
// A Generator takes a primary image, optional reference images and a prompt,
// and returns the generated image as a base64 data URL. Gemini is the real
// backend; Mock echoes the primary image and is used when no API key is set.
// Retrying wraps either with bounded exponential backoff.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest marks requests that can never succeed and must not be retried.
	ErrInvalidRequest = errors.New("invalid generation request")
	// ErrNoImage is returned when the model answers without an image.
	ErrNoImage = errors.New("model returned no image")
)

// Request is one generation call. Images are base64 data URLs.
type Request struct {
	Primary     string   `json:"primary"`
	References  []string `json:"references,omitempty"`
	Prompt      string   `json:"prompt"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
}

// Generator produces a new image from a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// AspectRatios lists the ratios the model understands.
var AspectRatios = []string{"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9"}

// Validate checks a request before it is sent.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt is empty", ErrInvalidRequest)
	}
	if _, _, err := ParseDataURL(r.Primary); err != nil {
		return fmt.Errorf("%w: primary image: %v", ErrInvalidRequest, err)
	}
	for i, ref := range r.References {
		if _, _, err := ParseDataURL(ref); err != nil {
			return fmt.Errorf("%w: reference %d: %v", ErrInvalidRequest, i+1, err)
		}
	}
	if r.AspectRatio != "" && !validRatio(r.AspectRatio) {
		return fmt.Errorf("%w: aspect ratio %q", ErrInvalidRequest, r.AspectRatio)
	}
	return nil
}

func validRatio(ratio string) bool {
	for _, r := range AspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}

// Mock returns the primary image unchanged.
type Mock struct{}

// Generate validates req and echoes its primary image.
func (Mock) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	return req.Primary, nil
}
