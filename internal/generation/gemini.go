package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/wb-go/wbf/zlog"
	"google.golang.org/genai"
)

// DefaultModel is the image-capable Gemini model.
const DefaultModel = "gemini-2.5-flash-image-preview"

// GeminiOptions configure the Gemini client.
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string // overrides the API endpoint, used against test servers
}

// Gemini generates images with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	return &Gemini{client: client, model: model}, nil
}

// Generate sends the images and prompt and returns the first image in the answer.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	parts := make([]*genai.Part, 0, len(req.References)+2)
	for _, img := range append([]string{req.Primary}, req.References...) {
		data, mimeType, err := ParseDataURL(img)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, mimeType))
	}
	parts = append(parts, genai.NewPartFromText(prompt(req)))

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			if !strings.HasPrefix(p.InlineData.MIMEType, "image/") {
				continue
			}
			return EncodeDataURL(p.InlineData.Data, p.InlineData.MIMEType), nil
		}
	}

	text := resp.Text()
	zlog.Logger.Warn().Str("model", g.model).Str("text", text).Msg("generation answered without an image")

	if text != "" {
		return "", fmt.Errorf("%w: %s", ErrNoImage, text)
	}
	return "", ErrNoImage
}

// prompt appends the aspect ratio to the user's instruction.
func prompt(req Request) string {
	p := strings.TrimSpace(req.Prompt)
	if req.AspectRatio == "" {
		return p
	}
	return fmt.Sprintf("%s\n\nOutput aspect ratio: %s.", p, req.AspectRatio)
}
