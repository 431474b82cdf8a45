package adjust

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aliskhannn/nano-editor/internal/model"
)

var (
	// ErrUnknownField is returned when a slider name is not an adjustment field.
	ErrUnknownField = errors.New("unknown adjustment field")
	// ErrUnknownChannel is returned for an HSL channel or component that does not exist.
	ErrUnknownChannel = errors.New("unknown hsl channel")
)

// Range is the valid interval of a slider.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

var (
	bipolar  = Range{Min: -100, Max: 100}
	unipolar = Range{Min: 0, Max: 100}
	degrees  = Range{Min: -180, Max: 180}
	toggle   = Range{Min: 0, Max: 1}
)

type field struct {
	rng Range
	ptr func(a *model.ImageAdjustments) *float64
	flg func(a *model.ImageAdjustments) *bool
}

var fields = map[string]field{
	"exposure":          {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Exposure }},
	"contrast":          {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Contrast }},
	"highlights":        {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Highlights }},
	"shadows":           {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Shadows }},
	"whites":            {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Whites }},
	"blacks":            {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Blacks }},
	"brightness":        {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Brightness }},
	"saturation":        {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Saturation }},
	"vibrance":          {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Vibrance }},
	"temperature":       {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Temperature }},
	"tint":              {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Tint }},
	"texture":           {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Texture }},
	"clarity":           {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Clarity }},
	"dehaze":            {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Dehaze }},
	"sharpness":         {rng: unipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Sharpness }},
	"noiseReduction":    {rng: unipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.NoiseReduction }},
	"grain":             {rng: unipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Grain }},
	"vignette":          {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Vignette }},
	"vignetteRoundness": {rng: bipolar, ptr: func(a *model.ImageAdjustments) *float64 { return &a.VignetteRoundness }},
	"rotation":          {rng: degrees, ptr: func(a *model.ImageAdjustments) *float64 { return &a.Rotation }},
	"flipHorizontal":    {rng: toggle, flg: func(a *model.ImageAdjustments) *bool { return &a.FlipHorizontal }},
	"flipVertical":      {rng: toggle, flg: func(a *model.ImageAdjustments) *bool { return &a.FlipVertical }},
}

// Fields returns every slider name with its range.
func Fields() map[string]Range {
	out := make(map[string]Range, len(fields))
	for name, f := range fields {
		out[name] = f.rng
	}
	return out
}

// FieldNames returns the slider names in sorted order.
func FieldNames() []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the value of a slider. Flip toggles read as 0 or 1.
func Get(adj model.ImageAdjustments, name string) (float64, error) {
	f, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("get %q: %w", name, ErrUnknownField)
	}

	if f.flg != nil {
		if *f.flg(&adj) {
			return 1, nil
		}
		return 0, nil
	}

	return *f.ptr(&adj), nil
}

// Set returns a copy of adj with the slider set to value, clamped to its range.
// Flip toggles are set when value is non-zero.
func Set(adj model.ImageAdjustments, name string, value float64) (model.ImageAdjustments, error) {
	f, ok := fields[name]
	if !ok {
		return adj, fmt.Errorf("set %q: %w", name, ErrUnknownField)
	}

	out := adj.Clone()
	if f.flg != nil {
		*f.flg(&out) = value != 0
		return out, nil
	}

	*f.ptr(&out) = clamp(value, f.rng.Min, f.rng.Max)

	return out, nil
}

// SetHSL returns a copy of adj with one HSL component of a channel set.
// component is one of "hue", "saturation", "luminance".
func SetHSL(adj model.ImageAdjustments, channel, component string, value float64) (model.ImageAdjustments, error) {
	if !isChannel(channel) {
		return adj, fmt.Errorf("set hsl %q: %w", channel, ErrUnknownChannel)
	}

	out := adj.Clone()
	hsl := out.HSL[channel]
	v := clamp(value, bipolar.Min, bipolar.Max)

	switch component {
	case "hue":
		hsl.Hue = v
	case "saturation":
		hsl.Saturation = v
	case "luminance":
		hsl.Luminance = v
	default:
		return adj, fmt.Errorf("set hsl %q.%q: %w", channel, component, ErrUnknownChannel)
	}

	out.HSL[channel] = hsl

	return out, nil
}

// Clamp returns a copy of adj with every value inside its documented range
// and every HSL channel present. NaN values fall back to 0.
func Clamp(adj model.ImageAdjustments) model.ImageAdjustments {
	out := adj.Clone()

	for _, f := range fields {
		if f.ptr != nil {
			p := f.ptr(&out)
			*p = clamp(*p, f.rng.Min, f.rng.Max)
		}
	}

	for _, c := range model.Channels {
		h := out.HSL[c]
		h.Hue = clamp(h.Hue, bipolar.Min, bipolar.Max)
		h.Saturation = clamp(h.Saturation, bipolar.Min, bipolar.Max)
		h.Luminance = clamp(h.Luminance, bipolar.Min, bipolar.Max)
		out.HSL[c] = h
	}

	g := &out.ColorGrading
	for _, t := range []*model.ToneGrade{&g.Shadows, &g.Midtones, &g.Highlights} {
		t.Hue = clamp(t.Hue, 0, 360)
		t.Saturation = clamp(t.Saturation, 0, 100)
	}
	g.Balance = clamp(g.Balance, bipolar.Min, bipolar.Max)

	return out
}

func isChannel(name string) bool {
	for _, c := range model.Channels {
		if c == name {
			return true
		}
	}
	return false
}
