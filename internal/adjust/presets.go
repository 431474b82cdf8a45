package adjust

import "sort"

// Preset is a named filter. Multipliers apply on top of the slider values,
// the remaining amounts add to or replace them.
type Preset struct {
	Name       string  `json:"name"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturate   float64 `json:"saturate"`
	HueRotate  float64 `json:"hue_rotate"`
	Sepia      float64 `json:"sepia"`
	Grayscale  float64 `json:"grayscale"`
	Invert     float64 `json:"invert"`
}

var presets = map[string]Preset{
	"none":     {Name: "none", Brightness: 1, Contrast: 1, Saturate: 1},
	"vivid":    {Name: "vivid", Brightness: 1.05, Contrast: 1.15, Saturate: 1.4},
	"warm":     {Name: "warm", Brightness: 1.05, Contrast: 1, Saturate: 1.1, HueRotate: -10, Sepia: 0.2},
	"cool":     {Name: "cool", Brightness: 1, Contrast: 1.05, Saturate: 0.95, HueRotate: 15},
	"vintage":  {Name: "vintage", Brightness: 1.1, Contrast: 0.85, Saturate: 0.8, Sepia: 0.35},
	"noir":     {Name: "noir", Brightness: 0.95, Contrast: 1.4, Saturate: 1, Grayscale: 1},
	"fade":     {Name: "fade", Brightness: 1.1, Contrast: 0.8, Saturate: 0.75},
	"dramatic": {Name: "dramatic", Brightness: 0.9, Contrast: 1.5, Saturate: 1.2},
	"sepia":    {Name: "sepia", Brightness: 1, Contrast: 1, Saturate: 1, Sepia: 1},
	"mono":     {Name: "mono", Brightness: 1, Contrast: 1.1, Saturate: 1, Grayscale: 1},
	"invert":   {Name: "invert", Brightness: 1, Contrast: 1, Saturate: 1, Invert: 1},
}

// LookupPreset returns the named filter. Empty and unknown names report false.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// Presets lists the named filters sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
