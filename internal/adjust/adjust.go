// Package adjust maps ImageAdjustments to a renderable transform: a CSS filter
// string, a CSS transform, overlay parameters, and the same effect at pixel level.
package adjust

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aliskhannn/nano-editor/internal/model"
)

// Identity is the filter and transform string that changes nothing.
const Identity = "none"

// Params is the resolved, clamped form of an ImageAdjustments value.
// Brightness, Contrast and Saturate are multipliers around 1.0; HueRotate is in
// degrees around 0; Sepia, Grayscale and Invert are amounts in [0,1].
type Params struct {
	Brightness float64
	Contrast   float64
	Saturate   float64
	HueRotate  float64
	Sepia      float64
	Grayscale  float64
	Invert     float64
	Blur       float64 // px
	Sharpen    float64 // gaussian sigma, pixel baking only
	Grain      float64 // overlay opacity in [0,1]
	Vignette   Overlay

	Rotation       float64
	FlipHorizontal bool
	FlipVertical   bool
}

// Compute resolves adjustments into Params. It clamps every slider to its range
// and combines them in a fixed order: brightness, contrast, saturation, then the
// named filter overrides. It never fails; unknown filters apply no override.
func Compute(adj model.ImageAdjustments) Params {
	a := Clamp(adj)

	// Brightness: the brightness slider, exposure and the four tone sliders.
	brightness := 1 + a.Brightness/100
	brightness *= 1 + a.Exposure/200
	brightness *= 1 + (a.Highlights+a.Shadows+a.Whites+a.Blacks)/1600

	// Contrast: contrast slider plus local-contrast style sliders.
	contrast := 1 + a.Contrast/100
	contrast *= 1 + (a.Clarity+a.Dehaze+a.Texture)/1000

	// Saturation: -100 is a full desaturation whatever vibrance says.
	saturate := 1 + a.Saturation/100
	saturate *= 1 + a.Vibrance/200
	if a.Saturation <= -100 {
		saturate = 0
	}

	hue := a.Tint * 0.3
	sepia := 0.0
	if a.Temperature > 0 {
		sepia = a.Temperature / 100 * 0.3
	} else {
		hue -= a.Temperature * 0.15
	}

	p := Params{
		Brightness:     brightness,
		Contrast:       contrast,
		Saturate:       saturate,
		HueRotate:      hue,
		Sepia:          sepia,
		Blur:           a.NoiseReduction / 100,
		Sharpen:        a.Sharpness / 100 * 2,
		Grain:          a.Grain / 100 * 0.5,
		Vignette:       Vignette(a),
		Rotation:       a.Rotation,
		FlipHorizontal: a.FlipHorizontal,
		FlipVertical:   a.FlipVertical,
	}

	if preset, ok := LookupPreset(a.Filter); ok {
		p.Brightness *= preset.Brightness
		p.Contrast *= preset.Contrast
		p.Saturate *= preset.Saturate
		p.HueRotate += preset.HueRotate
		p.Sepia += preset.Sepia
		p.Grayscale = preset.Grayscale
		p.Invert = preset.Invert
	}

	p.Brightness = round(clamp(p.Brightness, 0, maxMultiplier))
	p.Contrast = round(clamp(p.Contrast, 0, maxMultiplier))
	p.Saturate = round(clamp(p.Saturate, 0, maxMultiplier))
	p.HueRotate = round(clamp(p.HueRotate, -180, 180))
	p.Sepia = round(clamp(p.Sepia, 0, 1))
	p.Grayscale = round(clamp(p.Grayscale, 0, 1))
	p.Invert = round(clamp(p.Invert, 0, 1))
	p.Blur = round(p.Blur)
	p.Sharpen = round(p.Sharpen)
	p.Grain = round(p.Grain)

	return p
}

// maxMultiplier bounds brightness, contrast and saturation.
const maxMultiplier = 3

// FilterString renders the CSS filter for adj. Functions appear in the fixed
// order brightness, contrast, saturate, hue-rotate, sepia, grayscale, invert,
// blur; identity functions are omitted and all-identity input yields "none".
func FilterString(adj model.ImageAdjustments) string {
	return Compute(adj).Filter()
}

// Filter renders p as a CSS filter string.
func (p Params) Filter() string {
	var parts []string

	if p.Brightness != 1 {
		parts = append(parts, "brightness("+num(p.Brightness)+")")
	}
	if p.Contrast != 1 {
		parts = append(parts, "contrast("+num(p.Contrast)+")")
	}
	if p.Saturate != 1 {
		parts = append(parts, "saturate("+num(p.Saturate)+")")
	}
	if p.HueRotate != 0 {
		parts = append(parts, "hue-rotate("+num(p.HueRotate)+"deg)")
	}
	if p.Sepia != 0 {
		parts = append(parts, "sepia("+num(p.Sepia)+")")
	}
	if p.Grayscale != 0 {
		parts = append(parts, "grayscale("+num(p.Grayscale)+")")
	}
	if p.Invert != 0 {
		parts = append(parts, "invert("+num(p.Invert)+")")
	}
	if p.Blur != 0 {
		parts = append(parts, "blur("+num(p.Blur)+"px)")
	}

	if len(parts) == 0 {
		return Identity
	}

	return strings.Join(parts, " ")
}

// Transform renders rotation and flips as a CSS transform.
func Transform(adj model.ImageAdjustments) string {
	a := Clamp(adj)

	var parts []string
	if a.Rotation != 0 {
		parts = append(parts, "rotate("+num(round(a.Rotation))+"deg)")
	}
	if a.FlipHorizontal {
		parts = append(parts, "scaleX(-1)")
	}
	if a.FlipVertical {
		parts = append(parts, "scaleY(-1)")
	}

	if len(parts) == 0 {
		return Identity
	}

	return strings.Join(parts, " ")
}

// Overlay parameterises the vignette drawn on top of the filtered image.
type Overlay struct {
	Opacity float64 `json:"opacity"` // 0..1
	Light   bool    `json:"light"`   // white vignette for positive amounts
	Inner   float64 `json:"inner"`   // fraction of the radius where the falloff starts
	Circle  bool    `json:"circle"`
}

// Vignette derives the overlay from the vignette sliders.
// Negative amounts darken the corners, positive amounts lighten them.
func Vignette(adj model.ImageAdjustments) Overlay {
	a := Clamp(adj)
	if a.Vignette == 0 {
		return Overlay{}
	}

	return Overlay{
		Opacity: round(math.Abs(a.Vignette) / 100 * 0.8),
		Light:   a.Vignette > 0,
		Inner:   round(0.5 + a.VignetteRoundness/100*0.25),
		Circle:  a.VignetteRoundness > 0,
	}
}

// CSS renders the overlay as a radial gradient, or "none" when it is invisible.
func (o Overlay) CSS() string {
	if o.Opacity == 0 {
		return Identity
	}

	rgb := "0,0,0"
	if o.Light {
		rgb = "255,255,255"
	}
	shape := "ellipse"
	if o.Circle {
		shape = "circle"
	}

	return fmt.Sprintf("radial-gradient(%s at center, rgba(%s,0) %s%%, rgba(%s,%s) 100%%)",
		shape, rgb, num(round(o.Inner*100)), rgb, num(o.Opacity))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round(v float64) float64 {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
