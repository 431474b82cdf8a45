package model

// HSL color channels, in hue-wheel order.
const (
	ChannelRed     = "red"
	ChannelOrange  = "orange"
	ChannelYellow  = "yellow"
	ChannelGreen   = "green"
	ChannelAqua    = "aqua"
	ChannelBlue    = "blue"
	ChannelPurple  = "purple"
	ChannelMagenta = "magenta"
)

// Channels lists every HSL channel. An HSL map always carries all of them.
var Channels = []string{
	ChannelRed, ChannelOrange, ChannelYellow, ChannelGreen,
	ChannelAqua, ChannelBlue, ChannelPurple, ChannelMagenta,
}

// HSLAdjustment shifts one color channel.
type HSLAdjustment struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Luminance  float64 `json:"luminance"`
}

// ToneGrade tints one tonal range.
type ToneGrade struct {
	Hue        float64 `json:"hue"`        // 0..360
	Saturation float64 `json:"saturation"` // 0..100
}

// ColorGrading tints shadows, midtones and highlights separately.
type ColorGrading struct {
	Shadows    ToneGrade `json:"shadows"`
	Midtones   ToneGrade `json:"midtones"`
	Highlights ToneGrade `json:"highlights"`
	Balance    float64   `json:"balance"` // -100..100, negative favours shadows
}

// ImageAdjustments is the full set of non-destructive edits of a session.
// The zero value of every numeric field is the identity transform.
type ImageAdjustments struct {
	Exposure   float64 `json:"exposure"`
	Contrast   float64 `json:"contrast"`
	Highlights float64 `json:"highlights"`
	Shadows    float64 `json:"shadows"`
	Whites     float64 `json:"whites"`
	Blacks     float64 `json:"blacks"`
	Brightness float64 `json:"brightness"`

	Saturation  float64 `json:"saturation"`
	Vibrance    float64 `json:"vibrance"`
	Temperature float64 `json:"temperature"`
	Tint        float64 `json:"tint"`

	Texture        float64 `json:"texture"`
	Clarity        float64 `json:"clarity"`
	Dehaze         float64 `json:"dehaze"`
	Sharpness      float64 `json:"sharpness"`
	NoiseReduction float64 `json:"noiseReduction"`
	Grain          float64 `json:"grain"`

	Vignette          float64 `json:"vignette"`
	VignetteRoundness float64 `json:"vignetteRoundness"`

	Rotation       float64 `json:"rotation"`
	FlipHorizontal bool    `json:"flipHorizontal"`
	FlipVertical   bool    `json:"flipVertical"`

	HSL          map[string]HSLAdjustment `json:"hsl"`
	ColorGrading ColorGrading             `json:"colorGrading"`

	Filter string `json:"filter,omitempty"`
}

// DefaultAdjustments returns identity adjustments with every HSL channel present.
func DefaultAdjustments() ImageAdjustments {
	hsl := make(map[string]HSLAdjustment, len(Channels))
	for _, c := range Channels {
		hsl[c] = HSLAdjustment{}
	}

	return ImageAdjustments{HSL: hsl}
}

// Clone returns a deep copy, filling in any missing HSL channel.
func (a ImageAdjustments) Clone() ImageAdjustments {
	out := a
	out.HSL = make(map[string]HSLAdjustment, len(Channels))
	for _, c := range Channels {
		out.HSL[c] = a.HSL[c]
	}

	return out
}
