package adjust

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/aliskhannn/nano-editor/internal/model"
)

// Bake applies adj to src at pixel level and returns the edited image.
//
// The pipeline is: flips and rotation, per-channel HSL and color grading, the
// CSS filter chain (same functions and order as FilterString), sharpening,
// noise reduction, grain and finally the vignette overlay.
func Bake(src image.Image, adj model.ImageAdjustments) *image.NRGBA {
	a := Clamp(adj)
	p := Compute(a)

	img := imaging.Clone(src)

	if p.FlipHorizontal {
		img = imaging.FlipH(img)
	}
	if p.FlipVertical {
		img = imaging.FlipV(img)
	}
	if p.Rotation != 0 {
		// imaging rotates counter-clockwise, CSS clockwise.
		img = imaging.Rotate(img, -p.Rotation, color.Transparent)
	}

	if tone := tonePass(a); tone != nil {
		img = imaging.AdjustFunc(img, tone)
	}

	if steps := p.steps(); len(steps) > 0 {
		img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
			for _, s := range steps {
				r, g, b = s(r, g, b)
				r, g, b = clamp01(r), clamp01(g), clamp01(b)
			}
			return color.NRGBA{R: to8(r), G: to8(g), B: to8(b), A: c.A}
		})
	}

	if p.Sharpen > 0 {
		img = imaging.Sharpen(img, p.Sharpen)
	}
	if p.Blur > 0 {
		img = imaging.Blur(img, p.Blur)
	}
	if p.Grain > 0 {
		addGrain(img, p.Grain)
	}
	if p.Vignette.Opacity > 0 {
		img = drawVignette(img, p.Vignette)
	}

	return img
}

var hueCenters = []struct {
	name string
	deg  float64
}{
	{model.ChannelRed, 0},
	{model.ChannelOrange, 30},
	{model.ChannelYellow, 60},
	{model.ChannelGreen, 120},
	{model.ChannelAqua, 180},
	{model.ChannelBlue, 240},
	{model.ChannelPurple, 270},
	{model.ChannelMagenta, 300},
	{model.ChannelRed, 360},
}

// channelWeights splits a hue between the two surrounding channel centers.
// The weights sum to 1.
func channelWeights(h float64) (string, float64, string, float64) {
	for i := 0; i < len(hueCenters)-1; i++ {
		lo, hi := hueCenters[i], hueCenters[i+1]
		if h >= lo.deg && h <= hi.deg {
			t := (h - lo.deg) / (hi.deg - lo.deg)
			return lo.name, 1 - t, hi.name, t
		}
	}
	return model.ChannelRed, 1, model.ChannelRed, 0
}

// tonePass builds the per-pixel HSL and color grading function, or nil when
// neither is in use.
func tonePass(a model.ImageAdjustments) func(color.NRGBA) color.NRGBA {
	hslActive := false
	for _, c := range model.Channels {
		if a.HSL[c] != (model.HSLAdjustment{}) {
			hslActive = true
			break
		}
	}

	g := a.ColorGrading
	gradingActive := g.Shadows.Saturation > 0 || g.Midtones.Saturation > 0 || g.Highlights.Saturation > 0

	if !hslActive && !gradingActive {
		return nil
	}

	pivot := math.Max(0.05, math.Min(0.95, 0.5+g.Balance/200))
	tints := []struct {
		grade model.ToneGrade
		rgb   [3]float64
	}{
		{g.Shadows, hueRGB(g.Shadows.Hue)},
		{g.Midtones, hueRGB(g.Midtones.Hue)},
		{g.Highlights, hueRGB(g.Highlights.Hue)},
	}

	return func(c color.NRGBA) color.NRGBA {
		r, gr, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255

		if hslActive {
			h, s, l := rgbToHSL(r, gr, b)
			n1, w1, n2, w2 := channelWeights(h)
			c1, c2 := a.HSL[n1], a.HSL[n2]

			dh := c1.Hue*w1 + c2.Hue*w2
			ds := c1.Saturation*w1 + c2.Saturation*w2
			dl := c1.Luminance*w1 + c2.Luminance*w2

			h = math.Mod(h+dh*0.3+360, 360)
			l = clamp01(l + dl/100*0.3*s) // grays carry no hue, leave them alone
			s = clamp01(s * (1 + ds/100))
			r, gr, b = hslToRGB(h, s, l)
		}

		if gradingActive {
			_, _, l := rgbToHSL(r, gr, b)
			shadows := clamp01((pivot - l) / pivot)
			highlights := clamp01((l - pivot) / (1 - pivot))
			weights := [3]float64{shadows, 1 - shadows - highlights, highlights}

			for i, t := range tints {
				if t.grade.Saturation == 0 {
					continue
				}
				amt := weights[i] * t.grade.Saturation / 100 * 0.3
				r += (t.rgb[0] - 0.5) * amt
				gr += (t.rgb[1] - 0.5) * amt
				b += (t.rgb[2] - 0.5) * amt
			}
		}

		return color.NRGBA{R: to8(clamp01(r)), G: to8(clamp01(gr)), B: to8(clamp01(b)), A: c.A}
	}
}

func hueRGB(h float64) [3]float64 {
	r, g, b := hslToRGB(h, 1, 0.5)
	return [3]float64{r, g, b}
}

// addGrain adds deterministic per-pixel luminance noise.
func addGrain(img *image.NRGBA, amount float64) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		n := (noise(uint32(i/4)) - 0.5) * amount * 255 * 0.4
		for c := 0; c < 3; c++ {
			img.Pix[i+c] = uint8(math.Max(0, math.Min(255, float64(img.Pix[i+c])+n)))
		}
	}
}

// noise hashes x into [0,1].
func noise(x uint32) float64 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return float64(x) / math.MaxUint32
}

func drawVignette(img *image.NRGBA, o Overlay) *image.NRGBA {
	w, h := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
	cx, cy := w/2, h/2

	radius := math.Hypot(w, h) / 2
	if o.Circle {
		radius = math.Max(w, h) / 2
	}

	var v uint8
	if o.Light {
		v = 255
	}

	grad := gg.NewRadialGradient(cx, cy, radius*o.Inner, cx, cy, radius)
	grad.AddColorStop(0, color.NRGBA{R: v, G: v, B: v, A: 0})
	grad.AddColorStop(1, color.NRGBA{R: v, G: v, B: v, A: uint8(o.Opacity * 255)})

	dc := gg.NewContextForImage(img)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	return imaging.Clone(dc.Image())
}

func to8(v float64) uint8 {
	return uint8(math.Round(v * 255))
}

func rgbToHSL(r, g, b float64) (h, s, l float64) {
	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	l = (maxC + minC) / 2

	if maxC == minC {
		return 0, 0, l
	}

	d := maxC - minC
	if l > 0.5 {
		s = d / (2 - maxC - minC)
	} else {
		s = d / (maxC + minC)
	}

	switch maxC {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}

	return h * 60, s, l
}

func hslToRGB(h, s, l float64) (float64, float64, float64) {
	if s == 0 {
		return l, l, l
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	hk := h / 360

	return hueToChannel(p, q, hk+1.0/3), hueToChannel(p, q, hk), hueToChannel(p, q, hk-1.0/3)
}

func hueToChannel(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}

	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}
