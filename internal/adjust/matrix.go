package adjust

import "math"

// step is one CSS filter function applied to an sRGB triple in [0,1].
// Browsers clamp after every function, so steps are applied one at a time.
type step func(r, g, b float64) (float64, float64, float64)

// steps returns the pixel operations equivalent to p.Filter(), in the same order.
func (p Params) steps() []step {
	var out []step

	if p.Brightness != 1 {
		k := p.Brightness
		out = append(out, func(r, g, b float64) (float64, float64, float64) {
			return r * k, g * k, b * k
		})
	}
	if p.Contrast != 1 {
		k := p.Contrast
		out = append(out, func(r, g, b float64) (float64, float64, float64) {
			return (r-0.5)*k + 0.5, (g-0.5)*k + 0.5, (b-0.5)*k + 0.5
		})
	}
	if p.Saturate != 1 {
		out = append(out, saturateMatrix(p.Saturate).step())
	}
	if p.HueRotate != 0 {
		out = append(out, hueRotateMatrix(p.HueRotate).step())
	}
	if p.Sepia != 0 {
		out = append(out, sepiaMatrix(p.Sepia).step())
	}
	if p.Grayscale != 0 {
		out = append(out, grayscaleMatrix(p.Grayscale).step())
	}
	if p.Invert != 0 {
		k := p.Invert
		out = append(out, func(r, g, b float64) (float64, float64, float64) {
			return r*(1-2*k) + k, g*(1-2*k) + k, b*(1-2*k) + k
		})
	}

	return out
}

type matrix [3][3]float64

func (m matrix) step() step {
	return func(r, g, b float64) (float64, float64, float64) {
		return m[0][0]*r + m[0][1]*g + m[0][2]*b,
			m[1][0]*r + m[1][1]*g + m[1][2]*b,
			m[2][0]*r + m[2][1]*g + m[2][2]*b
	}
}

// Matrices follow the Filter Effects definitions of the CSS shorthand functions.

func saturateMatrix(s float64) matrix {
	return matrix{
		{0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s},
	}
}

func hueRotateMatrix(deg float64) matrix {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)

	return matrix{
		{0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928},
		{0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283},
		{0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072},
	}
}

func sepiaMatrix(amount float64) matrix {
	a := 1 - amount

	return matrix{
		{0.393 + 0.607*a, 0.769 - 0.769*a, 0.189 - 0.189*a},
		{0.349 - 0.349*a, 0.686 + 0.314*a, 0.168 - 0.168*a},
		{0.272 - 0.272*a, 0.534 - 0.534*a, 0.131 + 0.869*a},
	}
}

func grayscaleMatrix(amount float64) matrix {
	a := 1 - amount

	return matrix{
		{0.2126 + 0.7874*a, 0.7152 - 0.7152*a, 0.0722 - 0.0722*a},
		{0.2126 - 0.2126*a, 0.7152 + 0.2848*a, 0.0722 - 0.0722*a},
		{0.2126 - 0.2126*a, 0.7152 - 0.7152*a, 0.0722 + 0.9278*a},
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
