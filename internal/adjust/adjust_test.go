package adjust

import (
	"errors"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/aliskhannn/nano-editor/internal/model"
)

func TestFilterString_DefaultsAreIdentity(t *testing.T) {
	if got := FilterString(model.DefaultAdjustments()); got != Identity {
		t.Errorf("FilterString(defaults) = %q, want %q", got, Identity)
	}
	if got := FilterString(model.ImageAdjustments{}); got != Identity {
		t.Errorf("FilterString(zero value) = %q, want %q", got, Identity)
	}
	if got := Transform(model.DefaultAdjustments()); got != Identity {
		t.Errorf("Transform(defaults) = %q, want %q", got, Identity)
	}
	if got := Vignette(model.DefaultAdjustments()).CSS(); got != Identity {
		t.Errorf("Vignette(defaults).CSS() = %q, want %q", got, Identity)
	}
	if got := FilterString(model.ImageAdjustments{Filter: "none"}); got != Identity {
		t.Errorf("FilterString(filter none) = %q, want %q", got, Identity)
	}
}

func TestFilterString_Order(t *testing.T) {
	adj := model.DefaultAdjustments()
	adj.Brightness = 20
	adj.Contrast = -10
	adj.Saturation = 50
	adj.Tint = 10
	adj.NoiseReduction = 50

	got := FilterString(adj)
	want := "brightness(1.2) contrast(0.9) saturate(1.5) hue-rotate(3deg) blur(0.5px)"
	if got != want {
		t.Errorf("FilterString() = %q, want %q", got, want)
	}
}

func TestFilterString_Deterministic(t *testing.T) {
	adj := model.DefaultAdjustments()
	adj.Exposure = 33
	adj.Clarity = 12
	adj.Temperature = 40
	adj.Filter = "vintage"

	first := FilterString(adj)
	for i := 0; i < 50; i++ {
		if got := FilterString(adj); got != first {
			t.Fatalf("FilterString() not stable: %q then %q", first, got)
		}
	}
}

func TestCompute_Clamping(t *testing.T) {
	tests := []struct {
		name  string
		adj   model.ImageAdjustments
		check func(t *testing.T, p Params)
	}{
		{
			name: "saturation -100 fully desaturates",
			adj:  model.ImageAdjustments{Saturation: -100, Vibrance: 100},
			check: func(t *testing.T, p Params) {
				if p.Saturate != 0 {
					t.Errorf("Saturate = %v, want 0", p.Saturate)
				}
			},
		},
		{
			name: "saturation below -100 clamps instead of wrapping",
			adj:  model.ImageAdjustments{Saturation: -250},
			check: func(t *testing.T, p Params) {
				if p.Saturate != 0 {
					t.Errorf("Saturate = %v, want 0", p.Saturate)
				}
			},
		},
		{
			name: "brightness above range clamps to the maximum slider",
			adj:  model.ImageAdjustments{Brightness: 1000},
			check: func(t *testing.T, p Params) {
				if p.Brightness != 2 {
					t.Errorf("Brightness = %v, want 2", p.Brightness)
				}
			},
		},
		{
			name: "grain below zero clamps to zero",
			adj:  model.ImageAdjustments{Grain: -40},
			check: func(t *testing.T, p Params) {
				if p.Grain != 0 {
					t.Errorf("Grain = %v, want 0", p.Grain)
				}
			},
		},
		{
			name: "NaN falls back to default",
			adj:  model.ImageAdjustments{Contrast: math.NaN()},
			check: func(t *testing.T, p Params) {
				if p.Contrast != 1 {
					t.Errorf("Contrast = %v, want 1", p.Contrast)
				}
			},
		},
		{
			name: "every slider at its extreme stays within bounds",
			adj: model.ImageAdjustments{
				Exposure: 500, Contrast: 500, Brightness: 500, Saturation: 500, Vibrance: 500,
				Highlights: 500, Shadows: 500, Whites: 500, Blacks: 500, Clarity: 500,
				Dehaze: 500, Texture: 500, Filter: "vivid",
			},
			check: func(t *testing.T, p Params) {
				for name, v := range map[string]float64{"brightness": p.Brightness, "contrast": p.Contrast, "saturate": p.Saturate} {
					if v < 0 || v > maxMultiplier {
						t.Errorf("%s = %v, outside [0,%v]", name, v, maxMultiplier)
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Compute(tt.adj))
		})
	}
}

func TestCompute_NamedFilterOverrides(t *testing.T) {
	adj := model.DefaultAdjustments()
	adj.Filter = "noir"

	p := Compute(adj)
	if p.Grayscale != 1 {
		t.Errorf("Grayscale = %v, want 1", p.Grayscale)
	}
	if p.Contrast != 1.4 {
		t.Errorf("Contrast = %v, want 1.4", p.Contrast)
	}

	adj.Filter = "no-such-filter"
	if got := FilterString(adj); got != Identity {
		t.Errorf("unknown filter: FilterString() = %q, want %q", got, Identity)
	}
}

func TestTransform(t *testing.T) {
	adj := model.DefaultAdjustments()
	adj.Rotation = 90
	adj.FlipHorizontal = true

	if got, want := Transform(adj), "rotate(90deg) scaleX(-1)"; got != want {
		t.Errorf("Transform() = %q, want %q", got, want)
	}
}

func TestVignette_CSS(t *testing.T) {
	adj := model.DefaultAdjustments()
	adj.Vignette = -50

	o := Vignette(adj)
	if o.Opacity != 0.4 || o.Light {
		t.Fatalf("Vignette() = %+v, want dark overlay with opacity 0.4", o)
	}

	css := o.CSS()
	if !strings.HasPrefix(css, "radial-gradient(ellipse") || !strings.Contains(css, "rgba(0,0,0,0.4) 100%") {
		t.Errorf("CSS() = %q", css)
	}
}

func TestSetAndGet(t *testing.T) {
	adj := model.DefaultAdjustments()

	adj, err := Set(adj, "contrast", 150)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, _ := Get(adj, "contrast"); v != 100 {
		t.Errorf("contrast = %v, want clamped 100", v)
	}

	adj, err = Set(adj, "flipVertical", 1)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !adj.FlipVertical {
		t.Error("flipVertical not set")
	}

	if _, err := Set(adj, "nope", 1); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Set(unknown) error = %v, want ErrUnknownField", err)
	}

	if len(FieldNames()) != 22 {
		t.Errorf("len(FieldNames()) = %d, want 22", len(FieldNames()))
	}
}

func TestSetHSL(t *testing.T) {
	adj, err := SetHSL(model.ImageAdjustments{}, model.ChannelBlue, "saturation", -30)
	if err != nil {
		t.Fatalf("SetHSL() error = %v", err)
	}
	if len(adj.HSL) != len(model.Channels) {
		t.Errorf("len(HSL) = %d, want %d", len(adj.HSL), len(model.Channels))
	}
	if adj.HSL[model.ChannelBlue].Saturation != -30 {
		t.Errorf("blue saturation = %v, want -30", adj.HSL[model.ChannelBlue].Saturation)
	}

	if _, err := SetHSL(adj, "teal", "hue", 1); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("SetHSL(teal) error = %v, want ErrUnknownChannel", err)
	}
	if _, err := SetHSL(adj, model.ChannelRed, "chroma", 1); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("SetHSL(chroma) error = %v, want ErrUnknownChannel", err)
	}
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestBake_IdentityKeepsPixels(t *testing.T) {
	src := solid(4, 4, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	out := Bake(src, model.DefaultAdjustments())
	if got := out.NRGBAAt(2, 2); got != src.NRGBAAt(2, 2) {
		t.Errorf("pixel = %v, want %v", got, src.NRGBAAt(2, 2))
	}
}

func TestBake_FullDesaturationIsGray(t *testing.T) {
	src := solid(4, 4, color.NRGBA{R: 220, G: 40, B: 90, A: 255})
	adj := model.DefaultAdjustments()
	adj.Saturation = -100

	got := Bake(src, adj).NRGBAAt(1, 1)
	if diff(got.R, got.G) > 1 || diff(got.G, got.B) > 1 {
		t.Errorf("pixel = %v, want gray", got)
	}
}

func TestBake_FlipAndRotateKeepBounds(t *testing.T) {
	src := solid(6, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})

	adj := model.DefaultAdjustments()
	adj.FlipHorizontal = true
	out := Bake(src, adj)
	if got := out.NRGBAAt(5, 0); got.R != 255 {
		t.Errorf("flipped pixel = %v, want red", got)
	}

	adj.Rotation = 90
	out = Bake(src, adj)
	if b := out.Bounds(); b.Dx() != 3 || b.Dy() != 6 {
		t.Errorf("rotated bounds = %v, want 3x6", b)
	}
}

func TestBake_VignetteDarkensCorners(t *testing.T) {
	src := solid(40, 40, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	adj := model.DefaultAdjustments()
	adj.Vignette = -100

	out := Bake(src, adj)
	corner, center := out.NRGBAAt(0, 0), out.NRGBAAt(20, 20)
	if corner.R >= center.R {
		t.Errorf("corner %v not darker than center %v", corner, center)
	}
}

func TestBake_HSLShiftsOnlyMatchingChannel(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 255, A: 255}) // blue
	src.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 255, B: 0, A: 255}) // green

	adj, err := SetHSL(model.DefaultAdjustments(), model.ChannelBlue, "saturation", -100)
	if err != nil {
		t.Fatalf("SetHSL() error = %v", err)
	}

	out := Bake(src, adj)
	blue, green := out.NRGBAAt(0, 0), out.NRGBAAt(1, 0)
	if diff(blue.R, blue.B) > 1 {
		t.Errorf("blue pixel = %v, want desaturated", blue)
	}
	if green != src.NRGBAAt(1, 0) {
		t.Errorf("green pixel = %v, want unchanged", green)
	}
}

func TestHSLRoundTrip(t *testing.T) {
	for _, c := range [][3]float64{{1, 0, 0}, {0.2, 0.6, 0.4}, {0.5, 0.5, 0.5}, {0.9, 0.8, 0.1}} {
		h, s, l := rgbToHSL(c[0], c[1], c[2])
		r, g, b := hslToRGB(h, s, l)
		if math.Abs(r-c[0]) > 1e-9 || math.Abs(g-c[1]) > 1e-9 || math.Abs(b-c[2]) > 1e-9 {
			t.Errorf("round trip %v -> (%v,%v,%v)", c, r, g, b)
		}
	}
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
