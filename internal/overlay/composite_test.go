package overlay

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestActiveAt(t *testing.T) {
	p := &Prebaked{Start: 2, End: 5}

	tests := []struct {
		t    float64
		want bool
	}{
		{1.9, false},
		{2.0, true},
		{3.5, true},
		{4.99, true},
		{5.0, false},
		{6.0, false},
	}
	for _, tc := range tests {
		if got := p.ActiveAt(tc.t); got != tc.want {
			t.Errorf("ActiveAt(%v) = %v, want %v", tc.t, got, tc.want)
		}
	}
}

func TestOpacityAt(t *testing.T) {
	p := &Prebaked{Start: 2, End: 10, FadeIn: 1, FadeOut: 2}

	tests := []struct {
		t    float64
		want float64
	}{
		{2.0, 0},
		{2.5, 0.5},
		{3.0, 1},
		{6.0, 1},
		{8.0, 1},
		{9.0, 0.5},
		{10.0, 0},
	}
	for _, tc := range tests {
		if got := p.OpacityAt(tc.t); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("OpacityAt(%v) = %v, want %v", tc.t, got, tc.want)
		}
	}
}

func TestOpacityAtNoFades(t *testing.T) {
	p := &Prebaked{Start: 0, End: 5}
	for _, tt := range []float64{0, 2.5, 4.99} {
		if got := p.OpacityAt(tt); got != 1 {
			t.Errorf("OpacityAt(%v) = %v, want 1", tt, got)
		}
	}
}

func TestCompositeFullOpacity(t *testing.T) {
	frame := solidNRGBA(10, 10, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	ov := &Prebaked{
		Bitmap: solidNRGBA(4, 4, color.NRGBA{R: 200, G: 100, B: 50, A: 255}),
		Y:      3, X: 3,
		Start: 0, End: 10,
	}

	Composite(frame, []*Prebaked{ov}, 5)

	got := frame.NRGBAAt(4, 4)
	if got.R != 200 || got.G != 100 || got.B != 50 {
		t.Errorf("covered pixel = %v, want overlay color", got)
	}
	if got := frame.NRGBAAt(0, 0); got.R != 0 || got.G != 0 || got.B != 0 {
		t.Errorf("uncovered pixel = %v, want untouched black", got)
	}
}

func TestCompositeHalfAlpha(t *testing.T) {
	frame := solidNRGBA(4, 4, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	ov := &Prebaked{
		Bitmap: solidNRGBA(4, 4, color.NRGBA{R: 255, G: 255, B: 255, A: 128}),
		Start:  0, End: 10,
	}

	Composite(frame, []*Prebaked{ov}, 1)

	got := frame.NRGBAAt(2, 2)
	want := uint8(float64(255) * 128 / 255)
	if diff := int(got.R) - int(want); diff < -1 || diff > 1 {
		t.Errorf("half-alpha blend R = %d, want ~%d", got.R, want)
	}
}

func TestCompositeSkipsInactive(t *testing.T) {
	frame := solidNRGBA(4, 4, color.NRGBA{A: 255})
	ov := &Prebaked{
		Bitmap: solidNRGBA(4, 4, color.NRGBA{R: 255, A: 255}),
		Start:  5, End: 10,
	}

	Composite(frame, []*Prebaked{ov}, 2)

	if got := frame.NRGBAAt(1, 1); got.R != 0 {
		t.Errorf("inactive overlay drawn: %v", got)
	}
}

func TestBlendOverClipsOutOfBounds(t *testing.T) {
	frame := solidNRGBA(10, 10, color.NRGBA{A: 255})
	src := solidNRGBA(6, 6, color.NRGBA{R: 255, A: 255})

	// Partially off every edge plus fully outside. None of these may panic.
	blendOver(frame, src, -3, -3, 1)
	blendOver(frame, src, 8, 8, 1)
	blendOver(frame, src, -100, -100, 1)
	blendOver(frame, src, 100, 100, 1)

	if got := frame.NRGBAAt(0, 0); got.R != 255 {
		t.Errorf("top-left clipped blend missing: %v", got)
	}
	if got := frame.NRGBAAt(9, 9); got.R != 255 {
		t.Errorf("bottom-right clipped blend missing: %v", got)
	}
	if got := frame.NRGBAAt(5, 5); got.R != 0 {
		t.Errorf("center should be untouched: %v", got)
	}
}
