package overlay

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"golang.org/x/image/font/basicfont"
)

// basicfont.Face7x13 advances exactly 7px per glyph, which makes wrap
// budgets easy to reason about in characters.
func TestWrapWords(t *testing.T) {
	face := basicfont.Face7x13

	tests := []struct {
		name     string
		text     string
		maxChars int
		want     []string
	}{
		{"singleLine", "hello world", 20, []string{"hello world"}},
		{"wraps", "the quick brown fox", 9, []string{"the quick", "brown fox"}},
		{"oneWordPerLine", "alpha beta gamma", 5, []string{"alpha", "beta", "gamma"}},
		{"overwideWordKeepsLine", "extraordinarily so", 8, []string{"extraordinarily", "so"}},
		{"exactFit", "ab cd", 5, []string{"ab cd"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := wrapWords(strings.Fields(tc.text), face, tc.maxChars*7)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d lines %q, want %d lines %q", len(got), got, len(tc.want), tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"white", color.NRGBA{255, 255, 255, 255}},
		{"  Black ", color.NRGBA{0, 0, 0, 255}},
		{"RED", color.NRGBA{255, 0, 0, 255}},
		{"#ff8000", color.NRGBA{255, 128, 0, 255}},
		{"#fff", color.NRGBA{255, 255, 255, 255}},
		{"#a1b", color.NRGBA{170, 17, 187, 255}},
		{"#xyz", color.NRGBA{255, 255, 255, 255}},
		{"#12345", color.NRGBA{255, 255, 255, 255}},
		{"notacolor", color.NRGBA{255, 255, 255, 255}},
		{"", color.NRGBA{255, 255, 255, 255}},
	}
	for _, tc := range tests {
		if got := parseColor(tc.in); got != tc.want {
			t.Errorf("parseColor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestScaleAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 200
	}

	scaleAlpha(img, 0.5)

	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 100 {
			t.Fatalf("alpha at %d = %d, want 100", i, img.Pix[i])
		}
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.3, 0.3},
		{1, 1},
		{1.7, 1},
	}
	for _, tc := range tests {
		if got := clamp01(tc.in); got != tc.want {
			t.Errorf("clamp01(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
