package overlay

import (
	"testing"

	"github.com/reelworks/stylecast/internal/models"
)

const (
	frameW = 1080
	frameH = 1920
)

func TestResolvePositionKeyword(t *testing.T) {
	margin := models.Margins{Top: 100, Right: 50, Bottom: 100, Left: 50}
	overlayW, overlayH := 200, 80

	tests := []struct {
		name   string
		v, h   string
		wantY  int
		wantX  int
	}{
		{"topLeft", "top", "left", 100, 50},
		{"topRight", "top", "right", 100, 1080 - 50 - 200},
		{"bottomLeft", "bottom", "left", 1920 - 100 - 80, 50},
		{"bottomRight", "bottom", "right", 1920 - 100 - 80, 1080 - 50 - 200},
		{"center", "center", "center", 100 + (1720-80)/2, 50 + (980-200)/2},
		{"topCenter", "top", "center", 100, 50 + (980-200)/2},
		{"centerLeft", "center", "left", 100 + (1720-80)/2, 50},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := models.KeywordPlacement(tc.v, tc.h)
			y, x := ResolvePosition(frameW, frameH, overlayW, overlayH, p, margin, "center")
			if y != tc.wantY || x != tc.wantX {
				t.Errorf("got (%d, %d), want (%d, %d)", y, x, tc.wantY, tc.wantX)
			}
		})
	}
}

// Every keyword pair must keep the overlay fully inside the content box when
// the overlay fits.
func TestResolvePositionKeywordStaysInContentBox(t *testing.T) {
	margin := models.Margins{Top: 40, Right: 30, Bottom: 60, Left: 20}
	overlayW, overlayH := 300, 150

	contentMinX, contentMinY := margin.Left, margin.Top
	contentMaxX := frameW - margin.Right
	contentMaxY := frameH - margin.Bottom

	for _, v := range []string{"top", "center", "bottom"} {
		for _, h := range []string{"left", "center", "right"} {
			y, x := ResolvePosition(frameW, frameH, overlayW, overlayH, models.KeywordPlacement(v, h), margin, "center")
			if x < contentMinX || x+overlayW > contentMaxX {
				t.Errorf("%s/%s: x range [%d, %d) escapes content box [%d, %d)", v, h, x, x+overlayW, contentMinX, contentMaxX)
			}
			if y < contentMinY || y+overlayH > contentMaxY {
				t.Errorf("%s/%s: y range [%d, %d) escapes content box [%d, %d)", v, h, y, y+overlayH, contentMinY, contentMaxY)
			}
		}
	}
}

// Centering an overlay wider or taller than its box produces a negative
// offset that must round toward negative infinity, not toward zero.
func TestResolvePositionOversizedOverlayFloors(t *testing.T) {
	// Content box 100x100; overlay 105x107 -> offsets -5/2 and -7/2.
	margin := models.Margins{Top: 10, Right: 10, Bottom: 10, Left: 10}
	y, x := ResolvePosition(120, 120, 105, 107, models.KeywordPlacement("center", "center"), margin, "center")
	if wantY := 10 + (-4); y != wantY {
		t.Errorf("y = %d, want %d", y, wantY)
	}
	if wantX := 10 + (-3); x != wantX {
		t.Errorf("x = %d, want %d", x, wantX)
	}

	// Pixel mode: box width 100, overlay 105 -> centered offset -5/2.
	p := models.Placement{Pixel: true, YCenter: 50, XAnchor: 20, BoxWidth: 100}
	_, x = ResolvePosition(120, 120, 105, 10, p, models.Margins{}, "center")
	if wantX := 20 + (-3); x != wantX {
		t.Errorf("pixel-mode x = %d, want %d", x, wantX)
	}
}

func TestResolvePositionPixel(t *testing.T) {
	p := models.Placement{Pixel: true, YCenter: 960, XAnchor: 100, BoxWidth: 600}
	overlayW, overlayH := 250, 81

	tests := []struct {
		align string
		wantX int
	}{
		{"left", 100},
		{"right", 100 + 600 - 250},
		{"center", 100 + (600-250)/2},
	}

	for _, tc := range tests {
		t.Run(tc.align, func(t *testing.T) {
			y, x := ResolvePosition(frameW, frameH, overlayW, overlayH, p, models.Margins{}, tc.align)
			if wantY := 960 - 81/2; y != wantY {
				t.Errorf("y = %d, want %d", y, wantY)
			}
			if x != tc.wantX {
				t.Errorf("x = %d, want %d", x, tc.wantX)
			}
		})
	}
}

// Center alignment keeps the overlay centered in the box to within a pixel
// of floor-division rounding.
func TestResolvePositionPixelCenterBalance(t *testing.T) {
	p := models.Placement{Pixel: true, YCenter: 500, XAnchor: 200, BoxWidth: 501}
	overlayW := 100

	_, x := ResolvePosition(frameW, frameH, overlayW, 40, p, models.Margins{}, "center")
	leftGap := x - p.XAnchor
	rightGap := (p.XAnchor + p.BoxWidth) - (x + overlayW)
	if diff := rightGap - leftGap; diff < 0 || diff > 1 {
		t.Errorf("gaps %d/%d differ by more than rounding", leftGap, rightGap)
	}
}
