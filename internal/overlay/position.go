package overlay

import (
	"github.com/reelworks/stylecast/internal/models"
)

// ResolvePosition maps an overlay bitmap onto frame coordinates, returning
// the (y, x) of its top-left corner. Keyword placements align inside the
// margin-reduced content box; pixel placements center vertically on yCenter
// and anchor horizontally inside [xAnchor, xAnchor+boxWidth] according to
// the text alignment. All division floors, consistent throughout.
func ResolvePosition(frameW, frameH, overlayW, overlayH int, p models.Placement, m models.Margins, textAlign string) (int, int) {
	if p.Pixel {
		y := p.YCenter - overlayH/2

		var x int
		switch textAlign {
		case "left":
			x = p.XAnchor
		case "right":
			x = p.XAnchor + p.BoxWidth - overlayW
		default: // center
			x = p.XAnchor + floorDiv(p.BoxWidth-overlayW, 2)
		}
		return y, x
	}

	contentX := m.Left
	contentY := m.Top
	contentW := frameW - m.Left - m.Right
	contentH := frameH - m.Top - m.Bottom

	var y int
	switch p.VAlign {
	case "top":
		y = contentY
	case "bottom":
		y = contentY + contentH - overlayH
	default: // center
		y = contentY + floorDiv(contentH-overlayH, 2)
	}

	var x int
	switch p.HAlign {
	case "left":
		x = contentX
	case "right":
		x = contentX + contentW - overlayW
	default: // center
		x = contentX + floorDiv(contentW-overlayW, 2)
	}

	return y, x
}

// floorDiv rounds toward negative infinity, unlike Go's / which truncates.
// The difference shows when an overlay is larger than its box and the
// centering offset goes negative.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
