package overlay

import (
	"image"
)

// ActiveAt reports whether the overlay is visible at time t.
func (p *Prebaked) ActiveAt(t float64) bool {
	return t >= p.Start && t < p.End
}

// OpacityAt returns the local fade multiplier at time t: a linear ramp up
// over FadeIn after Start, a linear ramp down over FadeOut before End, full
// opacity in between.
func (p *Prebaked) OpacityAt(t float64) float64 {
	opacity := 1.0
	if p.FadeIn > 0 && t < p.Start+p.FadeIn {
		opacity = (t - p.Start) / p.FadeIn
	} else if p.FadeOut > 0 && t > p.End-p.FadeOut {
		opacity = (p.End - t) / p.FadeOut
	}
	return clamp01(opacity)
}

// Composite alpha-blends every overlay active at time t onto the frame.
func Composite(frame *image.NRGBA, overlays []*Prebaked, t float64) {
	for _, p := range overlays {
		if p == nil || p.Bitmap == nil || !p.ActiveAt(t) {
			continue
		}
		opacity := p.OpacityAt(t)
		if opacity <= 0 {
			continue
		}
		blendOver(frame, p.Bitmap, p.Y, p.X, opacity)
	}
}

// blendOver performs "over" compositing of src onto dst at (y, x), scaled by
// an extra opacity factor. Placement partially or fully outside the frame is
// clipped, not an error.
func blendOver(dst, src *image.NRGBA, y, x int, opacity float64) {
	dstB := dst.Bounds()
	srcB := src.Bounds()

	target := image.Rect(x, y, x+srcB.Dx(), y+srcB.Dy()).Intersect(dstB)
	if target.Empty() {
		return
	}

	for ty := target.Min.Y; ty < target.Max.Y; ty++ {
		sy := srcB.Min.Y + (ty - y)
		di := dst.PixOffset(target.Min.X, ty)
		si := src.PixOffset(srcB.Min.X+(target.Min.X-x), sy)
		for tx := target.Min.X; tx < target.Max.X; tx++ {
			a := float64(src.Pix[si+3]) / 255.0 * opacity
			if a > 0 {
				dst.Pix[di+0] = blendChannel(dst.Pix[di+0], src.Pix[si+0], a)
				dst.Pix[di+1] = blendChannel(dst.Pix[di+1], src.Pix[si+1], a)
				dst.Pix[di+2] = blendChannel(dst.Pix[di+2], src.Pix[si+2], a)
			}
			di += 4
			si += 4
		}
	}
}

func blendChannel(dst, src uint8, a float64) uint8 {
	v := float64(dst)*(1.0-a) + float64(src)*a
	if v > 255 {
		v = 255
	}
	return uint8(v)
}
