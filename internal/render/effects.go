package render

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/reelworks/stylecast/internal/models"
)

// Output frame geometry: portrait 9:16.
const (
	TargetWidth  = 1080
	TargetHeight = 1920
)

// FillFrame scales and center-crops the frame to the output geometry,
// preserving aspect ratio.
func FillFrame(frame *image.NRGBA) *image.NRGBA {
	b := frame.Bounds()
	if b.Dx() == TargetWidth && b.Dy() == TargetHeight {
		return frame
	}
	return imaging.Fill(frame, TargetWidth, TargetHeight, imaging.Center, imaging.Lanczos)
}

// ColorAdjust applies the color pipeline in place: exposure, then
// brightness, then contrast on the value channel, then saturation, working
// in HSV with S and V on a 0-255 scale. Identity settings are a no-op.
func ColorAdjust(frame *image.NRGBA, v models.VideoSettings) {
	if v.Exposure == 1.0 && v.Brightness == 1.0 && v.Contrast == 1.0 && v.Saturation == 1.0 {
		return
	}

	brightShift := (v.Brightness - 1.0) * 127.5

	pix := frame.Pix
	for i := 0; i < len(pix); i += 4 {
		h, s, val := rgbToHSV(pix[i], pix[i+1], pix[i+2])

		val *= v.Exposure
		val += brightShift
		val = (val-127.5)*v.Contrast + 127.5
		s *= v.Saturation

		pix[i], pix[i+1], pix[i+2] = hsvToRGB(h, clamp255(s), clamp255(val))
	}
}

// Blur gaussian-blurs the frame when the radius is positive.
func Blur(frame *image.NRGBA, radius int) *image.NRGBA {
	if radius <= 0 {
		return frame
	}
	return imaging.Blur(frame, float64(radius))
}

// MasterFadeAlpha returns the whole-frame brightness multiplier at time t
// for fade-from-black and fade-to-black over the clip duration.
func MasterFadeAlpha(t, duration, fadeIn, fadeOut float64) float64 {
	alpha := 1.0
	if fadeIn > 0 && t < fadeIn {
		alpha = t / fadeIn
	}
	if fadeOut > 0 && t > duration-fadeOut {
		if out := (duration - t) / fadeOut; out < alpha {
			alpha = out
		}
	}
	if alpha < 0 {
		return 0
	}
	if alpha > 1 {
		return 1
	}
	return alpha
}

// ApplyFade scales the frame's RGB channels toward black in place.
func ApplyFade(frame *image.NRGBA, alpha float64) {
	if alpha >= 1.0 {
		return
	}
	pix := frame.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i] = uint8(float64(pix[i]) * alpha)
		pix[i+1] = uint8(float64(pix[i+1]) * alpha)
		pix[i+2] = uint8(float64(pix[i+2]) * alpha)
	}
}

// rgbToHSV converts to hue in degrees and saturation/value on 0-255.
func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	delta := max - min

	v = max
	if max > 0 {
		s = delta / max * 255.0
	}
	if delta > 0 {
		switch max {
		case rf:
			h = 60 * math.Mod((gf-bf)/delta, 6)
		case gf:
			h = 60 * ((bf-rf)/delta + 2)
		default:
			h = 60 * ((rf-gf)/delta + 4)
		}
		if h < 0 {
			h += 360
		}
	}
	return h, s, v
}

func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	sf := s / 255.0
	c := v * sf
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}
	return uint8(clamp255(rf + m)), uint8(clamp255(gf + m)), uint8(clamp255(bf + m))
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
