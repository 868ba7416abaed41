package overlay

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/reelworks/stylecast/internal/fonts"
	"github.com/reelworks/stylecast/internal/models"
)

// Prebaked is an overlay rendered once per job: an immutable bitmap with its
// resolved frame position and activity window. Never persisted.
type Prebaked struct {
	Bitmap  *image.NRGBA
	Y, X    int
	Start   float64 // seconds, inclusive
	End     float64 // seconds, exclusive
	FadeIn  float64
	FadeOut float64
}

// Baker renders overlay specifications into Prebaked bitmaps. One Baker is
// created per render attempt; the font caches are job-scoped.
type Baker struct {
	Fonts   *fonts.Resolver
	LogoDir string

	ttfs  map[string]*truetype.Font
	faces map[string]font.Face
}

func NewBaker(resolver *fonts.Resolver, logoDir string) *Baker {
	return &Baker{
		Fonts:   resolver,
		LogoDir: logoDir,
		ttfs:    make(map[string]*truetype.Font),
		faces:   make(map[string]font.Face),
	}
}

// BakeText wraps, renders and positions one text overlay against the target
// frame size. Returns (nil, nil) when the overlay has nothing to draw.
func (b *Baker) BakeText(ov models.TextOverlay, frameW, frameH int, videoDuration float64) (*Prebaked, error) {
	words := strings.Fields(ov.Text)
	if len(words) == 0 {
		return nil, nil
	}

	face, err := b.face(ov.Font, ov.FontSize)
	if err != nil {
		return nil, err
	}

	// Wrapping budget: the pixel-mode box width, or the frame minus the
	// horizontal margins in keyword mode.
	maxWidth := frameW - ov.Margin.Right - ov.Margin.Left
	if ov.Position.Pixel {
		maxWidth = ov.Position.BoxWidth
	}

	lines := wrapWords(words, face, maxWidth)

	metrics := face.Metrics()
	lineHeight := (metrics.Ascent + metrics.Descent).Ceil()
	spacing := ov.FontSize / 5 // 0.2 × font size

	blockW := 0
	for _, line := range lines {
		if w := font.MeasureString(face, line).Ceil(); w > blockW {
			blockW = w
		}
	}
	blockH := len(lines)*lineHeight + (len(lines)-1)*spacing
	if blockW == 0 || blockH == 0 {
		return nil, nil
	}

	img := image.NewNRGBA(image.Rect(0, 0, blockW, blockH))
	col := parseColor(ov.FontColor)
	col.A = uint8(clamp01(ov.Opacity) * 255)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
	}
	for i, line := range lines {
		lineW := font.MeasureString(face, line).Ceil()
		var x int
		switch ov.FontAlign {
		case "left":
			x = 0
		case "right":
			x = blockW - lineW
		default:
			x = (blockW - lineW) / 2
		}
		drawer.Dot = fixed.P(x, i*(lineHeight+spacing)+metrics.Ascent.Ceil())
		drawer.DrawString(line)
	}

	y, x := ResolvePosition(frameW, frameH, blockW, blockH, ov.Position, ov.Margin, ov.FontAlign)
	start, end := ov.Window(videoDuration)

	return &Prebaked{
		Bitmap:  img,
		Y:       y,
		X:       x,
		Start:   start,
		End:     end,
		FadeIn:  ov.FadeIn,
		FadeOut: ov.FadeOut,
	}, nil
}

// BakeLogo thumbnails a logo asset into the requested square bound and
// scales its alpha by the configured opacity. Logos always position in
// keyword mode.
func (b *Baker) BakeLogo(l models.LogoOverlay, frameW, frameH int, videoDuration float64) (*Prebaked, error) {
	if l.Name == "" {
		return nil, nil
	}
	path := filepath.Join(b.LogoDir, l.Name)

	f, err := os.Open(path)
	if err != nil {
		log.Printf("[Overlay] Logo file not found: %s", path)
		return nil, nil
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode logo %s: %w", l.Name, err)
	}

	img := imaging.Fit(src, l.Size, l.Size, imaging.Lanczos)
	if l.Opacity < 1.0 {
		scaleAlpha(img, clamp01(l.Opacity))
	}

	bounds := img.Bounds()
	y, x := ResolvePosition(frameW, frameH, bounds.Dx(), bounds.Dy(), l.Position, l.Margin, "")
	start, end := l.Window(videoDuration)

	return &Prebaked{
		Bitmap: img,
		Y:      y,
		X:      x,
		Start:  start,
		End:    end,
	}, nil
}

// wrapWords greedily packs words into lines whose rendered width stays
// within maxWidth. A single word wider than the budget still gets a line.
func wrapWords(words []string, face font.Face, maxWidth int) []string {
	lines := make([]string, 0, 1)
	current := words[0]
	for _, word := range words[1:] {
		test := current + " " + word
		if font.MeasureString(face, test).Ceil() <= maxWidth {
			current = test
		} else {
			lines = append(lines, current)
			current = word
		}
	}
	return append(lines, current)
}

func (b *Baker) face(family string, size int) (font.Face, error) {
	path, err := b.Fonts.Resolve(family)
	if err != nil {
		// Lock timeout: degrade to the default font rather than fail the job.
		log.Printf("[Overlay] Font resolution failed, using default: %v", err)
		path = b.Fonts.DefaultFont
	}

	key := fmt.Sprintf("%s_%d", path, size)
	if face, ok := b.faces[key]; ok {
		return face, nil
	}

	ttf, ok := b.ttfs[path]
	if !ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file %s: %w", path, err)
		}
		ttf, err = truetype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse font %s: %w", path, err)
		}
		b.ttfs[path] = ttf
	}

	face := truetype.NewFace(ttf, &truetype.Options{Size: float64(size)})
	b.faces[key] = face
	return face, nil
}

func scaleAlpha(img *image.NRGBA, opacity float64) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(float64(img.Pix[i]) * opacity)
	}
}

// namedColors covers the CSS color names requests actually use; anything
// unrecognized falls back to white.
var namedColors = map[string]color.NRGBA{
	"white":   {255, 255, 255, 255},
	"black":   {0, 0, 0, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"cyan":    {0, 255, 255, 255},
	"magenta": {255, 0, 255, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
	"orange":  {255, 165, 0, 255},
	"purple":  {128, 0, 128, 255},
	"pink":    {255, 192, 203, 255},
	"brown":   {165, 42, 42, 255},
	"silver":  {192, 192, 192, 255},
	"gold":    {255, 215, 0, 255},
}

func parseColor(s string) color.NRGBA {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := namedColors[s]; ok {
		return c
	}
	if strings.HasPrefix(s, "#") {
		if c, ok := parseHexColor(s[1:]); ok {
			return c
		}
	}
	return color.NRGBA{255, 255, 255, 255}
}

func parseHexColor(s string) (color.NRGBA, bool) {
	hexByte := func(hi, lo byte) (uint8, bool) {
		h, okH := hexVal(hi)
		l, okL := hexVal(lo)
		return h<<4 | l, okH && okL
	}
	switch len(s) {
	case 3:
		r, okR := hexVal(s[0])
		g, okG := hexVal(s[1])
		b, okB := hexVal(s[2])
		if !okR || !okG || !okB {
			return color.NRGBA{}, false
		}
		return color.NRGBA{r * 17, g * 17, b * 17, 255}, true
	case 6:
		r, okR := hexByte(s[0], s[1])
		g, okG := hexByte(s[2], s[3])
		b, okB := hexByte(s[4], s[5])
		if !okR || !okG || !okB {
			return color.NRGBA{}, false
		}
		return color.NRGBA{r, g, b, 255}, true
	}
	return color.NRGBA{}, false
}

func hexVal(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
