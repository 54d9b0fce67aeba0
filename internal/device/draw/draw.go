// Package draw produces the annotated screenshots shown to the model:
// numbered tags over interactive elements and the numbered grid overlay used
// for precision re-prompts.
package draw

import (
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"image/png"
	"os"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kleverhq/appilot/internal/action"
	"github.com/kleverhq/appilot/internal/grid"
)

// textScale upscales the bitmap font so tags stay legible on device-density
// screenshots.
const textScale = 3

// Palette for a light UI; DarkMode flips it for dark UIs where black tags
// would vanish.
type Palette struct {
	Text color.Color
	Box  color.Color
	Line color.Color
}

func PaletteFor(darkMode bool) Palette {
	if darkMode {
		return Palette{
			Text: color.Black,
			Box:  color.White,
			Line: color.White,
		}
	}
	return Palette{
		Text: color.White,
		Box:  color.Black,
		Line: color.Black,
	}
}

// Labels writes a copy of the screenshot at src to dest with a numbered tag
// centered on each element. Tags are 1-based, matching the numbering the
// model sees in its prompt.
func Labels(src, dest string, elems []action.Element, pal Palette) error {
	img, err := loadPNG(src)
	if err != nil {
		return err
	}
	for i, e := range elems {
		c := e.Center()
		tag(img, c, strconv.Itoa(i+1), pal)
	}
	return savePNG(dest, img)
}

// Grid writes a copy of the screenshot at src to dest with the area grid
// drawn over it: cell borders plus the 1-based area number in each cell's
// top-left corner.
func Grid(src, dest string, lay grid.Layout, pal Palette) error {
	img, err := loadPNG(src)
	if err != nil {
		return err
	}
	b := img.Bounds()

	for x := 0; x <= b.Dx(); x += lay.UnitWidth {
		vline(img, clampInt(x, 0, b.Dx()-1), pal.Line)
	}
	for y := 0; y <= b.Dy(); y += lay.UnitHeight {
		hline(img, clampInt(y, 0, b.Dy()-1), pal.Line)
	}

	for area := 1; area <= lay.Areas(); area++ {
		row := (area - 1) / lay.Cols
		col := (area - 1) % lay.Cols
		origin := action.Pixel{
			X: col*lay.UnitWidth + lay.UnitWidth/8,
			Y: row*lay.UnitHeight + lay.UnitHeight/8,
		}
		tag(img, origin, strconv.Itoa(area), pal)
	}
	return savePNG(dest, img)
}

// tag draws one label: a filled box with the text centered on p, clamped to
// stay inside the image.
func tag(img *image.RGBA, p action.Pixel, text string, pal Palette) {
	mask := renderText(text)
	w := mask.Bounds().Dx() * textScale
	h := mask.Bounds().Dy() * textScale
	pad := textScale * 2

	b := img.Bounds()
	x0 := clampInt(p.X-w/2-pad, 0, b.Dx()-1)
	y0 := clampInt(p.Y-h/2-pad, 0, b.Dy()-1)
	x1 := clampInt(x0+w+2*pad, 0, b.Dx())
	y1 := clampInt(y0+h+2*pad, 0, b.Dy())

	stddraw.Draw(img, image.Rect(x0, y0, x1, y1), image.NewUniform(pal.Box), image.Point{}, stddraw.Src)
	blitScaled(img, mask, x0+pad, y0+pad, pal.Text)
}

// renderText rasterizes s with the built-in bitmap face into an alpha mask.
func renderText(s string) *image.Alpha {
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil()
	h := face.Metrics().Height.Ceil()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.NewUniform(color.Alpha{A: 0xff}),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
	return mask
}

// blitScaled paints the mask onto img at (x,y), each mask pixel expanded to a
// textScale square.
func blitScaled(img *image.RGBA, mask *image.Alpha, x, y int, c color.Color) {
	b := img.Bounds()
	mb := mask.Bounds()
	for my := mb.Min.Y; my < mb.Max.Y; my++ {
		for mx := mb.Min.X; mx < mb.Max.X; mx++ {
			if mask.AlphaAt(mx, my).A < 0x80 {
				continue
			}
			for dy := 0; dy < textScale; dy++ {
				for dx := 0; dx < textScale; dx++ {
					px := x + (mx-mb.Min.X)*textScale + dx
					py := y + (my-mb.Min.Y)*textScale + dy
					if px >= 0 && px < b.Dx() && py >= 0 && py < b.Dy() {
						img.Set(px, py, c)
					}
				}
			}
		}
	}
}

func vline(img *image.RGBA, x int, c color.Color) {
	for y := 0; y < img.Bounds().Dy(); y++ {
		img.Set(x, y, c)
	}
}

func hline(img *image.RGBA, y int, c color.Color) {
	for x := 0; x < img.Bounds().Dx(); x++ {
		img.Set(x, y, c)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func loadPNG(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening screenshot: %w", err)
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot %s: %w", path, err)
	}
	img := image.NewRGBA(src.Bounds())
	stddraw.Draw(img, src.Bounds(), src, src.Bounds().Min, stddraw.Src)
	return img, nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating annotated image: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding annotated image: %w", err)
	}
	return f.Close()
}
