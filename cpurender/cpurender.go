// Package cpurender walks a TextLayout and invokes a per-pixel callback
// for every covered pixel, consulting a cpucache.Cache (which rasterizes
// lazily on miss) for each glyph's coverage bitmap. It never owns a
// destination image: the caller's callback composites coverage however
// it likes (saturating add, premultiplied blend, ...).
package cpurender

import (
	"math"

	"github.com/bloeys/glyphtext/cpucache"
	"github.com/bloeys/glyphtext/layout"
	"github.com/bloeys/glyphtext/registry"
)

// Bounds is the target image's pixel extent; whole lines outside it are
// skipped without being rasterized, and pixels of glyphs on visible lines
// that fall outside it are clipped.
type Bounds struct {
	Width, Height int
}

// PixelFunc receives one covered pixel: its integer position in the
// target image, its coverage byte, and the payload carried by the
// layout glyph it belongs to.
type PixelFunc[T any] func(x, y int, coverage byte, payload T)

// floorF64 mirrors the teacher's floorF32: pixel snapping happens after
// every fractional bearing/baseline adjustment has already been folded
// into the glyph's (X,Y), never before.
func floorF64(x float64) int {
	return int(math.Floor(x))
}

// Render draws tl into an image of the given bounds by calling plot for
// every covered pixel. Lines whose [Top,Bottom) does not intersect
// [0,bounds.Height) are skipped entirely, along with any glyph whose
// face can no longer be resolved in reg. A glyph the cache cannot place
// at all (cpucache.ErrTooLarge, e.g. its largest tier has no free slot)
// is skipped rather than aborting the rest of the render: pathological
// input degrades visibly, it does not fail the whole pass.
func Render[T any](tl layout.TextLayout[T], cache *cpucache.Cache, reg registry.Registry, bounds Bounds, plot PixelFunc[T]) {

	h := float64(bounds.Height)

	for _, line := range tl.Lines {
		if line.Bottom <= 0 || line.Top >= h {
			continue
		}

		for _, g := range line.Glyphs {

			face, ok := reg.Face(g.ID.Face)
			if !ok {
				continue
			}

			pointSize := float64(g.ID.Size) / 256
			glyph, err := cache.Rasterized(g.ID, g.ID.Glyph, pointSize, face)
			if err != nil {
				continue
			}
			if glyph.Width == 0 || glyph.Height == 0 {
				continue
			}

			originX, originY := floorF64(g.X), floorF64(g.Y)

			for row := 0; row < glyph.Height; row++ {
				py := originY + row
				if py < 0 || py >= bounds.Height {
					continue
				}

				rowOff := row * glyph.Width
				for col := 0; col < glyph.Width; col++ {
					px := originX + col
					if px < 0 || px >= bounds.Width {
						continue
					}

					coverage := glyph.Coverage[rowOff+col]
					if coverage == 0 {
						continue
					}

					plot(px, py, coverage, g.Payload)
				}
			}
		}
	}
}
