// Package cpucache implements the CPU glyph cache: a size-tiered LRU of
// rasterized coverage bitmaps for software rendering, built on top of
// package lrucache.
package cpucache

import (
	"errors"
	"math"

	"github.com/bloeys/glyphtext/glyphid"
	"github.com/bloeys/glyphtext/lrucache"
	"github.com/bloeys/glyphtext/registry"
)

// TierConfig describes one CPU cache size tier: TileExtent is the byte
// size of a block in this tier's arena (glyphs are classified by
// width*height against this value), Capacity is the number of blocks.
type TierConfig struct {
	TileExtent int
	Capacity   int
}

// Config configures a Cache.
type Config struct {
	Tiers []TierConfig
}

// DefaultConfig returns a reasonable set of tiers for small-to-medium UI
// text: 16x16, 32x32, and 64x64 area classes.
func DefaultConfig() Config {
	return Config{
		Tiers: []TierConfig{
			{TileExtent: 16 * 16, Capacity: 512},
			{TileExtent: 32 * 32, Capacity: 256},
			{TileExtent: 64 * 64, Capacity: 64},
		},
	}
}

// ErrTooLarge is returned by Rasterized when the glyph's tier (its
// classified tier, or the largest tier for a glyph no tier fits) has no
// free (or evictable) slot even after starting a new batch. Oversized
// glyphs themselves are not rejected: they fall back to the largest tier
// and get truncated rather than refused outright.
var ErrTooLarge = errors.New("cpucache: no tier slot available for glyph")

// Glyph is the cached bitmap view returned by a lookup: the top-left
// Width x Height sub-region of the tier's block is valid coverage data.
type Glyph struct {
	Width    int
	Height   int
	Coverage []byte
}

// Cache is the CPU glyph cache. It is not safe for concurrent use.
type Cache struct {
	core   *lrucache.Cache[glyphid.ID]
	arenas [][]byte // one contiguous byte arena per tier
	tiers  []TierConfig
}

// NewCache validates cfg and allocates one contiguous byte arena per
// tier (capacity * TileExtent bytes).
func NewCache(cfg Config) (*Cache, error) {
	coreTiers := make([]lrucache.TierConfig, len(cfg.Tiers))
	for i, tc := range cfg.Tiers {
		coreTiers[i] = lrucache.TierConfig{TileExtent: tc.TileExtent, Capacity: tc.Capacity}
	}

	core, err := lrucache.NewCache[glyphid.ID](lrucache.Config{Tiers: coreTiers, Margin: 0})
	if err != nil {
		return nil, err
	}

	// lrucache.NewCache sorts tiers ascending; rebuild our copy in the
	// same order so arena index == core tier index.
	sorted := append([]TierConfig(nil), cfg.Tiers...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].TileExtent < sorted[j-1].TileExtent; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	arenas := make([][]byte, len(sorted))
	for i, tc := range sorted {
		arenas[i] = make([]byte, tc.Capacity*tc.TileExtent)
	}

	return &Cache{core: core, arenas: arenas, tiers: sorted}, nil
}

// Clear empties the cache.
func (c *Cache) Clear() { c.core.Clear() }

// NewBatch starts a new protection generation; see lrucache.Cache.NewBatch.
func (c *Cache) NewBatch() { c.core.NewBatch() }

// Rasterized returns the cached coverage bitmap for id, rasterizing via
// face on a cache miss and admitting the result. A glyph larger than
// every tier still gets cached, truncated, in the largest tier; it
// returns ErrTooLarge only if even that tier has no slot free after a
// new batch is started.
func (c *Cache) Rasterized(id glyphid.ID, glyphIndex uint16, pointSize float64, face registry.FaceHandle) (Glyph, error) {
	m := face.Metrics(glyphIndex, pointSize)
	// Coverage bytes come from face.Rasterize, which sizes its buffer
	// with the same ceil stride (fontface.Face.Rasterize uses
	// math.Ceil) rather than truncating fractional metrics toward zero;
	// dims must match that stride or later rows read at the wrong
	// offset.
	width, height := int(math.Ceil(m.Width)), int(math.Ceil(m.Height))

	tierIndex, ok := c.classify(width, height)
	if !ok {
		// No tier is large enough to hold this glyph untruncated. Fall
		// back to the largest tier rather than failing the glyph
		// outright; blockView truncates trailing rows so the reported
		// (w,h) still matches what's actually backed by bytes.
		tierIndex = len(c.tiers) - 1
	}

	slot, outcome := c.core.TouchOrAdmit(tierIndex, id)
	if outcome == lrucache.Failed {
		c.core.NewBatch()
		slot, outcome = c.core.TouchOrAdmit(tierIndex, id)
		if outcome == lrucache.Failed {
			return Glyph{}, ErrTooLarge
		}
	}

	if outcome == lrucache.Miss {
		raster := face.Rasterize(glyphIndex, pointSize)
		c.copyIntoBlock(tierIndex, slot, raster.Coverage)
	}

	return c.blockView(tierIndex, slot, width, height), nil
}

func (c *Cache) classify(width, height int) (int, bool) {
	return c.core.Classify(width * height)
}

func (c *Cache) blockView(tierIndex int, slot int32, width, height int) Glyph {
	tc := c.tiers[tierIndex]
	start := int(slot) * tc.TileExtent
	area := width * height
	if area > tc.TileExtent {
		// Truncate by dropping trailing rows only, never mid-row, so the
		// returned bytes always fully back whole rows of the reported
		// width.
		height = tc.TileExtent / width
		area = width * height
	}
	return Glyph{
		Width:    width,
		Height:   height,
		Coverage: c.arenas[tierIndex][start : start+area],
	}
}

func (c *Cache) copyIntoBlock(tierIndex int, slot int32, coverage []byte) {
	tc := c.tiers[tierIndex]
	start := int(slot) * tc.TileExtent
	n := len(coverage)
	if n > tc.TileExtent {
		n = tc.TileExtent
	}
	copy(c.arenas[tierIndex][start:start+n], coverage[:n])
}
