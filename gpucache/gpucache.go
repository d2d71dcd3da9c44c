// Package gpucache implements the GPU glyph cache: a size-tiered,
// grid-tiled texture atlas with per-batch protection, built on top of
// package lrucache. It produces atlas-update records and UV rectangles
// for a caller-owned texture; it never touches a graphics API itself.
package gpucache

import (
	"errors"

	"github.com/bloeys/glyphtext/glyphid"
	"github.com/bloeys/glyphtext/lrucache"
	"github.com/bloeys/glyphtext/registry"
)

// glyphMargin is the fixed pixel margin added to a glyph's square extent
// before comparing it against a tier's TileEdge (spec: margin=2 for GPU).
const glyphMargin = 2

// Strategy selects how a glyph that classifies into one tier but finds
// it full behaves.
type Strategy int

const (
	// Fallback retries successively larger tiers before giving up. Default.
	Fallback Strategy = iota
	// Fixed admits a glyph only into its classified tier.
	Fixed
)

// TierConfig describes one atlas size tier: TileEdge is the square pixel
// edge of a tile, TilesPerAxis is the grid dimension (capacity =
// TilesPerAxis^2), TextureEdge is the full texture's pixel edge.
type TierConfig struct {
	TileEdge     int
	TilesPerAxis int
	TextureEdge  int
}

// Config configures a Cache.
type Config struct {
	Tiers    []TierConfig
	Strategy Strategy
}

// DefaultConfig returns a small set of tiers suitable for UI text: a
// 16px and a 32px tile class, each on its own 512x512 atlas texture,
// using the Fallback strategy.
func DefaultConfig() Config {
	return Config{
		Tiers: []TierConfig{
			{TileEdge: 16, TilesPerAxis: 32, TextureEdge: 512},
			{TileEdge: 32, TilesPerAxis: 16, TextureEdge: 512},
		},
		Strategy: Fallback,
	}
}

var (
	// ErrTileLayoutInvalid is returned when a tier's TileEdge*TilesPerAxis
	// exceeds TextureEdge.
	ErrTileLayoutInvalid = errors.New("gpucache: tile_edge * tiles_per_axis exceeds texture_edge")
)

// Rect is an integer pixel rectangle, origin top-left.
type Rect struct {
	X, Y, W, H int
}

// UVRect is a glyph box expressed as normalized texture coordinates.
type UVRect struct {
	U0, V0, U1, V1 float64
}

// AtlasUpdate is emitted on a cache miss: the caller must upload
// Coverage into PixelOrigin..PixelOrigin+PixelExtent of the tier's
// texture before any draw referencing this glyph is submitted.
type AtlasUpdate struct {
	TierIndex   int
	PixelOrigin [2]int
	PixelExtent [2]int
	Coverage    []byte
}

// ItemDescriptor locates a glyph within its tier's texture, in both
// pixel and normalized form. It is produced on both Hit and Miss.
type ItemDescriptor struct {
	TierIndex   int
	TextureEdge int
	GlyphBox    Rect
	UV          UVRect
}

// Outcome reports the result of TouchOrAdmit.
type Outcome int

const (
	Hit Outcome = iota
	Miss
	// Failed means every candidate tier (just the classified tier under
	// Fixed, or it and every larger tier under Fallback) is fully
	// protected by the current batch. The caller should flush pending
	// work, call NewBatch, and retry once; if it fails again the glyph
	// should be emitted standalone (gpurender's job, not this cache's).
	Failed
	// ClassifierMiss means the glyph is larger than every configured
	// tier's TileEdge; it can never be admitted regardless of batch
	// state and should always be rendered standalone.
	ClassifierMiss
)

type tierGeometry struct {
	cfg TierConfig
}

// Cache is the GPU glyph cache. It is not safe for concurrent use.
type Cache struct {
	core     *lrucache.Cache[glyphid.ID]
	tiers    []tierGeometry
	strategy Strategy
}

// NewCache validates cfg and builds a Cache.
func NewCache(cfg Config) (*Cache, error) {
	coreTiers := make([]lrucache.TierConfig, len(cfg.Tiers))
	for i, tc := range cfg.Tiers {
		if tc.TileEdge*tc.TilesPerAxis > tc.TextureEdge {
			return nil, ErrTileLayoutInvalid
		}
		coreTiers[i] = lrucache.TierConfig{
			TileExtent: tc.TileEdge,
			Capacity:   tc.TilesPerAxis * tc.TilesPerAxis,
		}
	}

	core, err := lrucache.NewCache[glyphid.ID](lrucache.Config{Tiers: coreTiers, Margin: glyphMargin})
	if err != nil {
		return nil, err
	}

	// lrucache.NewCache sorts by TileExtent ascending; mirror that order
	// here so tier index i means the same thing in both structures.
	sorted := append([]TierConfig(nil), cfg.Tiers...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].TileEdge < sorted[j-1].TileEdge; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	tiers := make([]tierGeometry, len(sorted))
	for i, tc := range sorted {
		tiers[i] = tierGeometry{cfg: tc}
	}

	return &Cache{core: core, tiers: tiers, strategy: cfg.Strategy}, nil
}

// Clear empties the cache.
func (c *Cache) Clear() { c.core.Clear() }

// NewBatch starts a new protection generation.
func (c *Cache) NewBatch() { c.core.NewBatch() }

// classify returns the smallest tier whose TileEdge fits extent+margin.
func (c *Cache) classify(extent int) (int, bool) {
	return c.core.Classify(extent)
}

// slotPixelOrigin maps a tier-local slot index to the pixel origin of
// its tile: (k mod tiles_per_axis, k div tiles_per_axis) * tile_edge.
func (c *Cache) slotPixelOrigin(tierIndex int, slot int32) (x, y int) {
	tg := c.tiers[tierIndex].cfg
	col := int(slot) % tg.TilesPerAxis
	row := int(slot) / tg.TilesPerAxis
	return col * tg.TileEdge, row * tg.TileEdge
}

func (c *Cache) describe(tierIndex int, slot int32, width, height int) ItemDescriptor {
	tg := c.tiers[tierIndex].cfg
	x, y := c.slotPixelOrigin(tierIndex, slot)
	box := Rect{X: x, Y: y, W: width, H: height}
	edge := float64(tg.TextureEdge)
	return ItemDescriptor{
		TierIndex:   tierIndex,
		TextureEdge: tg.TextureEdge,
		GlyphBox:    box,
		UV: UVRect{
			U0: float64(x) / edge,
			V0: float64(y) / edge,
			U1: float64(x+width) / edge,
			V1: float64(y+height) / edge,
		},
	}
}

// TouchOrAdmit attempts to place id (with pixel size width x height) in
// the atlas. On Miss, atlasUpdate is non-nil and must be uploaded by the
// caller before any draw referencing the returned descriptor. On
// ClassifierMiss or Failed, desc is the zero value; the caller (the GPU
// renderer) is responsible for the flush/new-batch retry and the
// eventual standalone fallback — this method performs neither.
func (c *Cache) TouchOrAdmit(id glyphid.ID, width, height int, rasterize func() []byte) (desc ItemDescriptor, atlasUpdate *AtlasUpdate, outcome Outcome) {

	startTier, ok := c.classify(maxInt(width, height))
	if !ok {
		return ItemDescriptor{}, nil, ClassifierMiss
	}

	lastTier := startTier
	if c.strategy == Fallback {
		lastTier = len(c.tiers) - 1
	}

	// Each tier tracks residency independently, so an id admitted into a
	// larger fallback tier on an earlier call is invisible to startTier's
	// index. Without this check, retrying from startTier first would
	// admit a second, orphaned copy instead of recognizing the hit,
	// leaving the original resident until its tier evicts it.
	if c.strategy == Fallback {
		for tierIndex := startTier + 1; tierIndex <= lastTier; tierIndex++ {
			if !c.core.Contains(tierIndex, id) {
				continue
			}
			slot, _ := c.core.TouchOrAdmit(tierIndex, id)
			return c.describe(tierIndex, slot, width, height), nil, Hit
		}
	}

	for tierIndex := startTier; tierIndex <= lastTier; tierIndex++ {
		slot, lruOutcome := c.core.TouchOrAdmit(tierIndex, id)
		switch lruOutcome {
		case lrucache.Hit:
			return c.describe(tierIndex, slot, width, height), nil, Hit
		case lrucache.Miss:
			x, y := c.slotPixelOrigin(tierIndex, slot)
			update := &AtlasUpdate{
				TierIndex:   tierIndex,
				PixelOrigin: [2]int{x, y},
				PixelExtent: [2]int{width, height},
				Coverage:    rasterize(),
			}
			return c.describe(tierIndex, slot, width, height), update, Miss
		case lrucache.Failed:
			continue
		}
	}

	return ItemDescriptor{}, nil, Failed
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Rasterize is a convenience that builds the rasterize callback
// TouchOrAdmit expects from a registry.FaceHandle.
func Rasterize(face registry.FaceHandle, glyphIndex uint16, pointSize float64) func() []byte {
	return func() []byte {
		return face.Rasterize(glyphIndex, pointSize).Coverage
	}
}
