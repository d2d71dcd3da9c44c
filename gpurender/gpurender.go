// Package gpurender walks a TextLayout and drives a gpucache.Cache
// through the single-pass atlas batching protocol, producing three
// ordered callback streams a graphics backend consumes: atlas uploads,
// instanced draws, and standalone (too-large-for-any-tier) glyphs. It
// never issues a graphics API call itself.
package gpurender

import (
	"math"

	"github.com/bloeys/gglm/gglm"

	"github.com/bloeys/glyphtext/gpucache"
	"github.com/bloeys/glyphtext/internal/ringbuf"
	"github.com/bloeys/glyphtext/layout"
	"github.com/bloeys/glyphtext/registry"
)

// DefaultBatchCapacity is the preallocated size of the per-batch update
// and instance transfer buffers, mirroring the teacher's single reused
// GlyphVBO buffer sized by DefaultGlyphsPerBatch.
const DefaultBatchCapacity = 4 * 1024

// Quad is one glyph instance ready for an instanced draw call.
type Quad[T any] struct {
	TierIndex int
	TopLeft   gglm.Vec2
	BotRight  gglm.Vec2
	UV        gpucache.UVRect
	Payload   T
}

// Standalone is a single glyph too large for any configured atlas tier,
// rendered outside the batching path with its own coverage bitmap.
type Standalone[T any] struct {
	TopLeft, BotRight gglm.Vec2
	Width, Height     int
	Coverage          []byte
	Payload           T
}

// Callbacks are infallible sinks for the three output streams, used by
// Render. Use FallibleCallbacks/RenderFallible if a sink can fail.
type Callbacks[T any] struct {
	UpdateAtlas    func(updates []gpucache.AtlasUpdate)
	DrawInstances  func(quads []Quad[T])
	DrawStandalone func(s Standalone[T])
}

// FallibleCallbacks mirrors Callbacks but each sink may fail; the first
// error aborts the walk immediately to RenderFallible's caller, with the
// cache left in a valid state for the walk to be retried.
type FallibleCallbacks[T any] struct {
	UpdateAtlas    func(updates []gpucache.AtlasUpdate) error
	DrawInstances  func(quads []Quad[T]) error
	DrawStandalone func(s Standalone[T]) error
}

// Render drives the batching protocol with infallible callbacks.
func Render[T any](tl layout.TextLayout[T], cache *gpucache.Cache, reg registry.Registry, cb Callbacks[T]) {
	RenderFallible(tl, cache, reg, FallibleCallbacks[T]{
		UpdateAtlas: func(updates []gpucache.AtlasUpdate) error {
			cb.UpdateAtlas(updates)
			return nil
		},
		DrawInstances: func(quads []Quad[T]) error {
			cb.DrawInstances(quads)
			return nil
		},
		DrawStandalone: func(s Standalone[T]) error {
			cb.DrawStandalone(s)
			return nil
		},
	})
}

// RenderFallible runs the single-pass batching protocol over tl in
// reading order: touch-or-admit each glyph, flush and start a new batch
// on admission failure and retry once, and fall back to a standalone
// draw if the glyph still does not fit (or never fit any tier at all).
// It returns the first callback error verbatim and stops; the cache's
// batch state is left exactly as it was after the last successful
// flush, so a caller may fix the failure and call RenderFallible again.
func RenderFallible[T any](tl layout.TextLayout[T], cache *gpucache.Cache, reg registry.Registry, cb FallibleCallbacks[T]) error {

	updates := ringbuf.NewBuffer[gpucache.AtlasUpdate](DefaultBatchCapacity)
	quads := ringbuf.NewBuffer[Quad[T]](DefaultBatchCapacity)

	flush := func() error {
		if updates.Len > 0 {
			if err := cb.UpdateAtlas(updates.Slice()); err != nil {
				return err
			}
		}
		if quads.Len > 0 {
			if err := cb.DrawInstances(quads.Slice()); err != nil {
				return err
			}
		}
		updates.Reset()
		quads.Reset()
		return nil
	}

	for _, line := range tl.Lines {
		for _, g := range line.Glyphs {

			face, ok := reg.Face(g.ID.Face)
			if !ok {
				continue
			}

			pointSize := float64(g.ID.Size) / 256
			metrics := face.Metrics(g.ID.Glyph, pointSize)
			w, h := int(math.Ceil(metrics.Width)), int(math.Ceil(metrics.Height))
			if w <= 0 || h <= 0 {
				continue
			}

			rasterize := gpucache.Rasterize(face, g.ID.Glyph, pointSize)
			desc, update, outcome := cache.TouchOrAdmit(g.ID, w, h, rasterize)

			if outcome == gpucache.Failed {
				if err := flush(); err != nil {
					return err
				}
				cache.NewBatch()
				desc, update, outcome = cache.TouchOrAdmit(g.ID, w, h, rasterize)
			}

			switch outcome {
			case gpucache.Hit, gpucache.Miss:
				if update != nil {
					updates.Append(*update)
				}
				quads.Append(quadFor(desc, g))

			default: // Failed again, or ClassifierMiss: never touches the cache.
				topLeft := *gglm.NewVec2(float32(g.X), float32(g.Y))
				botRight := *gglm.NewVec2(float32(g.X)+float32(w), float32(g.Y)+float32(h))
				if err := cb.DrawStandalone(Standalone[T]{
					TopLeft:  topLeft,
					BotRight: botRight,
					Width:    w,
					Height:   h,
					Coverage: rasterize(),
					Payload:  g.Payload,
				}); err != nil {
					return err
				}
			}
		}
	}

	return flush()
}

func quadFor[T any](desc gpucache.ItemDescriptor, g layout.PositionedGlyph[T]) Quad[T] {
	return Quad[T]{
		TierIndex: desc.TierIndex,
		TopLeft:   *gglm.NewVec2(float32(g.X), float32(g.Y)),
		BotRight:  *gglm.NewVec2(float32(g.X)+float32(desc.GlyphBox.W), float32(g.Y)+float32(desc.GlyphBox.H)),
		UV:        desc.UV,
		Payload:   g.Payload,
	}
}
