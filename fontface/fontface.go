// Package fontface is a reference registry.Registry/registry.FaceHandle
// implementation over parsed TrueType fonts. Unlike the teacher's
// font_atlas.go, which baked every glyph into one fixed-size texture
// image up front, this answers metric and rasterization queries on
// demand per glyph/size, which is the shape registry.FaceHandle needs.
// It performs no OS or disk font enumeration; a caller supplies font
// file bytes directly.
package fontface

import (
	"image"
	"image/draw"
	"math"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/bloeys/glyphtext/glyphid"
	"github.com/bloeys/glyphtext/registry"
)

// Face answers per-glyph metric and rasterization queries against one
// parsed TrueType font. A rune's glyph "identity" here is simply its
// rune value cast to uint16: golang.org/x/image/font.Face's methods are
// all keyed by rune, not by the font's internal glyph-table index, so
// there is no lower-level index to expose through registry.FaceHandle
// without bypassing that package entirely.
type Face struct {
	font *truetype.Font
	name string

	// facesBySize caches one font.Face per quantized point size; building
	// a font.Face is not free and the same size is requested repeatedly
	// during a single layout pass.
	facesBySize map[int32]font.Face
}

// New parses fontBytes and returns a Face for it. name is used only by
// Registry.Query's family-name matching.
func New(fontBytes []byte, name string) (*Face, error) {
	f, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, err
	}
	return &Face{font: f, name: name, facesBySize: make(map[int32]font.Face)}, nil
}

func (fc *Face) faceAt(pointSize float64) font.Face {
	key := glyphid.Quantize(pointSize)
	if f, ok := fc.facesBySize[key]; ok {
		return f
	}
	f := truetype.NewFace(fc.font, &truetype.Options{Size: pointSize})
	fc.facesBySize[key] = f
	return f
}

func fixedToFloat(x fixed.Int26_6) float64 {
	return float64(x) / 64
}

func (fc *Face) GlyphIndex(r rune) uint16 { return uint16(r) }

func (fc *Face) LineMetrics(pointSize float64) (registry.LineMetrics, bool) {
	m := fc.faceAt(pointSize).Metrics()
	ascent := fixedToFloat(m.Ascent)
	descent := fixedToFloat(m.Descent)
	return registry.LineMetrics{
		Ascent:  ascent,
		Descent: -descent,
		LineGap: fixedToFloat(m.Height) - ascent - descent,
	}, true
}

func (fc *Face) Metrics(glyphIndex uint16, pointSize float64) registry.GlyphMetrics {
	bounds, advance, ok := fc.faceAt(pointSize).GlyphBounds(rune(glyphIndex))
	if !ok {
		return registry.GlyphMetrics{}
	}
	return registry.GlyphMetrics{
		Width:        fixedToFloat(bounds.Max.X - bounds.Min.X),
		Height:       fixedToFloat(bounds.Max.Y - bounds.Min.Y),
		XMin:         fixedToFloat(bounds.Min.X),
		YMin:         -fixedToFloat(bounds.Max.Y),
		AdvanceWidth: fixedToFloat(advance),
	}
}

func (fc *Face) Kerning(g1, g2 uint16, pointSize float64) (float64, bool) {
	k := fc.faceAt(pointSize).Kern(rune(g1), rune(g2))
	if k == 0 {
		return 0, false
	}
	return fixedToFloat(k), true
}

// Rasterize renders one glyph into a tightly-cropped coverage buffer
// sized to its own (width, height), row-major top-to-bottom and
// left-to-right, mirroring the inked-rectangle-onto-a-buffer technique
// font_atlas.go uses to bake its shared atlas image, applied here to a
// private per-glyph buffer instead.
func (fc *Face) Rasterize(glyphIndex uint16, pointSize float64) registry.Rasterization {
	face := fc.faceAt(pointSize)
	m := fc.Metrics(glyphIndex, pointSize)

	w, h := int(math.Ceil(m.Width)), int(math.Ceil(m.Height))
	if w <= 0 || h <= 0 {
		return registry.Rasterization{Metrics: m}
	}

	// dot is the baseline origin within our (w,h) buffer: the glyph's
	// bottom edge sits m.YMin below the baseline, so the baseline row is
	// h + floor(m.YMin) pixels down from the buffer's top.
	dot := fixed.P(-int(math.Floor(m.XMin)), h+int(math.Floor(m.YMin)))

	dr, mask, maskp, _, ok := face.Glyph(dot, rune(glyphIndex))
	if !ok {
		return registry.Rasterization{Metrics: m, Coverage: make([]byte, w*h)}
	}

	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	draw.DrawMask(dst, dr.Intersect(dst.Bounds()), image.Opaque, image.Point{}, mask, maskp, draw.Over)

	return registry.Rasterization{Metrics: m, Coverage: dst.Pix}
}

// Registry is a minimal in-memory registry.Registry: callers add fonts
// by name, no OS or disk enumeration is performed.
type Registry struct {
	faces  map[glyphid.FaceID]*Face
	byName map[string]glyphid.FaceID
	nextID glyphid.FaceID
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		faces:  make(map[glyphid.FaceID]*Face),
		byName: make(map[string]glyphid.FaceID),
		nextID: 1,
	}
}

// AddFont parses fontBytes and registers it under name, returning its
// assigned FaceID.
func (r *Registry) AddFont(name string, fontBytes []byte) (glyphid.FaceID, error) {
	f, err := New(fontBytes, name)
	if err != nil {
		return 0, err
	}
	id := r.nextID
	r.nextID++
	r.faces[id] = f
	r.byName[name] = id
	return id, nil
}

// Face implements registry.Registry.
func (r *Registry) Face(id glyphid.FaceID) (registry.FaceHandle, bool) {
	f, ok := r.faces[id]
	return f, ok
}

// Query implements registry.Registry by a simple first-match-by-name
// lookup over families; weight, stretch, and style are ignored since
// this registry carries exactly the font bytes it was given, with no
// style variants to choose between.
func (r *Registry) Query(families []string, weight, stretch int, style registry.Style) (glyphid.FaceID, registry.FaceHandle, bool) {
	for _, name := range families {
		if id, ok := r.byName[name]; ok {
			return id, r.faces[id], true
		}
	}
	return 0, nil, false
}
