// Package registry defines the face-registry contract this engine
// consumes but does not implement: resolving family queries to face
// handles, and the capability set a face handle must expose (glyph
// lookup, metrics, kerning, rasterization). Enumerating fonts from disk
// or the OS, and any concrete decoding, is an external collaborator's
// job; a reference implementation over an in-memory TrueType font lives
// in package fontface.
package registry

import "github.com/bloeys/glyphtext/glyphid"

// Style is a coarse slant/weight hint used when resolving a family
// query; it has no effect on the cache or layout data model.
type Style int

const (
	StyleNormal Style = iota
	StyleItalic
)

// LineMetrics holds the horizontal metrics shared by every glyph drawn
// at a given face and point size.
type LineMetrics struct {
	Ascent  float64
	Descent float64
	LineGap float64
}

// GlyphMetrics holds the per-glyph metrics needed for layout and
// rendering, in pixels at the glyph's point size.
type GlyphMetrics struct {
	Width        float64
	Height       float64
	XMin         float64
	YMin         float64
	AdvanceWidth float64
}

// Rasterization is the decoded glyph produced by FaceHandle.Rasterize:
// metrics plus a row-major 8-bit coverage bitmap, Width*Height bytes.
type Rasterization struct {
	Metrics  GlyphMetrics
	Coverage []byte
}

// FaceHandle is the capability set the layout and rendering pipeline
// requires from a decoded font face (spec §3, §6). Implementations may
// back it with reference counting or opaque re-resolved ids; the only
// contract is these five operations.
type FaceHandle interface {
	// GlyphIndex maps a character to a glyph index within this face.
	GlyphIndex(r rune) uint16

	// LineMetrics returns the horizontal line metrics at the given point
	// size, or ok=false if unavailable.
	LineMetrics(pointSize float64) (LineMetrics, bool)

	// Metrics returns per-glyph metrics for glyphIndex at pointSize.
	Metrics(glyphIndex uint16, pointSize float64) GlyphMetrics

	// Kerning returns the horizontal kerning adjustment between two
	// glyphs at pointSize, or ok=false if the face has none / the pair
	// is unsupported.
	Kerning(g1, g2 uint16, pointSize float64) (float64, bool)

	// Rasterize decodes glyphIndex at pointSize into an 8-bit coverage
	// bitmap laid out row-major, top to bottom, left to right.
	Rasterize(glyphIndex uint16, pointSize float64) Rasterization
}

// Registry resolves family queries and face ids to FaceHandles. Faces
// are shared by long-lived reference; a Registry may be mutated
// (registering/unregistering faces) only outside of an in-progress
// render.
type Registry interface {
	// Query resolves a family query to a face id and handle, or
	// ok=false if no matching face is registered.
	Query(familyList []string, weight int, stretch int, style Style) (glyphid.FaceID, FaceHandle, bool)

	// Face resolves an already-known face id to its handle, or
	// ok=false if the id is unknown or has been released.
	Face(id glyphid.FaceID) (FaceHandle, bool)
}
