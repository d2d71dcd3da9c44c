// Package glyphid defines the value type that uniquely names a
// rasterized glyph: the face it came from, the glyph index within that
// face, and a quantized point size.
package glyphid

import (
	"fmt"
	"math"
)

// FaceID is an opaque, totally ordered, hashable handle assigned by a
// Registry. The zero value never denotes a valid face.
type FaceID uint32

// Quantize converts a floating point size to the fixed-point
// representation used in ID.Size: round(pointSize * 256). Near-identical
// sizes that quantize to the same value share one cache entry.
func Quantize(pointSize float64) int32 {
	return int32(math.Round(pointSize * 256))
}

// ID uniquely identifies a rasterized glyph. Two IDs are equal iff their
// fields are equal (structural equality on the triple).
type ID struct {
	Face  FaceID
	Glyph uint16
	Size  int32
}

// New builds an ID from a face, glyph index, and a floating point point
// size, quantizing the size per Quantize.
func New(face FaceID, glyphIndex uint16, pointSize float64) ID {
	return ID{Face: face, Glyph: glyphIndex, Size: Quantize(pointSize)}
}

func (id ID) String() string {
	return fmt.Sprintf("ID{face:%d glyph:%d size:%d}", id.Face, id.Glyph, id.Size)
}
