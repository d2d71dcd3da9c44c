package glyphid_test

import (
	"testing"

	"github.com/bloeys/glyphtext/glyphid"
)

func Check[T comparable](t *testing.T, expected, got T) {
	if got != expected {
		t.Fatalf("Expected %v but got %v\n", expected, got)
	}
}

func TestQuantizeRounds(t *testing.T) {
	Check(t, int32(2560), glyphid.Quantize(10))
	Check(t, int32(2560+128), glyphid.Quantize(10.5))
	Check(t, int32(0), glyphid.Quantize(0))
}

func TestNewSharesIDForNearIdenticalSizes(t *testing.T) {
	a := glyphid.New(1, 'A', 10)
	b := glyphid.New(1, 'A', 10+1e-7)
	Check(t, a, b)
}

func TestDifferentGlyphsAreDistinctIDs(t *testing.T) {
	a := glyphid.New(1, 'A', 10)
	b := glyphid.New(1, 'B', 10)
	if a == b {
		t.Fatal("expected distinct IDs for distinct glyph indices")
	}
}
