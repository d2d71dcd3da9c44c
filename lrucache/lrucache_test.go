package lrucache_test

import (
	"testing"

	"github.com/bloeys/glyphtext/lrucache"
)

func Check[T comparable](t *testing.T, expected, got T) {
	if got != expected {
		t.Fatalf("Expected %v but got %v\n", expected, got)
	}
}

func TestNewCacheValidation(t *testing.T) {

	if _, err := lrucache.NewCache[string](lrucache.Config{}); err != lrucache.ErrNoTiers {
		t.Fatalf("expected ErrNoTiers, got %v", err)
	}

	_, err := lrucache.NewCache[string](lrucache.Config{
		Tiers: []lrucache.TierConfig{{TileExtent: 8, Capacity: 0}},
	})
	if err != lrucache.ErrZeroCapacity {
		t.Fatalf("expected ErrZeroCapacity, got %v", err)
	}

	_, err = lrucache.NewCache[string](lrucache.Config{
		Tiers: []lrucache.TierConfig{{TileExtent: 0, Capacity: 4}},
	})
	if err != lrucache.ErrZeroTileExtent {
		t.Fatalf("expected ErrZeroTileExtent, got %v", err)
	}
}

func TestClassifyPicksSmallestFittingTier(t *testing.T) {

	c, err := lrucache.NewCache[string](lrucache.Config{
		Tiers: []lrucache.TierConfig{
			{TileExtent: 32, Capacity: 4},
			{TileExtent: 16, Capacity: 4},
			{TileExtent: 64, Capacity: 4},
		},
		Margin: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	tier, ok := c.Classify(10)
	Check(t, true, ok)
	Check(t, 0, tier) // tiers sort ascending by TileExtent: {16,32,64} -> extent 16 is tier 0
	if c.TierCapacity(tier) != 4 {
		t.Fatalf("unexpected tier capacity %d", c.TierCapacity(tier))
	}

	_, ok = c.Classify(1000)
	Check(t, false, ok)
}

func TestTouchOrAdmitHitMissFailed(t *testing.T) {

	c, err := lrucache.NewCache[int](lrucache.Config{
		Tiers: []lrucache.TierConfig{{TileExtent: 16, Capacity: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, outcome := c.TouchOrAdmit(0, 1)
	Check(t, lrucache.Miss, outcome)

	_, outcome = c.TouchOrAdmit(0, 2)
	Check(t, lrucache.Miss, outcome)

	_, outcome = c.TouchOrAdmit(0, 1)
	Check(t, lrucache.Hit, outcome)

	// Both slots are stamped with the current (only) batch, so a third
	// distinct key cannot be admitted until a new batch starts.
	_, outcome = c.TouchOrAdmit(0, 3)
	Check(t, lrucache.Failed, outcome)

	c.NewBatch()

	// 2 is now the LRU tail (1 was touched more recently) and is no
	// longer protected, so it is evicted to admit 3.
	_, outcome = c.TouchOrAdmit(0, 3)
	Check(t, lrucache.Miss, outcome)

	_, outcome = c.TouchOrAdmit(0, 2)
	Check(t, lrucache.Miss, outcome)
}

func TestClearResetsMapAndBatch(t *testing.T) {

	c, err := lrucache.NewCache[int](lrucache.Config{
		Tiers: []lrucache.TierConfig{{TileExtent: 16, Capacity: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}

	c.TouchOrAdmit(0, 1)
	c.TouchOrAdmit(0, 2)
	c.NewBatch()
	c.Clear()

	Check(t, 0, c.Len(0))

	_, outcome := c.TouchOrAdmit(0, 1)
	Check(t, lrucache.Miss, outcome)
}

// TestCacheCoherence runs a sequence of TouchOrAdmit interleaved with
// NewBatch and checks that no admission fails right after a new batch and
// that the tier never reports more entries than its capacity.
func TestCacheCoherence(t *testing.T) {

	c, err := lrucache.NewCache[int](lrucache.Config{
		Tiers: []lrucache.TierConfig{{TileExtent: 16, Capacity: 3}},
	})
	if err != nil {
		t.Fatal(err)
	}

	keys := []int{1, 2, 3, 4, 5, 1, 6, 2}
	for i, k := range keys {
		_, outcome := c.TouchOrAdmit(0, k)
		if outcome == lrucache.Failed {
			c.NewBatch()
			_, outcome = c.TouchOrAdmit(0, k)
			if outcome == lrucache.Failed {
				t.Fatalf("step %d: key %d failed even after new batch", i, k)
			}
		}
		if c.Len(0) > c.TierCapacity(0) {
			t.Fatalf("step %d: cache grew beyond capacity: len=%d", i, c.Len(0))
		}
	}
}

// TestBatchProtectionSafety is the "GPU batch safety" property: between
// consecutive NewBatch calls, every slot touched this batch must survive
// repeated TouchOrAdmit of other keys (they fail closed, not evict).
func TestBatchProtectionSafety(t *testing.T) {

	c, err := lrucache.NewCache[int](lrucache.Config{
		Tiers: []lrucache.TierConfig{{TileExtent: 16, Capacity: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}

	slot1, _ := c.TouchOrAdmit(0, 1)
	slot2, _ := c.TouchOrAdmit(0, 2)

	for i := 0; i < 5; i++ {
		s, outcome := c.TouchOrAdmit(0, 1)
		Check(t, lrucache.Hit, outcome)
		Check(t, slot1, s)

		s, outcome = c.TouchOrAdmit(0, 2)
		Check(t, lrucache.Hit, outcome)
		Check(t, slot2, s)

		// a third key must fail, not steal a protected slot
		_, outcome = c.TouchOrAdmit(0, 99)
		Check(t, lrucache.Failed, outcome)
	}
}
