// Package lrucache implements the size-tiered, fixed-capacity LRU core
// shared by the CPU and GPU glyph caches: a reusable structure that
// tracks, per size tier, which keys are resident, in what
// most-to-least-recently-used order, and whether an entry is protected
// from eviction by the current render batch.
//
// The doubly-linked recency list is represented with integer slot
// indices into fixed arrays, not heap pointers, so the whole structure
// is a handful of flat slices: trivially movable, reset-able, and free
// of ownership cycles. Batch protection is a generation stamp compared
// against a single counter, which replaces per-entry reference counting.
package lrucache

import (
	"errors"

	"github.com/bloeys/glyphtext/assert"
)

// Outcome reports the result of TouchOrAdmit.
type Outcome int

const (
	// Hit means key was already resident; it has been moved to MRU and
	// re-stamped with the current batch.
	Hit Outcome = iota
	// Miss means key was not resident and has been admitted into a free
	// or evicted slot.
	Miss
	// Failed means every slot in the tier is protected by the current
	// batch; the caller must flush, call NewBatch, and retry.
	Failed
)

const noSlot int32 = -1

// TierConfig describes one size class: entries up to TileExtent units
// share this tier's fixed-capacity slot pool.
type TierConfig struct {
	TileExtent int
	Capacity   int
}

// Config configures a Cache. Tiers need not be given in sorted order;
// NewCache sorts them ascending by TileExtent. Margin is added to an
// extent before comparing it against a tier's TileExtent in Classify
// (2 for the GPU atlas cache, 0 for the CPU cache, per spec).
type Config struct {
	Tiers  []TierConfig
	Margin int
}

var (
	// ErrNoTiers is returned when a Config has no tiers.
	ErrNoTiers = errors.New("lrucache: config has no tiers")
	// ErrZeroCapacity is returned when a tier has zero capacity.
	ErrZeroCapacity = errors.New("lrucache: tier has zero capacity")
	// ErrZeroTileExtent is returned when a tier has zero tile extent.
	ErrZeroTileExtent = errors.New("lrucache: tier has zero tile extent")
)

type tier[K comparable] struct {
	tileExtent int

	// newer/older represent the doubly-linked MRU..LRU list by slot
	// index; noSlot terminates either end.
	newer []int32
	older []int32
	head  int32 // MRU slot, noSlot if empty
	tail  int32 // LRU slot, noSlot if empty

	lastBatch []uint64
	keys      []K
	index     map[K]int32
	free      []int32 // stack of unused slot indices
}

func newTier[K comparable](cfg TierConfig) *tier[K] {
	t := &tier[K]{
		tileExtent: cfg.TileExtent,
		newer:      make([]int32, cfg.Capacity),
		older:      make([]int32, cfg.Capacity),
		head:       noSlot,
		tail:       noSlot,
		lastBatch:  make([]uint64, cfg.Capacity),
		keys:       make([]K, cfg.Capacity),
		index:      make(map[K]int32, cfg.Capacity),
		free:       make([]int32, cfg.Capacity),
	}
	for i := 0; i < cfg.Capacity; i++ {
		t.free[i] = int32(cfg.Capacity - 1 - i)
	}
	return t
}

func (t *tier[K]) unlink(slot int32) {
	newerOfSlot := t.newer[slot]
	olderOfSlot := t.older[slot]
	if newerOfSlot != noSlot {
		t.older[newerOfSlot] = olderOfSlot
	} else {
		t.head = olderOfSlot
	}
	if olderOfSlot != noSlot {
		t.newer[olderOfSlot] = newerOfSlot
	} else {
		t.tail = newerOfSlot
	}
}

func (t *tier[K]) pushFront(slot int32) {
	t.newer[slot] = noSlot
	t.older[slot] = t.head
	if t.head != noSlot {
		t.newer[t.head] = slot
	}
	t.head = slot
	if t.tail == noSlot {
		t.tail = slot
	}
}

func (t *tier[K]) moveToFront(slot int32) {
	if t.head == slot {
		return
	}
	t.unlink(slot)
	t.pushFront(slot)
}

// Cache is the size-tiered LRU core, generic over the key type used by
// its callers (glyphid.ID in practice).
type Cache[K comparable] struct {
	margin       int
	tiers        []*tier[K]
	currentBatch uint64
}

// NewCache validates cfg and builds a Cache. It returns an error for the
// fatal configuration conditions spec'd as "must not occur": no tiers,
// zero capacity, or zero tile extent.
func NewCache[K comparable](cfg Config) (*Cache[K], error) {
	if len(cfg.Tiers) == 0 {
		return nil, ErrNoTiers
	}
	tierCfgs := append([]TierConfig(nil), cfg.Tiers...)
	for _, tc := range tierCfgs {
		if tc.Capacity <= 0 {
			return nil, ErrZeroCapacity
		}
		if tc.TileExtent <= 0 {
			return nil, ErrZeroTileExtent
		}
	}
	sortTiersAscending(tierCfgs)

	c := &Cache[K]{
		margin: cfg.Margin,
		tiers:  make([]*tier[K], len(tierCfgs)),
	}
	for i, tc := range tierCfgs {
		c.tiers[i] = newTier[K](tc)
	}
	return c, nil
}

func sortTiersAscending(tiers []TierConfig) {
	for i := 1; i < len(tiers); i++ {
		for j := i; j > 0 && tiers[j].TileExtent < tiers[j-1].TileExtent; j-- {
			tiers[j], tiers[j-1] = tiers[j-1], tiers[j]
		}
	}
}

// TierCount returns the number of configured tiers.
func (c *Cache[K]) TierCount() int { return len(c.tiers) }

// TierCapacity returns the slot capacity of a tier.
func (c *Cache[K]) TierCapacity(tierIndex int) int { return len(c.tiers[tierIndex].keys) }

// Classify returns the smallest tier whose TileExtent is at least
// extent+margin, or ok=false if no tier is large enough.
func (c *Cache[K]) Classify(extent int) (tierIndex int, ok bool) {
	needed := extent + c.margin
	for i, t := range c.tiers {
		if t.tileExtent >= needed {
			return i, true
		}
	}
	return 0, false
}

// Contains reports whether key is currently resident in tierIndex,
// without affecting recency or batch protection.
func (c *Cache[K]) Contains(tierIndex int, key K) bool {
	_, ok := c.tiers[tierIndex].index[key]
	return ok
}

// TouchOrAdmit looks up key within tierIndex. On Hit the entry is moved
// to MRU and re-stamped with the current batch. On Miss a free or
// evicted slot is installed with key. Failed is returned iff every slot
// in the tier is stamped with the current batch (all pinned); the
// caller should flush pending work, call NewBatch, and retry.
func (c *Cache[K]) TouchOrAdmit(tierIndex int, key K) (slot int32, outcome Outcome) {
	t := c.tiers[tierIndex]

	if s, ok := t.index[key]; ok {
		t.moveToFront(s)
		t.lastBatch[s] = c.currentBatch
		return s, Hit
	}

	if len(t.free) > 0 {
		s := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		c.admit(t, s, key)
		return s, Miss
	}

	tailSlot := t.tail
	assert.T(tailSlot != noSlot, "lrucache: tier has capacity but no tail and no free slot")
	if t.lastBatch[tailSlot] == c.currentBatch {
		return noSlot, Failed
	}

	delete(t.index, t.keys[tailSlot])
	t.unlink(tailSlot)
	c.admit(t, tailSlot, key)
	return tailSlot, Miss
}

func (c *Cache[K]) admit(t *tier[K], slot int32, key K) {
	t.keys[slot] = key
	t.index[key] = slot
	t.lastBatch[slot] = c.currentBatch
	t.pushFront(slot)
}

// NewBatch increments the current batch id (wrapping on overflow). After
// this call no slot is protected; every slot becomes a candidate for
// eviction on its tier's next TouchOrAdmit miss.
func (c *Cache[K]) NewBatch() {
	c.currentBatch++
}

// Clear empties every tier's map and free-list bookkeeping and resets
// the batch id to zero.
func (c *Cache[K]) Clear() {
	c.currentBatch = 0
	for _, t := range c.tiers {
		capacity := len(t.keys)
		for k := range t.index {
			delete(t.index, k)
		}
		t.head = noSlot
		t.tail = noSlot
		t.free = t.free[:0]
		for i := 0; i < capacity; i++ {
			t.free = append(t.free, int32(capacity-1-i))
		}
	}
}

// Len reports the number of occupied slots in a tier (for coherence
// checks and tests).
func (c *Cache[K]) Len(tierIndex int) int {
	return len(c.tiers[tierIndex].index)
}
