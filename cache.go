package chunkagg

import (
	"hash/fnv"
	"math"
	"sync"

	"github.com/hupe1980/chunkagg/cohorts"
)

// CohortCache memoizes label-chunk bitmasks and cohort partitions, keyed by
// the identity of the grouping (the code array) and the chunking (the chunk
// lengths). It is advisory state: a miss is always safe to recompute and
// Clear never affects results, only speed. The cache is owned by whoever
// constructs it and passed in explicitly — there is no process-wide
// instance.
type CohortCache struct {
	mu      sync.RWMutex
	masks   map[layoutKey]*cohorts.Bitmask
	cohorts map[cohortKey][]cohorts.Cohort
}

type layoutKey struct {
	grouping uint64
	chunking uint64
	size     int
}

type cohortKey struct {
	layout    layoutKey
	tolerance uint64 // float bits; different tunings are different entries
	tolSet    bool   // distinguishes the package default from any explicit value
}

// NewCohortCache returns an empty cache.
func NewCohortCache() *CohortCache {
	return &CohortCache{
		masks:   make(map[layoutKey]*cohorts.Bitmask),
		cohorts: make(map[cohortKey][]cohorts.Cohort),
	}
}

// Clear drops all cached entries.
func (c *CohortCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.masks = make(map[layoutKey]*cohorts.Bitmask)
	c.cohorts = make(map[cohortKey][]cohorts.Cohort)
}

// Len returns the number of cached bitmask entries.
func (c *CohortCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.masks)
}

func (c *CohortCache) bitmask(key layoutKey) (*cohorts.Bitmask, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bm, ok := c.masks[key]
	return bm, ok
}

func (c *CohortCache) putBitmask(key layoutKey, bm *cohorts.Bitmask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.masks[key] = bm
}

func (c *CohortCache) partition(key cohortKey) ([]cohorts.Cohort, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cs, ok := c.cohorts[key]
	return cs, ok
}

func (c *CohortCache) putPartition(key cohortKey, cs []cohorts.Cohort) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cohorts[key] = cs
}

// layoutFingerprint hashes the grouping and chunking identity with FNV-1a.
func layoutFingerprint(codes []int, chunks []int, size int) layoutKey {
	return layoutKey{
		grouping: fingerprintInts(codes),
		chunking: fingerprintInts(chunks),
		size:     size,
	}
}

func fingerprintInts(vals []int) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range vals {
		u := uint64(v)
		for i := 0; i < 8; i++ {
			buf[i] = byte(u >> (8 * i))
		}
		h.Write(buf[:])
	}
	return h.Sum64()
}

func toleranceKey(o *options) (bits uint64, set bool) {
	if !o.tolSet {
		return 0, false
	}
	return math.Float64bits(o.tolerance), true
}
