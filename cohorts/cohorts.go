package cohorts

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// Cohort is a set of chunks together with the labels those chunks claim.
// Within the slice returned by Find, chunk sets partition the chunk index
// space and label sets are disjoint: every label is claimed by exactly one
// cohort, and no chunk outside the cohort contains any of its labels.
type Cohort struct {
	Chunks []int
	Labels *roaring.Bitmap
}

type findOptions struct {
	tolerance float64
}

// FindOption configures cohort discovery.
type FindOption func(*findOptions)

// WithMergeTolerance sets the wasted-work ratio under which two
// label-disjoint cohorts are merged into one larger cohort. 0 disables
// merging beyond what correctness requires; higher values prefer fewer,
// larger cohorts at the cost of wider combine stages. Exact cohort
// membership is a scheduling heuristic, not a contract — only partition
// validity and determinism are guaranteed. Default 0.25.
func WithMergeTolerance(t float64) FindOption {
	return func(o *findOptions) { o.tolerance = t }
}

// Find partitions the chunks of bm into cohorts. The result is
// deterministic: the same bitmask always yields the same partition, with
// cohorts ordered by their smallest chunk index.
//
// Chunks with identical label sets always land in the same cohort; cohorts
// sharing any label are merged transitively so each cohort's labels are
// fully contained in its own chunks. A degenerate all-empty bitmask yields
// a single cohort of every chunk with an empty label set.
func Find(bm *Bitmask, opts ...FindOption) []Cohort {
	o := &findOptions{tolerance: 0.25}
	for _, opt := range opts {
		opt(o)
	}

	n := bm.NumChunks()
	if n == 0 {
		return nil
	}

	// Chunks with identical label sets are interchangeable: group them
	// first so the merge phase works on distinct sets only.
	groups := make(map[string]int)
	var sets []*Cohort
	for c := 0; c < n; c++ {
		row := bm.Row(c)
		key := rowKey(row)
		if gi, ok := groups[key]; ok {
			sets[gi].Chunks = append(sets[gi].Chunks, c)
			continue
		}
		groups[key] = len(sets)
		sets = append(sets, &Cohort{Chunks: []int{c}, Labels: row.Clone()})
	}

	// Degenerate: no labels anywhere.
	if len(sets) == 1 && sets[0].Labels.IsEmpty() {
		return []Cohort{{Chunks: sets[0].Chunks, Labels: roaring.New()}}
	}

	merged := closeOverSharedLabels(sets)
	merged = mergeSmallCohorts(merged, o.tolerance)

	for i := range merged {
		sort.Ints(merged[i].Chunks)
	}
	sort.Slice(merged, func(a, b int) bool {
		return merged[a].Chunks[0] < merged[b].Chunks[0]
	})
	return merged
}

func rowKey(row *roaring.Bitmap) string {
	b, err := row.MarshalBinary()
	if err != nil {
		// Roaring's binary marshal of an in-memory bitmap cannot fail;
		// fall back to the (slower) textual form if it ever does.
		return row.String()
	}
	return string(b)
}

// closeOverSharedLabels unions cohorts transitively whenever they share a
// label, using a union-find keyed by the first cohort seen to claim each
// label. This is the correctness step: after it, no label occurs in two
// cohorts.
func closeOverSharedLabels(sets []*Cohort) []Cohort {
	parent := make([]int, len(sets))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			if rb < ra {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}

	owner := make(map[uint32]int)
	for i, s := range sets {
		it := s.Labels.Iterator()
		for it.HasNext() {
			label := it.Next()
			if prev, ok := owner[label]; ok {
				union(prev, i)
			} else {
				owner[label] = i
			}
		}
	}

	byRoot := make(map[int]*Cohort)
	var order []int
	for i, s := range sets {
		r := find(i)
		if acc, ok := byRoot[r]; ok {
			acc.Chunks = append(acc.Chunks, s.Chunks...)
			acc.Labels.Or(s.Labels)
		} else {
			byRoot[r] = &Cohort{
				Chunks: append([]int(nil), s.Chunks...),
				Labels: s.Labels.Clone(),
			}
			order = append(order, r)
		}
	}

	out := make([]Cohort, 0, len(order))
	for _, r := range order {
		out = append(out, *byRoot[r])
	}
	return out
}

// mergeSmallCohorts greedily folds a cohort into its predecessor when the
// wasted work of the merged cohort — combine-stage slots computed for
// labels the other side's chunks never contain — stays within tolerance.
// Merging label-disjoint cohorts can never change results, only the shape
// of the combine tree, so this is purely a fewer-larger-cohorts preference.
func mergeSmallCohorts(sets []Cohort, tolerance float64) []Cohort {
	if tolerance <= 0 || len(sets) < 2 {
		return sets
	}
	sort.Slice(sets, func(a, b int) bool {
		return minChunk(sets[a]) < minChunk(sets[b])
	})

	out := make([]Cohort, 0, len(sets))
	out = append(out, sets[0])
	for _, next := range sets[1:] {
		cur := &out[len(out)-1]
		if wastedRatio(*cur, next) <= tolerance {
			cur.Chunks = append(cur.Chunks, next.Chunks...)
			cur.Labels.Or(next.Labels)
			continue
		}
		out = append(out, next)
	}
	return out
}

func minChunk(c Cohort) int {
	m := c.Chunks[0]
	for _, v := range c.Chunks[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// wastedRatio estimates the fraction of combine-stage work in the merged
// cohort that serves labels foreign to a chunk's own side.
func wastedRatio(a, b Cohort) float64 {
	la := float64(a.Labels.GetCardinality())
	lb := float64(b.Labels.GetCardinality())
	if la+lb == 0 {
		return 0
	}
	ca := float64(len(a.Chunks))
	cb := float64(len(b.Chunks))
	wasted := ca*lb + cb*la
	total := (ca + cb) * (la + lb)
	return wasted / total
}
