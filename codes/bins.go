package codes

import (
	"errors"
	"math"
	"sort"
)

var (
	// ErrTooFewEdges is returned when fewer than two bin edges are given.
	// Binning by bin count alone is not supported; callers must pass
	// explicit edges.
	ErrTooFewEdges = errors.New("binning requires at least two explicit edges")
	// ErrUnsortedEdges is returned when bin edges are not strictly increasing.
	ErrUnsortedEdges = errors.New("bin edges must be strictly increasing")
)

// FactorizeBins assigns each value to a bin defined by consecutive edges.
// With right=true bin i is (edges[i], edges[i+1]]; with right=false it is
// [edges[i], edges[i+1]). Values outside all bins, and NaNs, code as
// Missing. The label index holds one interval label per bin, in edge order,
// so empty bins still occupy an output position.
func FactorizeBins(values []float64, edges []float64, right bool) (*Encoding, error) {
	if len(edges) < 2 {
		return nil, ErrTooFewEdges
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return nil, ErrUnsortedEdges
		}
	}

	ix := newLabelIndex()
	for i := 0; i+1 < len(edges); i++ {
		ix.add(Interval(edges[i], edges[i+1]))
	}

	nbins := len(edges) - 1
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = binOf(v, edges, nbins, right)
	}
	return &Encoding{Codes: out, Index: ix}, nil
}

func binOf(v float64, edges []float64, nbins int, right bool) int {
	if math.IsNaN(v) {
		return Missing
	}
	if right {
		// (lo, hi]: first edge strictly below v marks the bin.
		if v <= edges[0] || v > edges[nbins] {
			return Missing
		}
		return sort.SearchFloat64s(edges, v) - 1
	}
	// [lo, hi)
	if v < edges[0] || v >= edges[nbins] {
		return Missing
	}
	// Index of the last edge <= v.
	j := sort.Search(len(edges), func(k int) bool { return edges[k] > v })
	return j - 1
}
