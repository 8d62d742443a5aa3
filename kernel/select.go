package kernel

import (
	"math"
	"sort"
)

// selectGrouped computes grouped quantiles or top-k via per-run order
// statistic selection. Runs are already contiguous after the primary sort
// by group code, so the joint (code, value) partition reduces to a
// value-only multi-rank quickselect inside each run.
func selectGrouped(op Op, data []float64, rows, n, size int, inv, uniques []int, o *options) ([]float64, error) {
	var qs []float64
	skipna := false
	topk := false

	switch op {
	case OpQuantile, OpNanQuantile:
		if len(o.qs) == 0 {
			return nil, ErrMissingParam
		}
		qs = o.qs
		skipna = op == OpNanQuantile
	case OpMedian, OpNanMedian:
		qs = []float64{0.5}
		skipna = op == OpNanMedian
	case OpTopk:
		if !o.kSet || o.k == 0 {
			return nil, ErrMissingParam
		}
		topk = true
		skipna = true
	}
	for _, q := range qs {
		if q < 0 || q > 1 || math.IsNaN(q) {
			return nil, &ErrBadQuantile{Q: q}
		}
	}

	layers := len(qs)
	if topk {
		if o.k < 0 {
			layers = -o.k
		} else {
			layers = o.k
		}
	}

	out := filled(layers*rows*size, o.fill)
	vals := make([]float64, 0, n)
	for r := 0; r < rows; r++ {
		row := data[r*n : (r+1)*n]
		for s, start := range inv {
			end := n
			if s+1 < len(inv) {
				end = inv[s+1]
			}
			g := uniques[s]

			// Compact away missing values instead of replacing them with
			// the run maximum: ranks below count only ever address real
			// values, which is what the max-replacement achieved.
			vals = vals[:0]
			hasNaN := false
			for _, v := range row[start:end] {
				if math.IsNaN(v) {
					hasNaN = true
					continue
				}
				vals = append(vals, v)
			}
			if (!skipna && hasNaN) || len(vals) == 0 {
				continue // fill stays
			}

			if topk {
				selectTopk(vals, o.k, out, layers, rows, r, size, g, o.fill)
			} else {
				selectQuantiles(vals, qs, out, rows, r, size, g)
			}
		}
	}
	return out, nil
}

// selectQuantiles writes the linear-interpolated quantiles of vals into
// out[(qi*rows+r)*size+g].
func selectQuantiles(vals []float64, qs []float64, out []float64, rows, r, size, g int) {
	act := len(vals)
	ranks := make([]int, 0, 2*len(qs))
	for _, q := range qs {
		virtual := q * float64(act-1)
		ranks = append(ranks, int(math.Floor(virtual)), int(math.Ceil(virtual)))
	}
	selectRanks(vals, dedupRanks(ranks))

	for qi, q := range qs {
		virtual := q * float64(act-1)
		lo := int(math.Floor(virtual))
		hi := int(math.Ceil(virtual))
		a, b := vals[lo], vals[hi]
		gamma := virtual - float64(lo)
		var v float64
		if gamma >= 0.5 {
			// Upper-anchored form, numerically symmetric with the naive
			// lower-anchored one.
			v = b - (b-a)*(1-gamma)
		} else {
			v = a + (b-a)*gamma
		}
		out[(qi*rows+r)*size+g] = v
	}
}

// selectTopk writes the k largest (k>0, ascending across layers) or |k|
// smallest (k<0) values of vals into out. Layers whose rank falls outside
// the run (fewer than |k| members) keep the fill value.
func selectTopk(vals []float64, k int, out []float64, layers, rows, r, size, g int, fill float64) {
	act := len(vals)
	ranks := make([]int, 0, layers)
	for j := 0; j < layers; j++ {
		var target int
		if k > 0 {
			target = act - k + j
		} else {
			target = j
		}
		if target >= 0 && target < act {
			ranks = append(ranks, target)
		}
	}
	selectRanks(vals, dedupRanks(ranks))

	for j := 0; j < layers; j++ {
		var target int
		if k > 0 {
			target = act - k + j
		} else {
			target = j
		}
		v := fill
		if target >= 0 && target < act {
			v = vals[target]
		}
		out[(j*rows+r)*size+g] = v
	}
}

func dedupRanks(ranks []int) []int {
	sort.Ints(ranks)
	keep := ranks[:0]
	for i, v := range ranks {
		if i == 0 || v != ranks[i-1] {
			keep = append(keep, v)
		}
	}
	return keep
}

// selectRanks partially sorts vals in place so that every index in ranks
// (sorted ascending, all within range) holds its order statistic, the way a
// multi-kth partition would. Average linear time in len(vals) for a small
// rank set.
func selectRanks(vals []float64, ranks []int) {
	selectRange(vals, 0, len(vals)-1, ranks)
}

func selectRange(vals []float64, lo, hi int, ranks []int) {
	for lo < hi && len(ranks) > 0 {
		if hi-lo < 12 {
			insertionSort(vals, lo, hi)
			return
		}
		p := partition(vals, lo, hi)

		// Split the rank set around the pivot position.
		cut := sort.SearchInts(ranks, p)
		left, right := ranks[:cut], ranks[cut:]
		if len(right) > 0 && right[0] == p {
			right = right[1:]
		}
		// Recurse into the smaller side, iterate on the larger.
		if p-lo < hi-p {
			selectRange(vals, lo, p-1, left)
			lo, ranks = p+1, right
		} else {
			selectRange(vals, p+1, hi, right)
			hi, ranks = p-1, left
		}
	}
}

// partition does a Lomuto partition with a median-of-three pivot and
// returns the pivot's final index.
func partition(vals []float64, lo, hi int) int {
	mid := lo + (hi-lo)/2
	if vals[mid] < vals[lo] {
		vals[mid], vals[lo] = vals[lo], vals[mid]
	}
	if vals[hi] < vals[lo] {
		vals[hi], vals[lo] = vals[lo], vals[hi]
	}
	if vals[hi] < vals[mid] {
		vals[hi], vals[mid] = vals[mid], vals[hi]
	}
	pivot := vals[mid]
	vals[mid], vals[hi-1] = vals[hi-1], vals[mid]

	i := lo
	for j := lo; j < hi-1; j++ {
		if vals[j] < pivot {
			vals[i], vals[j] = vals[j], vals[i]
			i++
		}
	}
	vals[i], vals[hi-1] = vals[hi-1], vals[i]
	return i
}

func insertionSort(vals []float64, lo, hi int) {
	for i := lo + 1; i <= hi; i++ {
		for j := i; j > lo && vals[j] < vals[j-1]; j-- {
			vals[j], vals[j-1] = vals[j-1], vals[j]
		}
	}
}
