package kernel

import "sort"

// Reduce computes op per group over a 1-D block. codes[i] is the dense
// group code of data[i]; size is the total number of groups. The result has
// length size (times one leading layer per q for quantile ops, or |k| for
// topk), ordered by group code, with groups that produced no usable value
// set to the fill value. OpFfill is the one shape exception: its result is
// element-wise and has the same length as data.
func Reduce(op Op, codes []int, data []float64, size int, opts ...Option) ([]float64, error) {
	return ReduceAxis(op, codes, data, 1, size, opts...)
}

// ReduceAxis is Reduce for a row-major [rows, n] block, reducing the last
// axis. The output layout is [layer][row][group], flattened.
func ReduceAxis(op Op, codes []int, data []float64, rows, size int, opts ...Option) ([]float64, error) {
	if !op.Valid() {
		return nil, ErrUnknownOp
	}
	o := newOptions(opts)

	n := len(codes)
	if rows < 1 || len(data) != rows*n {
		return nil, &ErrLengthMismatch{Codes: n, Data: len(data), Rows: rows}
	}
	for _, c := range codes {
		if c < 0 || c >= size {
			return nil, &ErrCodeOutOfRange{Code: c, Size: size}
		}
	}

	sortedCodes, sortedData, perm := prepare(codes, data, rows, n)
	inv, uniques := runBounds(sortedCodes)

	switch op {
	case OpFfill:
		return ffill(sortedData, rows, n, inv, perm), nil
	case OpQuantile, OpNanQuantile, OpMedian, OpNanMedian, OpTopk:
		return selectGrouped(op, sortedData, rows, n, size, inv, uniques, o)
	default:
		f, err := segmentEvaluator(op, o)
		if err != nil {
			return nil, err
		}
		return reduceSegments(f, sortedData, rows, n, size, inv, uniques, o), nil
	}
}

// prepare returns the block sorted by group code along the last axis. When
// codes are already non-decreasing the inputs are returned as-is and perm
// is nil; otherwise a stable permutation is computed and applied to both
// codes and every row of data, and returned so order-sensitive ops can
// invert it.
func prepare(codes []int, data []float64, rows, n int) ([]int, []float64, []int) {
	sorted := true
	for i := 1; i < n; i++ {
		if codes[i] < codes[i-1] {
			sorted = false
			break
		}
	}
	if sorted {
		return codes, data, nil
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool { return codes[perm[a]] < codes[perm[b]] })

	sc := make([]int, n)
	sd := make([]float64, rows*n)
	for i, p := range perm {
		sc[i] = codes[p]
	}
	for r := 0; r < rows; r++ {
		src := data[r*n : (r+1)*n]
		dst := sd[r*n : (r+1)*n]
		for i, p := range perm {
			dst[i] = src[p]
		}
	}
	return sc, sd, perm
}

// runBounds returns run-start positions of the sorted code array and the
// distinct code at each run.
func runBounds(sorted []int) (inv, uniques []int) {
	for i, c := range sorted {
		if i == 0 || c != sorted[i-1] {
			inv = append(inv, i)
			uniques = append(uniques, c)
		}
	}
	return inv, uniques
}

// reduceSegments applies f to every [inv[i], inv[i+1]) run of every row.
// When the distinct codes cover [0, size) exactly, results are written
// straight into a raw output (every slot is written); otherwise the output
// is fill-initialized and run results are scattered to their code
// positions. Both paths produce identical values.
func reduceSegments(f segFunc, data []float64, rows, n, size int, inv, uniques []int, o *options) []float64 {
	fast := len(uniques) == size && !o.scatter
	var out []float64
	if fast {
		out = make([]float64, rows*size)
	} else {
		out = filled(rows*size, o.fill)
	}
	for r := 0; r < rows; r++ {
		row := data[r*n : (r+1)*n]
		for s, start := range inv {
			end := n
			if s+1 < len(inv) {
				end = inv[s+1]
			}
			v, ok := f(row[start:end])
			if !ok {
				v = o.fill
			}
			out[r*size+uniques[s]] = v
		}
	}
	return out
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
