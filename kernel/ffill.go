package kernel

import "math"

// ffill propagates the last non-missing value forward within each run.
// The result is element-wise (same shape as the block), so when the block
// was sorted to group runs the permutation must be inverted to restore the
// caller's element order.
func ffill(data []float64, rows, n int, inv []int, perm []int) []float64 {
	runStart := make([]bool, n)
	for _, start := range inv {
		runStart[start] = true
	}

	out := make([]float64, rows*n)
	for r := 0; r < rows; r++ {
		row := data[r*n : (r+1)*n]
		dst := out[r*n : (r+1)*n]
		last := 0
		for i, v := range row {
			// A run start resets the carry even when its value is missing,
			// so leading gaps in a group stay missing.
			if runStart[i] || !math.IsNaN(v) {
				last = i
			}
			dst[i] = row[last]
		}
	}

	if perm == nil {
		return out
	}
	inverted := make([]float64, rows*n)
	for r := 0; r < rows; r++ {
		src := out[r*n : (r+1)*n]
		dst := inverted[r*n : (r+1)*n]
		for i, p := range perm {
			dst[p] = src[i]
		}
	}
	return inverted
}
