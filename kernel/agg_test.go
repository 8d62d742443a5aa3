package kernel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// splitReduce runs agg's chunk ops per chunk, combines partials in chunk
// order, and finalizes — the same shape the orchestrator uses.
func splitReduce(t *testing.T, op Op, codes []int, data []float64, size int, bounds []int, ddof int, fill float64) []float64 {
	t.Helper()
	agg, err := Lookup(op)
	require.NoError(t, err)
	require.True(t, agg.Combinable)

	var channels [][]float64
	prev := 0
	for _, end := range bounds {
		for ci, ch := range agg.Chunk {
			part, err := Reduce(ch.Op, codes[prev:end], data[prev:end], size,
				WithFill(ch.Fill), WithDDOF(ddof))
			require.NoError(t, err)
			if len(channels) <= ci {
				channels = append(channels, part)
			} else {
				CombineInto(agg.Combine[ci], channels[ci], part)
			}
		}
		prev = end
	}
	if agg.Finalize == nil {
		return channels[0]
	}
	return agg.Finalize(channels, ddof, fill)
}

func TestAggregationSplitMatchesSingleBlock(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	const n, size = 240, 7
	codes, data := randomGroups(rng, n, size)
	// Values near 1 keep grouped products well-conditioned; missing values
	// sprinkled in give the nan-variants work to do.
	for i := range data {
		data[i] = 0.5 + rng.Float64()
	}
	for i := 0; i < n; i += 13 {
		data[i] = math.NaN()
	}
	bounds := []int{50, 110, 180, n}

	ops := []Op{
		OpSum, OpNanSum, OpProd, OpNanProd, OpMin, OpNanMin, OpMax, OpNanMax,
		OpCount, OpMean, OpNanMean, OpNanVar, OpNanStd, OpNanFirst, OpNanLast,
	}
	for _, op := range ops {
		whole, err := Reduce(op, codes, data, size, WithDDOF(1))
		require.NoError(t, err)
		split := splitReduce(t, op, codes, data, size, bounds, 1, math.NaN())
		require.Len(t, split, len(whole), "op %s", op)
		for g := range whole {
			if math.IsNaN(whole[g]) {
				assert.True(t, math.IsNaN(split[g]), "op %s group %d", op, g)
				continue
			}
			assert.InDelta(t, whole[g], split[g], 1e-9, "op %s group %d", op, g)
		}
	}
}

func TestLookupNonCombinable(t *testing.T) {
	for _, op := range []Op{OpQuantile, OpNanQuantile, OpMedian, OpNanMedian, OpTopk, OpFfill} {
		agg, err := Lookup(op)
		require.NoError(t, err)
		assert.False(t, agg.Combinable, "op %s", op)
	}
}

func TestNanMinAllMissingGroupFinalizesToFill(t *testing.T) {
	agg, err := Lookup(OpNanMin)
	require.NoError(t, err)

	nan := math.NaN()
	part, err := Reduce(OpNanMin, []int{0, 1}, []float64{nan, 3}, 2, WithFill(math.Inf(1)))
	require.NoError(t, err)

	final := agg.Finalize([][]float64{part}, 0, -1)
	assert.Equal(t, -1.0, final[0])
	assert.Equal(t, 3.0, final[1])
}

func TestAggregationAllMissingGroupTakesFill(t *testing.T) {
	// Group 0 is present but entirely missing, split across chunks; the
	// finalized result must land on the fill value exactly like a single
	// kernel call with the same fill would.
	nan := math.NaN()
	codes := []int{0, 0, 1}
	data := []float64{nan, nan, 3}
	bounds := []int{2, 3}

	ops := []Op{OpNanMin, OpNanMax, OpNanMean, OpNanVar, OpNanStd, OpNanFirst, OpNanLast}
	for _, op := range ops {
		whole, err := Reduce(op, codes, data, 2, WithFill(-7))
		require.NoError(t, err)
		require.Equal(t, -7.0, whole[0], "op %s", op)

		split := splitReduce(t, op, codes, data, 2, bounds, 0, -7)
		assert.Equal(t, -7.0, split[0], "op %s", op)
	}
}
