package kernel

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naiveQuantile is the full-sort linear-interpolation oracle.
func naiveQuantile(vals []float64, q float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	virtual := q * float64(len(s)-1)
	lo := int(math.Floor(virtual))
	hi := int(math.Ceil(virtual))
	gamma := virtual - float64(lo)
	return s[lo] + (s[hi]-s[lo])*gamma
}

func TestQuantileSkipnaScenario(t *testing.T) {
	nan := math.NaN()
	codes := []int{0, 0, 0}
	data := []float64{nan, 5, 3}

	out, err := Reduce(OpNanQuantile, codes, data, 1, WithQuantiles(0.5))
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, out)

	out, err = Reduce(OpQuantile, codes, data, 1, WithQuantiles(0.5))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[0]), "one missing value poisons the group when skipna is off")
}

func TestQuantileMatchesNaiveOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	const n, size = 300, 6
	codes, data := randomGroups(rng, n, size)
	groups := make(map[int][]float64)
	for i, c := range codes {
		groups[c] = append(groups[c], data[i])
	}

	qs := []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1}
	out, err := Reduce(OpQuantile, codes, data, size, WithQuantiles(qs...))
	require.NoError(t, err)
	require.Len(t, out, len(qs)*size)

	for qi, q := range qs {
		for g := 0; g < size; g++ {
			want := naiveQuantile(groups[g], q)
			assert.InDelta(t, want, out[qi*size+g], 1e-9, "q=%v group=%d", q, g)
		}
	}
}

func TestQuantileMonotonicInQ(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	const n, size = 150, 4
	codes, data := randomGroups(rng, n, size)

	qs := []float64{0, 0.2, 0.4, 0.6, 0.8, 1}
	out, err := Reduce(OpQuantile, codes, data, size, WithQuantiles(qs...))
	require.NoError(t, err)
	for g := 0; g < size; g++ {
		for qi := 1; qi < len(qs); qi++ {
			assert.GreaterOrEqual(t, out[qi*size+g], out[(qi-1)*size+g],
				"quantile must not decrease with q (group %d)", g)
		}
	}
}

func TestMedianIsMiddleValue(t *testing.T) {
	codes := []int{0, 0, 0, 1, 1}
	data := []float64{3, 1, 2, 10, 20}

	out, err := Reduce(OpMedian, codes, data, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 15}, out)
}

func TestTopkLargest(t *testing.T) {
	codes := []int{0, 0, 0, 0, 1, 1}
	data := []float64{4, 1, 3, 2, 9, 7}

	// k=2 largest, ascending across layers: group 0 -> (3, 4), group 1 -> (7, 9).
	out, err := Reduce(OpTopk, codes, data, 2, WithK(2))
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, 3.0, out[0])
	assert.Equal(t, 7.0, out[1])
	assert.Equal(t, 4.0, out[2])
	assert.Equal(t, 9.0, out[3])
}

func TestTopkSmallest(t *testing.T) {
	codes := []int{0, 0, 0, 0}
	data := []float64{4, 1, 3, 2}

	out, err := Reduce(OpTopk, codes, data, 1, WithK(-2))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out)
}

func TestTopkShortGroupGetsFill(t *testing.T) {
	codes := []int{0, 1, 1, 1}
	data := []float64{5, 1, 2, 3}

	out, err := Reduce(OpTopk, codes, data, 2, WithK(2), WithFill(-1))
	require.NoError(t, err)
	// Group 0 has one member: the lower layer is fill, the top layer holds it.
	assert.Equal(t, -1.0, out[0])
	assert.Equal(t, 2.0, out[1])
	assert.Equal(t, 5.0, out[2])
	assert.Equal(t, 3.0, out[3])
}

func TestTopkSkipsMissing(t *testing.T) {
	nan := math.NaN()
	codes := []int{0, 0, 0}
	data := []float64{nan, 8, 6}

	out, err := Reduce(OpTopk, codes, data, 1, WithK(2))
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 8}, out)
}

func TestSelectRanks(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(100)
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = rng.NormFloat64()
		}
		want := append([]float64(nil), vals...)
		sort.Float64s(want)

		nranks := 1 + rng.Intn(4)
		ranks := make([]int, 0, nranks)
		for i := 0; i < nranks; i++ {
			ranks = append(ranks, rng.Intn(n))
		}
		ranks = dedupRanks(ranks)

		selectRanks(vals, ranks)
		for _, rk := range ranks {
			assert.Equal(t, want[rk], vals[rk], "rank %d of %d", rk, n)
		}
	}
}
