package chunkagg

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkagg/kernel"
)

// randLayout returns codes, data and chunk lengths with every group in
// [0, size) present at least once.
func randLayout(rng *rand.Rand, n, size, chunks int) ([]int, []float64, []int) {
	codes := make([]int, n)
	data := make([]float64, n)
	for i := range codes {
		if i < size {
			codes[i] = i
		} else {
			codes[i] = rng.Intn(size)
		}
		data[i] = rng.NormFloat64() * 10
	}
	rng.Shuffle(n, func(i, j int) {
		codes[i], codes[j] = codes[j], codes[i]
		data[i], data[j] = data[j], data[i]
	})
	lens := make([]int, chunks)
	for i := range lens {
		lens[i] = n / chunks
	}
	lens[chunks-1] += n % chunks
	return codes, data, lens
}

func TestGroupReduceSum(t *testing.T) {
	ctx := context.Background()

	res, err := GroupReduce(ctx, kernel.OpSum,
		[]float64{1, 1, 1, 1, 1, 1},
		[]int{3, 3},
		[]int{0, 1, 2, 0, 1, 2},
		3,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Layers)
	assert.Equal(t, 3, res.Size)
	assert.Equal(t, []float64{2, 2, 2}, res.Values)
}

func TestGroupReduceCount(t *testing.T) {
	ctx := context.Background()

	res, err := GroupReduce(ctx, kernel.OpCount,
		[]float64{9, 9, 9, 9, 9, 9, 9, 9, 9},
		[]int{3, 3, 3},
		[]int{1, 2, 3, 1, 2, 3, 0, 0, 0},
		4,
	)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2, 2, 2}, res.Values)
}

func TestGroupReduceMatchesSingleBlock(t *testing.T) {
	ops := []kernel.Op{
		kernel.OpSum, kernel.OpNanSum,
		kernel.OpMin, kernel.OpMax, kernel.OpNanMax,
		kernel.OpCount, kernel.OpMean, kernel.OpNanMean,
	}
	rng := rand.New(rand.NewSource(7))
	codes, data, chunks := randLayout(rng, 500, 17, 7)
	for i := 5; i < len(data); i += 13 {
		data[i] = math.NaN()
	}

	ctx := context.Background()
	for _, op := range ops {
		t.Run(op.String(), func(t *testing.T) {
			want, err := kernel.Reduce(op, codes, data, 17)
			require.NoError(t, err)

			res, err := GroupReduce(ctx, op, data, chunks, codes, 17)
			require.NoError(t, err)
			require.Len(t, res.Values, len(want))
			for g := range want {
				if math.IsNaN(want[g]) {
					assert.True(t, math.IsNaN(res.Values[g]), "group %d", g)
					continue
				}
				assert.InDelta(t, want[g], res.Values[g], 1e-9, "group %d", g)
			}
		})
	}
}

func TestGroupReduceVarianceAcrossChunks(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	codes, data, chunks := randLayout(rng, 400, 9, 5)

	ctx := context.Background()
	for _, ddof := range []int{0, 1} {
		want, err := kernel.Reduce(kernel.OpVar, codes, data, 9, kernel.WithDDOF(ddof))
		require.NoError(t, err)

		res, err := GroupReduce(ctx, kernel.OpVar, data, chunks, codes, 9, WithDDOF(ddof))
		require.NoError(t, err)
		for g := range want {
			assert.InDelta(t, want[g], res.Values[g], 1e-6, "ddof %d group %d", ddof, g)
		}
	}
}

func TestGroupReduceFirstLastAcrossChunks(t *testing.T) {
	// First/last are order-dependent: the combine tree must see chunks in
	// axis order.
	rng := rand.New(rand.NewSource(13))
	codes, data, chunks := randLayout(rng, 300, 11, 6)

	ctx := context.Background()
	for _, op := range []kernel.Op{kernel.OpFirst, kernel.OpLast} {
		want, err := kernel.Reduce(op, codes, data, 11)
		require.NoError(t, err)

		res, err := GroupReduce(ctx, op, data, chunks, codes, 11)
		require.NoError(t, err)
		assert.Equal(t, want, res.Values, op.String())
	}
}

func TestGroupReduceMethodsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	codes, data, chunks := randLayout(rng, 600, 13, 8)
	ctx := context.Background()

	for _, op := range []kernel.Op{kernel.OpSum, kernel.OpNanMean, kernel.OpMax, kernel.OpCount} {
		base, err := GroupReduce(ctx, op, data, chunks, codes, 13)
		require.NoError(t, err)

		res, err := GroupReduce(ctx, op, data, chunks, codes, 13,
			WithMethod(MethodCohorts))
		require.NoError(t, err)
		for g := range base.Values {
			assert.InDelta(t, base.Values[g], res.Values[g], 1e-9, "%s group %d", op, g)
		}
	}
}

func TestGroupReduceBlockwiseSortedLayout(t *testing.T) {
	// Every group inside one chunk: [0 0 0 | 1 1 1 | 2 2].
	codes := []int{0, 0, 0, 1, 1, 1, 2, 2}
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	chunks := []int{3, 3, 2}
	ctx := context.Background()

	want, err := kernel.Reduce(kernel.OpSum, codes, data, 3)
	require.NoError(t, err)

	res, err := GroupReduce(ctx, kernel.OpSum, data, chunks, codes, 3,
		WithMethod(MethodBlockwise))
	require.NoError(t, err)
	assert.Equal(t, want, res.Values)
}

func TestGroupReduceBlockwiseStraddle(t *testing.T) {
	// Group 1 lives in both chunks.
	codes := []int{0, 0, 1, 1, 2, 2}
	data := []float64{1, 1, 1, 1, 1, 1}
	ctx := context.Background()

	_, err := GroupReduce(ctx, kernel.OpSum, data, []int{3, 3}, codes, 3,
		WithMethod(MethodBlockwise))
	assert.ErrorIs(t, err, ErrGroupSpansChunks)
}

func TestGroupReduceQuantileLayers(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	codes, data, chunks := randLayout(rng, 400, 7, 5)
	ctx := context.Background()

	qs := []float64{0.25, 0.5, 0.75}
	want, err := kernel.Reduce(kernel.OpQuantile, codes, data, 7, kernel.WithQuantiles(qs...))
	require.NoError(t, err)

	for _, method := range []Method{MethodMapReduce, MethodCohorts} {
		res, err := GroupReduce(ctx, kernel.OpQuantile, data, chunks, codes, 7,
			WithMethod(method), WithQuantiles(qs...))
		require.NoError(t, err, method.String())
		assert.Equal(t, 3, res.Layers)
		for i := range want {
			assert.InDelta(t, want[i], res.Values[i], 1e-9, "%s index %d", method, i)
		}
	}
}

func TestGroupReduceTopkLayers(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	codes, data, chunks := randLayout(rng, 300, 5, 4)
	ctx := context.Background()

	want, err := kernel.Reduce(kernel.OpTopk, codes, data, 5, kernel.WithK(3))
	require.NoError(t, err)

	res, err := GroupReduce(ctx, kernel.OpTopk, data, chunks, codes, 5, WithK(3))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Layers)
	require.Len(t, res.Values, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(res.Values[i]), "index %d", i)
			continue
		}
		assert.Equal(t, want[i], res.Values[i], "index %d", i)
	}
}

func TestGroupReduceFfillBlockwise(t *testing.T) {
	nan := math.NaN()
	codes := []int{0, 0, 0, 0, 1, 1, 1, 1}
	data := []float64{1, nan, nan, 4, nan, 6, nan, 8}
	chunks := []int{4, 4}
	ctx := context.Background()

	res, err := GroupReduce(ctx, kernel.OpFfill, data, chunks, codes, 2,
		WithMethod(MethodBlockwise))
	require.NoError(t, err)
	assert.Equal(t, 8, res.Size)
	assert.Equal(t, []float64{1, 1, 1, 4}, res.Values[:4])
	assert.True(t, math.IsNaN(res.Values[4]))
	assert.Equal(t, []float64{6, 6, 8}, res.Values[5:])
}

func TestGroupReduceFfillRequiresBlockwise(t *testing.T) {
	ctx := context.Background()
	_, err := GroupReduce(ctx, kernel.OpFfill,
		[]float64{1, 2}, []int{2}, []int{0, 0}, 1)
	assert.ErrorIs(t, err, ErrUnsupportedConfig)
}

func TestGroupReduceMissingCodes(t *testing.T) {
	// -1 elements are dropped; group 2 has no elements at all.
	codes := []int{0, -1, 1, -1, 0}
	data := []float64{1, 100, 3, 100, 5}
	ctx := context.Background()

	for _, method := range []Method{MethodMapReduce, MethodBlockwise, MethodCohorts} {
		res, err := GroupReduce(ctx, kernel.OpSum, data, []int{5}, codes, 3,
			WithMethod(method), WithFill(-1))
		require.NoError(t, err, method.String())
		assert.Equal(t, []float64{6, 3, -1}, res.Values, method.String())
	}
}

func TestGroupReduceAllMissingGroupTakesFill(t *testing.T) {
	// Group 0 is present but entirely NaN and split across chunks. Every
	// strategy must land it on the fill value, exactly like a single
	// kernel call with the same fill.
	nan := math.NaN()
	data := []float64{nan, nan, 3}
	codes := []int{0, 0, 1}
	chunks := []int{2, 1}
	ctx := context.Background()

	cases := []struct {
		op   kernel.Op
		fill float64
	}{
		{kernel.OpNanMin, -1},
		{kernel.OpNanMax, -1},
		{kernel.OpNanMean, -7},
		{kernel.OpNanVar, -7},
		{kernel.OpNanStd, -7},
		{kernel.OpNanFirst, -1},
		{kernel.OpNanLast, -1},
	}
	for _, tc := range cases {
		want, err := kernel.Reduce(tc.op, codes, data, 2, kernel.WithFill(tc.fill))
		require.NoError(t, err)
		require.Equal(t, tc.fill, want[0], "op %s", tc.op)

		for _, method := range []Method{MethodMapReduce, MethodBlockwise, MethodCohorts} {
			res, err := GroupReduce(ctx, tc.op, data, chunks, codes, 2,
				WithMethod(method), WithFill(tc.fill))
			require.NoError(t, err, "%s %s", tc.op, method)
			assert.Equal(t, tc.fill, res.Values[0], "%s %s group 0", tc.op, method)
			assert.InDelta(t, want[1], res.Values[1], 1e-12, "%s %s group 1", tc.op, method)
		}
	}
}

func TestGroupReduceValidation(t *testing.T) {
	ctx := context.Background()
	data := []float64{1, 2, 3}
	codes := []int{0, 1, 0}

	t.Run("chunk coverage", func(t *testing.T) {
		_, err := GroupReduce(ctx, kernel.OpSum, data, []int{2}, codes, 2)
		var cov *ErrChunkCoverage
		require.ErrorAs(t, err, &cov)
		assert.Equal(t, 2, cov.Chunks)
		assert.Equal(t, 3, cov.Elems)
	})

	t.Run("code out of range", func(t *testing.T) {
		_, err := GroupReduce(ctx, kernel.OpSum, data, []int{3}, []int{0, 5, 0}, 2)
		var oor *kernel.ErrCodeOutOfRange
		assert.ErrorAs(t, err, &oor)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := GroupReduce(ctx, kernel.OpSum, data[:2], []int{3}, codes, 2)
		var lm *kernel.ErrLengthMismatch
		assert.ErrorAs(t, err, &lm)
	})

	t.Run("invalid method", func(t *testing.T) {
		_, err := GroupReduce(ctx, kernel.OpSum, data, []int{3}, codes, 2,
			WithMethod(Method(99)))
		assert.ErrorIs(t, err, ErrInvalidMethod)
	})

	t.Run("non-positive size", func(t *testing.T) {
		_, err := GroupReduce(ctx, kernel.OpSum, nil, nil, nil, 0)
		assert.ErrorIs(t, err, ErrUnsupportedConfig)
	})

	t.Run("quantile without qs", func(t *testing.T) {
		_, err := GroupReduce(ctx, kernel.OpQuantile, data, []int{3}, codes, 2)
		assert.ErrorIs(t, err, kernel.ErrMissingParam)
	})

	t.Run("topk without k", func(t *testing.T) {
		_, err := GroupReduce(ctx, kernel.OpTopk, data, []int{3}, codes, 2)
		assert.ErrorIs(t, err, kernel.ErrMissingParam)
	})
}

func TestGroupReduceCanceledContext(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	codes, data, chunks := randLayout(rng, 200, 5, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GroupReduce(ctx, kernel.OpSum, data, chunks, codes, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGroupReduceConcurrencyBound(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	codes, data, chunks := randLayout(rng, 500, 9, 10)
	ctx := context.Background()

	base, err := GroupReduce(ctx, kernel.OpSum, data, chunks, codes, 9)
	require.NoError(t, err)

	res, err := GroupReduce(ctx, kernel.OpSum, data, chunks, codes, 9,
		WithConcurrency(1))
	require.NoError(t, err)
	assert.Equal(t, base.Values, res.Values)
}
