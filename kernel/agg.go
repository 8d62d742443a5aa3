package kernel

import "math"

// CombineKind names the elementwise operator used to merge two partial
// result arrays of the same aggregation channel. All kinds are associative;
// first/last are order-dependent but safe under any adjacency-preserving
// combine tree.
type CombineKind uint8

const (
	CombineSum CombineKind = iota
	CombineProd
	CombineMin
	CombineMax
	CombineNanFirst
	CombineNanLast
)

// ChunkOp is one intermediate channel of a combinable aggregation: the
// kernel op run per chunk and the identity the channel's partials are
// initialized to for groups absent from a chunk.
type ChunkOp struct {
	Op   Op
	Fill float64
}

// Aggregation describes how a reduction decomposes into per-chunk kernel
// calls, associative combines, and a finalize step. Mean, for example, is
// carried as separate sum and count channels and divided only at the end,
// never by averaging partial means.
type Aggregation struct {
	Op         Op
	Combinable bool
	Chunk      []ChunkOp
	Combine    []CombineKind
	// Finalize folds the fully combined channels into the final per-group
	// array. fill is substituted for groups whose combined channels show
	// no usable data, matching what a single kernel call would return.
	// nil means the single channel is already final.
	Finalize func(channels [][]float64, ddof int, fill float64) []float64
}

// Lookup resolves op to its aggregation descriptor. Quantile, topk, median
// and ffill are not combinable: they need every member of a group in one
// block, which the orchestrator arranges by gathering.
func Lookup(op Op) (Aggregation, error) {
	if !op.Valid() {
		return Aggregation{}, ErrUnknownOp
	}
	switch op {
	case OpQuantile, OpNanQuantile, OpMedian, OpNanMedian, OpTopk, OpFfill:
		return Aggregation{Op: op, Combinable: false}, nil

	case OpSum, OpNanSum, OpCount, OpSumsq, OpNanSumsq:
		return Aggregation{
			Op: op, Combinable: true,
			Chunk:   []ChunkOp{{Op: op, Fill: 0}},
			Combine: []CombineKind{CombineSum},
		}, nil
	case OpProd, OpNanProd:
		return Aggregation{
			Op: op, Combinable: true,
			Chunk:   []ChunkOp{{Op: op, Fill: 1}},
			Combine: []CombineKind{CombineProd},
		}, nil

	case OpMin, OpNanMin:
		return extremumAgg(op, CombineMin, math.Inf(1)), nil
	case OpMax, OpNanMax:
		return extremumAgg(op, CombineMax, math.Inf(-1)), nil

	case OpFirst, OpNanFirst:
		return pickAgg(op, CombineNanFirst), nil
	case OpLast, OpNanLast:
		return pickAgg(op, CombineNanLast), nil

	case OpMean, OpNanMean:
		sum := OpSum
		if op == OpNanMean {
			sum = OpNanSum
		}
		return Aggregation{
			Op: op, Combinable: true,
			Chunk:   []ChunkOp{{Op: sum, Fill: 0}, {Op: OpCount, Fill: 0}},
			Combine: []CombineKind{CombineSum, CombineSum},
			Finalize: func(ch [][]float64, _ int, fill float64) []float64 {
				skipna := op == OpNanMean
				out := make([]float64, len(ch[0]))
				for i := range out {
					if skipna && ch[1][i] == 0 {
						out[i] = fill
						continue
					}
					out[i] = ch[0][i] / ch[1][i]
				}
				return out
			},
		}, nil

	case OpVar, OpNanVar, OpStd, OpNanStd:
		sum, sq := OpSum, OpSumsq
		if op == OpNanVar || op == OpNanStd {
			sum, sq = OpNanSum, OpNanSumsq
		}
		std := op == OpStd || op == OpNanStd
		return Aggregation{
			Op: op, Combinable: true,
			Chunk:   []ChunkOp{{Op: sum, Fill: 0}, {Op: sq, Fill: 0}, {Op: OpCount, Fill: 0}},
			Combine: []CombineKind{CombineSum, CombineSum, CombineSum},
			Finalize: func(ch [][]float64, ddof int, fill float64) []float64 {
				skipna := op == OpNanVar || op == OpNanStd
				out := make([]float64, len(ch[0]))
				for i := range out {
					cnt := ch[2][i]
					if skipna && cnt == 0 {
						out[i] = fill
						continue
					}
					den := cnt - float64(ddof)
					if cnt == 0 || den <= 0 {
						out[i] = math.NaN()
						continue
					}
					v := (ch[1][i] - ch[0][i]*ch[0][i]/cnt) / den
					if std {
						v = math.Sqrt(v)
					}
					out[i] = v
				}
				return out
			},
		}, nil
	default:
		return Aggregation{}, ErrUnknownOp
	}
}

// extremumAgg builds min/max descriptors. The infinite identity doubles as
// the "no data" sentinel: nan-variants map a surviving identity back to the
// fill value in finalize, so an all-missing group ends up exactly where a
// single kernel call would put it.
func extremumAgg(op Op, kind CombineKind, identity float64) Aggregation {
	nan := op == OpNanMin || op == OpNanMax
	return Aggregation{
		Op: op, Combinable: true,
		Chunk:   []ChunkOp{{Op: op, Fill: identity}},
		Combine: []CombineKind{kind},
		Finalize: func(ch [][]float64, _ int, fill float64) []float64 {
			out := make([]float64, len(ch[0]))
			copy(out, ch[0])
			if nan {
				for i, v := range out {
					if v == identity {
						out[i] = fill
					}
				}
			}
			return out
		},
	}
}

// pickAgg builds first/last descriptors. NaN is the per-chunk "no value"
// marker the nan-aware combines skip over; for the nan-variants a NaN that
// survives combining means an all-missing group and becomes the fill value.
func pickAgg(op Op, kind CombineKind) Aggregation {
	nan := op == OpNanFirst || op == OpNanLast
	return Aggregation{
		Op: op, Combinable: true,
		Chunk:   []ChunkOp{{Op: op, Fill: math.NaN()}},
		Combine: []CombineKind{kind},
		Finalize: func(ch [][]float64, _ int, fill float64) []float64 {
			out := make([]float64, len(ch[0]))
			copy(out, ch[0])
			if nan {
				for i, v := range out {
					if math.IsNaN(v) {
						out[i] = fill
					}
				}
			}
			return out
		},
	}
}

// CombineInto merges part into acc elementwise under kind. Both slices must
// have equal length; acc is the left operand so order-dependent kinds see
// partials in chunk order.
func CombineInto(kind CombineKind, acc, part []float64) {
	switch kind {
	case CombineSum:
		for i, v := range part {
			acc[i] += v
		}
	case CombineProd:
		for i, v := range part {
			acc[i] *= v
		}
	case CombineMin:
		for i, v := range part {
			acc[i] = math.Min(acc[i], v)
		}
	case CombineMax:
		for i, v := range part {
			acc[i] = math.Max(acc[i], v)
		}
	case CombineNanFirst:
		for i, v := range part {
			if math.IsNaN(acc[i]) {
				acc[i] = v
			}
		}
	case CombineNanLast:
		for i, v := range part {
			if !math.IsNaN(v) {
				acc[i] = v
			}
		}
	}
}
