// Package chunkagg provides grouped reductions over chunked float64 arrays.
//
// Chunkagg computes per-group aggregates (sum, mean, var, quantiles, topk
// and friends) when the data axis is split into chunks that must be reduced
// independently and combined, the way out-of-core array engines schedule
// work. Groups are dense integer codes produced by the codes package.
//
// # Quick Start
//
//	enc, _ := codes.Factorize(keys)
//	res, _ := chunkagg.GroupReduce(ctx, kernel.OpSum, data, chunks, enc.Codes, enc.Index.Len())
//	for g, v := range res.Values {
//	    fmt.Println(enc.Index.Label(g), v)
//	}
//
// # Strategies
//
// Three strategies trade generality against data movement:
//
//	// MAP-REDUCE — the safe default for any label layout.
//	//    Every chunk is reduced over the full label space, partials are
//	//    tree-combined with per-op associative combines.
//	res, _ := chunkagg.GroupReduce(ctx, op, data, chunks, codes, size)
//
//	// BLOCKWISE — no cross-chunk combine at all.
//	//    Requires every group inside a single chunk; rechunk.ForBlockwise
//	//    produces such a layout for sorted labels.
//	res, _ := chunkagg.GroupReduce(ctx, op, data, chunks, codes, size,
//	    chunkagg.WithMethod(chunkagg.MethodBlockwise))
//
//	// COHORTS — the middle ground for approximately periodic labels.
//	//    Chunks are partitioned into label-closed cohorts and each cohort
//	//    runs its own small map-reduce.
//	res, _ := chunkagg.GroupReduce(ctx, op, data, chunks, codes, size,
//	    chunkagg.WithMethod(chunkagg.MethodCohorts))
//
// # Missing data
//
// NaN marks a missing value; every op has a NaN-skipping variant (OpNanSum,
// OpNanMean, ...) while the plain variant propagates NaN into the group
// result. A code of -1 marks an element with no group; such elements are
// dropped. Groups that end up with no usable data take the fill value
// (NaN unless WithFill says otherwise).
//
// # Layered results
//
// Quantile and topk return one output layer per q (resp. per rank):
// Result.Values is [layer][group] flattened, group g of layer l at
// Values[l*Size+g].
package chunkagg
