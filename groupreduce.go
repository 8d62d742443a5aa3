package chunkagg

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/chunkagg/cohorts"
	"github.com/hupe1980/chunkagg/kernel"
)

// Result is the output of a grouped reduction. Values is laid out
// [layer][group]: one layer except for quantile (one per q) and topk (one
// per rank). Group g of layer l is Values[l*Size+g], ordered by group code,
// i.e. by the LabelIndex the codes were factorized against. For
// kernel.OpFfill the result is element-wise instead: Size is the input
// length and Values holds the filled data in input order.
type Result struct {
	Values []float64
	Layers int
	Size   int
}

// block is one chunk's slice of the inputs, with "no group" elements
// already dropped. Blocks are read-only once built: each kernel invocation
// owns only its own block and partial result, which is what makes the map
// stage embarrassingly parallel.
type block struct {
	codes []int
	data  []float64
}

// GroupReduce reduces data per group across a chunked axis. codes[i] is the
// dense group code of data[i] (-1 for no group), chunks the chunk lengths
// tiling the axis, size the number of groups.
//
// Partial results are combined with associative per-op combines; for
// floating point ops the combine tree's shape can perturb results by
// reassociation error, which is accepted nondeterminism.
func GroupReduce(ctx context.Context, op kernel.Op, data []float64, chunks []int, codes []int, size int, opts ...Option) (*Result, error) {
	o := newOptions(opts)
	log := o.logger.WithOp(op.String()).WithMethod(o.method.String())

	res, err := groupReduce(ctx, op, data, chunks, codes, size, o, log)
	log.LogReduce(ctx, len(chunks), size, err)
	return res, err
}

func groupReduce(ctx context.Context, op kernel.Op, data []float64, chunks []int, codes []int, size int, o *options, log *Logger) (*Result, error) {
	if !op.Valid() {
		return nil, kernel.ErrUnknownOp
	}
	if o.method > MethodCohorts {
		return nil, ErrInvalidMethod
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: group count %d must be positive", ErrUnsupportedConfig, size)
	}
	if len(data) != len(codes) {
		return nil, &kernel.ErrLengthMismatch{Codes: len(codes), Data: len(data), Rows: 1}
	}
	total := 0
	for _, c := range chunks {
		total += c
	}
	if total != len(codes) {
		return nil, &ErrChunkCoverage{Chunks: total, Elems: len(codes)}
	}
	hasMissing := false
	for _, c := range codes {
		if c >= size {
			return nil, &kernel.ErrCodeOutOfRange{Code: c, Size: size}
		}
		if c < 0 {
			hasMissing = true
		}
	}
	layers, err := layersFor(op, o)
	if err != nil {
		return nil, err
	}

	if op == kernel.OpFfill {
		if o.method != MethodBlockwise {
			return nil, fmt.Errorf("%w: ffill is order-sensitive and only supported with MethodBlockwise", ErrUnsupportedConfig)
		}
		if hasMissing {
			return nil, fmt.Errorf("%w: ffill does not support the missing-group sentinel", ErrUnsupportedConfig)
		}
		return ffillBlockwise(ctx, data, chunks, codes, size, o)
	}

	blks := buildBlocks(data, chunks, codes, hasMissing)

	var vals []float64
	switch o.method {
	case MethodMapReduce:
		vals, err = mapReduce(ctx, op, blks, size, layers, o)
	case MethodBlockwise:
		vals, err = blockwise(ctx, op, blks, chunks, codes, size, layers, o)
	case MethodCohorts:
		vals, err = cohortReduce(ctx, op, blks, chunks, codes, size, layers, o, log)
	}
	if err != nil {
		return nil, err
	}

	maskAbsentGroups(vals, codes, size, layers, o.fill)
	return &Result{Values: vals, Layers: layers, Size: size}, nil
}

// layersFor resolves the leading output dimension up front so every
// strategy can preallocate, and rejects missing q/k before any work runs.
func layersFor(op kernel.Op, o *options) (int, error) {
	switch op {
	case kernel.OpQuantile, kernel.OpNanQuantile:
		if len(o.qs) == 0 {
			return 0, kernel.ErrMissingParam
		}
		return len(o.qs), nil
	case kernel.OpTopk:
		if !o.kSet || o.k == 0 {
			return 0, kernel.ErrMissingParam
		}
		if o.k < 0 {
			return -o.k, nil
		}
		return o.k, nil
	default:
		return 1, nil
	}
}

// buildBlocks slices the inputs at chunk boundaries, dropping "no group"
// elements. When nothing is missing the blocks alias the input arrays.
func buildBlocks(data []float64, chunks []int, codes []int, hasMissing bool) []block {
	blks := make([]block, len(chunks))
	offset := 0
	for i, l := range chunks {
		bc := codes[offset : offset+l]
		bd := data[offset : offset+l]
		if hasMissing {
			fc := make([]int, 0, l)
			fd := make([]float64, 0, l)
			for j, c := range bc {
				if c >= 0 {
					fc = append(fc, c)
					fd = append(fd, bd[j])
				}
			}
			bc, bd = fc, fd
		}
		blks[i] = block{codes: bc, data: bd}
		offset += l
	}
	return blks
}

// mapReduce runs the map stage in parallel over blocks, then combines
// partials pairwise. The combine tree only ever merges adjacent partials,
// so order-dependent combines (first/last) see chunks in axis order.
// Non-combinable ops need whole groups in one place and fall back to
// gathering all blocks into a single kernel call.
func mapReduce(ctx context.Context, op kernel.Op, blks []block, size, layers int, o *options) ([]float64, error) {
	agg, err := kernel.Lookup(op)
	if err != nil {
		return nil, err
	}
	if !agg.Combinable {
		gc, gd := gather(blks)
		return kernel.Reduce(op, gc, gd, size, kernelOpts(o)...)
	}

	parts := make([][][]float64, len(blks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, b := range blks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			channels := make([][]float64, len(agg.Chunk))
			for ci, ch := range agg.Chunk {
				part, err := kernel.Reduce(ch.Op, b.codes, b.data, size,
					kernel.WithFill(ch.Fill), kernel.WithDDOF(o.ddof))
				if err != nil {
					return err
				}
				channels[ci] = part
			}
			parts[i] = channels
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for len(parts) > 1 {
		next := parts[:0]
		for i := 0; i < len(parts); i += 2 {
			if i+1 == len(parts) {
				next = append(next, parts[i])
				break
			}
			for ci := range parts[i] {
				kernel.CombineInto(agg.Combine[ci], parts[i][ci], parts[i+1][ci])
			}
			next = append(next, parts[i])
		}
		parts = next
	}
	if len(parts) == 0 {
		return filledSlice(layers*size, o.fill), nil
	}
	if agg.Finalize == nil {
		return parts[0][0], nil
	}
	return agg.Finalize(parts[0], o.ddof, o.fill), nil
}

// blockwise reduces every chunk independently and merges by scatter: valid
// only when no group straddles a chunk boundary, which is validated against
// the label-chunk bitmask (best effort, 1-D).
func blockwise(ctx context.Context, op kernel.Op, blks []block, chunks []int, codes []int, size, layers int, o *options) ([]float64, error) {
	bm, err := bitmask(codes, chunks, size, o)
	if err != nil {
		return nil, err
	}
	if bm.SpansChunks() {
		return nil, ErrGroupSpansChunks
	}

	parts := make([][]float64, len(blks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, b := range blks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			part, err := kernel.Reduce(op, b.codes, b.data, size, kernelOpts(o)...)
			if err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := filledSlice(layers*size, o.fill)
	for i, part := range parts {
		it := bm.Row(i).Iterator()
		for it.HasNext() {
			gcode := int(it.Next())
			for l := 0; l < layers; l++ {
				out[l*size+gcode] = part[l*size+gcode]
			}
		}
	}
	return out, nil
}

// cohortReduce discovers label-closed cohorts and runs one independent
// map-reduce per cohort over only its chunks, on a cohort-local code space.
// Cohorts are disjoint in both chunks and labels, so the per-cohort finals
// scatter into the global output without conflict.
func cohortReduce(ctx context.Context, op kernel.Op, blks []block, chunks []int, codes []int, size, layers int, o *options, log *Logger) ([]float64, error) {
	bm, err := bitmask(codes, chunks, size, o)
	if err != nil {
		return nil, err
	}
	cs, cached := partition(bm, codes, chunks, size, o)
	log.LogCohorts(ctx, len(chunks), len(cs), cached)

	out := filledSlice(layers*size, o.fill)
	remap := make([]int, size)
	for _, cohort := range cs {
		labels := cohort.Labels.ToArray() // ascending
		if len(labels) == 0 {
			continue
		}
		for i := range remap {
			remap[i] = -1
		}
		for li, g := range labels {
			remap[g] = li
		}

		cblks := make([]block, len(cohort.Chunks))
		for i, chunk := range cohort.Chunks {
			b := blks[chunk]
			local := make([]int, len(b.codes))
			for j, c := range b.codes {
				local[j] = remap[c]
			}
			cblks[i] = block{codes: local, data: b.data}
		}

		vals, err := mapReduce(ctx, op, cblks, len(labels), layers, o)
		if err != nil {
			return nil, err
		}
		for l := 0; l < layers; l++ {
			for li, g := range labels {
				out[l*size+int(g)] = vals[l*len(labels)+li]
			}
		}
	}
	return out, nil
}

// ffillBlockwise forward-fills each chunk independently. Element order is
// preserved, so the output concatenates in chunk order.
func ffillBlockwise(ctx context.Context, data []float64, chunks []int, codes []int, size int, o *options) (*Result, error) {
	bm, err := bitmask(codes, chunks, size, o)
	if err != nil {
		return nil, err
	}
	if bm.SpansChunks() {
		return nil, ErrGroupSpansChunks
	}

	out := make([]float64, len(data))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	offset := 0
	for _, l := range chunks {
		lo, hi := offset, offset+l
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			part, err := kernel.Reduce(kernel.OpFfill, codes[lo:hi], data[lo:hi], size)
			if err != nil {
				return err
			}
			copy(out[lo:hi], part)
			return nil
		})
		offset += l
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Result{Values: out, Layers: 1, Size: len(data)}, nil
}

func bitmask(codes []int, chunks []int, size int, o *options) (*cohorts.Bitmask, error) {
	if o.cache == nil {
		return cohorts.Build(codes, chunks, size)
	}
	key := layoutFingerprint(codes, chunks, size)
	if bm, ok := o.cache.bitmask(key); ok {
		return bm, nil
	}
	bm, err := cohorts.Build(codes, chunks, size)
	if err != nil {
		return nil, err
	}
	o.cache.putBitmask(key, bm)
	return bm, nil
}

func partition(bm *cohorts.Bitmask, codes []int, chunks []int, size int, o *options) ([]cohorts.Cohort, bool) {
	if o.cache == nil {
		return cohorts.Find(bm, o.findOptions()...), false
	}
	bits, set := toleranceKey(o)
	key := cohortKey{layout: layoutFingerprint(codes, chunks, size), tolerance: bits, tolSet: set}
	if cs, ok := o.cache.partition(key); ok {
		return cs, true
	}
	cs := cohorts.Find(bm, o.findOptions()...)
	o.cache.putPartition(key, cs)
	return cs, false
}

// maskAbsentGroups forces groups with no elements at all to the fill value.
// Combinable chunk stages use per-channel identities (0 for sum, infinities
// for extrema) that would otherwise leak through finalize.
func maskAbsentGroups(vals []float64, codes []int, size, layers int, fill float64) {
	counts := make([]int, size)
	for _, c := range codes {
		if c >= 0 {
			counts[c]++
		}
	}
	for g, n := range counts {
		if n != 0 {
			continue
		}
		for l := 0; l < layers; l++ {
			vals[l*size+g] = fill
		}
	}
}

func gather(blks []block) ([]int, []float64) {
	n := 0
	for _, b := range blks {
		n += len(b.codes)
	}
	gc := make([]int, 0, n)
	gd := make([]float64, 0, n)
	for _, b := range blks {
		gc = append(gc, b.codes...)
		gd = append(gd, b.data...)
	}
	return gc, gd
}

func kernelOpts(o *options) []kernel.Option {
	opts := []kernel.Option{kernel.WithFill(o.fill), kernel.WithDDOF(o.ddof)}
	if len(o.qs) > 0 {
		opts = append(opts, kernel.WithQuantiles(o.qs...))
	}
	if o.kSet {
		opts = append(opts, kernel.WithK(o.k))
	}
	return opts
}

func filledSlice(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
