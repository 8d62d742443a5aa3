package chunkagg

import (
	"math"
	"runtime"

	"github.com/hupe1980/chunkagg/cohorts"
)

// Method selects the cross-chunk reduction strategy.
type Method uint8

const (
	// MethodMapReduce reduces every chunk independently over the full
	// label space and tree-combines the partial results. The safe default
	// for any label layout.
	MethodMapReduce Method = iota
	// MethodBlockwise reduces each chunk alone and concatenates, with no
	// cross-chunk combine. Requires every group to be contained in a
	// single chunk; see rechunk.ForBlockwise.
	MethodBlockwise
	// MethodCohorts partitions chunks into label-closed cohorts and runs
	// an independent map-reduce per cohort over only its chunks.
	MethodCohorts
)

func (m Method) String() string {
	switch m {
	case MethodMapReduce:
		return "map-reduce"
	case MethodBlockwise:
		return "blockwise"
	case MethodCohorts:
		return "cohorts"
	default:
		return "unknown"
	}
}

type options struct {
	method      Method
	fill        float64
	qs          []float64
	k           int
	kSet        bool
	ddof        int
	concurrency int
	tolerance   float64
	tolSet      bool
	logger      *Logger
	cache       *CohortCache
}

// Option configures a GroupReduce call.
type Option func(*options)

// WithMethod selects the reduction strategy. Default MethodMapReduce.
func WithMethod(m Method) Option {
	return func(o *options) { o.method = m }
}

// WithFill sets the output value for groups with no usable data. Defaults
// to NaN.
func WithFill(v float64) Option {
	return func(o *options) { o.fill = v }
}

// WithQuantiles sets the quantiles for kernel.OpQuantile and
// kernel.OpNanQuantile; the result carries one leading layer per q.
func WithQuantiles(qs ...float64) Option {
	return func(o *options) { o.qs = qs }
}

// WithK sets k for kernel.OpTopk.
func WithK(k int) Option {
	return func(o *options) { o.k = k; o.kSet = true }
}

// WithDDOF sets the delta degrees of freedom for variance and standard
// deviation.
func WithDDOF(ddof int) Option {
	return func(o *options) { o.ddof = ddof }
}

// WithConcurrency bounds the number of per-chunk kernel invocations in
// flight. Values below 1 mean GOMAXPROCS. The per-chunk tasks share no
// mutable state, so any bound is safe.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithMergeTolerance tunes cohort discovery; see cohorts.WithMergeTolerance.
func WithMergeTolerance(t float64) Option {
	return func(o *options) { o.tolerance = t; o.tolSet = true }
}

// WithLogger sets the structured logger. Default is the noop logger.
func WithLogger(l *Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCohortCache attaches an advisory cache for bitmask and cohort
// results, keyed by grouping and chunking identity. Sharing one cache
// across repeated reductions over the same layout skips rediscovery; a
// cleared or absent cache only costs recomputation, never correctness.
func WithCohortCache(c *CohortCache) Option {
	return func(o *options) { o.cache = c }
}

func newOptions(opts []Option) *options {
	o := &options{
		fill:        math.NaN(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.concurrency < 1 {
		o.concurrency = runtime.GOMAXPROCS(0)
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

func (o *options) findOptions() []cohorts.FindOption {
	if !o.tolSet {
		return nil
	}
	return []cohorts.FindOption{cohorts.WithMergeTolerance(o.tolerance)}
}
