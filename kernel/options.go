package kernel

import "math"

type options struct {
	fill    float64
	qs      []float64
	k       int
	kSet    bool
	ddof    int
	scatter bool // force the scatter path even when the fast path applies
}

// Option configures a single Reduce call.
type Option func(*options)

// WithFill sets the output value for groups with no usable data. Defaults
// to NaN.
func WithFill(v float64) Option {
	return func(o *options) { o.fill = v }
}

// WithQuantiles sets the quantiles for OpQuantile/OpNanQuantile. The output
// carries one leading layer per q, in the given order.
func WithQuantiles(qs ...float64) Option {
	return func(o *options) { o.qs = qs }
}

// WithK sets k for OpTopk. k>0 selects the k largest values per group
// (ascending across layers), k<0 the |k| smallest.
func WithK(k int) Option {
	return func(o *options) { o.k = k; o.kSet = true }
}

// WithDDOF sets the delta degrees of freedom for variance and standard
// deviation. Defaults to 0.
func WithDDOF(ddof int) Option {
	return func(o *options) { o.ddof = ddof }
}

// withScatterPath forces the fill-and-scatter output path. Used by tests to
// cross-check the dense fast path; both paths must agree exactly.
func withScatterPath() Option {
	return func(o *options) { o.scatter = true }
}

func newOptions(opts []Option) *options {
	o := &options{fill: math.NaN()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
