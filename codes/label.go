package codes

import (
	"fmt"
	"math"
	"strconv"
)

// Kind discriminates the value held by a Label.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindInterval
)

// Label is a single group key. It is a small comparable value type so it can
// be used directly as a map key.
type Label struct {
	kind Kind
	i    int64
	f    float64
	lo   float64 // interval bounds
	s    string
}

// Int returns an integer label.
func Int(v int64) Label { return Label{kind: KindInt, i: v} }

// Float returns a float label. NaN is the missing label.
func Float(v float64) Label { return Label{kind: KindFloat, f: v} }

// String returns a string label. The empty string is a valid label.
func String(s string) Label { return Label{kind: KindString, s: s} }

// Interval returns a half-open bin label (lo, hi] (or [lo, hi) when the
// factorization used right=false). Bounds are carried for display and
// ordering; membership is decided by FactorizeBins.
func Interval(lo, hi float64) Label { return Label{kind: KindInterval, lo: lo, f: hi} }

// Kind returns the label's kind.
func (l Label) Kind() Kind { return l.kind }

// IsMissing reports whether the label denotes "no group" (a NaN float key).
func (l Label) IsMissing() bool {
	return l.kind == KindFloat && math.IsNaN(l.f)
}

// Less orders labels of the same kind: numeric order for ints, floats and
// intervals (by lower bound), lexicographic for strings. Mixed kinds order
// by kind, which only matters for deterministic output, not semantics.
func (l Label) Less(other Label) bool {
	if l.kind != other.kind {
		return l.kind < other.kind
	}
	switch l.kind {
	case KindInt:
		return l.i < other.i
	case KindFloat:
		return l.f < other.f
	case KindInterval:
		if l.lo != other.lo {
			return l.lo < other.lo
		}
		return l.f < other.f
	default:
		return l.s < other.s
	}
}

func (l Label) String() string {
	switch l.kind {
	case KindInt:
		return strconv.FormatInt(l.i, 10)
	case KindFloat:
		return strconv.FormatFloat(l.f, 'g', -1, 64)
	case KindInterval:
		return fmt.Sprintf("(%g, %g]", l.lo, l.f)
	default:
		return l.s
	}
}

// Int64 returns the integer value of an int label.
func (l Label) Int64() int64 { return l.i }

// Float64 returns the float value of a float label, or the upper bound of an
// interval label.
func (l Label) Float64() float64 { return l.f }
