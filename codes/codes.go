package codes

import (
	"errors"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Missing is the sentinel code for elements that belong to no group.
const Missing = -1

var (
	// ErrEmptyKeys is returned when Factorize is called with no keys.
	ErrEmptyKeys = errors.New("no keys to factorize")
	// ErrNoAxes is returned when FactorizeMulti is called with no arrays.
	ErrNoAxes = errors.New("no grouping arrays")
	// ErrAxisLengthMismatch is returned when multi-array grouping inputs
	// differ in length.
	ErrAxisLengthMismatch = errors.New("grouping arrays differ in length")
)

// LabelIndex is the ordered set of distinct group labels for one reduction.
// Position in the index is the group code; the index therefore fixes the
// order of the output axis. Immutable once built.
type LabelIndex struct {
	m      *orderedmap.OrderedMap[Label, int]
	labels []Label
}

func newLabelIndex() *LabelIndex {
	return &LabelIndex{m: orderedmap.New[Label, int]()}
}

// add interns label and returns its code.
func (ix *LabelIndex) add(label Label) int {
	if code, ok := ix.m.Get(label); ok {
		return code
	}
	code := len(ix.labels)
	ix.m.Set(label, code)
	ix.labels = append(ix.labels, label)
	return code
}

// Len returns the number of distinct labels.
func (ix *LabelIndex) Len() int { return len(ix.labels) }

// Code returns the dense code for label, if present.
func (ix *LabelIndex) Code(label Label) (int, bool) {
	code, ok := ix.m.Get(label)
	return code, ok
}

// Label returns the label at code. Panics if code is out of range, matching
// slice indexing semantics.
func (ix *LabelIndex) Label(code int) Label { return ix.labels[code] }

// Labels returns the labels in code order. The returned slice is shared;
// callers must not modify it.
func (ix *LabelIndex) Labels() []Label { return ix.labels }

// Encoding is the result of factorizing group keys: a dense code per input
// element plus the label index naming each code.
type Encoding struct {
	Codes []int
	Index *LabelIndex
}

type factorizeOptions struct {
	expected []Label
	sorted   bool
}

// FactorizeOption configures Factorize.
type FactorizeOption func(*factorizeOptions)

// WithExpected fixes the label index to exactly the given labels, in the
// given order. Keys outside the expected set are coded as Missing.
func WithExpected(labels []Label) FactorizeOption {
	return func(o *factorizeOptions) { o.expected = labels }
}

// WithSorted sorts the label index (numeric or lexicographic order) instead
// of keeping first-appearance order. Ignored when WithExpected is set.
func WithSorted() FactorizeOption {
	return func(o *factorizeOptions) { o.sorted = true }
}

// Factorize maps keys to dense group codes. Missing keys (NaN floats) code
// as Missing and never enter the label index.
func Factorize(keys []Label, opts ...FactorizeOption) (*Encoding, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyKeys
	}
	var o factorizeOptions
	for _, opt := range opts {
		opt(&o)
	}

	ix := newLabelIndex()
	if o.expected != nil {
		for _, label := range o.expected {
			ix.add(label)
		}
	}

	out := make([]int, len(keys))
	for i, key := range keys {
		if key.IsMissing() {
			out[i] = Missing
			continue
		}
		if o.expected != nil {
			code, ok := ix.Code(key)
			if !ok {
				code = Missing
			}
			out[i] = code
			continue
		}
		out[i] = ix.add(key)
	}

	enc := &Encoding{Codes: out, Index: ix}
	if o.sorted && o.expected == nil {
		enc.sortIndex()
	}
	return enc, nil
}

// sortIndex reorders the label index into label order and remaps codes.
func (e *Encoding) sortIndex() {
	old := e.Index.labels
	order := make([]int, len(old))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return old[order[a]].Less(old[order[b]])
	})

	ix := newLabelIndex()
	remap := make([]int, len(old))
	for _, oldCode := range order {
		remap[oldCode] = ix.add(old[oldCode])
	}
	for i, c := range e.Codes {
		if c != Missing {
			e.Codes[i] = remap[c]
		}
	}
	e.Index = ix
}

// FactorizeMulti factorizes several aligned grouping arrays into one
// composite code space: the composite code is the row-major index into the
// cross product of the per-array label indexes. An element missing on any
// axis is Missing in the composite. The per-array indexes are returned so
// callers can map a composite code back to its tuple of labels.
func FactorizeMulti(axes ...[]Label) (*Encoding, []*LabelIndex, error) {
	if len(axes) == 0 {
		return nil, nil, ErrNoAxes
	}
	n := len(axes[0])
	for _, axis := range axes[1:] {
		if len(axis) != n {
			return nil, nil, ErrAxisLengthMismatch
		}
	}

	encs := make([]*Encoding, len(axes))
	for i, axis := range axes {
		enc, err := Factorize(axis)
		if err != nil {
			return nil, nil, err
		}
		encs[i] = enc
	}

	sizes := make([]int, len(encs))
	indexes := make([]*LabelIndex, len(encs))
	for i, enc := range encs {
		sizes[i] = enc.Index.Len()
		indexes[i] = enc.Index
	}

	out := make([]int, n)
	for i := 0; i < n; i++ {
		code := 0
		for a, enc := range encs {
			c := enc.Codes[i]
			if c == Missing {
				code = Missing
				break
			}
			code = code*sizes[a] + c
		}
		out[i] = code
	}

	// Composite labels are materialized lazily by callers via the per-axis
	// indexes; the composite index itself just names the tuple positions.
	ix := newLabelIndex()
	total := 1
	for _, s := range sizes {
		total *= s
	}
	for c := 0; c < total; c++ {
		ix.add(tupleLabel(c, sizes, indexes))
	}

	return &Encoding{Codes: out, Index: ix}, indexes, nil
}

// tupleLabel renders the composite code c as a "(a, b, ...)" string label.
func tupleLabel(c int, sizes []int, indexes []*LabelIndex) Label {
	parts := make([]string, len(sizes))
	for a := len(sizes) - 1; a >= 0; a-- {
		parts[a] = indexes[a].Label(c % sizes[a]).String()
		c /= sizes[a]
	}
	s := "("
	for i, p := range parts {
		if i > 0 {
			s += ", "
		}
		s += p
	}
	return String(s + ")")
}
