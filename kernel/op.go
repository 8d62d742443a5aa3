package kernel

import "fmt"

// Op identifies a grouped reduction. The set is closed: callers select a
// variant once per reduction call and dispatch happens through a table, not
// by string lookup in the inner loop.
type Op uint8

const (
	OpSum Op = iota
	OpNanSum
	OpProd
	OpNanProd
	OpMin
	OpNanMin
	OpMax
	OpNanMax
	OpCount
	OpSumsq
	OpNanSumsq
	OpMean
	OpNanMean
	OpVar
	OpNanVar
	OpStd
	OpNanStd
	OpFirst
	OpNanFirst
	OpLast
	OpNanLast
	OpQuantile
	OpNanQuantile
	OpMedian
	OpNanMedian
	OpTopk
	OpFfill

	numOps // sentinel, keep last
)

var opNames = [numOps]string{
	"sum", "nansum", "prod", "nanprod", "min", "nanmin", "max", "nanmax",
	"count", "sumsq", "nansumsq", "mean", "nanmean", "var", "nanvar",
	"std", "nanstd", "first", "nanfirst", "last", "nanlast",
	"quantile", "nanquantile", "median", "nanmedian", "topk", "ffill",
}

func (op Op) String() string {
	if op >= numOps {
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
	return opNames[op]
}

// Valid reports whether op is a known reduction.
func (op Op) Valid() bool { return op < numOps }
