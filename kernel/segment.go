package kernel

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// segFunc folds one non-empty run of values into a single result. ok=false
// means the run produced no usable value and the fill value applies.
type segFunc func(s []float64) (v float64, ok bool)

// segmentEvaluator resolves op to its run evaluator once per Reduce call.
func segmentEvaluator(op Op, o *options) (segFunc, error) {
	switch op {
	case OpSum:
		return func(s []float64) (float64, bool) { return floats.Sum(s), true }, nil
	case OpNanSum:
		return func(s []float64) (float64, bool) {
			sum, _ := nanSum(s)
			return sum, true
		}, nil
	case OpProd:
		return func(s []float64) (float64, bool) { return floats.Prod(s), true }, nil
	case OpNanProd:
		return func(s []float64) (float64, bool) { return nanProd(s), true }, nil
	case OpMin:
		return func(s []float64) (float64, bool) { return fold(s, math.Min), true }, nil
	case OpMax:
		return func(s []float64) (float64, bool) { return fold(s, math.Max), true }, nil
	case OpNanMin:
		return nanExtremum(math.Min), nil
	case OpNanMax:
		return nanExtremum(math.Max), nil
	case OpCount:
		return func(s []float64) (float64, bool) {
			_, cnt := nanSum(s)
			return float64(cnt), true
		}, nil
	case OpSumsq:
		return func(s []float64) (float64, bool) { return sumsq(s), true }, nil
	case OpNanSumsq:
		return func(s []float64) (float64, bool) { return nanSumsq(s), true }, nil
	case OpMean:
		return func(s []float64) (float64, bool) {
			sum := floats.Sum(s)
			_, cnt := nanSum(s)
			return sum / float64(cnt), true
		}, nil
	case OpNanMean:
		return func(s []float64) (float64, bool) {
			sum, cnt := nanSum(s)
			if cnt == 0 {
				return 0, false
			}
			return sum / float64(cnt), true
		}, nil
	case OpVar, OpStd:
		return moment(op == OpStd, false, o.ddof), nil
	case OpNanVar, OpNanStd:
		return moment(op == OpNanStd, true, o.ddof), nil
	case OpFirst:
		return func(s []float64) (float64, bool) { return s[0], true }, nil
	case OpLast:
		return func(s []float64) (float64, bool) { return s[len(s)-1], true }, nil
	case OpNanFirst:
		return func(s []float64) (float64, bool) {
			for _, v := range s {
				if !math.IsNaN(v) {
					return v, true
				}
			}
			return 0, false
		}, nil
	case OpNanLast:
		return func(s []float64) (float64, bool) {
			for i := len(s) - 1; i >= 0; i-- {
				if !math.IsNaN(s[i]) {
					return s[i], true
				}
			}
			return 0, false
		}, nil
	default:
		return nil, ErrUnknownOp
	}
}

func fold(s []float64, f func(a, b float64) float64) float64 {
	acc := s[0]
	for _, v := range s[1:] {
		acc = f(acc, v)
	}
	return acc
}

// nanExtremum reduces non-missing values with f; an all-missing run yields
// the fill value. The identity-substitution trick (plus/minus infinity)
// collapses into skipping, which sidesteps the "real result equals the
// sentinel" ambiguity entirely.
func nanExtremum(f func(a, b float64) float64) segFunc {
	return func(s []float64) (float64, bool) {
		var acc float64
		seen := false
		for _, v := range s {
			if math.IsNaN(v) {
				continue
			}
			if !seen {
				acc, seen = v, true
				continue
			}
			acc = f(acc, v)
		}
		return acc, seen
	}
}

func nanSum(s []float64) (sum float64, cnt int) {
	for _, v := range s {
		if !math.IsNaN(v) {
			sum += v
			cnt++
		}
	}
	return sum, cnt
}

func nanProd(s []float64) float64 {
	prod := 1.0
	for _, v := range s {
		if !math.IsNaN(v) {
			prod *= v
		}
	}
	return prod
}

func sumsq(s []float64) float64 {
	var sum float64
	for _, v := range s {
		sum += v * v
	}
	return sum
}

func nanSumsq(s []float64) float64 {
	var sum float64
	for _, v := range s {
		if !math.IsNaN(v) {
			sum += v * v
		}
	}
	return sum
}

// moment evaluates variance (or its square root) from the sum-of-squares
// form, counting only non-missing values. Plain variants let NaN propagate
// through the sums; ddof at or above the count yields NaN.
func moment(std, skipna bool, ddof int) segFunc {
	return func(s []float64) (float64, bool) {
		var sum, sq float64
		var cnt int
		if skipna {
			sum, cnt = nanSum(s)
			sq = nanSumsq(s)
			if cnt == 0 {
				return 0, false
			}
		} else {
			sum = floats.Sum(s)
			sq = sumsq(s)
			_, cnt = nanSum(s)
		}
		den := float64(cnt - ddof)
		if den <= 0 {
			return math.NaN(), true
		}
		v := (sq - sum*sum/float64(cnt)) / den
		if std {
			v = math.Sqrt(v)
		}
		return v, true
	}
}
