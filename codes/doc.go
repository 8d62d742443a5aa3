// Package codes maps arbitrary group keys to dense integer group codes.
//
// Every reduction in chunkagg is driven by an integer code array: element i
// of the input belongs to group Codes[i], where codes are dense in [0, size)
// and -1 marks elements that belong to no group. Factorize builds that code
// array together with a LabelIndex that remembers which label each code
// stands for and fixes the order of the output axis.
//
// Keys can be integers, floats, strings, bin intervals, or tuples of these
// (multi-array grouping via FactorizeMulti). Float NaN keys are treated as
// missing.
package codes
