// Package kernel computes named grouped reductions over a single in-memory
// block using a sort/reduceat strategy.
//
// The kernel has no notion of chunking: it takes one data block, the dense
// group code of every element along the last axis, and the total number of
// groups, and returns one value per group. Inputs that are not already
// sorted by group code are stably sorted once; every group then occupies a
// contiguous run and each reduction is a segmented fold over run boundaries
// instead of a scatter-add.
//
// Missing data is float64 NaN. Plain ops propagate NaN the way naive
// arithmetic would; Nan-prefixed ops skip missing values and yield the fill
// value when a group is entirely missing.
package kernel
