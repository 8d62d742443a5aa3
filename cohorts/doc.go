// Package cohorts analyzes which group labels occur in which chunks of a
// chunked array and partitions the chunks into cohorts: sets of chunks
// whose combined labels are self-contained, so each cohort can be reduced
// as an independent map-reduce subproblem.
//
// The label-chunk occupancy is held as one roaring bitmap per chunk. For
// multi-axis grouping the occupancy of a product chunk is the intersection
// of its per-axis projections, which may overestimate occupancy; downstream
// that only costs work, never correctness.
package cohorts
