// Package rechunk rewrites chunk boundaries so that group labels align
// with chunks, trading one rechunking pass for cheaper or entirely absent
// cross-chunk combines later.
package rechunk

import (
	"errors"
	"fmt"
)

var (
	// ErrNotMonotonic is returned by ForBlockwise when labels are not
	// non-decreasing. Blockwise alignment only makes sense for sequential
	// groups, e.g. resampling output.
	ErrNotMonotonic = errors.New("blockwise rechunking requires non-decreasing labels")
	// ErrBadChunksize is returned by ForCohorts for a chunksize < 1.
	ErrBadChunksize = errors.New("chunksize must be positive")
)

// ErrCoverageMismatch indicates chunk lengths that do not tile the label
// array.
type ErrCoverageMismatch struct {
	Chunks int
	Labels int
}

func (e *ErrCoverageMismatch) Error() string {
	return fmt.Sprintf("chunk lengths sum to %d, label array has %d elements", e.Chunks, e.Labels)
}

// ForBlockwise snaps chunk boundaries to every position where the label
// changes, so each resulting chunk holds whole groups only and a blockwise
// reduction needs no cross-chunk combine. An already-aligned chunking comes
// back unchanged (idempotence). The current chunking is only validated for
// coverage; its interior boundaries either coincide with a label change and
// survive, or cut through a group and must move.
func ForBlockwise(chunks []int, labels []int) ([]int, error) {
	total := 0
	for _, c := range chunks {
		total += c
	}
	if total != len(labels) {
		return nil, &ErrCoverageMismatch{Chunks: total, Labels: len(labels)}
	}
	for i := 1; i < len(labels); i++ {
		if labels[i] < labels[i-1] {
			return nil, ErrNotMonotonic
		}
	}
	if len(labels) == 0 {
		return append([]int(nil), chunks...), nil
	}

	var out []int
	start := 0
	for i := 1; i < len(labels); i++ {
		if labels[i] != labels[i-1] {
			out = append(out, i-start)
			start = i
		}
	}
	return append(out, len(labels)-start), nil
}

// ForCohorts computes a chunking aligned with a repeating label pattern.
// A new chunk starts at every occurrence of a label in forceNewChunkAt.
// Otherwise a chunk closes once it reaches chunksize, unless a forced
// label is due within chunksize/2 elements, in which case the chunk runs
// on to that label so chunks do not end up barely over or under the
// nominal size. With ignoreOldChunks=false, boundaries of the current
// chunking that fall on a valid split point are kept, minimizing churn.
func ForCohorts(chunks []int, labels []int, forceNewChunkAt map[int]bool, chunksize int, ignoreOldChunks bool) ([]int, error) {
	if chunksize < 1 {
		return nil, ErrBadChunksize
	}
	total := 0
	for _, c := range chunks {
		total += c
	}
	if total != len(labels) {
		return nil, &ErrCoverageMismatch{Chunks: total, Labels: len(labels)}
	}
	n := len(labels)
	if n == 0 {
		return nil, nil
	}

	oldBoundary := make(map[int]bool, len(chunks))
	if !ignoreOldChunks {
		pos := 0
		for _, c := range chunks[:len(chunks)-1] {
			pos += c
			oldBoundary[pos] = true
		}
	}

	forcedAt := func(i int) bool {
		return i < n && forceNewChunkAt[labels[i]] && (i == 0 || labels[i] != labels[i-1])
	}
	// forcedWithin reports whether a forced label starts in (i, i+d].
	forcedWithin := func(i, d int) bool {
		for j := i + 1; j <= i+d && j < n; j++ {
			if forcedAt(j) {
				return true
			}
		}
		return false
	}

	var out []int
	start := 0
	for i := 1; i < n; i++ {
		split := false
		switch {
		case forcedAt(i):
			split = true
		case oldBoundary[i] && i-start >= chunksize/2 && !forcedWithin(i, chunksize/2):
			// Keep a pre-existing boundary when it lands at a reasonable
			// size and no forced label makes it redundant.
			split = true
		case i-start >= chunksize && !forcedWithin(i, chunksize/2):
			split = true
		}
		if split {
			out = append(out, i-start)
			start = i
		}
	}
	out = append(out, n-start)
	return out, nil
}
