package chunkagg

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedConfig marks a configuration rejected before any
	// computation starts, as opposed to a programming-contract violation
	// surfaced by the kernel.
	ErrUnsupportedConfig = errors.New("unsupported configuration")

	// ErrGroupSpansChunks is returned by the blockwise method when a group
	// straddles a chunk boundary: reducing it blockwise would silently
	// split the group. Rechunk with rechunk.ForBlockwise first.
	ErrGroupSpansChunks = errors.New("group straddles a chunk boundary")

	// ErrInvalidMethod is returned for a Method outside the closed set.
	ErrInvalidMethod = errors.New("invalid reduction method")
)

// ErrChunkCoverage indicates chunk lengths that do not tile the input.
type ErrChunkCoverage struct {
	Chunks int
	Elems  int
}

func (e *ErrChunkCoverage) Error() string {
	return fmt.Sprintf("chunk lengths sum to %d, input has %d elements", e.Chunks, e.Elems)
}
