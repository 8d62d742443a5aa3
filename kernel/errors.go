package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingParam is returned when a quantile op is called without q
	// or topk without k.
	ErrMissingParam = errors.New("missing op parameter: quantile requires q, topk requires k")
	// ErrUnknownOp is returned for an Op outside the closed set.
	ErrUnknownOp = errors.New("unknown reduction op")
)

// ErrCodeOutOfRange indicates a group code outside [0, size). This is a
// programming-contract violation on the caller's side, never a data error:
// code arrays handed to the kernel must already be dense and filtered of
// the missing sentinel.
type ErrCodeOutOfRange struct {
	Code int
	Size int
}

func (e *ErrCodeOutOfRange) Error() string {
	return fmt.Sprintf("group code %d out of range [0, %d)", e.Code, e.Size)
}

// ErrLengthMismatch indicates that the data block's last-axis length does
// not match the group code array.
type ErrLengthMismatch struct {
	Codes int
	Data  int
	Rows  int
}

func (e *ErrLengthMismatch) Error() string {
	return fmt.Sprintf("data length %d is not %d rows of %d codes", e.Data, e.Rows, e.Codes)
}

// ErrBadQuantile indicates a q outside [0, 1].
type ErrBadQuantile struct {
	Q float64
}

func (e *ErrBadQuantile) Error() string {
	return fmt.Sprintf("quantile %v outside [0, 1]", e.Q)
}
