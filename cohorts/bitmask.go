package cohorts

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Bitmask records, per chunk, the set of group labels present in it. Rows
// are never mutated after construction; a new chunking or grouping means a
// fresh Bitmask.
type Bitmask struct {
	nLabels int
	rows    []*roaring.Bitmap
}

// ErrChunkCoverage indicates chunk lengths that do not tile the code array.
type ErrChunkCoverage struct {
	Chunks int
	Codes  int
}

func (e *ErrChunkCoverage) Error() string {
	return fmt.Sprintf("chunk lengths sum to %d, code array has %d elements", e.Chunks, e.Codes)
}

// ErrLabelOutOfRange indicates a group code at or above the declared label
// count.
type ErrLabelOutOfRange struct {
	Code    int
	NLabels int
}

func (e *ErrLabelOutOfRange) Error() string {
	return fmt.Sprintf("group code %d outside label space [0, %d)", e.Code, e.NLabels)
}

// Build computes the label occupancy of a 1-D chunked axis. codes holds the
// dense group code of every element (-1 for "no group"), chunkLens the
// length of each chunk in order.
func Build(codes []int, chunkLens []int, numLabels int) (*Bitmask, error) {
	total := 0
	for _, l := range chunkLens {
		total += l
	}
	if total != len(codes) {
		return nil, &ErrChunkCoverage{Chunks: total, Codes: len(codes)}
	}

	rows := make([]*roaring.Bitmap, len(chunkLens))
	offset := 0
	for c, l := range chunkLens {
		row := roaring.New()
		for _, code := range codes[offset : offset+l] {
			if code < 0 {
				continue
			}
			if code >= numLabels {
				return nil, &ErrLabelOutOfRange{Code: code, NLabels: numLabels}
			}
			row.Add(uint32(code))
		}
		rows[c] = row
		offset += l
	}
	return &Bitmask{nLabels: numLabels, rows: rows}, nil
}

// BuildMulti computes occupancy for grouping over several axes at once.
// Each axis contributes a 1-D projection of the codes and its own chunk
// lengths; a product chunk is the cartesian combination of per-axis chunk
// indices, in row-major order, and a label counts as present iff it is
// present in the matching projection chunk of every axis.
func BuildMulti(codesPerAxis [][]int, chunksPerAxis [][]int, numLabels int) (*Bitmask, error) {
	if len(codesPerAxis) != len(chunksPerAxis) || len(codesPerAxis) == 0 {
		return nil, fmt.Errorf("got %d code axes and %d chunk axes", len(codesPerAxis), len(chunksPerAxis))
	}
	if len(codesPerAxis) == 1 {
		return Build(codesPerAxis[0], chunksPerAxis[0], numLabels)
	}

	proj := make([]*Bitmask, len(codesPerAxis))
	for a := range codesPerAxis {
		bm, err := Build(codesPerAxis[a], chunksPerAxis[a], numLabels)
		if err != nil {
			return nil, err
		}
		proj[a] = bm
	}

	total := 1
	for _, bm := range proj {
		total *= bm.NumChunks()
	}
	rows := make([]*roaring.Bitmap, total)
	idx := make([]int, len(proj))
	for c := 0; c < total; c++ {
		row := proj[0].rows[idx[0]].Clone()
		for a := 1; a < len(proj); a++ {
			row.And(proj[a].rows[idx[a]])
		}
		rows[c] = row

		for a := len(idx) - 1; a >= 0; a-- {
			idx[a]++
			if idx[a] < proj[a].NumChunks() {
				break
			}
			idx[a] = 0
		}
	}
	return &Bitmask{nLabels: numLabels, rows: rows}, nil
}

// NumChunks returns the number of chunk rows.
func (bm *Bitmask) NumChunks() int { return len(bm.rows) }

// NumLabels returns the size of the label space.
func (bm *Bitmask) NumLabels() int { return bm.nLabels }

// Contains reports whether label g is present in chunk c.
func (bm *Bitmask) Contains(c, g int) bool { return bm.rows[c].Contains(uint32(g)) }

// Row returns the label set of chunk c. Callers must treat it as read-only.
func (bm *Bitmask) Row(c int) *roaring.Bitmap { return bm.rows[c] }

// SpansChunks reports whether any label occurs in more than one chunk.
// A false result means every group is wholly contained in a single chunk
// and a blockwise reduction needs no cross-chunk combine.
func (bm *Bitmask) SpansChunks() bool {
	seen := roaring.New()
	for _, row := range bm.rows {
		if seen.AndCardinality(row) > 0 {
			return true
		}
		seen.Or(row)
	}
	return false
}
