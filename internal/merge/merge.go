// Package merge implements the three-way line merge used when an update
// is based on an older revision than the current file. Regions where
// only one side changed take that side; regions where both sides made
// the same change collapse; regions where they disagree are rendered
// with conflict markers, incoming lines first.
package merge

import "bytes"

// Markers delimiting a conflict region in merged output.
const (
	StartMarker = "<<<<<<<"
	MidMarker   = "======="
	EndMarker   = ">>>>>>>"
)

// block records that a[APos:APos+Size] equals b[BPos:BPos+Size].
type block struct {
	APos, BPos, Size int
}

// matchingBlocks returns the common-line blocks of a and b in order,
// terminated by a zero-size sentinel at (len(a), len(b)).
func matchingBlocks(a, b [][]byte) []block {
	// LCS length matrix.
	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
	}
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if bytes.Equal(a[i-1], b[j-1]) {
				matrix[i][j] = matrix[i-1][j-1] + 1
			} else {
				matrix[i][j] = max(matrix[i-1][j], matrix[i][j-1])
			}
		}
	}

	// Walk back through the matrix collecting matched line pairs.
	var pairs []block
	i, j := len(a), len(b)
	for i > 0 && j > 0 {
		switch {
		case bytes.Equal(a[i-1], b[j-1]):
			pairs = append(pairs, block{APos: i - 1, BPos: j - 1, Size: 1})
			i--
			j--
		case matrix[i][j-1] >= matrix[i-1][j]:
			j--
		default:
			i--
		}
	}

	// Reverse into document order and coalesce adjacent pairs.
	blocks := make([]block, 0, len(pairs)+1)
	for k := len(pairs) - 1; k >= 0; k-- {
		p := pairs[k]
		if n := len(blocks); n > 0 {
			last := &blocks[n-1]
			if last.APos+last.Size == p.APos && last.BPos+last.Size == p.BPos {
				last.Size++
				continue
			}
		}
		blocks = append(blocks, p)
	}
	return append(blocks, block{APos: len(a), BPos: len(b)})
}

// syncRegion is a run of base lines matched in both a and b, with the
// positions of that run in each.
type syncRegion struct {
	BaseStart, BaseEnd int
	AStart, AEnd       int
	BStart, BEnd       int
}

// syncRegions intersects the base/a and base/b matching blocks. The
// result always ends with a zero-length region at the end of all three
// texts, which flushes trailing changes during the region walk.
func syncRegions(base, a, b [][]byte) []syncRegion {
	amatches := matchingBlocks(base, a)
	bmatches := matchingBlocks(base, b)

	var regions []syncRegion
	ia, ib := 0, 0
	for ia < len(amatches) && ib < len(bmatches) {
		am, bm := amatches[ia], bmatches[ib]

		// The matched base runs overlap on [start, end).
		start := max(am.APos, bm.APos)
		end := min(am.APos+am.Size, bm.APos+bm.Size)
		if end > start {
			size := end - start
			aSub := am.BPos + (start - am.APos)
			bSub := bm.BPos + (start - bm.APos)
			regions = append(regions, syncRegion{
				BaseStart: start, BaseEnd: end,
				AStart: aSub, AEnd: aSub + size,
				BStart: bSub, BEnd: bSub + size,
			})
		}
		// Advance whichever matched run ends first in the base.
		if am.APos+am.Size < bm.APos+bm.Size {
			ia++
		} else {
			ib++
		}
	}
	return append(regions, syncRegion{
		BaseStart: len(base), BaseEnd: len(base),
		AStart: len(a), AEnd: len(a),
		BStart: len(b), BEnd: len(b),
	})
}

func compareRange(x [][]byte, xlo, xhi int, y [][]byte, ylo, yhi int) bool {
	if xhi-xlo != yhi-ylo {
		return false
	}
	for i := 0; i < xhi-xlo; i++ {
		if !bytes.Equal(x[xlo+i], y[ylo+i]) {
			return false
		}
	}
	return true
}

// Merge3 merges incoming and local lines against their common basis.
// ending is the line-ending style used for the bare conflict marker
// lines. The returned flag reports whether the output contains any
// conflict region.
func Merge3(basis, incoming, local [][]byte, ending string) ([]byte, bool) {
	var (
		out        [][]byte
		conflicted bool
	)
	iz, ia, ib := 0, 0, 0

	for _, sync := range syncRegions(basis, incoming, local) {
		// Lines each side holds before this sync point are the changed
		// regions to reconcile.
		if sync.AStart > ia || sync.BStart > ib {
			same := compareRange(incoming, ia, sync.AStart, local, ib, sync.BStart)
			equalA := compareRange(incoming, ia, sync.AStart, basis, iz, sync.BaseStart)
			equalB := compareRange(local, ib, sync.BStart, basis, iz, sync.BaseStart)
			switch {
			case same:
				out = append(out, incoming[ia:sync.AStart]...)
			case equalA && !equalB:
				out = append(out, local[ib:sync.BStart]...)
			case equalB && !equalA:
				out = append(out, incoming[ia:sync.AStart]...)
			default:
				conflicted = true
				out = append(out, []byte(StartMarker+ending))
				out = append(out, incoming[ia:sync.AStart]...)
				out = append(out, []byte(MidMarker+ending))
				out = append(out, local[ib:sync.BStart]...)
				out = append(out, []byte(EndMarker+ending))
			}
		}

		out = append(out, basis[sync.BaseStart:sync.BaseEnd]...)
		iz, ia, ib = sync.BaseEnd, sync.AEnd, sync.BEnd
	}

	return JoinLines(out), conflicted
}
