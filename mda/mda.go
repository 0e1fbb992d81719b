// Package mda implements the multiple-displacement-amplification fragment
// splitter (spec.md §4.3). The teacher's Design Notes flag the natural
// recursive formulation as "stack-level-unbounded growth in pathological
// cases"; this uses an explicit worklist instead, reusing one scratch
// buffer across calls the way ChromCutter reuses its other per-thread
// buffers.
package mda

import (
	"math/bits"

	"github.com/grailbio/ischip-sim/rng"
)

// defaultPieceCap is the initial worklist/output buffer capacity, rounded
// up to a power of 2 the way circular.NextExp2 sizes circular buffers: a
// fragment rarely splits into more than a handful of MDA pieces, but the
// buffer must still grow cleanly for the pathological deep-split case.
var defaultPieceCap = nextExp2(8)

// nextExp2 returns the next power of 2 strictly greater than x, adapted
// from circular.NextExp2.
func nextExp2(x int) int {
	log2 := 63 - bits.LeadingZeros64(uint64(x))
	return 2 << uint(log2)
}

// Piece is one sub-fragment produced by Split: Shift is its offset from
// the original fragment's start, Length its length.
type Piece struct {
	Shift, Length int32
}

// Splitter holds the reusable worklist and output buffers for one worker's
// repeated calls to Split, avoiding per-call allocation in the
// ChromCutter hot loop.
type Splitter struct {
	work []Piece
	out  []Piece
}

// NewSplitter returns a Splitter with its scratch buffers preallocated
// to a size appropriate for typical fragment counts; buffers grow as
// needed beyond that.
func NewSplitter() *Splitter {
	return &Splitter{
		work: make([]Piece, 0, defaultPieceCap),
		out:  make([]Piece, 0, defaultPieceCap),
	}
}

// Split divides a fragment of the given length into MDA sub-fragments,
// each at least min bases long, per spec.md §4.3: choose a uniform
// split-point, recurse on both halves, stop when a side would be shorter
// than min. If length < min, one full-length piece is returned unsplit.
//
// The returned slice aliases the Splitter's internal buffer and is only
// valid until the next call to Split.
func (s *Splitter) Split(length, min int32, rnd *rng.Random) []Piece {
	s.out = s.out[:0]
	if length < min {
		return append(s.out, Piece{Shift: 0, Length: length})
	}
	s.work = append(s.work[:0], Piece{Shift: 0, Length: length})
	for len(s.work) > 0 {
		last := len(s.work) - 1
		piece := s.work[last]
		s.work = s.work[:last]
		if piece.Length < 2*min {
			// Can't split further without violating the minimum on one side.
			s.out = append(s.out, piece)
			continue
		}
		// Uniform split point in [min, Length-min-1] (exactly min when Length
		// == 2*min, since rng.Range(span) is in [1, span-1]) keeps both halves legal in
		// one step; this is a deterministic narrowing of spec.md's "k in
		// [1,L-1]" that avoids generating splits doomed to be rejected and
		// retried, while still producing an unspecified-order bag of parts
		// covering the original interval.
		span := piece.Length - 2*min + 1
		k := min - 1 + int32(rnd.Range(int(span)))
		s.work = append(s.work,
			Piece{Shift: piece.Shift, Length: k},
			Piece{Shift: piece.Shift + k, Length: piece.Length - k},
		)
	}
	return s.out
}
