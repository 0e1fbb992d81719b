// Package covmap implements the cumulative coverage and density maps
// described in spec.md §4.2 and §8: a sorted, piecewise-constant map from
// genomic position to accumulated value, with no two adjacent entries ever
// holding the same value. It is single-writer per chromosome (spec.md §5),
// so no locking is needed here; the writer package serializes access
// across chromosome boundaries instead.
//
// Backed by a sorted slice rather than a tree, in the idiom of
// interval.searchPosType's binary-search-over-slice approach to sorted
// genomic coordinates.
package covmap

import "sort"

type entry struct {
	pos int32
	val uint32
}

// Coverage is a sorted position->coverage map supporting half-open
// interval insertion with per-base +1 accumulation. Positions are located
// by binary search in O(log n); inserting or removing an entry shifts the
// tail of the backing slice, so insertion is O(n) in the worst case.
type Coverage struct {
	entries []entry
}

// New returns an empty Coverage map.
func New() *Coverage {
	return &Coverage{}
}

func (c *Coverage) search(pos int32) int {
	return sort.Search(len(c.entries), func(i int) bool { return c.entries[i].pos >= pos })
}

// valueBefore returns the coverage value that holds immediately before
// index idx (i.e. the value inherited by a new entry inserted there), or 0
// if idx==0.
func (c *Coverage) valueBefore(idx int) uint32 {
	if idx == 0 {
		return 0
	}
	return c.entries[idx-1].val
}

// AddFragment adds a half-open interval [s,e) to the coverage map,
// incrementing every base in the interval by one, per the algorithm in
// spec.md §4.2.
//
// Order matters: the entry at e must capture the pre-increment coverage
// level (the level that holds just past the end of this fragment), so it
// is located/inserted before s is touched; s's insertion point is always
// <= e's, so inserting at e first never invalidates s's index.
func (c *Coverage) AddFragment(s, e int32) {
	if e <= s {
		return
	}
	// 1. Locate/insert the entry at e, inheriting the untouched predecessor
	// value.
	eIdx := c.search(e)
	if eIdx >= len(c.entries) || c.entries[eIdx].pos != e {
		c.insertAt(eIdx, entry{pos: e, val: c.valueBefore(eIdx)})
	}

	// 2. Locate/insert the entry at s; it gains +1 either way.
	sIdx := c.search(s)
	if sIdx < len(c.entries) && c.entries[sIdx].pos == s {
		c.entries[sIdx].val++
	} else {
		c.insertAt(sIdx, entry{pos: s, val: c.valueBefore(sIdx) + 1})
	}

	// 3. Increment every entry strictly between s and e.
	sIdx = c.search(s)
	for i := sIdx + 1; i < len(c.entries) && c.entries[i].pos < e; i++ {
		c.entries[i].val++
	}

	// 4. Dedup e against its predecessor, then s against its predecessor.
	eIdx = c.search(e)
	if eIdx < len(c.entries) && c.entries[eIdx].pos == e {
		c.dedupAt(eIdx)
	}
	sIdx = c.search(s)
	if sIdx < len(c.entries) && c.entries[sIdx].pos == s {
		c.dedupAt(sIdx)
	}
}

// dedupAt removes entries[idx] if it now holds the same value as its
// predecessor, preserving the "no two adjacent equal values" invariant.
func (c *Coverage) dedupAt(idx int) {
	if idx > 0 && c.entries[idx-1].val == c.entries[idx].val {
		c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
	}
}

func (c *Coverage) insertAt(idx int, e entry) {
	c.entries = append(c.entries, entry{})
	copy(c.entries[idx+1:], c.entries[idx:])
	c.entries[idx] = e
}

// Segments calls yield once per (start, end, value) piecewise-constant
// segment with value > 0, in position order, reconstructing the BedGraph
// representation described in spec.md §4.2.
func (c *Coverage) Segments(yield func(start, end int32, value uint32)) {
	for i := 0; i+1 < len(c.entries); i++ {
		v := c.entries[i].val
		if v > 0 {
			yield(c.entries[i].pos, c.entries[i+1].pos, v)
		}
	}
}

// Integral returns sum((end-start)*value) over all segments; used by tests
// to check spec.md §8 property 1 against the total fragment length added.
func (c *Coverage) Integral() int64 {
	var total int64
	c.Segments(func(s, e int32, v uint32) {
		total += int64(e-s) * int64(v)
	})
	return total
}

// Reset clears the map, allowing the underlying slice to be reused across
// chromosomes.
func (c *Coverage) Reset() {
	c.entries = c.entries[:0]
}

// Density is a sorted position->count map used for read- and
// fragment-density tracks (spec.md §3 FreqMap). Unlike Coverage it
// accumulates single-position counts rather than interval coverage, so it
// needs no deduplication invariant.
type Density struct {
	m map[int32]uint32
}

// NewDensity returns an empty Density map.
func NewDensity() *Density {
	return &Density{m: make(map[int32]uint32)}
}

// Add increments the count at pos.
func (d *Density) Add(pos int32) {
	d.m[pos]++
}

// Segments calls yield once per (position, count) pair in position order.
func (d *Density) Segments(yield func(pos int32, count uint32)) {
	positions := make([]int32, 0, len(d.m))
	for p := range d.m {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	for _, p := range positions {
		yield(p, d.m[p])
	}
}

// Reset clears the map.
func (d *Density) Reset() {
	d.m = make(map[int32]uint32)
}
