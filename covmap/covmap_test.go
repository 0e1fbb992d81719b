package covmap_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/ischip-sim/covmap"
)

func TestNoAdjacentEqualValues(t *testing.T) {
	c := covmap.New()
	r := rand.New(rand.NewSource(1))
	var total int64
	for i := 0; i < 500; i++ {
		s := int32(r.Intn(1000))
		e := s + int32(r.Intn(200)+1)
		c.AddFragment(s, e)
		total += int64(e - s)
	}
	var prevVal uint32
	havePrev := false
	c.Segments(func(s, e int32, v uint32) {
		if havePrev {
			assert.NotEqual(t, prevVal, v)
		}
		prevVal = v
		havePrev = true
	})
	assert.Equal(t, total, c.Integral())
}

func TestSimpleOverlap(t *testing.T) {
	c := covmap.New()
	c.AddFragment(0, 10)
	c.AddFragment(5, 15)
	var segs [][3]int64
	c.Segments(func(s, e int32, v uint32) {
		segs = append(segs, [3]int64{int64(s), int64(e), int64(v)})
	})
	assert.Equal(t, [][3]int64{{0, 5, 1}, {5, 10, 2}, {10, 15, 1}}, segs)
	assert.Equal(t, int64(20), c.Integral())
}

func TestDensity(t *testing.T) {
	d := covmap.NewDensity()
	d.Add(5)
	d.Add(5)
	d.Add(2)
	var positions []int32
	var counts []uint32
	d.Segments(func(pos int32, count uint32) {
		positions = append(positions, pos)
		counts = append(counts, count)
	})
	assert.Equal(t, []int32{2, 5}, positions)
	assert.Equal(t, []uint32{1, 2}, counts)
}
