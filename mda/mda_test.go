package mda_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/ischip-sim/mda"
	"github.com/grailbio/ischip-sim/rng"
)

func TestSplitCoversOriginalInterval(t *testing.T) {
	r := rng.New(17)
	s := mda.NewSplitter()
	for trial := 0; trial < 200; trial++ {
		length := int32(50 + trial)
		min := int32(20)
		pieces := s.Split(length, min, r)
		var total int32
		for _, p := range pieces {
			assert.True(t, p.Length >= min, "piece shorter than min: %+v", p)
			total += p.Length
		}
		assert.Equal(t, length, total, "pieces don't cover original interval")
	}
}

func TestSplitBelowMinimumIsUnsplit(t *testing.T) {
	r := rng.New(3)
	s := mda.NewSplitter()
	pieces := s.Split(10, 20, r)
	assert.Equal(t, 1, len(pieces))
	assert.Equal(t, int32(0), pieces[0].Shift)
	assert.Equal(t, int32(10), pieces[0].Length)
}

func TestSplitExactlyBelowDoubleMinStaysWhole(t *testing.T) {
	r := rng.New(3)
	s := mda.NewSplitter()
	pieces := s.Split(39, 20, r)
	assert.Equal(t, 1, len(pieces))
	assert.Equal(t, int32(39), pieces[0].Length)
}
