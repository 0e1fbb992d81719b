package cutter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/ischip-sim/distconf"
	"github.com/grailbio/ischip-sim/genome"
	"github.com/grailbio/ischip-sim/rng"
)

func TestIsAutosome(t *testing.T) {
	assert.True(t, isAutosome("chr1"))
	assert.True(t, isAutosome("chr22"))
	assert.False(t, isAutosome("chrX"))
	assert.False(t, isAutosome("chrY"))
	assert.False(t, isAutosome("chrM"))
}

func TestMeanFragLenUsesSSMeanWhenEnabled(t *testing.T) {
	p := &distconf.Params{LnMean: 5.46, LnSigma: 0.4, SSMean: 300, SSSigma: 20}
	assert.Equal(t, 300, meanFragLen(p))
}

func TestEdgeDistancePicksNearerBoundary(t *testing.T) {
	f := genome.Feature{Region: genome.Region{Start: 100, End: 200}, Score: 1}
	assert.Equal(t, int32(0), edgeDistance(100, 150, f))
	assert.Equal(t, int32(10), edgeDistance(90, 150, f))
}

func TestFlattenAcceptDeterministicAtExtremes(t *testing.T) {
	r := rng.New(1)
	assert.False(t, flattenAccept(r, 10, 0))
	assert.True(t, flattenAccept(r, 10, 10))
}
