package genome_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/ischip-sim/genome"
)

func TestLoadChromSizes(t *testing.T) {
	cs, err := genome.LoadChromSizes(strings.NewReader("chr1\t100000\nchr10\t50000\nchr2\t90000\nchrX\t80000\n"))
	assert.NoError(t, err)
	assert.Equal(t, 4, cs.Len())
	var order []string
	for _, c := range cs.Treated() {
		order = append(order, c.ID)
	}
	// nothing marked treated yet.
	assert.Empty(t, order)
	cs.MarkTreated(nil, nil)
	order = order[:0]
	for _, c := range cs.Treated() {
		order = append(order, c.ID)
	}
	assert.Equal(t, []string{"chr1", "chr2", "chr10", "chrX"}, order)
}

func TestLoadFeaturesSortedAndScored(t *testing.T) {
	feats, err := genome.LoadFeatures(strings.NewReader("chr1\t500\t600\t0.8\nchr1\t100\t200\nchr1\t300\t400\t0.5\n"))
	assert.NoError(t, err)
	got := feats["chr1"]
	assert.Equal(t, 3, len(got))
	assert.Equal(t, int32(100), got[0].Start)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, int32(300), got[1].Start)
	assert.Equal(t, int32(500), got[2].Start)
}

func TestLoadFeaturesRejectsInvalidRegion(t *testing.T) {
	_, err := genome.LoadFeatures(strings.NewReader("chr1\t600\t500\n"))
	assert.Error(t, err)
}

func TestReverseComplement(t *testing.T) {
	assert.Equal(t, "ACGT", genome.ReverseComplement("ACGT"))
	assert.Equal(t, "NGCAT", genome.ReverseComplement("ATGCN"))
}

func TestLoadReferenceAndDefinedBounds(t *testing.T) {
	fa := ">chr1\nNNNACGTACGTNN\n>chr2\nACGT\n"
	ref, err := genome.LoadReference(strings.NewReader(fa))
	assert.NoError(t, err)
	s, err := ref.Get("chr1", 3, 11)
	assert.NoError(t, err)
	assert.Equal(t, "ACGTACGT", s)
	cs := ref.ChromSizes()
	c1 := cs.Get("chr1")
	assert.Equal(t, int32(3), c1.DefinedStart)
	assert.Equal(t, int32(8), c1.DefinedLen)
}
