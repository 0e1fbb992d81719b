package writer_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/ischip-sim/genome"
	"github.com/grailbio/ischip-sim/writer"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

// recordingFormat records the genome-order sequence of chromosome ids it
// was asked to write, so tests can assert on ordering independent of
// format-specific payload.
type recordingFormat struct {
	mu      sync.Mutex
	written []string
}

func (r *recordingFormat) WriteChromData(chrom genome.ChromSize, _ *writer.ChromData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written = append(r.written, chrom.ID)
	return nil
}

func (r *recordingFormat) Close() error { return nil }

func TestOrderedDispatchWaitsForPrefix(t *testing.T) {
	chroms := []genome.ChromSize{{ID: "chr1", Len: 100}, {ID: "chr2", Len: 100}, {ID: "chr3", Len: 100}}
	rec := &recordingFormat{}
	p := writer.NewPrimer(chroms, []writer.FormatWriter{rec})

	c2 := p.NewClone()
	c2.SetChrom("chr2")
	assert.NoError(t, c2.WriteChrom())
	assert.Empty(t, rec.written, "chr2 must wait for chr1 before flushing")

	c3 := p.NewClone()
	c3.SetChrom("chr3")
	assert.NoError(t, c3.WriteChrom())
	assert.Empty(t, rec.written, "chr3 must also wait for chr1")

	c1 := p.NewClone()
	c1.SetChrom("chr1")
	assert.NoError(t, c1.WriteChrom())
	assert.Equal(t, []string{"chr1", "chr2", "chr3"}, rec.written)

	assert.NoError(t, p.Close())
}

func TestCloneAddFragAccumulatesCoverage(t *testing.T) {
	chroms := []genome.ChromSize{{ID: "chr1", Len: 100}}
	var bg bytes.Buffer
	bgw := writer.NewBedGraphWriter(nopCloser{&bg})
	p := writer.NewPrimer(chroms, []writer.FormatWriter{bgw})

	c := p.NewClone()
	c.SetChrom("chr1")
	c.AddFrag(writer.Read{Name: "r1", Seq: "ACGT", Qual: "IIII", Chrom: "chr1", Start: 0, End: 10})
	c.AddFrag(writer.Read{Name: "r2", Seq: "ACGT", Qual: "IIII", Chrom: "chr1", Start: 5, End: 15})
	assert.NoError(t, c.WriteChrom())
	assert.NoError(t, p.Close())

	out := bg.String()
	assert.Contains(t, out, "chr1\t0\t5\t1")
	assert.Contains(t, out, "chr1\t5\t10\t2")
	assert.Contains(t, out, "chr1\t10\t15\t1")
}

func TestFastqWriterSingleEnded(t *testing.T) {
	var buf bytes.Buffer
	fw := writer.NewFastqWriter(nopCloser{&buf}, nil)
	chroms := []genome.ChromSize{{ID: "chr1", Len: 100}}
	p := writer.NewPrimer(chroms, []writer.FormatWriter{fw})

	c := p.NewClone()
	c.SetChrom("chr1")
	c.AddFrag(writer.Read{Name: "read1", Seq: "ACGTACGT", Qual: "IIIIIIII", Chrom: "chr1", Start: 0, End: 8})
	assert.NoError(t, c.WriteChrom())
	assert.NoError(t, p.Close())

	assert.Equal(t, "@read1\nACGTACGT\n+\nIIIIIIII\n", buf.String())
}

func TestFreqWriterHistogram(t *testing.T) {
	var buf bytes.Buffer
	fr := writer.NewFreqWriter(nopCloser{&buf})
	chroms := []genome.ChromSize{{ID: "chr1", Len: 100}}
	p := writer.NewPrimer(chroms, []writer.FormatWriter{fr})

	c := p.NewClone()
	c.SetChrom("chr1")
	c.AddFrag(writer.Read{Chrom: "chr1", Start: 0, End: 36})
	c.AddFrag(writer.Read{Chrom: "chr1", Start: 0, End: 36})
	c.AddFrag(writer.Read{Chrom: "chr1", Start: 0, End: 50})
	assert.NoError(t, c.WriteChrom())
	assert.NoError(t, p.Close())

	out := buf.String()
	assert.Contains(t, out, "36\t2\t2")
	assert.Contains(t, out, "50\t1\t1")
}
