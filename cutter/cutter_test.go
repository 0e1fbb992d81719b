package cutter_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/ischip-sim/counters"
	"github.com/grailbio/ischip-sim/cutter"
	"github.com/grailbio/ischip-sim/distconf"
	"github.com/grailbio/ischip-sim/genome"
	"github.com/grailbio/ischip-sim/writer"
)

type countingFormat struct {
	reads int
}

func (c *countingFormat) WriteChromData(_ genome.ChromSize, data *writer.ChromData) error {
	c.reads += len(data.Reads)
	return nil
}

func (c *countingFormat) Close() error { return nil }

func testReference(t *testing.T, length int) *genome.Reference {
	t.Helper()
	var seq strings.Builder
	bases := "ACGT"
	for i := 0; i < length; i++ {
		seq.WriteByte(bases[i%4])
	}
	ref, err := genome.LoadReference(strings.NewReader(">chr1\n" + seq.String() + "\n"))
	assert.NoError(t, err)
	return ref
}

func baseParams() *distconf.Params {
	return &distconf.Params{
		LnMean:      4.0,
		LnSigma:     0.2,
		ReadLen:     20,
		MinFragLen:  20,
		Seq:         distconf.SE,
		FG:          1,
		BG:          1,
		MaxReads:    1000,
		UniScore:    true,
	}
}

func TestRunStopsAtReadsBudget(t *testing.T) {
	ref := testReference(t, 2000)
	chrom := ref.ChromSizes().Get("chr1")
	assert.NotNil(t, chrom)

	params := baseParams()
	ctx := counters.NewContext(10, params.FG, params.BG)
	rec := &countingFormat{}
	p := writer.NewPrimer([]genome.ChromSize{*chrom}, []writer.FormatWriter{rec})
	clone := p.NewClone()

	features := []genome.Feature{
		{Region: genome.Region{Start: 500, End: 520}, Score: 1},
		{Region: genome.Region{Start: 1000, End: 1020}, Score: 1},
	}

	c := cutter.New(params, ctx, clone, 42, 0, 5)
	status, err := c.Run(*chrom, ref, features, distconf.Test, 20)
	assert.NoError(t, err)
	assert.Equal(t, cutter.ReadsBudgetReached, status)
	assert.NoError(t, p.Close())

	assert.True(t, ctx.TotalRecorded() >= 5)
	assert.Equal(t, int(ctx.TotalRecorded()), rec.reads)
}

func TestRunCompletesChromosomeUnderGenerousBudget(t *testing.T) {
	ref := testReference(t, 3000)
	chrom := ref.ChromSizes().Get("chr1")
	assert.NotNil(t, chrom)

	params := baseParams()
	ctx := counters.NewContext(2, params.FG, params.BG)
	rec := &countingFormat{}
	p := writer.NewPrimer([]genome.ChromSize{*chrom}, []writer.FormatWriter{rec})
	clone := p.NewClone()

	c := cutter.New(params, ctx, clone, 7, 0, 1_000_000)
	status, err := c.Run(*chrom, ref, nil, distconf.Control, 2)
	assert.NoError(t, err)
	assert.Equal(t, cutter.EndOfChrom, status)
	assert.NoError(t, p.Close())
	assert.True(t, rec.reads > 0)
}
