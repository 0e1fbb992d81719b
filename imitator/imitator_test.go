package imitator_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/ischip-sim/distconf"
	"github.com/grailbio/ischip-sim/genome"
	"github.com/grailbio/ischip-sim/imitator"
	"github.com/grailbio/ischip-sim/writer"
)

func buildReference(t *testing.T, chromLen int, names ...string) *genome.Reference {
	t.Helper()
	var sb strings.Builder
	bases := "ACGT"
	for _, name := range names {
		sb.WriteString(">")
		sb.WriteString(name)
		sb.WriteString("\n")
		for i := 0; i < chromLen; i++ {
			sb.WriteByte(bases[i%4])
		}
		sb.WriteString("\n")
	}
	ref, err := genome.LoadReference(strings.NewReader(sb.String()))
	assert.NoError(t, err)
	return ref
}

type discardFormat struct{ reads int }

func (d *discardFormat) WriteChromData(_ genome.ChromSize, data *writer.ChromData) error {
	d.reads += len(data.Reads)
	return nil
}
func (d *discardFormat) Close() error { return nil }

func TestRunProducesReadsAndTotals(t *testing.T) {
	ref := buildReference(t, 4000, "chr1", "chr2")
	params := &distconf.Params{
		LnMean: 4.5, LnSigma: 0.2, ReadLen: 20, MinFragLen: 20,
		Seq: distconf.SE, FG: 1, BG: 1, MaxReads: 2000, UniScore: true,
	}
	cfg := imitator.Config{
		Params:    params,
		Reference: ref,
		Features: map[string][]genome.Feature{
			"chr1": {{Region: genome.Region{Start: 1000, End: 1050}, Score: 1}},
		},
		ThreadCnt: 2,
		CellCnt:   4,
		CachePath: filepath.Join(t.TempDir(), "cache.ini"),
		Seed:      123,
		CmdLine:   "ischip-sim --test",
	}

	testFmt := &discardFormat{}
	controlFmt := &discardFormat{}
	var report bytes.Buffer
	result, err := imitator.Run(cfg, imitator.Outputs{
		Test:    []writer.FormatWriter{testFmt},
		Control: []writer.FormatWriter{controlFmt},
	}, &report)
	assert.NoError(t, err)
	assert.True(t, testFmt.reads > 0)
	assert.True(t, controlFmt.reads > 0)
	assert.Equal(t, testFmt.reads, int(result.TestFG.RecordedPrimer+result.TestFG.RecordedAmplified+
		result.TestBG.RecordedPrimer+result.TestBG.RecordedAmplified))
	assert.Equal(t, controlFmt.reads, int(result.ControlFG.RecordedPrimer+result.ControlFG.RecordedAmplified+
		result.ControlBG.RecordedPrimer+result.ControlBG.RecordedAmplified))
	assert.Contains(t, report.String(), "AutoSample")
	assert.Len(t, result.Partitions, 2)
}

func TestRunRejectsInvalidParams(t *testing.T) {
	ref := buildReference(t, 1000, "chr1")
	params := &distconf.Params{LnMean: 4, LnSigma: -1, ReadLen: 20, MinFragLen: 20, MaxReads: 100}
	cfg := imitator.Config{Params: params, Reference: ref, ThreadCnt: 1, CellCnt: 1}
	_, err := imitator.Run(cfg, imitator.Outputs{}, &bytes.Buffer{})
	assert.Error(t, err)
}
