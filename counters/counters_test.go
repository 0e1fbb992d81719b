package counters_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/ischip-sim/counters"
)

func TestFragCntConcurrentAdds(t *testing.T) {
	var f counters.FragCnt
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.AddSelected()
			f.AddRecordedPrimer()
			f.AddRecordedAmplified()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), f.Selected())
	assert.Equal(t, int64(200), f.Recorded())
}

func TestContextAutoSampleReadOnlyAfterInit(t *testing.T) {
	ctx := counters.NewContext(1000, 1.0, 0.01)
	ctx.SetAutoSample(0.5)
	assert.Equal(t, 0.5, ctx.AutoSample())
	assert.Equal(t, 1.0, ctx.Sample(counters.FG))
	assert.Equal(t, 0.01, ctx.Sample(counters.BG))
}

func TestViewPrintTotalsAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	v := counters.NewView(&buf)
	v.PrintTotals("Test", []counters.Row{
		{Label: "FG", Selected: 100, RecordedPrimer: 90, RecordedAmplified: 10},
		{Label: "BG", Selected: 1000000, RecordedPrimer: 2, RecordedAmplified: 0},
	})
	assert.Contains(t, buf.String(), "FG")
	assert.Contains(t, buf.String(), "1000000")
}
