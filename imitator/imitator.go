// Package imitator is the orchestrator (spec.md §4.6): it builds the
// chromosome set, partitions treated chromosomes among worker threads,
// calibrates the AutoSample down-scaling factor against the reads budget,
// spawns a cutter.Cutter per thread via traverse.Each, and aggregates and
// prints totals. Adapted from the teacher's pileup.go main-loop shape
// ("traverse.Each(parallelism, ...)" driving one goroutine per partition)
// generalized from read-pileup shards to chromosome partitions.
package imitator

import (
	"fmt"
	"io"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"

	"github.com/grailbio/ischip-sim/avglen"
	"github.com/grailbio/ischip-sim/counters"
	"github.com/grailbio/ischip-sim/cutter"
	"github.com/grailbio/ischip-sim/distconf"
	"github.com/grailbio/ischip-sim/genome"
	"github.com/grailbio/ischip-sim/rng"
	"github.com/grailbio/ischip-sim/writer"
)

// Config is everything Run needs beyond the distribution parameters
// themselves: the reference, the optional template, thread count, cell
// count, chrom filter and cache file path.
type Config struct {
	Params     *distconf.Params
	Reference  *genome.Reference
	Features   map[string][]genome.Feature // empty for Control-only runs
	ThreadCnt  int
	CellCnt    int
	ChromNames []string // optional filter; empty means every chromosome
	CachePath  string   // average-fragment-length cache file path
	Seed       uint64
	CmdLine    string
	Debug      bool
}

// Result is the run-wide totals report.
type Result struct {
	TestFG, TestBG       counters.Snapshot
	ControlFG, ControlBG counters.Snapshot
	AutoSample           float64
	Partitions           [][]string // chromosome ids per thread, for diagnostics
}

// Outputs holds the independent format-writer sets for the Test (IP) and
// Control (input) samples. A ChIP-seq run produces two separate
// sequencing libraries, so each gets its own ordered writer.Primer rather
// than sharing one DataSet per chromosome across both modes.
type Outputs struct {
	Test, Control []writer.FormatWriter
}

// Run executes the full simulation: partitioning, calibration, concurrent
// cutting, and totals aggregation (spec.md §4.6 steps 1-4).
func Run(cfg Config, outputs Outputs, report io.Writer) (Result, error) {
	if err := cfg.Params.Validate(); err != nil {
		return Result{}, err
	}

	treated := TreatedChromosomes(cfg.Reference, cfg.ChromNames, cfg.Features)
	if len(treated) == 0 {
		return Result{}, errors.New("imitator: no chromosomes selected for simulation")
	}

	partitions := partition(treated, cfg.ThreadCnt)

	cache, err := avglen.Open(cfg.CachePath)
	if err != nil {
		return Result{}, err
	}
	autoSample, err := calibrate(cfg, cache, treated)
	if err != nil {
		return Result{}, err
	}
	if err := cache.Flush(); err != nil {
		return Result{}, err
	}

	testCtx := counters.NewContext(cfg.CellCnt, cfg.Params.Sample(true), cfg.Params.Sample(false))
	testCtx.SetAutoSample(autoSample)
	controlCtx := counters.NewContext(cfg.CellCnt, cfg.Params.Sample(true), cfg.Params.Sample(false))
	controlCtx.SetAutoSample(autoSample)

	budget := cfg.Params.MaxReads / int64(cfg.Params.Seq.Multiplier())
	// Reduce the budget by threads/2 to absorb the small cross-thread
	// overshoot inherent in checking a shared counter only after each
	// emission (spec.md §5).
	budget -= int64(maxInt(cfg.ThreadCnt, 1) / 2)

	testPrimer := writer.NewPrimer(treated, outputs.Test)
	controlPrimer := writer.NewPrimer(treated, outputs.Control)

	err = traverse.Each(len(partitions), func(tid int) error {
		return runPartition(cfg, partitions[tid], tid, testPrimer, controlPrimer, testCtx, controlCtx, budget)
	})
	if err != nil {
		log.Error.Printf("imitator: worker failure: %v", err)
	}
	if closeErr := testPrimer.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if closeErr := controlPrimer.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	result := Result{
		TestFG:     testCtx.Frag[counters.FG].Snapshot(),
		TestBG:     testCtx.Frag[counters.BG].Snapshot(),
		ControlFG:  controlCtx.Frag[counters.FG].Snapshot(),
		ControlBG:  controlCtx.Frag[counters.BG].Snapshot(),
		AutoSample: autoSample,
	}
	for _, part := range partitions {
		ids := make([]string, len(part))
		for i, c := range part {
			ids[i] = c.ID
		}
		result.Partitions = append(result.Partitions, ids)
	}

	view := counters.NewView(report)
	view.PrintTotals("Test", []counters.Row{
		{Label: "FG", Selected: result.TestFG.Selected, RecordedPrimer: result.TestFG.RecordedPrimer, RecordedAmplified: result.TestFG.RecordedAmplified},
		{Label: "BG", Selected: result.TestBG.Selected, RecordedPrimer: result.TestBG.RecordedPrimer, RecordedAmplified: result.TestBG.RecordedAmplified},
	})
	view.PrintTotals("Control", []counters.Row{
		{Label: "FG", Selected: result.ControlFG.Selected, RecordedPrimer: result.ControlFG.RecordedPrimer, RecordedAmplified: result.ControlFG.RecordedAmplified},
		{Label: "BG", Selected: result.ControlBG.Selected, RecordedPrimer: result.ControlBG.RecordedPrimer, RecordedAmplified: result.ControlBG.RecordedAmplified},
	})
	fmt.Fprintf(report, "AutoSample: %g\n", autoSample)

	return result, err
}

func runPartition(cfg Config, part []genome.ChromSize, tid int, testPrimer, controlPrimer *writer.Primer, testCtx, controlCtx *counters.Context, budget int64) error {
	seed := cfg.Seed + uint64(tid)*7919 + 1 // distinct per-thread streams from one run seed
	c := cutter.New(cfg.Params, testCtx, testPrimer.NewClone(), seed, tid, budget)
	cc := cutter.New(cfg.Params, controlCtx, controlPrimer.NewClone(), seed^0xdeadbeef, tid, budget)

	for _, chrom := range part {
		features := cfg.Features[chrom.ID]
		status, err := c.Run(chrom, cfg.Reference, features, distconf.Test, cfg.CellCnt)
		if err != nil {
			return errors.Wrapf(err, "imitator: thread %d chrom %s (test)", tid, chrom.ID)
		}
		if status == cutter.ReadsBudgetReached && cfg.Debug {
			log.Debug.Printf("thread %d: test reads budget reached at %s", tid, chrom.ID)
		}
	}
	for _, chrom := range part {
		status, err := cc.Run(chrom, cfg.Reference, nil, distconf.Control, cfg.CellCnt)
		if err != nil {
			return errors.Wrapf(err, "imitator: thread %d chrom %s (control)", tid, chrom.ID)
		}
		if status == cutter.ReadsBudgetReached && cfg.Debug {
			log.Debug.Printf("thread %d: control reads budget reached at %s", tid, chrom.ID)
		}
	}
	return nil
}

// TreatedChromosomes resolves the reference's chromosome set against an
// optional name filter and the binding-site template, returning the
// genome-ordered chromosomes selected for simulation (spec.md §4.6 step
// 1). Exported so callers that need the header-ready chromosome list
// before Run returns (e.g. to write a SAM header) can compute it the same
// way Run does internally.
func TreatedChromosomes(ref *genome.Reference, chromNames []string, features map[string][]genome.Feature) []genome.ChromSize {
	chroms := ref.ChromSizes()
	chroms.MarkTreated(chromNames, featuredChroms(features))
	return chroms.Treated()
}

func featuredChroms(features map[string][]genome.Feature) map[string]bool {
	out := make(map[string]bool, len(features))
	for chrom, fs := range features {
		if len(fs) > 0 {
			out[chrom] = true
		}
	}
	return out
}

// partition assigns treated chromosomes to threadCnt partitions using a
// greedy zig-zag (snake) fill by descending effective length, then orders
// partitions by ascending total weight so the main thread (index 0) gets
// the smallest load (spec.md §4.6 step 2).
func partition(treated []genome.ChromSize, threadCnt int) [][]genome.ChromSize {
	if threadCnt < 1 {
		threadCnt = 1
	}
	sorted := make([]genome.ChromSize, len(treated))
	copy(sorted, treated)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DefinedLen > sorted[j].DefinedLen
	})

	parts := make([][]genome.ChromSize, threadCnt)
	weights := make([]int64, threadCnt)
	forward := true
	idx := 0
	for _, c := range sorted {
		parts[idx] = append(parts[idx], c)
		weights[idx] += int64(c.DefinedLen)
		if forward {
			idx++
			if idx == threadCnt {
				idx = threadCnt - 1
				forward = false
			}
		} else {
			idx--
			if idx < 0 {
				idx = 0
				forward = true
			}
		}
	}

	order := make([]int, threadCnt)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return weights[order[i]] < weights[order[j]] })
	out := make([][]genome.ChromSize, threadCnt)
	for newIdx, oldIdx := range order {
		out[newIdx] = parts[oldIdx]
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
