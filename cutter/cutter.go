// Package cutter implements the per-thread fragmentation/selection/
// amplification/sequencing engine (spec.md §4.4): one Cutter per worker
// goroutine, generating fragments cell by cell along an assigned
// chromosome, gating them through feature-score acceptance, multiple-
// displacement amplification, PCR doubling, and size selection, and
// streaming the survivors to a writer.Clone.
//
// Exceptions-as-control-flow in the inner loop (the teacher's usual
// per-read try/catch idiom) is replaced here with an explicit Status
// enum, per the redesign direction in spec.md's REDESIGN FLAGS.
package cutter

import (
	"fmt"
	"math"
	"strings"

	"github.com/grailbio/ischip-sim/counters"
	"github.com/grailbio/ischip-sim/distconf"
	"github.com/grailbio/ischip-sim/genome"
	"github.com/grailbio/ischip-sim/mda"
	"github.com/grailbio/ischip-sim/rng"
	"github.com/grailbio/ischip-sim/writer"
)

// Status is the outcome of processing one chromosome or one cell,
// replacing the teacher's exception-based unwinding.
type Status int

const (
	// Continue means the chromosome still has work left.
	Continue Status = iota
	// EndOfChrom means every cell for this chromosome has been processed.
	EndOfChrom
	// ReadsBudgetReached means the shared reads budget tripped; Run then
	// processes no further chromosomes in this mode (later calls only mark
	// their chromosome written).
	ReadsBudgetReached
)

func (s Status) String() string {
	switch s {
	case EndOfChrom:
		return "end-of-chromosome"
	case ReadsBudgetReached:
		return "reads-budget-reached"
	default:
		return "continue"
	}
}

// Cutter is one worker's fragmentation engine. It owns its Random and MDA
// scratch buffer (spec.md §4.4 "State: its Random, MDA scratch, per-ground
// FragCnt") and borrows the run-wide Params, Context and writer.Clone.
type Cutter struct {
	params *distconf.Params
	ctx    *counters.Context
	clone  *writer.Clone
	budget int64 // this mode's share of the global reads budget

	rnd      *rng.Random
	splitter *mda.Splitter

	tid     int
	readSeq int64
}

// New returns a Cutter seeded from seed, reporting into ctx/clone and
// stopping once ctx's recorded total reaches budget.
func New(params *distconf.Params, ctx *counters.Context, clone *writer.Clone, seed uint64, tid int, budget int64) *Cutter {
	return &Cutter{
		params:   params,
		ctx:      ctx,
		clone:    clone,
		budget:   budget,
		rnd:      rng.New(seed),
		splitter: mda.NewSplitter(),
		tid:      tid,
	}
}

// Run processes one chromosome for cellCnt nominal cells, in either Test
// or Control mode (spec.md §4.4). Test mode runs the feature-driven pass
// followed by the whole-chromosome background tail pass; Control mode
// runs only the background tail pass, treating the whole chromosome as
// one background "feature".
func (c *Cutter) Run(chrom genome.ChromSize, ref *genome.Reference, features []genome.Feature, mode distconf.Mode, cellCnt int) (Status, error) {
	c.clone.SetChrom(chrom.ID)
	if c.ctx.TotalRecorded() >= c.budget {
		return ReadsBudgetReached, c.clone.WriteChrom()
	}

	cells := cellCnt
	if isAutosome(chrom.ID) {
		cells *= 2
	}
	def := chrom.DefinedRegion()
	meanLen := meanFragLen(c.params)

	if mode == distconf.Test {
		for cell := 0; cell < cells; cell++ {
			status, err := c.runFeaturePass(chrom, ref, features, def, meanLen)
			if err != nil {
				return Continue, err
			}
			if status == ReadsBudgetReached {
				return ReadsBudgetReached, c.clone.WriteChrom()
			}
		}
	}

	for cell := 0; cell < cells; cell++ {
		status, err := c.runBackgroundPass(chrom, ref, def, meanLen)
		if err != nil {
			return Continue, err
		}
		if status == ReadsBudgetReached {
			return ReadsBudgetReached, c.clone.WriteChrom()
		}
	}

	return EndOfChrom, c.clone.WriteChrom()
}

// runFeaturePass walks one cell's fragments from a jittered start position
// through the chromosome's template features in order, stopping once the
// feature list is exhausted (the remainder of the chromosome is covered by
// the background tail pass instead).
func (c *Cutter) runFeaturePass(chrom genome.ChromSize, ref *genome.Reference, features []genome.Feature, def genome.Region, meanLen int) (Status, error) {
	p := def.Start + int32(c.rnd.Range(meanLen))
	fi := 0
	chromCutoff := def.End - int32(c.params.ReadLen)

	for p < chromCutoff {
		for fi < len(features) && features[fi].Start < p {
			fi++
		}
		if fi >= len(features) {
			return Continue, nil
		}
		f := features[fi]

		nextP, status, err := c.processFragment(chrom, ref, p, chromCutoff, &f, false)
		if err != nil {
			return Continue, err
		}
		p = nextP
		if status == ReadsBudgetReached {
			return ReadsBudgetReached, nil
		}
	}
	return Continue, nil
}

// runBackgroundPass walks one cell across the whole chromosome using the
// defined region itself as the "feature" and forcing every fragment to
// the background ground (spec.md §4.4 step 4).
func (c *Cutter) runBackgroundPass(chrom genome.ChromSize, ref *genome.Reference, def genome.Region, meanLen int) (Status, error) {
	p := def.Start + int32(c.rnd.Range(meanLen))
	chromCutoff := def.End - int32(c.params.ReadLen)
	whole := genome.Feature{Region: def, Score: 1}

	for p < chromCutoff {
		nextP, status, err := c.processFragment(chrom, ref, p, chromCutoff, &whole, true)
		if err != nil {
			return Continue, err
		}
		p = nextP
		if status == ReadsBudgetReached {
			return ReadsBudgetReached, nil
		}
	}
	return Continue, nil
}

// processFragment runs steps 3a-3j of spec.md §4.4 for a single fragment
// starting at p, and returns the position the caller should resume from.
func (c *Cutter) processFragment(chrom genome.ChromSize, ref *genome.Reference, p, chromCutoff int32, f *genome.Feature, forceBG bool) (int32, Status, error) {
	// 3a. sample fragment length, clip to chromosome end.
	l := int32(c.rnd.Lognormal(c.params.LnMean, c.params.LnSigma))
	if l < 1 {
		l = 1
	}
	start, end := p, p+l
	if end > chromCutoff+int32(c.params.ReadLen) {
		end = chromCutoff + int32(c.params.ReadLen)
		l = end - start
	}
	nextP := end
	if nextP <= p {
		nextP = p + 1
	}

	// 3b. size-selection window.
	minL, maxL := int32(c.params.MinFragLen), int32(1<<30)
	if c.params.SizeSelectionEnabled() {
		lo, hi := c.rnd.SizeSelection(c.params.SSMean, c.params.SSSigma, c.params.ReadLen)
		minL, maxL = int32(lo), int32(hi)
	}

	// 3c. drop below the size-selection lower bound.
	if l < minL {
		return nextP, Continue, nil
	}

	// 3e. optional EXO trimming toward the feature boundaries.
	trimStart, trimEnd := start, end
	if c.params.ExoRate > 0 {
		trimStart, trimEnd = exoTrim(c.rnd, c.params.ExoRate, start, end, f.Start, f.End)
	}
	if trimEnd <= trimStart {
		return nextP, Continue, nil
	}

	// 3d. classify ground by post-trim overlap with the feature.
	ground := counters.BG
	inside := !forceBG && trimEnd >= f.Start && trimStart <= f.End
	if inside {
		ground = counters.FG
	}

	// 3f. flatten the feature edge's acceptance probability.
	if inside && c.params.FlatLen > 0 {
		uZone := edgeDistance(trimStart, trimEnd, *f)
		if !flattenAccept(c.rnd, c.params.FlatLen, uZone) {
			return nextP, Continue, nil
		}
	}

	// 3g. accept by feature score (uniform-score mode forces 1).
	score := 1.0
	if inside && !c.params.UniScore {
		score = f.Score
	}
	if !c.rnd.Bernoulli(score) {
		return nextP, Continue, nil
	}

	if l <= maxL {
		c.ctx.Frag[ground].AddSelected()
	}

	status, err := c.emit(chrom, ref, trimStart, trimEnd, maxL, ground)
	return nextP, status, err
}

// emit runs steps 3h-3j: per-sample loss, MDA splitting, PCR doubling and
// read emission, returning ReadsBudgetReached as soon as the shared
// recorded total trips the budget.
func (c *Cutter) emit(chrom genome.ChromSize, ref *genome.Reference, start, end, maxL int32, ground counters.Ground) (Status, error) {
	length := end - start
	if length < int32(c.params.ReadLen) {
		return Continue, nil
	}
	if !c.rnd.Bernoulli(c.ctx.Sample(ground)) {
		return Continue, nil
	}

	pieces := []mda.Piece{{Shift: 0, Length: length}}
	if c.params.MDA {
		pieces = c.splitter.Split(length, int32(c.params.MinFragLen), c.rnd)
	}

	copies := c.params.PCRCopies()
	for _, piece := range pieces {
		if piece.Length > maxL || piece.Length < int32(c.params.ReadLen) {
			continue
		}
		if !c.rnd.Bernoulli(c.ctx.AutoSample()) {
			continue
		}
		subStart, subEnd := start+piece.Shift, start+piece.Shift+piece.Length

		for rep := 0; rep < copies; rep++ {
			primer := rep == 0
			if err := c.emitReads(chrom, ref, subStart, subEnd, ground, primer); err != nil {
				return Continue, err
			}
			if primer {
				c.ctx.Frag[ground].AddRecordedPrimer()
			} else {
				c.ctx.Frag[ground].AddRecordedAmplified()
			}
			if c.ctx.TotalRecorded() >= c.budget {
				return ReadsBudgetReached, nil
			}
		}
	}
	return Continue, nil
}

// emitReads writes one (SE) or two (PE) reads for the fragment [start,end)
// to the writer clone, alternating forward/reverse orientation per
// spec.md §4.4h.
func (c *Cutter) emitReads(chrom genome.ChromSize, ref *genome.Reference, start, end int32, ground counters.Ground, primer bool) error {
	readLen := int32(c.params.ReadLen)
	reverse := c.readSeq%2 == 1
	c.readSeq++

	fwdSeq, err := ref.Get(chrom.ID, start, start+readLen)
	if err != nil {
		return err
	}
	revSeq, err := ref.Get(chrom.ID, end-readLen, end)
	if err != nil {
		return err
	}
	revSeq = genome.ReverseComplement(revSeq)

	name := fmt.Sprintf("sim.%d.%s.%d.%s", c.tid, chrom.ID, c.readSeq, ground)
	qual := strings.Repeat("I", int(readLen))

	if c.params.Seq == distconf.SE {
		seq, s, e := fwdSeq, start, start+readLen
		if reverse {
			seq, s, e = revSeq, end-readLen, end
		}
		c.clone.AddFrag(writer.Read{
			Name: name, Seq: seq, Qual: qual, Chrom: chrom.ID,
			Start: s, End: e, Reverse: reverse, Primer: primer,
		})
		return nil
	}

	fragLen := end - start
	c.clone.AddFrag(writer.Read{
		Name: name + "/1", Seq: fwdSeq, Qual: qual, Chrom: chrom.ID,
		Start: start, End: start + readLen, Reverse: false, Mate: 1, FragLen: fragLen, Primer: primer,
	})
	c.clone.AddFrag(writer.Read{
		Name: name + "/2", Seq: revSeq, Qual: qual, Chrom: chrom.ID,
		Start: end - readLen, End: end, Reverse: true, Mate: 2, FragLen: -fragLen, Primer: primer,
	})
	return nil
}

// exoTrim trims each strand independently toward the feature boundary by
// an exponential draw (spec.md §4.4e); the draw never overshoots the
// boundary itself.
func exoTrim(rnd *rng.Random, rate float64, start, end, fStart, fEnd int32) (int32, int32) {
	if start < fStart {
		d := int32(rnd.Exponential(rate))
		start += d
		if start > fStart {
			start = fStart
		}
	}
	if end > fEnd {
		d := int32(rnd.Exponential(rate))
		end -= d
		if end < fEnd {
			end = fEnd
		}
	}
	return start, end
}

// edgeDistance measures how far a fragment's nearer boundary still sits
// from the feature's edge after EXO trimming; a larger distance means the
// fragment boundary fell well outside the unstable zone.
func edgeDistance(start, end int32, f genome.Feature) int32 {
	startGap := start - f.Start
	if startGap < 0 {
		startGap = -startGap
	}
	endGap := end - f.End
	if endGap < 0 {
		endGap = -endGap
	}
	if startGap < endGap {
		return startGap
	}
	return endGap
}

// flattenAccept implements the unstable-edge acceptance gate: probability
// min(uZone,flatLen)/flatLen (spec.md §4.4f).
func flattenAccept(rnd *rng.Random, flatLen int, uZone int32) bool {
	p := float64(uZone)
	if p > float64(flatLen) {
		p = float64(flatLen)
	}
	return rnd.Bernoulli(p / float64(flatLen))
}

// meanFragLen estimates the expected fragment length used to jitter each
// cell's starting position (spec.md §4.4 step 2's "meanSSLen"): the
// size-selection mean when size selection is enabled, otherwise the
// lognormal distribution's mean.
func meanFragLen(p *distconf.Params) int {
	if p.SizeSelectionEnabled() {
		return int(p.SSMean)
	}
	mean := expMeanLognormal(p.LnMean, p.LnSigma)
	if mean < 1 {
		return 1
	}
	return mean
}

func expMeanLognormal(mu, sigma float64) int {
	return int(math.Exp(mu+sigma*sigma/2) + 0.5)
}

func isAutosome(chromID string) bool {
	name := strings.TrimPrefix(strings.TrimPrefix(chromID, "chr"), "Chr")
	switch strings.ToUpper(name) {
	case "X", "Y", "M", "MT":
		return false
	default:
		return true
	}
}
