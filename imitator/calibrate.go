package imitator

import (
	"github.com/grailbio/ischip-sim/avglen"
	"github.com/grailbio/ischip-sim/distconf"
	"github.com/grailbio/ischip-sim/genome"
	"github.com/grailbio/ischip-sim/mda"
	"github.com/grailbio/ischip-sim/rng"
)

const trialSamples = 20000

// runningSumCap bounds the trial pass's running-length accumulators; a
// pathological distribution configuration (e.g. an enormous LnMean) could
// otherwise drive the sum toward float64 overflow. Crossing it trips
// spec.md §7's Capacity-error path rather than letting the accumulator
// silently go non-finite.
const runningSumCap = 1e15

// calibrate implements spec.md §4.6 step 3: look up the average-length
// cache for the current read length; if missing, run a no-write trial
// sampling pass to estimate the selected- and recorded-fragment average
// lengths (and, if MDA is enabled, the post-split average), store the
// result, then compute AutoSample against the reads budget.
func calibrate(cfg Config, cache *avglen.Cache, treated []genome.ChromSize) (float64, error) {
	rec, ok := cache.Lookup(cfg.Params.ReadLen)
	needMda := cfg.Params.MDA && !rec.HaveMda
	if !ok || needMda {
		trialRnd := rng.New(cfg.Seed ^ 0x5151)
		selAvg, recAvg, mdaAvg := trialAverages(cfg.Params, trialRnd, cache, cfg.Debug)
		newRec := avglen.Record{ReadLen: cfg.Params.ReadLen, SelectedAvr: selAvg, RecordedAvr: recAvg}
		if cfg.Params.MDA {
			newRec.MdaAvr = mdaAvg
			newRec.HaveMda = true
		}
		cache.Store(newRec)
		rec = newRec
	}

	lrec := rec.RecordedAvr
	if cfg.Params.MDA && rec.HaveMda {
		lrec = rec.MdaAvr
	}
	if lrec <= 0 {
		lrec = 1
	}
	countFactor := float64(cfg.CellCnt) / lrec

	var estimated float64
	peMult := float64(cfg.Params.Seq.Multiplier())
	for _, chrom := range treated {
		length := float64(chrom.DefinedLen)
		estimated += cfg.Params.Sample(true) * length * countFactor * peMult
		estimated += cfg.Params.Sample(false) * length * countFactor * peMult
	}
	if cfg.Params.PCRCycles > 0 {
		estimated *= float64(cfg.Params.PCRCopies())
	}
	if cfg.Params.InflationFactor > 0 {
		estimated *= cfg.Params.InflationFactor
	}

	if estimated > float64(cfg.Params.MaxReads) {
		return float64(cfg.Params.MaxReads) / estimated, nil
	}
	return 1, nil
}

// trialAverages draws trialSamples fragment lengths directly from the
// configured distributions (bypassing the genome and feature template
// entirely, since only the marginal length statistics matter here) and
// returns the average accepted fragment length, the average recorded
// length absent MDA, and the average post-MDA-split piece length.
func trialAverages(p *distconf.Params, rnd *rng.Random, cache *avglen.Cache, debug bool) (selAvg, recAvg, mdaAvg float64) {
	var selSum, mdaSum float64
	var selCount, mdaCount int64
	splitter := mda.NewSplitter()

	for i := 0; i < trialSamples; i++ {
		l := rnd.Lognormal(p.LnMean, p.LnSigma)
		minL := float64(p.MinFragLen)
		maxL := 1e18
		if p.SizeSelectionEnabled() {
			lo, hi := rnd.SizeSelection(p.SSMean, p.SSSigma, p.ReadLen)
			minL, maxL = float64(lo), float64(hi)
		}
		if l < minL || l > maxL {
			continue
		}
		if selSum+l > runningSumCap {
			cache.MarkOverflow(debug)
			break
		}
		selSum += l
		selCount++

		if p.MDA {
			pieces := splitter.Split(int32(l), int32(p.MinFragLen), rnd)
			for _, piece := range pieces {
				if float64(piece.Length) < float64(p.ReadLen) {
					continue
				}
				if mdaSum+float64(piece.Length) > runningSumCap {
					cache.MarkOverflow(debug)
					break
				}
				mdaSum += float64(piece.Length)
				mdaCount++
			}
		}
	}

	if selCount > 0 {
		selAvg = selSum / float64(selCount)
	}
	recAvg = selAvg
	if mdaCount > 0 {
		mdaAvg = mdaSum / float64(mdaCount)
	}
	return selAvg, recAvg, mdaAvg
}
