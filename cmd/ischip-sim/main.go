// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
ischip-sim generates synthetic ChIP-seq sequencer output (FASTQ, BED, SAM,
BedGraph, WIG and length-distribution files) from a reference genome and an
optional binding-site template, mimicking a real ChIP and input/control
sequencing run.
*/

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"

	"github.com/grailbio/ischip-sim/distconf"
	"github.com/grailbio/ischip-sim/genome"
	"github.com/grailbio/ischip-sim/imitator"
	"github.com/grailbio/ischip-sim/writer"
)

var (
	refPath     = flag.String("ref", "", "Reference FASTA path (required)")
	bedPath     = flag.String("bed", "", "Binding-site template BED path; empty means background-only simulation")
	outPrefix   = flag.String("out", "ischip-sim", "Output path prefix")
	chromNames  = flag.String("chroms", "", "Comma-separated chromosome filter; empty means every chromosome")
	threads     = flag.Int("threads", 0, "Number of worker threads; 0 = runtime.NumCPU()")
	cellCnt     = flag.Int("cells", 1000000, "Nominal number of simulated cells")
	seed        = flag.Uint64("seed", 0, "Pseudo-random seed; 0 derives one from the wall clock")
	lnMean      = flag.Float64("ln-mean", 5.46, "Fragment-length lognormal mu")
	lnSigma     = flag.Float64("ln-sigma", 0.4, "Fragment-length lognormal sigma")
	ssMean      = flag.Float64("ss-mean", 0, "Size-selection mean; 0 disables size selection")
	ssSigma     = flag.Float64("ss-sigma", 0, "Size-selection sigma")
	readLen     = flag.Int("read-len", 36, "Emitted read length")
	minFragLen  = flag.Int("min-frag-len", 32, "Minimum fragment/sub-fragment length")
	pairedEnd   = flag.Bool("pe", false, "Emit paired-end reads instead of single-ended")
	mdaFlag     = flag.Bool("mda", false, "Enable multiple-displacement amplification splitting")
	pcrCycles   = flag.Int("pcr-cycles", 0, "Number of PCR doubling cycles")
	inflation   = flag.Float64("inflation-factor", 0, "Empirical PCR/MDA read-count inflation correction; 0 disables it")
	flatLen     = flag.Int("flat-len", 0, "Unstable binding-site edge width for the flattening acceptance gate")
	exoRate     = flag.Float64("e", 0, "EXO trimming exponential rate; 0 disables EXO trimming")
	uniScore    = flag.Bool("u", false, "Uniform-score mode: ignore per-feature scores, always accept at score 1")
	fgSample    = flag.Float64("fg", 1, "Foreground sample fraction")
	bgSample    = flag.Float64("bg", 1, "Background sample fraction")
	maxReads    = flag.Int64("rd-lim", 1_000_000, "Recorded-reads budget across all threads, applied to test and control separately")
	formats     = flag.String("formats", "fastq,bed,sam,bedgraph,wig,freq", "Comma-separated output formats to emit")
	cacheDir    = flag.String("cache-dir", ".", "Directory holding the average-fragment-length cache")
	debugFlag   = flag.Bool("i", false, "Enable verbose debug logging")
	statsFlag   = flag.Bool("stats", false, "Print per-partition chromosome assignment to stderr")
	gzOut       = flag.Bool("gz", false, "Gzip-compress every output file")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -ref genome.fa [-bed template.bed] [options]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if *refPath == "" {
		log.Fatalf("ischip-sim: -ref is required")
	}

	params := &distconf.Params{
		LnMean:          *lnMean,
		LnSigma:         *lnSigma,
		SSMean:          *ssMean,
		SSSigma:         *ssSigma,
		ReadLen:         *readLen,
		MinFragLen:      *minFragLen,
		Seq:             distconf.SE,
		MDA:             *mdaFlag,
		PCRCycles:       *pcrCycles,
		InflationFactor: *inflation,
		FlatLen:         *flatLen,
		ExoRate:         *exoRate,
		UniScore:        *uniScore,
		FG:              *fgSample,
		BG:              *bgSample,
		MaxReads:        *maxReads,
	}
	if *pairedEnd {
		params.Seq = distconf.PE
	}
	if err := params.Validate(); err != nil {
		log.Fatalf("ischip-sim: %v", err)
	}

	refFile, err := os.Open(*refPath)
	if err != nil {
		log.Fatalf("ischip-sim: opening reference: %v", err)
	}
	ref, err := genome.LoadReference(refFile)
	refFile.Close()
	if err != nil {
		log.Fatalf("ischip-sim: loading reference: %v", err)
	}

	features := map[string][]genome.Feature{}
	if *bedPath != "" {
		bedFile, err := os.Open(*bedPath)
		if err != nil {
			log.Fatalf("ischip-sim: opening template: %v", err)
		}
		features, err = genome.LoadFeatures(bedFile)
		bedFile.Close()
		if err != nil {
			log.Fatalf("ischip-sim: loading template: %v", err)
		}
	}

	threadCnt := *threads
	if threadCnt <= 0 {
		threadCnt = runtime.NumCPU()
	}

	var chromFilter []string
	if *chromNames != "" {
		chromFilter = strings.Split(*chromNames, ",")
	}

	cfg := imitator.Config{
		Params:     params,
		Reference:  ref,
		Features:   features,
		ThreadCnt:  threadCnt,
		CellCnt:    *cellCnt,
		ChromNames: chromFilter,
		CachePath:  params.CacheKey(),
		Seed:       *seed,
		CmdLine:    strings.Join(os.Args, " "),
		Debug:      *debugFlag,
	}
	if *cacheDir != "." {
		cfg.CachePath = *cacheDir + string(os.PathSeparator) + cfg.CachePath
	}

	enabled := map[string]bool{}
	for _, f := range strings.Split(*formats, ",") {
		enabled[strings.TrimSpace(f)] = true
	}

	treated := imitator.TreatedChromosomes(ref, chromFilter, features)
	if len(treated) == 0 {
		log.Fatalf("ischip-sim: no chromosomes selected for simulation")
	}

	testOut, testClosers, err := openFormats(*outPrefix, "test", enabled, params, treated, cfg.CmdLine, *gzOut)
	if err != nil {
		log.Fatalf("ischip-sim: %v", err)
	}
	controlOut, controlClosers, err := openFormats(*outPrefix, "control", enabled, params, treated, cfg.CmdLine, *gzOut)
	if err != nil {
		log.Fatalf("ischip-sim: %v", err)
	}
	defer closeAll(testClosers)
	defer closeAll(controlClosers)

	if *statsFlag {
		log.Printf("ischip-sim: %d threads, %d nominal cells, read length %d", threadCnt, *cellCnt, *readLen)
	}

	result, err := imitator.Run(cfg, imitator.Outputs{Test: testOut, Control: controlOut}, os.Stderr)
	if err != nil {
		log.Fatalf("ischip-sim: %v", err)
	}
	if *statsFlag {
		for tid, ids := range result.Partitions {
			log.Printf("thread %d: %s", tid, strings.Join(ids, ","))
		}
	}
	log.Debug.Printf("exiting")
}

func closeAll(closers []io.Closer) {
	// Reverse order: a gzip.Writer must flush its trailer before the
	// underlying *os.File it wraps is closed.
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].Close()
	}
}

// gzipFile closes its gzip.Writer before the backing file, so the trailer
// is flushed into the file rather than dropped.
type gzipFile struct {
	*gzip.Writer
	f *os.File
}

func (g *gzipFile) Close() error {
	if err := g.Writer.Close(); err != nil {
		g.f.Close()
		return err
	}
	return g.f.Close()
}

// openFormats opens one output file per enabled format under
// <prefix>.<label>.<ext> (gzip-compressed when gz is set), returning the
// configured writer.FormatWriter set and the io.Closer handles the caller
// must close, in order, on exit.
func openFormats(prefix, label string, enabled map[string]bool, params *distconf.Params, treated []genome.ChromSize, cmdLine string, gz bool) ([]writer.FormatWriter, []io.Closer, error) {
	var out []writer.FormatWriter
	var closers []io.Closer
	base := fmt.Sprintf("%s.%s", prefix, label)

	open := func(ext string) (io.WriteCloser, error) {
		name := fmt.Sprintf("%s.%s", base, ext)
		if gz {
			name += ".gz"
		}
		f, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		closers = append(closers, f)
		if !gz {
			return f, nil
		}
		gw := &gzipFile{Writer: gzip.NewWriter(f), f: f}
		closers = append(closers, gw.Writer)
		return gw, nil
	}

	if enabled["fastq"] {
		if params.Seq == distconf.PE {
			f1, err := open("1.fastq")
			if err != nil {
				return nil, nil, err
			}
			f2, err := open("2.fastq")
			if err != nil {
				return nil, nil, err
			}
			out = append(out, writer.NewFastqWriter(f1, f2))
		} else {
			f1, err := open("fastq")
			if err != nil {
				return nil, nil, err
			}
			out = append(out, writer.NewFastqWriter(f1, nil))
		}
	}
	if enabled["bed"] {
		f, err := open("bed")
		if err != nil {
			return nil, nil, err
		}
		out = append(out, writer.NewBedWriter(f))
	}
	if enabled["sam"] {
		f, err := open("sam")
		if err != nil {
			return nil, nil, err
		}
		sw, err := writer.NewSamWriter(f, treated, cmdLine, params.Seq == distconf.PE)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, sw)
	}
	if enabled["bedgraph"] {
		f, err := open("bedgraph")
		if err != nil {
			return nil, nil, err
		}
		out = append(out, writer.NewBedGraphWriter(f))
	}
	if enabled["wig"] {
		f, err := open("wig")
		if err != nil {
			return nil, nil, err
		}
		out = append(out, writer.NewWigWriter(f))
	}
	if enabled["freq"] {
		f, err := open("freq.tsv")
		if err != nil {
			return nil, nil, err
		}
		out = append(out, writer.NewFreqWriter(f))
	}
	return out, closers, nil
}
