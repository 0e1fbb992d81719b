package writer

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/grailbio/ischip-sim/genome"
)

// FreqWriter accumulates read- and fragment-length histograms across the
// whole run and writes them once, at Close, rather than per chromosome:
// spec.md §4.5 describes distribution files as a run-wide summary, not a
// per-chromosome artifact, so unlike the other format writers this one's
// WriteChromData call only folds counts into a shared accumulator instead
// of touching disk.
type FreqWriter struct {
	w        *bufio.Writer
	c        io.Closer
	readLen  map[int32]int64
	fragLen  map[int32]int64
}

// NewFreqWriter opens w for histogram output, written once at Close.
func NewFreqWriter(w io.WriteCloser) *FreqWriter {
	return &FreqWriter{
		w:       bufio.NewWriter(w),
		c:       w,
		readLen: make(map[int32]int64),
		fragLen: make(map[int32]int64),
	}
}

// WriteChromData folds chrom's reads into the running histograms.
func (fr *FreqWriter) WriteChromData(_ genome.ChromSize, data *ChromData) error {
	for _, r := range data.Reads {
		fr.readLen[r.End-r.Start]++
		fragLen := r.FragLen
		if fragLen < 0 {
			fragLen = -fragLen
		}
		if fragLen == 0 {
			fragLen = r.End - r.Start
		}
		fr.fragLen[fragLen]++
	}
	return nil
}

// Close writes the accumulated histograms and closes the underlying file.
func (fr *FreqWriter) Close() error {
	fmt.Fprintln(fr.w, "# length\treadCount\tfragCount")
	lens := make(map[int32]bool, len(fr.readLen)+len(fr.fragLen))
	for l := range fr.readLen {
		lens[l] = true
	}
	for l := range fr.fragLen {
		lens[l] = true
	}
	sorted := make([]int32, 0, len(lens))
	for l := range lens {
		sorted = append(sorted, l)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, l := range sorted {
		if _, err := fmt.Fprintf(fr.w, "%d\t%d\t%d\n", l, fr.readLen[l], fr.fragLen[l]); err != nil {
			return err
		}
	}
	if err := fr.w.Flush(); err != nil {
		return err
	}
	return fr.c.Close()
}
