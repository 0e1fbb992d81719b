package writer

import (
	"bufio"
	"fmt"
	"io"

	"github.com/grailbio/ischip-sim/genome"
)

// BedGraphWriter emits the read-pileup coverage map as a UCSC BedGraph
// track: a single declaration line, then one line per piecewise-constant
// segment, reconstructed from covmap.Coverage (spec.md §4.2, §6).
type BedGraphWriter struct {
	w    *bufio.Writer
	c    io.Closer
	wrote bool
}

// NewBedGraphWriter opens w for buffered BedGraph output.
func NewBedGraphWriter(w io.WriteCloser) *BedGraphWriter {
	return &BedGraphWriter{w: bufio.NewWriter(w), c: w}
}

// WriteChromData writes data.Coverage's segments for chrom.
func (bg *BedGraphWriter) WriteChromData(chrom genome.ChromSize, data *ChromData) error {
	if !bg.wrote {
		if _, err := fmt.Fprintln(bg.w, "track type=bedGraph name=ischip-sim description=\"simulated coverage\""); err != nil {
			return err
		}
		bg.wrote = true
	}
	var werr error
	data.Coverage.Segments(func(s, e int32, v uint32) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(bg.w, "%s\t%d\t%d\t%d\n", chrom.ID, s, e, v)
	})
	return werr
}

// Close flushes and closes the underlying file.
func (bg *BedGraphWriter) Close() error {
	if err := bg.w.Flush(); err != nil {
		return err
	}
	return bg.c.Close()
}
