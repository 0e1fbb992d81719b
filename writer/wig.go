package writer

import (
	"bufio"
	"fmt"
	"io"

	"github.com/grailbio/ischip-sim/genome"
)

// WigWriter emits the read-pileup coverage map as a variable-step WIG
// track: one "variableStep chrom=... span=N" declaration per segment,
// followed by its start position and value (spec.md §6's WIG contract:
// "emit declaration then (pos,value) per entry").
type WigWriter struct {
	w *bufio.Writer
	c io.Closer
}

// NewWigWriter opens w for buffered WIG output.
func NewWigWriter(w io.WriteCloser) *WigWriter {
	return &WigWriter{w: bufio.NewWriter(w), c: w}
}

// WriteChromData writes data.Coverage's segments for chrom.
func (ww *WigWriter) WriteChromData(chrom genome.ChromSize, data *ChromData) error {
	var werr error
	data.Coverage.Segments(func(s, e int32, v uint32) {
		if werr != nil {
			return
		}
		if _, werr = fmt.Fprintf(ww.w, "variableStep chrom=%s span=%d\n", chrom.ID, e-s); werr != nil {
			return
		}
		_, werr = fmt.Fprintf(ww.w, "%d\t%d\n", s+1, v)
	})
	return werr
}

// Close flushes and closes the underlying file.
func (ww *WigWriter) Close() error {
	if err := ww.w.Flush(); err != nil {
		return err
	}
	return ww.c.Close()
}
