package writer

import (
	"bufio"
	"fmt"
	"io"

	"github.com/grailbio/ischip-sim/genome"
)

// BedWriter emits one BED6 line per read: chrom, start, end, name, score,
// strand. Score is fixed at 0 since per-read mapping confidence has no
// analogue in this simulator; a real aligner's BAM would carry MAPQ here.
type BedWriter struct {
	w *bufio.Writer
	c io.Closer
}

// NewBedWriter opens w for buffered BED output.
func NewBedWriter(w io.WriteCloser) *BedWriter {
	return &BedWriter{w: bufio.NewWriter(w), c: w}
}

// WriteChromData writes one BED line per read in data.Reads.
func (bw *BedWriter) WriteChromData(chrom genome.ChromSize, data *ChromData) error {
	for _, r := range data.Reads {
		strand := "+"
		if r.Reverse {
			strand = "-"
		}
		if _, err := fmt.Fprintf(bw.w, "%s\t%d\t%d\t%s\t0\t%s\n", chrom.ID, r.Start, r.End, r.Name, strand); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the underlying file.
func (bw *BedWriter) Close() error {
	if err := bw.w.Flush(); err != nil {
		return err
	}
	return bw.c.Close()
}
