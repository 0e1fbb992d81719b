package writer

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/grailbio/ischip-sim/genome"
)

// FastqWriter emits reads in FASTQ format, one file for single-ended runs
// and two (mate 1 / mate 2) for paired-end runs, adapted from the
// teacher's encoding/fastq writer: four lines per record, '@' name line,
// '+' separator, no line wrapping.
type FastqWriter struct {
	w1, w2 *bufio.Writer
	c1, c2 io.Closer
	paired bool
}

// NewFastqWriter opens w1 (and, if paired, w2) for buffered FASTQ output.
func NewFastqWriter(w1 io.WriteCloser, w2 io.WriteCloser) *FastqWriter {
	fw := &FastqWriter{
		w1:     bufio.NewWriter(w1),
		c1:     w1,
		paired: w2 != nil,
	}
	if w2 != nil {
		fw.w2 = bufio.NewWriter(w2)
		fw.c2 = w2
	}
	return fw
}

func writeFastqRecord(w *bufio.Writer, r Read) error {
	if _, err := w.WriteString("@"); err != nil {
		return err
	}
	if _, err := w.WriteString(r.Name); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	if _, err := w.WriteString(r.Seq); err != nil {
		return err
	}
	if _, err := w.WriteString("\n+\n"); err != nil {
		return err
	}
	if _, err := w.WriteString(r.Qual); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// WriteChromData writes chrom's reads, splitting mate 1 and mate 2 across
// files for paired-end runs.
func (fw *FastqWriter) WriteChromData(_ genome.ChromSize, data *ChromData) error {
	for _, r := range data.Reads {
		switch {
		case !fw.paired || r.Mate != 2:
			if err := writeFastqRecord(fw.w1, r); err != nil {
				return errors.Wrap(err, "fastq: writing mate 1")
			}
		default:
			if err := writeFastqRecord(fw.w2, r); err != nil {
				return errors.Wrap(err, "fastq: writing mate 2")
			}
		}
	}
	return nil
}

// Close flushes and closes the underlying file(s).
func (fw *FastqWriter) Close() error {
	if err := fw.w1.Flush(); err != nil {
		return err
	}
	if err := fw.c1.Close(); err != nil {
		return err
	}
	if fw.w2 != nil {
		if err := fw.w2.Flush(); err != nil {
			return err
		}
		return fw.c2.Close()
	}
	return nil
}
