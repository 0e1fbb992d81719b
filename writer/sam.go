package writer

import (
	"bufio"
	"fmt"
	"io"

	"github.com/grailbio/ischip-sim/genome"
)

// SAM FLAG bits used by SamWriter, named per the SAM specification.
const (
	flagPaired      = 0x1
	flagProperPair  = 0x2
	flagReverse     = 0x10
	flagMateReverse = 0x20
	flagFirstInPair = 0x40
	flagSecondInPair = 0x80
)

// SamWriter emits alignment records in SAM format: an @HD/@SQ/@PG header
// written once at construction, followed by one (SE) or two (PE, written
// consecutively as a mate pair) records per read. CIGAR is always a plain
// match string since the simulator never introduces indels.
type SamWriter struct {
	w      *bufio.Writer
	c      io.Closer
	paired bool
}

// NewSamWriter opens w, writes the header for chroms, and returns a writer
// ready for WriteChromData calls in the same order as chroms.
func NewSamWriter(w io.WriteCloser, chroms []genome.ChromSize, cmdLine string, paired bool) (*SamWriter, error) {
	sw := &SamWriter{w: bufio.NewWriter(w), c: w, paired: paired}
	fmt.Fprintf(sw.w, "@HD\tVN:1.0\tSO:unsorted\n")
	for _, c := range chroms {
		fmt.Fprintf(sw.w, "@SQ\tSN:%s\tLN:%d\n", c.ID, c.Len)
	}
	fmt.Fprintf(sw.w, "@PG\tID:ischip-sim\tPN:ischip-sim\tCL:%s\n", cmdLine)
	if err := sw.w.Flush(); err != nil {
		return nil, err
	}
	return sw, nil
}

func cigar(r Read) string {
	return fmt.Sprintf("%dM", r.End-r.Start)
}

// WriteChromData writes one SAM record per read, pairing up consecutive
// mate-1/mate-2 entries when paired is set.
func (sw *SamWriter) WriteChromData(chrom genome.ChromSize, data *ChromData) error {
	reads := data.Reads
	for i := 0; i < len(reads); i++ {
		r := reads[i]
		if !sw.paired || r.Mate == 0 {
			if err := sw.writeRecord(r); err != nil {
				return err
			}
			continue
		}
		// Mate-pair records are emitted back to back by the cutter.
		if r.Mate == 1 && i+1 < len(reads) && reads[i+1].Mate == 2 {
			mate := reads[i+1]
			if err := sw.writePair(r, mate); err != nil {
				return err
			}
			i++
		} else if r.Mate == 2 && i > 0 && reads[i-1].Mate == 1 {
			continue // already written by the mate-1 branch above
		} else {
			if err := sw.writeRecord(r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (sw *SamWriter) writePair(r1, r2 Read) error {
	flag1 := flagPaired | flagProperPair | flagFirstInPair
	flag2 := flagPaired | flagProperPair | flagSecondInPair
	if r1.Reverse {
		flag1 |= flagReverse
		flag2 |= flagMateReverse
	}
	if r2.Reverse {
		flag2 |= flagReverse
		flag1 |= flagMateReverse
	}
	if _, err := fmt.Fprintf(sw.w, "%s\t%d\t%s\t%d\t255\t%s\t=\t%d\t%d\t%s\t%s\n",
		r1.Name, flag1, r1.Chrom, r1.Start+1, cigar(r1), r2.Start+1, r1.FragLen, r1.Seq, r1.Qual); err != nil {
		return err
	}
	_, err := fmt.Fprintf(sw.w, "%s\t%d\t%s\t%d\t255\t%s\t=\t%d\t%d\t%s\t%s\n",
		r2.Name, flag2, r2.Chrom, r2.Start+1, cigar(r2), r1.Start+1, r2.FragLen, r2.Seq, r2.Qual)
	return err
}

func (sw *SamWriter) writeRecord(r Read) error {
	flag := 0
	if r.Reverse {
		flag |= flagReverse
	}
	_, err := fmt.Fprintf(sw.w, "%s\t%d\t%s\t%d\t255\t%s\t*\t0\t0\t%s\t%s\n",
		r.Name, flag, r.Chrom, r.Start+1, cigar(r), r.Seq, r.Qual)
	return err
}

// Close flushes and closes the underlying file.
func (sw *SamWriter) Close() error {
	if err := sw.w.Flush(); err != nil {
		return err
	}
	return sw.c.Close()
}
