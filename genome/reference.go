package genome

import (
	"bufio"
	"strings"

	"github.com/pkg/errors"
)

const bufferInitSize = 300 * 1024 * 1024

// Reference holds every sequence from one reference FASTA stream in
// memory, keyed by chromosome name. Adapted from
// encoding/fasta.newEagerUnindexed: this simulator always reads whole
// chromosomes (it never needs the teacher's indexed-random-access path),
// so the index/offset machinery was dropped in the rewrite.
type Reference struct {
	seqs map[string]string
}

// LoadReference reads FASTA-formatted sequence data (">name" header lines
// followed by sequence lines) from r.
func LoadReference(r interface {
	Read(p []byte) (int, error)
}) (*Reference, error) {
	ref := &Reference{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var name string
	var seq strings.Builder
	flush := func() {
		if name != "" {
			ref.seqs[name] = seq.String()
			seq.Reset()
		}
	}
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flush()
			name = strings.Split(line[1:], " ")[0]
			continue
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "genome: reading reference FASTA")
	}
	flush()
	return ref, nil
}

// Get returns the [start,end) substring of the named chromosome.
func (r *Reference) Get(chrom string, start, end int32) (string, error) {
	s, ok := r.seqs[chrom]
	if !ok {
		return "", errors.Errorf("genome: unknown chromosome %q", chrom)
	}
	if end < start || start < 0 || int(end) > len(s) {
		return "", errors.Errorf("genome: invalid range [%d,%d) for %q of length %d", start, end, chrom, len(s))
	}
	return s[start:end], nil
}

// ChromSizes derives a ChromSet from the loaded sequences, using their
// actual lengths. Leading/trailing runs of 'N' are excluded from
// DefinedLen/DefinedStart, matching spec.md §3's "defined (non-gap)
// length".
func (r *Reference) ChromSizes() *ChromSet {
	cs := NewChromSet()
	for name, seq := range r.seqs {
		start, end := definedBounds(seq)
		cs.Add(ChromSize{
			ID:           name,
			Len:          int32(len(seq)),
			DefinedStart: int32(start),
			DefinedLen:   int32(end - start),
		})
	}
	cs.SortGenomeOrder()
	return cs
}

func definedBounds(seq string) (start, end int) {
	n := len(seq)
	for start = 0; start < n; start++ {
		if c := seq[start]; c != 'N' && c != 'n' {
			break
		}
	}
	for end = n; end > start; end-- {
		if c := seq[end-1]; c != 'N' && c != 'n' {
			break
		}
	}
	return start, end
}

var revComp8Table = [256]byte{}

func init() {
	for i := range revComp8Table {
		revComp8Table[i] = 'N'
	}
	revComp8Table['A'], revComp8Table['a'] = 'T', 'T'
	revComp8Table['C'], revComp8Table['c'] = 'G', 'G'
	revComp8Table['G'], revComp8Table['g'] = 'C', 'C'
	revComp8Table['T'], revComp8Table['t'] = 'A', 'A'
}

// ReverseComplement returns the reverse complement of an ASCII nucleotide
// sequence, mapping anything other than A/C/G/T (case-insensitively) to
// 'N'. Adapted from biosimd.ReverseComp8Inplace, reproduced here as a
// plain, non-SIMD, non-build-tagged routine since this simulator's hot
// loop is fragment sampling, not base-level throughput.
func ReverseComplement(seq string) string {
	n := len(seq)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = revComp8Table[seq[i]]
	}
	return string(out)
}
