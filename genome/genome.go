// Package genome provides the reference-genome, chrom-sizes, and
// binding-site-template readers that spec.md §1 treats as external
// collaborators. It is adapted from the teacher's
// encoding/fasta.newEagerUnindexed (in-memory FASTA loading) and
// interval.getTokens (whitespace tokenizing of BED-like lines), rewritten
// around this simulator's own Region/Feature/ChromSize types rather than
// the teacher's generic Fasta interface.
package genome

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Region is a half-open genomic interval [Start, End).
type Region struct {
	Start, End int32
}

// Len returns End-Start. A negative result indicates an invalid region
// (spec.md §3: "invalid if end<start").
func (r Region) Len() int32 {
	return r.End - r.Start
}

// Valid reports whether End >= Start.
func (r Region) Valid() bool {
	return r.End >= r.Start
}

// Feature is an immutable binding-site template entry: a region plus its
// acceptance score in [0,1].
type Feature struct {
	Region
	Score float64
}

// ChromSize describes one chromosome for the duration of a run.
type ChromSize struct {
	ID string
	// Len is the chromosome's real length, including any leading/trailing
	// gap regions.
	Len int32
	// DefinedLen is the length of the chromosome excluding gap regions at
	// either end (spec.md §3 "defined (non-gap) length").
	DefinedLen int32
	DefinedStart int32
	// Treated reports whether this chromosome was selected for simulation:
	// it is named by the chrom filter when one is given; otherwise a
	// template feature falls on it; with neither a filter nor any features,
	// every chromosome is treated (spec.md §4.6 step 1).
	Treated bool
}

// DefinedRegion returns the non-gap region of the chromosome.
func (c ChromSize) DefinedRegion() Region {
	return Region{Start: c.DefinedStart, End: c.DefinedStart + c.DefinedLen}
}

// ChromSet is the ordered collection of chromosomes for a run, in the
// genome order established by the reference (spec.md §4.6 step 2 / §8 S4:
// "numeric then lex").
type ChromSet struct {
	order []string
	byID  map[string]*ChromSize
}

// NewChromSet builds an empty set; chromosomes are added with Add in
// reference-file order and later reordered by SortGenomeOrder.
func NewChromSet() *ChromSet {
	return &ChromSet{byID: make(map[string]*ChromSize)}
}

// Add registers a chromosome. Order of Add calls is preserved until
// SortGenomeOrder is called.
func (cs *ChromSet) Add(c ChromSize) {
	if _, ok := cs.byID[c.ID]; ok {
		return
	}
	cc := c
	cs.byID[c.ID] = &cc
	cs.order = append(cs.order, c.ID)
}

// Get returns the chromosome by id, or nil if absent.
func (cs *ChromSet) Get(id string) *ChromSize {
	return cs.byID[id]
}

// Len returns the number of registered chromosomes.
func (cs *ChromSet) Len() int {
	return len(cs.order)
}

// SortGenomeOrder reorders chromosomes the way a reference genome normally
// lists them: numeric chromosome names ascending, followed by everything
// else lexically (spec.md §8 S4).
func (cs *ChromSet) SortGenomeOrder() {
	sort.SliceStable(cs.order, func(i, j int) bool {
		return chromLess(cs.order[i], cs.order[j])
	})
}

// Treated returns the Treated chromosomes in genome order.
func (cs *ChromSet) Treated() []ChromSize {
	out := make([]ChromSize, 0, len(cs.order))
	for _, id := range cs.order {
		c := cs.byID[id]
		if c.Treated {
			out = append(out, *c)
		}
	}
	return out
}

// MarkTreated sets the Treated flag on the named chromosomes; if names is
// empty, every chromosome with at least one feature (or, if features is
// entirely empty, every chromosome) is marked treated.
func (cs *ChromSet) MarkTreated(customFilter []string, featured map[string]bool) {
	filter := make(map[string]bool, len(customFilter))
	for _, n := range customFilter {
		filter[n] = true
	}
	for _, id := range cs.order {
		c := cs.byID[id]
		switch {
		case len(filter) > 0:
			c.Treated = filter[id]
		case len(featured) > 0:
			c.Treated = featured[id]
		default:
			c.Treated = true
		}
	}
}

func chromLess(a, b string) bool {
	na, oka := chromNumeric(a)
	nb, okb := chromNumeric(b)
	if oka && okb {
		return na < nb
	}
	if oka != okb {
		return oka // numeric names sort before non-numeric
	}
	return a < b
}

func chromNumeric(name string) (int, bool) {
	s := strings.TrimPrefix(name, "chr")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// LoadChromSizes reads a two-column "name<TAB>length" chrom-sizes file, the
// format emitted alongside most reference FASTA directories.
func LoadChromSizes(r io.Reader) (*ChromSet, error) {
	cs := NewChromSet()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	var tokens [2][]byte
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		n := getTokens(tokens[:], line)
		if n < 2 {
			return nil, errors.Errorf("genome: malformed chrom-sizes line %d", lineNo)
		}
		length, err := strconv.Atoi(string(tokens[1]))
		if err != nil {
			return nil, errors.Wrapf(err, "genome: chrom-sizes line %d", lineNo)
		}
		cs.Add(ChromSize{ID: string(tokens[0]), Len: int32(length), DefinedLen: int32(length)})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "genome: reading chrom-sizes")
	}
	cs.SortGenomeOrder()
	return cs, nil
}

// LoadFeatures reads a BED-like binding-site template: chrom, start, end,
// and an optional score column (defaulting to 1 when absent, matching
// "uniform-score mode" semantics for template files without a score
// column). Features are returned grouped by chromosome and sorted by
// start position, per spec.md §3 "read once, immutable".
func LoadFeatures(r io.Reader) (map[string][]Feature, error) {
	out := make(map[string][]Feature)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	var tokens [4][]byte
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		n := getTokens(tokens[:], line)
		if n < 3 {
			return nil, errors.Errorf("genome: malformed feature line %d", lineNo)
		}
		start, err := strconv.Atoi(string(tokens[1]))
		if err != nil {
			return nil, errors.Wrapf(err, "genome: feature line %d start", lineNo)
		}
		end, err := strconv.Atoi(string(tokens[2]))
		if err != nil {
			return nil, errors.Wrapf(err, "genome: feature line %d end", lineNo)
		}
		score := 1.0
		if n >= 4 {
			score, err = strconv.ParseFloat(string(tokens[3]), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "genome: feature line %d score", lineNo)
			}
		}
		chrom := string(tokens[0])
		f := Feature{Region: Region{Start: int32(start), End: int32(end)}, Score: score}
		if !f.Valid() {
			return nil, errors.Errorf("genome: feature line %d has end < start", lineNo)
		}
		out[chrom] = append(out[chrom], f)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "genome: reading features")
	}
	for chrom := range out {
		sort.Slice(out[chrom], func(i, j int) bool {
			return out[chrom][i].Start < out[chrom][j].Start
		})
	}
	return out, nil
}

// getTokens identifies up to len(tokens) whitespace-delimited tokens from
// curLine, returning the count found. Adapted from
// interval.getTokens: any byte <= ' ' is a delimiter, which is enough for
// BED/chrom-sizes columns without pulling in a general tokenizer.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}
