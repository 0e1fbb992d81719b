// Package avglen implements the average-fragment-length cache (spec.md
// §4.3, §6): a small tab-separated text artifact, keyed by distribution
// parameters, that lets repeated runs at identical distribution settings
// skip the calibration trial pass described in spec.md §4.6 step 3.
//
// Following the Design Notes' "flush_on_exit" guidance, the cache is never
// written implicitly on garbage collection/Close; callers must call
// Flush explicitly once calibration has finished.
package avglen

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Record is one cached row: the selected-fragment average, the
// recorded-fragment average without MDA, and (optionally) with MDA, for a
// given read length.
type Record struct {
	ReadLen      int
	SelectedAvr  float64
	RecordedAvr  float64
	MdaAvr       float64
	HaveMda      bool
}

// Cache holds the in-memory view of one distribution-parameter-keyed cache
// file. It is read once at init (single-threaded) and written at most once,
// right after calibration and before any worker starts: no locking is
// needed.
type Cache struct {
	path    string
	records map[int]Record
	dirty   bool
	// overflowed disables further accumulation once a running-average
	// accumulator would overflow (spec.md §7 "Capacity error"); it does not
	// abort the run.
	overflowed bool
}

// Open reads the cache file at path if it exists; a missing file is not an
// error; it simply means every lookup will miss. A ".gz"-suffixed path is
// read transparently through gzip, matching pileup.LoadFa's gzip-aware
// file opening.
func Open(path string) (*Cache, error) {
	c := &Cache{path: path, records: make(map[int]Record)}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, errors.Wrapf(err, "avglen: opening cache %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "avglen: opening gzip cache %s", path)
		}
		defer gz.Close()
		r = gz
	}
	if err := c.parse(r); err != nil {
		return nil, errors.Wrapf(err, "avglen: parsing cache %s", path)
	}
	return c, nil
}

func (c *Cache) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if strings.HasPrefix(line, "#") {
				continue
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return fmt.Errorf("avglen: malformed cache line %q", line)
		}
		readLen, err := strconv.Atoi(fields[0])
		if err != nil {
			return err
		}
		selAvr, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return err
		}
		recAvr, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return err
		}
		rec := Record{ReadLen: readLen, SelectedAvr: selAvr, RecordedAvr: recAvr}
		if len(fields) >= 4 && fields[3] != "" {
			mdaAvr, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return err
			}
			rec.MdaAvr = mdaAvr
			rec.HaveMda = true
		}
		c.records[readLen] = rec
	}
	return scanner.Err()
}

// Lookup returns the cached record for readLen, if present.
func (c *Cache) Lookup(readLen int) (Record, bool) {
	rec, ok := c.records[readLen]
	return rec, ok
}

// Store records rec, marking the cache dirty so Flush will rewrite the
// file. It is a no-op if a prior Capacity error has disabled accumulation
// (spec.md §7).
func (c *Cache) Store(rec Record) {
	if c.overflowed {
		return
	}
	if existing, ok := c.records[rec.ReadLen]; ok && existing == rec {
		return
	}
	c.records[rec.ReadLen] = rec
	c.dirty = true
}

// MarkOverflow disables further Store calls; it models spec.md §7's
// running-average "Capacity error", which disables accumulation for that
// stat without aborting the run. debugVerbose controls whether the event
// is logged (only under -i debug per spec.md §7).
func (c *Cache) MarkOverflow(debugVerbose bool) {
	c.overflowed = true
	if debugVerbose {
		log.Debug.Printf("avglen: running-average accumulator saturated; disabling further updates")
	}
}

// Flush writes the cache back to disk if, and only if, parameters changed
// (spec.md §6: "Written only if parameters changed"). It is the explicit
// replacement for a destructor-driven write. A ".gz"-suffixed path is
// written transparently through gzip, mirroring Open's transparent read.
func (c *Cache) Flush() error {
	if !c.dirty {
		return nil
	}
	f, err := os.Create(c.path)
	if err != nil {
		return errors.Wrapf(err, "avglen: writing cache %s", c.path)
	}
	defer f.Close()

	var w *bufio.Writer
	var gz *gzip.Writer
	if fileio.DetermineType(c.path) == fileio.Gzip {
		gz = gzip.NewWriter(f)
		w = bufio.NewWriter(gz)
	} else {
		w = bufio.NewWriter(f)
	}
	fmt.Fprintln(w, "# readLen\tselectedAvr\trecordedAvr\tmdaAvr")
	readLens := make([]int, 0, len(c.records))
	for rl := range c.records {
		readLens = append(readLens, rl)
	}
	sort.Ints(readLens)
	for _, rl := range readLens {
		rec := c.records[rl]
		mdaField := ""
		if rec.HaveMda {
			mdaField = strconv.FormatFloat(rec.MdaAvr, 'g', -1, 64)
		}
		fmt.Fprintf(w, "%d\t%g\t%g\t%s\n", rec.ReadLen, rec.SelectedAvr, rec.RecordedAvr, mdaField)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "avglen: flushing cache %s", c.path)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return errors.Wrapf(err, "avglen: closing gzip cache %s", c.path)
		}
	}
	c.dirty = false
	return nil
}
