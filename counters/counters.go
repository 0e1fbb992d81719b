// Package counters implements the thread-safe foreground/background
// fragment counters and the console totals view described in spec.md
// §4.8. Updates happen from many ChromCutter goroutines concurrently, so
// every mutation goes through sync/atomic rather than a mutex, matching
// spec.md §5's "Global per-mode FragCnt counters: updated by atomic
// add/compare-swap only".
package counters

import (
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
)

// Ground distinguishes foreground (binding-site-overlapping) from
// background fragments.
type Ground int

const (
	// FG is the foreground ground.
	FG Ground = iota
	// BG is the background ground.
	BG
	numGrounds
)

func (g Ground) String() string {
	if g == FG {
		return "FG"
	}
	return "BG"
}

// FragCnt is one thread's {selected, recorded_primer, recorded_amplified}
// triple for a single ground, per spec.md §3. All fields are updated with
// atomic operations so a FragCnt can be safely aggregated across threads
// without a lock.
type FragCnt struct {
	selected          int64
	recordedPrimer    int64
	recordedAmplified int64
}

// AddSelected increments the post-filter selected-fragment count; this is
// statistics-only and never affects the reads-budget cutoff (spec.md
// §4.4j).
func (f *FragCnt) AddSelected() {
	atomic.AddInt64(&f.selected, 1)
}

// AddRecordedPrimer increments the recorded-primer count.
func (f *FragCnt) AddRecordedPrimer() {
	atomic.AddInt64(&f.recordedPrimer, 1)
}

// AddRecordedAmplified increments the recorded-amplified count.
func (f *FragCnt) AddRecordedAmplified() {
	atomic.AddInt64(&f.recordedAmplified, 1)
}

// Recorded returns recordedPrimer+recordedAmplified, the quantity compared
// against the reads budget (spec.md §3, §8 property 4).
func (f *FragCnt) Recorded() int64 {
	return atomic.LoadInt64(&f.recordedPrimer) + atomic.LoadInt64(&f.recordedAmplified)
}

// Selected returns the selected-fragment count.
func (f *FragCnt) Selected() int64 {
	return atomic.LoadInt64(&f.selected)
}

// Snapshot is an immutable point-in-time read of a FragCnt, used for
// reporting.
type Snapshot struct {
	Selected, RecordedPrimer, RecordedAmplified int64
}

// Snapshot returns the current values.
func (f *FragCnt) Snapshot() Snapshot {
	return Snapshot{
		Selected:          atomic.LoadInt64(&f.selected),
		RecordedPrimer:    atomic.LoadInt64(&f.recordedPrimer),
		RecordedAmplified: atomic.LoadInt64(&f.recordedAmplified),
	}
}

// Context is the process-wide aggregate for one generation mode (Test or
// Control): the nominal cell count, the per-ground sample fraction, and
// the per-ground FragCnt totals, per spec.md §3. AutoSample is computed
// once before workers start and is read-only thereafter (spec.md §3
// "Auto-sample ... computed once ... and then read-only"), so it needs no
// synchronization once workers are running; it is still stored behind
// atomic load/store so the race detector does not flag the one
// write-then-many-reads handoff at startup.
type Context struct {
	CellCnt int

	sampleBits     [numGrounds]uint64 // float64 bits, set once at init
	autoSampleBits uint64

	Frag [numGrounds]FragCnt
}

// NewContext builds a Context with the given cell count and per-ground
// sample fractions.
func NewContext(cellCnt int, fg, bg float64) *Context {
	c := &Context{CellCnt: cellCnt}
	c.sampleBits[FG] = floatBits(fg)
	c.sampleBits[BG] = floatBits(bg)
	c.SetAutoSample(1)
	return c
}

// Sample returns the user-specified sample fraction for ground g.
func (c *Context) Sample(g Ground) float64 {
	return floatFromBits(c.sampleBits[g])
}

// AutoSample returns the current global down-scaling factor.
func (c *Context) AutoSample() float64 {
	return floatFromBits(atomic.LoadUint64(&c.autoSampleBits))
}

// SetAutoSample sets the global down-scaling factor; called exactly once,
// before any ChromCutter goroutine starts (spec.md §3).
func (c *Context) SetAutoSample(v float64) {
	atomic.StoreUint64(&c.autoSampleBits, floatBits(v))
}

// TotalRecorded returns the sum of recorded reads across both grounds.
func (c *Context) TotalRecorded() int64 {
	return c.Frag[FG].Recorded() + c.Frag[BG].Recorded()
}

func floatBits(f float64) uint64     { return math.Float64bits(f) }
func floatFromBits(b uint64) float64 { return math.Float64frombits(b) }

// View renders a formatted console table of per-mode, per-ground totals
// with auto-computed column widths (spec.md §4.8), guarded by the View's
// own mutex so multi-thread progress lines interleave cleanly (spec.md §5
// "Console stdout: protected by a named mutex").
type View struct {
	mu sync.Mutex
	w  io.Writer
}

// NewView returns a View writing to w.
func NewView(w io.Writer) *View {
	return &View{w: w}
}

// Row is one line of the totals table.
type Row struct {
	Label                                     string
	Selected, RecordedPrimer, RecordedAmplified int64
}

// PrintTotals prints rows as an aligned table, recomputing column widths
// from the data rather than using fixed widths.
func (v *View) PrintTotals(title string, rows []Row) {
	v.mu.Lock()
	defer v.mu.Unlock()

	labelW := len("Ground")
	numW := len("Recorded")
	for _, r := range rows {
		if len(r.Label) > labelW {
			labelW = len(r.Label)
		}
		for _, n := range []int64{r.Selected, r.RecordedPrimer, r.RecordedAmplified} {
			if w := len(fmt.Sprintf("%d", n)); w > numW {
				numW = w
			}
		}
	}
	fmt.Fprintf(v.w, "%s\n", title)
	fmt.Fprintf(v.w, "%-*s  %*s  %*s  %*s\n", labelW, "Ground", numW, "Selected", numW, "Primer", numW, "Amplified")
	for _, r := range rows {
		fmt.Fprintf(v.w, "%-*s  %*d  %*d  %*d\n", labelW, r.Label, numW, r.Selected, numW, r.RecordedPrimer, numW, r.RecordedAmplified)
	}
}
