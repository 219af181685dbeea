package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker prints a single, carriage-return refreshed status line
// while a known number of chunks is processed.
type ProgressTracker struct {
	mu sync.Mutex

	w          io.Writer
	total      int
	every      int
	done       int
	nextReport int
	start      time.Time
}

// NewProgressTracker creates a tracker that reports every reportInterval chunks.
func NewProgressTracker(w io.Writer, total, reportInterval int) *ProgressTracker {
	return &ProgressTracker{
		w:     w,
		total: total,
		every: max(reportInterval, 1),
	}
}

// Start resets the counters and the clock. Add is ignored until Start is called.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.start = time.Now()
	p.done = 0
	p.nextReport = p.every
}

// Add records n more processed chunks, never exceeding the total.
func (p *ProgressTracker) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.start.IsZero() {
		return
	}
	p.done = min(p.done+n, p.total)
	if p.done >= p.nextReport {
		p.print()
		for p.nextReport <= p.done {
			p.nextReport += p.every
		}
	}
}

// Current returns the number of processed chunks.
func (p *ProgressTracker) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish prints the final status line and ends it.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.start.IsZero() {
		return
	}
	p.print()
	fmt.Fprintln(p.w)
}

// Elapsed returns the time since Start, or zero before it.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.start.IsZero() {
		return 0
	}
	return time.Since(p.start)
}

// print must be called with mu held.
func (p *ProgressTracker) print() {
	elapsed := time.Since(p.start)
	rate := float64(p.done) / elapsed.Seconds()

	pct := 100.0
	if p.total > 0 {
		pct = float64(p.done) * 100 / float64(p.total)
	}

	eta := "-"
	if rate > 0 && p.done < p.total {
		remaining := time.Duration(float64(p.total-p.done) / rate * float64(time.Second))
		eta = remaining.Round(time.Second).String()
	}

	fmt.Fprintf(p.w, "\rProgress: %d/%d chunks (%.1f%%) - %.1f chunks/s, eta %s",
		p.done, p.total, pct, rate, eta)
}
