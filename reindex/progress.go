package reindex

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress prints a single updating progress line while fragments are re-embedded.
type Progress struct {
	mu       sync.Mutex
	out      io.Writer
	total    int
	done     int
	every    int
	reported int
	started  time.Time
	running  bool
}

// NewProgress creates a progress line for total fragments that is redrawn
// every time at least every more fragments have completed.
func NewProgress(out io.Writer, total, every int) *Progress {
	if every < 1 {
		every = 1
	}
	return &Progress{out: out, total: total, every: every}
}

// Start resets the counters and the clock.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = time.Now()
	p.running = true
	p.done = 0
	p.reported = 0
}

// Add records n more completed fragments.
func (p *Progress) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.done = min(p.done+n, p.total)
	if p.done-p.reported >= p.every {
		p.draw()
		p.reported = p.done
	}
}

// Done returns the number of completed fragments.
func (p *Progress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish draws the final line and ends it with a newline.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.draw()
	fmt.Fprintln(p.out)
	p.running = false
}

// Elapsed returns the time since Start.
func (p *Progress) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started.IsZero() {
		return 0
	}
	return time.Since(p.started)
}

// draw must be called with the lock held.
func (p *Progress) draw() {
	pct := 100.0
	if p.total > 0 {
		pct = float64(p.done) / float64(p.total) * 100
	}
	rate := 0.0
	if secs := time.Since(p.started).Seconds(); secs > 0 {
		rate = float64(p.done) / secs
	}
	fmt.Fprintf(p.out, "\rReindexed %d/%d fragments (%.1f%%) at %.1f fragments/s", p.done, p.total, pct, rate)
}
