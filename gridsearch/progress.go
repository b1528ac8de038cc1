package gridsearch

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"

	"github.com/RyanBlaney/sonido-sync/logging"
)

// progress counts finished tests and logs a line once updates go quiet for
// the configured interval. A burst of updates produces a single line.
type progress struct {
	total    int64
	done     atomic.Int64
	mu       sync.Mutex
	finished bool
	started  time.Time
	logger   logging.Logger
	debounce func(f func())
}

func newProgress(total int, interval time.Duration, logger logging.Logger) *progress {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &progress{
		total:    int64(total),
		started:  time.Now(),
		logger:   logger,
		debounce: debounce.New(interval),
	}
}

func (p *progress) add(n int) {
	if n <= 0 {
		return
	}
	p.done.Add(int64(n))
	p.debounce(p.report)
}

func (p *progress) report() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.log()
}

// finish logs the final count and silences any pending debounced report.
func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	p.log()
}

func (p *progress) log() {
	done := p.done.Load()
	percent := 100.0
	if p.total > 0 {
		percent = float64(done) / float64(p.total) * 100
	}
	p.logger.Info("progress", logging.Fields{
		"done":            done,
		"total":           p.total,
		"percent":         roundTo(percent, 2),
		"elapsed_minutes": roundTo(time.Since(p.started).Minutes(), 2),
	})
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.started)
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
