// Package gridsearch sweeps onset detection parameters over a dataset of
// synchronized and unsynchronized recordings and reports which combinations
// separate the two best.
package gridsearch

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-sync/algorithms/filters"
	"github.com/RyanBlaney/sonido-sync/algorithms/onset"
	"github.com/RyanBlaney/sonido-sync/algorithms/spectral"
	"github.com/RyanBlaney/sonido-sync/algorithms/syncscore"
	"github.com/RyanBlaney/sonido-sync/algorithms/windowing"
	"github.com/RyanBlaney/sonido-sync/logging"
)

const epsilon = 1e-10

// RunSummary describes a finished sweep
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Directories int           `json:"directories"`
	Tests       int           `json:"tests"`   // scores recorded
	Skipped     int           `json:"skipped"` // combinations that failed and were logged
	Reused      int           `json:"reused"`  // spectrogram sets derived by subsampling
	Elapsed     time.Duration `json:"elapsed"`
	Table       *ResultTable  `json:"-"`
}

// Searcher runs the parameter sweep
type Searcher struct {
	config *Config
	logger logging.Logger
	stft   *spectral.STFT
}

// NewSearcher validates the config and prepares a searcher. A nil logger
// falls back to the global logger.
func NewSearcher(config *Config, logger logging.Logger) (*Searcher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Searcher{
		config: config,
		logger: logger,
		stft:   spectral.NewSTFT(),
	}, nil
}

// Run sweeps the grid over every source directory under root.
func Run(ctx context.Context, root string, config *Config, logger logging.Logger) (*RunSummary, error) {
	s, err := NewSearcher(config, logger)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, root)
}

type unit struct {
	index  int
	dir    string
	name   string
	factor int
}

type unitStats struct {
	tests   int
	skipped int
	reused  int
}

// Run sweeps the grid over every source directory under root. Work is split
// into (directory, downsampling factor) units on a bounded pool; each unit
// fills its own table and the partial tables are merged in unit order.
// Cancelling ctx stops before the next unit and returns the partial summary.
func (s *Searcher) Run(ctx context.Context, root string) (*RunSummary, error) {
	dirs, err := DiscoverDirectories(root)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := s.logger.WithFields(logging.Fields{"run_id": runID})

	cfg := s.config
	total := len(dirs) * cfg.TestsPerDirectory()
	logger.Info("starting grid search", logging.Fields{
		"root":        root,
		"directories": len(dirs),
		"total_tests": total,
	})

	paths := make([]string, len(dirs))
	var units []unit
	for i, name := range dirs {
		paths[i] = filepath.Join(root, name)
		for _, factor := range cfg.DownsamplingFactors {
			units = append(units, unit{
				index:  len(units),
				dir:    paths[i],
				name:   name,
				factor: factor,
			})
		}
	}

	cache := newSourceCache(cfg.FileNames, paths, len(cfg.DownsamplingFactors))
	prog := newProgress(total, cfg.ProgressInterval, logger)

	partials := make([]*ResultTable, len(units))
	stats := make([]unitStats, len(units))

	jobs := make(chan unit, len(units))
	var wg sync.WaitGroup
	for range s.workerCount(len(units)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				if ctx.Err() != nil {
					cache.release(u.dir)
					continue
				}
				table := NewResultTable()
				stats[u.index] = s.processUnit(ctx, u, cache, prog, table, logger)
				partials[u.index] = table
			}
		}()
	}
	for _, u := range units {
		jobs <- u
	}
	close(jobs)
	wg.Wait()
	prog.finish()

	summary := &RunSummary{
		RunID:       runID,
		Directories: len(dirs),
		Table:       NewResultTable(),
		Elapsed:     prog.elapsed(),
	}
	for i, partial := range partials {
		summary.Table.Merge(partial)
		summary.Tests += stats[i].tests
		summary.Skipped += stats[i].skipped
		summary.Reused += stats[i].reused
	}

	logger.Info("grid search finished", logging.Fields{
		"tests":           summary.Tests,
		"skipped":         summary.Skipped,
		"reused":          summary.Reused,
		"tuples":          summary.Table.Len(),
		"elapsed_minutes": roundTo(summary.Elapsed.Minutes(), 2),
	})

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("grid search interrupted: %w", err)
	}
	return summary, nil
}

func (s *Searcher) workerCount(units int) int {
	workers := s.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return max(1, min(workers, units))
}

func (s *Searcher) processUnit(ctx context.Context, u unit, cache *sourceCache, prog *progress, table *ResultTable, logger logging.Logger) unitStats {
	cfg := s.config
	logger = logger.WithFields(logging.Fields{"dir": u.name, "downsampling": u.factor})
	perUnit := cfg.TestsPerDirectory() / len(cfg.DownsamplingFactors)

	var st unitStats
	skip := func(n int) {
		st.skipped += n
		prog.add(n)
	}

	set, err := cache.get(u.dir)
	cache.release(u.dir)
	if err != nil {
		logger.Warn("skipping directory: " + err.Error())
		skip(perUnit)
		return st
	}

	signals, err := decimateAll(set.signals, u.factor)
	if err != nil {
		logger.Warn("skipping downsampling factor: " + err.Error())
		skip(perUnit)
		return st
	}
	rate := set.sampleRate / u.factor

	perScale := len(cfg.ODFs) * len(cfg.Offsets)
	scales := cfg.descendingHopScales()

	for _, frameSize := range cfg.FrameSizes {
		for _, window := range cfg.Windows {
			chain := &hopChain{
				stft:       s.stft,
				signals:    signals,
				frameSize:  frameSize,
				window:     window,
				sampleRate: rate,
			}
			for _, scale := range scales {
				if ctx.Err() != nil {
					return st
				}

				specs, reused, err := chain.next(scale)
				if err != nil {
					logger.Warn("skipping spectrograms: "+err.Error(), logging.Fields{
						"frame_size": frameSize,
						"hop_scale":  scale,
						"window":     window.String(),
					})
					skip(perScale)
					continue
				}
				if reused {
					st.reused++
				}

				for _, odf := range cfg.ODFs {
					base := Tuple{
						ODF:          odf,
						Downsampling: u.factor,
						FrameSize:    frameSize,
						HopScale:     scale,
						Window:       window,
					}
					scored, skipped := s.scoreODF(specs, base, rate, table, logger)
					st.tests += scored
					st.skipped += skipped
					prog.add(scored + skipped)
				}
			}
		}
	}

	return st
}

// scoreODF computes one onset detection function for all four recordings
// and records a log-ratio per offset.
func (s *Searcher) scoreODF(specs [4]*spectral.Spectrogram, base Tuple, rate int, table *ResultTable, logger logging.Logger) (scored, skipped int) {
	var odfs [4][]float64
	for i, spec := range specs {
		values, err := onset.Compute(spec, base.ODF, rate)
		if err != nil {
			logger.Warn("skipping onset detection function: "+err.Error(), logging.Fields{
				"odf": base.ODF.String(),
			})
			return 0, len(s.config.Offsets)
		}
		odfs[i] = values
	}

	for _, offset := range s.config.Offsets {
		t := base
		t.Offset = offset

		ratio, err := logRatio(odfs, offset)
		if err != nil {
			logger.Warn("skipping score: "+err.Error(), logging.Fields{"tuple": t.String()})
			skipped++
			continue
		}
		table.Append(t, ratio)
		scored++
	}
	return scored, skipped
}

// logRatio compares how well the synchronized pair correlates against the
// unsynchronized pair at the same offset.
func logRatio(odfs [4][]float64, offset int) (float64, error) {
	synced, err := syncscore.Score(odfs[0], odfs[1], offset)
	if err != nil {
		return 0, fmt.Errorf("synchronized pair: %w", err)
	}
	unsynced, err := syncscore.Score(odfs[2], odfs[3], offset)
	if err != nil {
		return 0, fmt.Errorf("unsynchronized pair: %w", err)
	}
	return math.Log(synced/(unsynced+epsilon) + epsilon), nil
}

func decimateAll(signals [4][]float64, factor int) ([4][]float64, error) {
	var out [4][]float64
	decimator, err := filters.NewDecimator(factor)
	if err != nil {
		return out, err
	}
	for i, signal := range signals {
		out[i] = decimator.Process(signal)
	}
	return out, nil
}

// hopChain yields the four spectrograms for successive hop scales of one
// (frame size, window) group. A scale that divides the previous one is
// derived by keeping every n-th frame instead of recomputing the STFT.
type hopChain struct {
	stft       *spectral.STFT
	signals    [4][]float64
	frameSize  int
	window     windowing.Kind
	sampleRate int

	prevScale int
	prev      [4]*spectral.Spectrogram
}

func (c *hopChain) next(scale int) (specs [4]*spectral.Spectrogram, reused bool, err error) {
	if c.prevScale > 0 && scale < c.prevScale && c.prevScale%scale == 0 {
		stride := c.prevScale / scale
		for i, prev := range c.prev {
			if specs[i], err = prev.Subsample(stride); err != nil {
				c.prevScale = 0
				return specs, false, err
			}
		}
		reused = true
	} else {
		hop := c.frameSize / scale
		for i, signal := range c.signals {
			specs[i], err = c.stft.Compute(signal, c.frameSize, hop, c.sampleRate, c.window)
			if err != nil {
				c.prevScale = 0
				return specs, false, fmt.Errorf("recording %d: %w", i, err)
			}
		}
	}

	c.prevScale = scale
	c.prev = specs
	return specs, reused, nil
}
