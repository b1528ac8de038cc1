package testgen

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-sync/logging"
)

// Config controls which part of each MIDI file is rendered and how.
type Config struct {
	Start     float64   `json:"start"` // seconds
	End       float64   `json:"end"`   // seconds
	JittersMS []float64 `json:"jitters_ms"`
}

// DefaultConfig renders ten seconds starting at 10s with jitters of 0 to 90 ms.
func DefaultConfig() *Config {
	jitters := make([]float64, 0, 10)
	for ms := 0; ms < 100; ms += 10 {
		jitters = append(jitters, float64(ms))
	}
	return &Config{Start: 10, End: 20, JittersMS: jitters}
}

// Validate checks the window and jitters
func (c *Config) Validate() error {
	if c.Start < 0 || c.End <= c.Start {
		return fmt.Errorf("invalid window [%gs, %gs]", c.Start, c.End)
	}
	if len(c.JittersMS) == 0 {
		return errors.New("at least one jitter is required")
	}
	for _, j := range c.JittersMS {
		if j < 0 {
			return fmt.Errorf("jitter must not be negative: %g", j)
		}
	}
	return nil
}

// FileName is the name of the rendering of the index-th channel of the
// pair at the given jitter, e.g. "1-50ms.wav".
func FileName(index int, jitterMS float64) string {
	return fmt.Sprintf("%d-%sms.wav", index, strconv.FormatFloat(jitterMS, 'g', -1, 64))
}

// Generator renders channel-pair fixtures from MIDI files.
type Generator struct {
	config   *Config
	renderer Renderer
	src      rand.Source
	logger   logging.Logger
}

// NewGenerator creates a generator. src seeds the jitter and may be nil to
// use the global source.
func NewGenerator(config *Config, renderer Renderer, src rand.Source, logger logging.Logger) (*Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Generator{config: config, renderer: renderer, src: src, logger: logger}, nil
}

// Generate renders the best channel pair of one MIDI file into outDir at
// every configured jitter and returns the written paths.
func (g *Generator) Generate(ctx context.Context, midiPath, outDir string) ([]string, error) {
	src, err := Load(midiPath)
	if err != nil {
		return nil, err
	}
	if src.TempoCount() > 1 {
		g.logger.Warn("multiple tempi found, using the first", logging.Fields{
			"file": midiPath,
			"bpm":  src.BPM(),
		})
	}

	pair, err := src.BestChannels(g.config.Start, g.config.End)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	for index, channel := range pair {
		for _, jitterMS := range g.config.JittersMS {
			if err := ctx.Err(); err != nil {
				return written, err
			}

			wavPath := filepath.Join(outDir, FileName(index, jitterMS))
			excerpt := Excerpt{Channel: channel, Start: g.config.Start, End: g.config.End, JitterMS: jitterMS}
			if err := g.renderExcerpt(ctx, src, excerpt, wavPath); err != nil {
				return written, fmt.Errorf("render %s: %w", filepath.Base(wavPath), err)
			}
			written = append(written, wavPath)
		}
	}
	return written, nil
}

func (g *Generator) renderExcerpt(ctx context.Context, src *Source, e Excerpt, wavPath string) error {
	tmp, err := os.CreateTemp("", "excerpt-*.mid")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := src.WriteExcerpt(tmp, e, g.src); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return g.renderer.Render(ctx, tmp.Name(), wavPath)
}

// BatchSummary describes a finished batch
type BatchSummary struct {
	Sources int      `json:"sources"`
	Skipped int      `json:"skipped"`
	Files   []string `json:"files"`
}

// Batch renders every .mid file under midiDir into its own directory of
// outDir, named after the file. Sources that fail are logged and skipped
// and their directories removed.
func (g *Generator) Batch(ctx context.Context, midiDir, outDir string) (*BatchSummary, error) {
	files, err := findMIDIFiles(midiDir)
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{Sources: len(files)}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		dir := filepath.Join(outDir, name)
		logger := g.logger.WithFields(logging.Fields{"source": name})

		written, err := g.Generate(ctx, file, dir)
		summary.Files = append(summary.Files, written...)
		if err != nil {
			logger.Warn("skipping source: " + err.Error())
			summary.Skipped++
		}
		if len(written) == 0 {
			removeIfEmpty(dir)
			continue
		}
		logger.Info("rendered source", logging.Fields{"files": len(written)})
	}
	return summary, nil
}

func findMIDIFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".mid", ".midi":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find midi files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		os.Remove(dir)
	}
}
