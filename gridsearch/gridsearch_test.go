package gridsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-sync/algorithms/onset"
	"github.com/RyanBlaney/sonido-sync/algorithms/spectral"
	"github.com/RyanBlaney/sonido-sync/algorithms/windowing"
	"github.com/RyanBlaney/sonido-sync/audio"
	"github.com/RyanBlaney/sonido-sync/logging"
)

const fixtureRate = 8000

// burstTrack places short decaying noise bursts at the given onset times.
func burstTrack(rng *rand.Rand, seconds float64, onsets []float64) []float64 {
	samples := make([]float64, int(seconds*fixtureRate))
	burst := fixtureRate / 50
	for _, at := range onsets {
		start := int(at * fixtureRate)
		for i := 0; i < burst && start+i < len(samples); i++ {
			decay := math.Exp(-float64(i) / float64(burst/4))
			samples[start+i] += 0.8 * decay * (2*rng.Float64() - 1)
		}
	}
	return samples
}

func writeSourceDir(t *testing.T, root, name string, rates [4]int) {
	t.Helper()

	rng := rand.New(rand.NewPCG(uint64(len(name)), 7))
	onsets := []float64{0.1, 0.35, 0.6, 0.85, 1.1, 1.35, 1.6}
	shifted := make([]float64, len(onsets))
	for i, o := range onsets {
		shifted[i] = o + 0.05
	}

	tracks := [4][]float64{
		burstTrack(rng, 2, onsets),
		burstTrack(rng, 2, onsets),
		burstTrack(rng, 2, onsets),
		burstTrack(rng, 2, shifted),
	}
	names := DefaultConfig().FileNames
	for i, track := range tracks {
		path := filepath.Join(root, name, names[i])
		require.NoError(t, audio.WriteMonoWAV(path, track, rates[i]))
	}
}

func smallConfig() *Config {
	cfg := DefaultConfig()
	cfg.ODFs = []onset.Algorithm{onset.HFCMasri, onset.SpectralDistance}
	cfg.DownsamplingFactors = []int{1, 2}
	cfg.FrameSizes = []int{256}
	cfg.HopSizeScales = []int{1, 4, 2}
	cfg.Windows = []windowing.Kind{windowing.Hann}
	cfg.Offsets = []int{0, 1}
	cfg.Workers = 3
	return cfg
}

var uniformRates = [4]int{fixtureRate, fixtureRate, fixtureRate, fixtureRate}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := smallConfig()
	cfg.Offsets = nil
	assert.ErrorIs(t, cfg.Validate(), ErrEmptyDimension)

	cfg = smallConfig()
	cfg.ODFs = []onset.Algorithm{}
	assert.ErrorIs(t, cfg.Validate(), ErrEmptyDimension)

	cfg = smallConfig()
	cfg.FrameSizes = []int{250}
	cfg.HopSizeScales = []int{4}
	assert.Error(t, cfg.Validate())

	cfg = smallConfig()
	cfg.DownsamplingFactors = []int{0}
	assert.Error(t, cfg.Validate())

	cfg = smallConfig()
	cfg.Offsets = []int{1, 1}
	assert.Error(t, cfg.Validate())

	cfg = smallConfig()
	cfg.FileNames[2] = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.json")
	body := `{"odfs": ["complex", "melDifference"], "windows": ["hanning"], "offsets": [3]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []onset.Algorithm{onset.ComplexDomain, onset.MelDifference}, cfg.ODFs)
	assert.Equal(t, []windowing.Kind{windowing.Hann}, cfg.Windows)
	assert.Equal(t, []int{3}, cfg.Offsets)
	assert.Equal(t, DefaultConfig().FrameSizes, cfg.FrameSizes)

	require.NoError(t, os.WriteFile(path, []byte(`{"odfs": ["nope"]}`), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigProgressInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.json")
	load := func(body string) (*Config, error) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return LoadConfig(path)
	}

	cfg, err := load(`{"progress_interval": "2s", "offsets": [7]}`)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.ProgressInterval)
	assert.Equal(t, []int{7}, cfg.Offsets)

	cfg, err = load(`{"progress_interval": 1500000}`)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Microsecond, cfg.ProgressInterval)

	cfg, err = load(`{"workers": 2}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ProgressInterval, cfg.ProgressInterval)

	_, err = load(`{"progress_interval": "soon"}`)
	assert.Error(t, err)

	data, err := json.Marshal(smallConfig())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"progress_interval":"250ms"`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, smallConfig(), cfg)
}

func TestDescendingHopScales(t *testing.T) {
	cfg := smallConfig()
	assert.Equal(t, []int{4, 2, 1}, cfg.descendingHopScales())
	assert.Equal(t, []int{1, 4, 2}, cfg.HopSizeScales, "config must not be reordered")
}

func TestTupleRecordRoundTrip(t *testing.T) {
	tuple := Tuple{ODF: onset.KLDivergence, Downsampling: 4, FrameSize: 2048, HopScale: 8, Window: windowing.Hamming, Offset: 10}
	record := tuple.Record()
	assert.Equal(t, []string{"KLDivergence", "4", "2048", "8", "hamming", "10"}, record)
	assert.Equal(t, 256, tuple.HopSize())

	parsed, err := ParseTuple(record)
	require.NoError(t, err)
	assert.Equal(t, tuple, parsed)

	_, err = ParseTuple(record[:3])
	assert.Error(t, err)
	_, err = ParseTuple([]string{"HFCMasri", "x", "1", "1", "ones", "1"})
	assert.Error(t, err)
}

func TestResultTableOrderAndMerge(t *testing.T) {
	a := Tuple{ODF: onset.HFCMasri, Offset: 1}
	b := Tuple{ODF: onset.HFCJensen, Offset: 1}
	c := Tuple{ODF: onset.PhaseDeviation, Offset: 2}

	first := NewResultTable()
	first.Append(b, 1)
	first.Append(a, 2)
	first.Append(b, 3)

	second := NewResultTable()
	second.Append(c, 4)
	second.Append(a, 5)

	first.Merge(second)
	assert.Equal(t, []Tuple{b, a, c}, first.Keys())
	assert.Equal(t, []float64{1, 3}, first.Values(b))
	assert.Equal(t, []float64{2, 5}, first.Values(a))
	assert.Equal(t, []float64{4}, first.Values(c))
	assert.Equal(t, 3, first.Len())

	values := first.Values(a)
	values[0] = 100
	assert.Equal(t, 2.0, first.Values(a)[0], "values must be copied")
}

func TestResultTableConcurrentAppend(t *testing.T) {
	table := NewResultTable()
	key := Tuple{ODF: onset.ComplexDomain}

	done := make(chan struct{})
	for i := range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := range 100 {
				table.Append(key, float64(i*100+j))
			}
		}()
	}
	for range 8 {
		<-done
	}
	assert.Len(t, table.Values(key), 800)
}

func TestDiscoverDirectories(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b-song", "a-song", ".hidden"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644))

	dirs, err := DiscoverDirectories(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-song", "b-song"}, dirs)

	_, err = DiscoverDirectories(t.TempDir())
	assert.ErrorIs(t, err, ErrNoDirectories)
}

func TestHopChainMatchesDirectSTFT(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	signal := burstTrack(rng, 1, []float64{0.1, 0.4, 0.7})
	signals := [4][]float64{signal, signal, signal, signal}

	stft := spectral.NewSTFT()
	chain := &hopChain{stft: stft, signals: signals, frameSize: 256, window: windowing.Hamming, sampleRate: fixtureRate}

	_, reused, err := chain.next(8)
	require.NoError(t, err)
	assert.False(t, reused)

	derived, reused, err := chain.next(2)
	require.NoError(t, err)
	assert.True(t, reused)

	direct, err := stft.Compute(signal, 256, 128, fixtureRate, windowing.Hamming)
	require.NoError(t, err)
	require.Equal(t, direct.NumFrames(), derived[0].NumFrames())
	assert.Equal(t, 128, derived[0].HopSize)
	for f := range direct.Frames {
		for k := range direct.Frames[f] {
			assert.InDelta(t, real(direct.Frames[f][k]), real(derived[0].Frames[f][k]), 1e-9)
			assert.InDelta(t, imag(direct.Frames[f][k]), imag(derived[0].Frames[f][k]), 1e-9)
		}
	}

	// 3 does not divide 2
	_, reused, err = chain.next(3)
	require.NoError(t, err)
	assert.False(t, reused)
}

func TestHopChainResetsAfterFailure(t *testing.T) {
	short := make([]float64, 100)
	chain := &hopChain{
		stft:       spectral.NewSTFT(),
		signals:    [4][]float64{short, short, short, short},
		frameSize:  256,
		window:     windowing.Hann,
		sampleRate: fixtureRate,
	}
	_, _, err := chain.next(4)
	assert.Error(t, err)
	assert.Equal(t, 0, chain.prevScale)
}

func TestRunEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeSourceDir(t, root, "song-a", uniformRates)
	writeSourceDir(t, root, "song-b", uniformRates)

	var stdout, stderr bytes.Buffer
	logger := logging.NewDefaultLoggerWithWriters(&stdout, &stderr)

	summary, err := Run(context.Background(), root, smallConfig(), logger)
	require.NoError(t, err)

	// 2 dirs x 2 odfs x 2 factors x 3 hop scales x 2 offsets
	assert.Equal(t, 2, summary.Directories)
	assert.Equal(t, 48, summary.Tests)
	assert.Equal(t, 0, summary.Skipped)
	// scales 4 -> 2 -> 1 reuse twice per (directory, factor)
	assert.Equal(t, 8, summary.Reused)
	assert.NotEmpty(t, summary.RunID)

	table := summary.Table
	require.Equal(t, 24, table.Len())
	first := table.Keys()[0]
	assert.Equal(t, Tuple{ODF: onset.HFCMasri, Downsampling: 1, FrameSize: 256, HopScale: 4, Window: windowing.Hann, Offset: 0}, first)
	for _, k := range table.Keys() {
		values := table.Values(k)
		assert.Len(t, values, 2, "one score per directory for %s", k)
		for _, v := range values {
			assert.False(t, math.IsNaN(v), "score for %s", k)
		}
	}

	// The synchronized pair shares its onsets, so at offset zero it should
	// beat the shifted pair.
	hfc := table.Values(first)
	assert.Greater(t, hfc[0], 0.0)

	assert.Contains(t, stdout.String(), "run_id="+summary.RunID)
	assert.Contains(t, stdout.String(), "grid search finished")
	assert.Empty(t, stderr.String())
}

func TestRunScoresAtDecimatedRate(t *testing.T) {
	root := t.TempDir()
	writeSourceDir(t, root, "song", uniformRates)

	const factor = 4
	cfg := DefaultConfig()
	cfg.ODFs = []onset.Algorithm{onset.MelDifference}
	cfg.DownsamplingFactors = []int{factor}
	cfg.FrameSizes = []int{256}
	cfg.HopSizeScales = []int{2}
	cfg.Windows = []windowing.Kind{windowing.Hann}
	cfg.Offsets = []int{1}

	summary, err := Run(context.Background(), root, cfg, &logging.NoOpLogger{})
	require.NoError(t, err)
	key := Tuple{ODF: onset.MelDifference, Downsampling: factor, FrameSize: 256, HopScale: 2, Window: windowing.Hann, Offset: 1}
	recorded := summary.Table.Values(key)
	require.Len(t, recorded, 1)

	var raw [4][]float64
	for i, name := range cfg.FileNames {
		w, err := audio.ReadWAVMono(filepath.Join(root, "song", name))
		require.NoError(t, err)
		raw[i] = w.Samples
	}
	signals, err := decimateAll(raw, factor)
	require.NoError(t, err)

	scoreAt := func(rate int) float64 {
		var odfs [4][]float64
		for i, signal := range signals {
			spec, err := spectral.NewSTFT().Compute(signal, 256, 128, rate, windowing.Hann)
			require.NoError(t, err)
			odfs[i], err = onset.Compute(spec, onset.MelDifference, rate)
			require.NoError(t, err)
		}
		ratio, err := logRatio(odfs, 1)
		require.NoError(t, err)
		return ratio
	}

	assert.InDelta(t, scoreAt(fixtureRate/factor), recorded[0], 1e-12)
	assert.NotEqual(t, scoreAt(fixtureRate), recorded[0])
}

func TestRunIsDeterministicAcrossWorkerCounts(t *testing.T) {
	root := t.TempDir()
	writeSourceDir(t, root, "one", uniformRates)
	writeSourceDir(t, root, "two", uniformRates)

	cfg := smallConfig()
	cfg.Workers = 1
	serial, err := Run(context.Background(), root, cfg, &logging.NoOpLogger{})
	require.NoError(t, err)

	cfg = smallConfig()
	cfg.Workers = 4
	parallel, err := Run(context.Background(), root, cfg, &logging.NoOpLogger{})
	require.NoError(t, err)

	assert.Equal(t, serial.Table.Keys(), parallel.Table.Keys())
	for _, k := range serial.Table.Keys() {
		assert.Equal(t, serial.Table.Values(k), parallel.Table.Values(k))
	}
}

func TestRunSkipsBrokenDirectories(t *testing.T) {
	root := t.TempDir()
	writeSourceDir(t, root, "good", uniformRates)
	writeSourceDir(t, root, "mismatched", [4]int{fixtureRate, fixtureRate, fixtureRate, 2 * fixtureRate})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	var stdout, stderr bytes.Buffer
	logger := logging.NewDefaultLoggerWithWriters(&stdout, &stderr)

	summary, err := Run(context.Background(), root, smallConfig(), logger)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Directories)
	assert.Equal(t, 24, summary.Tests)
	assert.Equal(t, 48, summary.Skipped)
	for _, k := range summary.Table.Keys() {
		assert.Len(t, summary.Table.Values(k), 1)
	}
	assert.Contains(t, stderr.String(), "sample rate mismatch")
	assert.Contains(t, stderr.String(), "dir=empty")
}

func TestRunSkipsFramesLongerThanSignal(t *testing.T) {
	root := t.TempDir()
	writeSourceDir(t, root, "song", uniformRates)

	cfg := smallConfig()
	cfg.FrameSizes = []int{256, 32768}
	summary, err := Run(context.Background(), root, cfg, &logging.NoOpLogger{})
	require.NoError(t, err)
	assert.Equal(t, 24, summary.Tests)
	assert.Equal(t, 24, summary.Skipped)
}

func TestRunErrors(t *testing.T) {
	_, err := Run(context.Background(), t.TempDir(), smallConfig(), &logging.NoOpLogger{})
	assert.ErrorIs(t, err, ErrNoDirectories)

	cfg := smallConfig()
	cfg.Windows = nil
	_, err = Run(context.Background(), t.TempDir(), cfg, &logging.NoOpLogger{})
	assert.ErrorIs(t, err, ErrEmptyDimension)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	root := t.TempDir()
	writeSourceDir(t, root, "song", uniformRates)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := Run(ctx, root, smallConfig(), &logging.NoOpLogger{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Tests)
	assert.Equal(t, 0, summary.Table.Len())
}

func TestLogRatio(t *testing.T) {
	same := []float64{0, 1, 0, 2, 0, 1}
	flat := []float64{1, 1, 1, 1, 1, 1}
	ratio, err := logRatio([4][]float64{same, same, same, flat}, 0)
	require.NoError(t, err)
	assert.Greater(t, ratio, 0.0)

	_, err = logRatio([4][]float64{same, same, same, flat}, 10)
	assert.Error(t, err)
}
