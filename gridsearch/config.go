package gridsearch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/RyanBlaney/sonido-sync/algorithms/onset"
	"github.com/RyanBlaney/sonido-sync/algorithms/windowing"
)

// ErrEmptyDimension is returned when a parameter dimension has no values.
var ErrEmptyDimension = errors.New("empty parameter dimension")

// Config describes the parameter grid and how the sweep is run.
type Config struct {
	// Parameter dimensions
	ODFs                []onset.Algorithm `json:"odfs"`
	DownsamplingFactors []int             `json:"downsampling_factors"`
	FrameSizes          []int             `json:"frame_sizes"`
	HopSizeScales       []int             `json:"hop_size_scales"` // hop = frame size / scale
	Windows             []windowing.Kind  `json:"windows"`
	Offsets             []int             `json:"offsets"`

	// FileNames are the synchronized pair followed by the unsynchronized pair
	FileNames [4]string `json:"file_names"`

	// Execution
	Workers          int           `json:"workers"`           // directories processed concurrently
	ProgressInterval time.Duration `json:"progress_interval"` // quiet period before a progress line, e.g. "250ms"
}

// DefaultConfig returns the full grid: every onset detection function against
// the downsampling, framing, window and offset choices used for tuning.
func DefaultConfig() *Config {
	return &Config{
		ODFs:                slices.Clone(onset.Algorithms),
		DownsamplingFactors: []int{1, 2, 4, 5},
		FrameSizes:          []int{1024, 2048, 4096, 8192},
		HopSizeScales:       []int{8, 4, 2, 1},
		Windows:             []windowing.Kind{windowing.Rectangular, windowing.Hamming, windowing.Hann},
		Offsets:             []int{2, 5, 10, 20},
		FileNames:           [4]string{"0-0ms.wav", "1-0ms.wav", "0-50ms.wav", "1-50ms.wav"},
		Workers:             runtime.NumCPU(),
		ProgressInterval:    250 * time.Millisecond,
	}
}

// LoadConfig reads a JSON config on top of DefaultConfig; fields missing
// from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return config, nil
}

type configAlias Config

// MarshalJSON writes ProgressInterval as a duration string.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		configAlias
		ProgressInterval string `json:"progress_interval"`
	}{configAlias(c), c.ProgressInterval.String()})
}

// UnmarshalJSON accepts ProgressInterval as a duration string ("250ms") or
// as integer nanoseconds.
func (c *Config) UnmarshalJSON(data []byte) error {
	aux := struct {
		*configAlias
		ProgressInterval json.RawMessage `json:"progress_interval"`
	}{configAlias: (*configAlias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.ProgressInterval) == 0 || string(aux.ProgressInterval) == "null" {
		return nil
	}

	var text string
	if err := json.Unmarshal(aux.ProgressInterval, &text); err == nil {
		d, err := time.ParseDuration(text)
		if err != nil {
			return fmt.Errorf("progress_interval: %w", err)
		}
		c.ProgressInterval = d
		return nil
	}
	var nanos int64
	if err := json.Unmarshal(aux.ProgressInterval, &nanos); err != nil {
		return fmt.Errorf("progress_interval must be a duration string or nanoseconds: %w", err)
	}
	c.ProgressInterval = time.Duration(nanos)
	return nil
}

// Validate checks the grid before any audio is touched.
func (c *Config) Validate() error {
	dims := []struct {
		name string
		size int
	}{
		{"odfs", len(c.ODFs)},
		{"downsampling_factors", len(c.DownsamplingFactors)},
		{"frame_sizes", len(c.FrameSizes)},
		{"hop_size_scales", len(c.HopSizeScales)},
		{"windows", len(c.Windows)},
		{"offsets", len(c.Offsets)},
	}
	for _, d := range dims {
		if d.size == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyDimension, d.name)
		}
	}

	for _, check := range []struct {
		name   string
		values []int
	}{
		{"downsampling_factors", c.DownsamplingFactors},
		{"frame_sizes", c.FrameSizes},
		{"hop_size_scales", c.HopSizeScales},
	} {
		for _, v := range check.values {
			if v <= 0 {
				return fmt.Errorf("%s must be positive, got %d", check.name, v)
			}
		}
		if hasDuplicates(check.values) {
			return fmt.Errorf("%s contains duplicate values", check.name)
		}
	}

	if hasDuplicates(c.Offsets) {
		return fmt.Errorf("offsets contains duplicate values")
	}
	if hasDuplicates(c.ODFs) {
		return fmt.Errorf("odfs contains duplicate values")
	}
	if hasDuplicates(c.Windows) {
		return fmt.Errorf("windows contains duplicate values")
	}

	for _, frameSize := range c.FrameSizes {
		for _, scale := range c.HopSizeScales {
			if frameSize%scale != 0 {
				return fmt.Errorf("frame size %d is not divisible by hop size scale %d", frameSize, scale)
			}
		}
	}

	for i, name := range c.FileNames {
		if name == "" {
			return fmt.Errorf("file name %d is empty", i)
		}
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}

	return nil
}

// TestsPerDirectory is the number of scored combinations for one input directory.
func (c *Config) TestsPerDirectory() int {
	return len(c.ODFs) * len(c.DownsamplingFactors) * len(c.FrameSizes) *
		len(c.HopSizeScales) * len(c.Windows) * len(c.Offsets)
}

// descendingHopScales orders hop scales so that every scale that divides an
// earlier one can be derived from it.
func (c *Config) descendingHopScales() []int {
	scales := slices.Clone(c.HopSizeScales)
	slices.Sort(scales)
	slices.Reverse(scales)
	return scales
}

func hasDuplicates[T comparable](values []T) bool {
	seen := make(map[T]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
