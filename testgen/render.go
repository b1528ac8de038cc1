package testgen

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-sync/logging"
)

// Renderer turns a MIDI file into a WAV file.
type Renderer interface {
	Render(ctx context.Context, midiPath, wavPath string) error
}

// FluidSynthConfig holds renderer configuration
type FluidSynthConfig struct {
	BinaryPath string        `json:"binary_path"` // Path to fluidsynth binary
	SoundFont  string        `json:"sound_font"`  // .sf2 used for every channel
	Gain       float64       `json:"gain"`
	SampleRate int           `json:"sample_rate"`
	Timeout    time.Duration `json:"timeout"` // Timeout per rendered file
}

// DefaultFluidSynthConfig returns default renderer configuration
func DefaultFluidSynthConfig() *FluidSynthConfig {
	return &FluidSynthConfig{
		BinaryPath: "fluidsynth", // Assume in PATH
		SoundFont:  "SGM-V2.01.sf2",
		Gain:       1,
		SampleRate: 44100,
		Timeout:    time.Minute,
	}
}

// FluidSynth renders MIDI files offline with the fluidsynth command line tool.
type FluidSynth struct {
	config *FluidSynthConfig
}

// NewFluidSynth creates a renderer; a nil config uses the defaults.
func NewFluidSynth(config *FluidSynthConfig) *FluidSynth {
	if config == nil {
		config = DefaultFluidSynthConfig()
	}
	return &FluidSynth{config: config}
}

// ValidateConfig checks the configuration and that the binary runs.
func (f *FluidSynth) ValidateConfig() error {
	if f.config.SoundFont == "" {
		return errors.New("sound font must be set")
	}
	if f.config.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %d", f.config.SampleRate)
	}
	if f.config.Gain <= 0 {
		return fmt.Errorf("gain must be positive: %g", f.config.Gain)
	}

	cmd := exec.Command(f.config.BinaryPath, "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("fluidsynth not found at %s: %w", f.config.BinaryPath, err)
	}
	return nil
}

func (f *FluidSynth) buildArgs(midiPath, wavPath string) []string {
	return []string{
		"-ni",
		"-a", "file",
		"-F", wavPath,
		"-T", "wav",
		"-g", strconv.FormatFloat(f.config.Gain, 'g', -1, 64),
		"-r", strconv.Itoa(f.config.SampleRate),
		f.config.SoundFont,
		midiPath,
	}
}

// Render writes wavPath from midiPath.
func (f *FluidSynth) Render(ctx context.Context, midiPath, wavPath string) error {
	logger := logging.WithFields(logging.Fields{
		"component": "fluidsynth",
		"midi":      midiPath,
		"wav":       wavPath,
	})

	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	args := f.buildArgs(midiPath, wavPath)
	cmd := exec.CommandContext(ctx, f.config.BinaryPath, args...)

	logger.Debug("Running fluidsynth command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	if output, err := cmd.CombinedOutput(); err != nil {
		logger.Error(err, "Fluidsynth render failed", logging.Fields{
			"output": string(output),
		})
		return fmt.Errorf("fluidsynth render failed: %w", err)
	}
	return nil
}
