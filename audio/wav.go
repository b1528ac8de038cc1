// Package audio reads and writes the WAV files the grid search consumes.
package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// Waveform is a mono signal scaled to [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the waveform in seconds
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// ReadWAVMono decodes a PCM WAV file and averages its channels. The decoder
// already yields samples in [-1, 1].
func ReadWAVMono(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("invalid wav buffer: %s", path)
	}

	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range ch {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = sum / float64(ch)
	}

	return &Waveform{Samples: out, SampleRate: buf.Format.SampleRate}, nil
}

// WriteMonoWAV writes samples in [-1, 1] as a 16-bit PCM mono file, clipping
// anything outside that range.
func WriteMonoWAV(path string, samples []float64, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]float32, len(samples))
	for i, s := range samples {
		data[i] = float32(math.Max(-1, math.Min(1, s)))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.Float32Buffer{
		Format: &goaudio.Format{
			SampleRate:  sampleRate,
			NumChannels: 1,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return enc.Close()
}
