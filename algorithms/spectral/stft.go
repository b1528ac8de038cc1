package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-sync/algorithms/windowing"
)

// Spectrogram is a sequence of complex frames produced by framing a waveform.
// Values are treated as immutable once built; Subsample shares frame storage.
type Spectrogram struct {
	Frames     [][]complex128
	FrameSize  int
	HopSize    int
	SampleRate int
	Window     windowing.Kind
}

// NumFrames returns the number of analysis frames
func (s *Spectrogram) NumFrames() int {
	return len(s.Frames)
}

// NumBins returns the number of frequency bins per frame
func (s *Spectrogram) NumBins() int {
	if len(s.Frames) == 0 {
		return 0
	}
	return len(s.Frames[0])
}

// Validate checks that every frame carries the same number of bins.
func (s *Spectrogram) Validate() error {
	if s == nil || len(s.Frames) == 0 {
		return fmt.Errorf("empty spectrogram")
	}
	bins := len(s.Frames[0])
	if bins == 0 {
		return fmt.Errorf("spectrogram frame 0 has no bins")
	}
	for i, frame := range s.Frames {
		if len(frame) != bins {
			return fmt.Errorf("spectrogram frame %d has %d bins, expected %d", i, len(frame), bins)
		}
	}
	return nil
}

// Magnitudes returns |X| as a time x frequency matrix
func (s *Spectrogram) Magnitudes() [][]float64 {
	out := make([][]float64, len(s.Frames))
	for t, frame := range s.Frames {
		out[t] = make([]float64, len(frame))
		for k, v := range frame {
			out[t][k] = cmplx.Abs(v)
		}
	}
	return out
}

// Phases returns arg(X) in (-pi, pi] as a time x frequency matrix
func (s *Spectrogram) Phases() [][]float64 {
	out := make([][]float64, len(s.Frames))
	for t, frame := range s.Frames {
		out[t] = make([]float64, len(frame))
		for k, v := range frame {
			out[t][k] = cmplx.Phase(v)
		}
	}
	return out
}

// Subsample keeps every stride-th frame, starting at frame 0. When the hop
// sizes are integer multiples of each other with identical frame size and
// window, the result equals a direct computation at HopSize*stride.
func (s *Spectrogram) Subsample(stride int) (*Spectrogram, error) {
	if stride <= 0 {
		return nil, fmt.Errorf("stride must be positive, got %d", stride)
	}

	frames := make([][]complex128, 0, (len(s.Frames)+stride-1)/stride)
	for i := 0; i < len(s.Frames); i += stride {
		frames = append(frames, s.Frames[i])
	}

	return &Spectrogram{
		Frames:     frames,
		FrameSize:  s.FrameSize,
		HopSize:    s.HopSize * stride,
		SampleRate: s.SampleRate,
		Window:     s.Window,
	}, nil
}

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft *FFT
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// Compute frames the signal, applies the window and keeps the non-negative
// frequency bins of each frame. Frames are spread over a worker pool.
func (s *STFT) Compute(signal []float64, frameSize int, hopSize int, sampleRate int, kind windowing.Kind) (*Spectrogram, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	if len(signal) < frameSize {
		return nil, fmt.Errorf("signal too short (%d samples) for frame size %d", len(signal), frameSize)
	}

	window, err := windowing.New(kind, frameSize)
	if err != nil {
		return nil, err
	}

	numFrames := (len(signal)-frameSize)/hopSize + 1
	freqBins := frameSize/2 + 1

	frames := make([][]complex128, numFrames)
	for i := range numFrames {
		frames[i] = make([]complex128, freqBins)
	}

	numWorkers := s.getOptimalWorkerCount(numFrames)
	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, frameSize)

			for frameIdx := range jobs {
				start := frameIdx * hopSize
				copy(frameBuffer, signal[start:start+frameSize])

				// sizes were checked above, so this cannot fail
				_ = window.ApplyInPlace(frameBuffer)

				spectrum := s.fft.Compute(frameBuffer)
				copy(frames[frameIdx], spectrum[:freqBins])
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()

	return &Spectrogram{
		Frames:     frames,
		FrameSize:  frameSize,
		HopSize:    hopSize,
		SampleRate: sampleRate,
		Window:     kind,
	}, nil
}

// getOptimalWorkerCount determines the optimal number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	// For medium workloads, use most CPUs
	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
