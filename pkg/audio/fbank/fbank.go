// Package fbank computes mel filterbank spectrograms from mono audio.
//
// This is the front half of MFCC extraction: frames are windowed, turned
// into power spectra, and projected onto a bank of triangular mel filters.
// The output is a [T][numMels] matrix of mel band power.
//
// Defaults follow the librosa conventions used by common speech emotion
// recognition recipes:
//
//	SampleRate: 22050
//	WindowSize: 2048
//	HopSize:     512
//	FFTSize:    2048
//	NumMels:     128
//	LowFreq:       0
//	HighFreq:  11025 (Nyquist)
//	Center:     true (FFTSize/2 zero padding at both ends)
//	Window:     hann (periodic)
//	MelScale:   slaney, with slaney area normalization
package fbank

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Window selects the analysis window function.
type Window string

const (
	Hann    Window = "hann"
	Hamming Window = "hamming"
)

// Config controls mel filterbank extraction parameters.
type Config struct {
	SampleRate  int     // audio sample rate in Hz (default 22050)
	WindowSize  int     // window length in samples (default 2048)
	HopSize     int     // hop length in samples (default 512)
	FFTSize     int     // FFT size (default 2048)
	NumMels     int     // number of mel bins (default 128)
	LowFreq     float64 // lowest mel frequency (default 0)
	HighFreq    float64 // highest mel frequency, 0 means Nyquist
	PreEmphasis float64 // pre-emphasis coefficient, 0 disables
	Center      bool    // pad FFTSize/2 zeros on both sides so frame t is centered at t*HopSize
	Window      Window  // analysis window (default hann)
}

// DefaultConfig returns the librosa-compatible configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 22050,
		WindowSize: 2048,
		HopSize:    512,
		FFTSize:    2048,
		NumMels:    128,
		LowFreq:    0,
		HighFreq:   0,
		Center:     true,
		Window:     Hann,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("fbank: invalid sample rate %d", c.SampleRate)
	case c.FFTSize <= 0:
		return fmt.Errorf("fbank: invalid FFT size %d", c.FFTSize)
	case c.WindowSize <= 0 || c.WindowSize > c.FFTSize:
		return fmt.Errorf("fbank: window size %d must be in (0, %d]", c.WindowSize, c.FFTSize)
	case c.HopSize <= 0:
		return fmt.Errorf("fbank: invalid hop size %d", c.HopSize)
	case c.NumMels <= 0:
		return fmt.Errorf("fbank: invalid mel count %d", c.NumMels)
	case c.highFreq() <= c.LowFreq:
		return fmt.Errorf("fbank: high frequency %.1f must exceed low frequency %.1f", c.highFreq(), c.LowFreq)
	}
	return nil
}

func (c Config) highFreq() float64 {
	if c.HighFreq <= 0 {
		return float64(c.SampleRate) / 2
	}
	return c.HighFreq
}

// Extractor computes mel filterbank features from PCM samples. An
// Extractor is immutable after New and safe for concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
}

// New creates a new fbank Extractor with the given config.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Extractor{cfg: cfg}
	switch cfg.Window {
	case Hamming:
		e.window = hammingWindow(cfg.WindowSize)
	case Hann, "":
		e.window = hannWindow(cfg.WindowSize)
	default:
		return nil, fmt.Errorf("fbank: unknown window %q", cfg.Window)
	}
	e.melBank = melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.highFreq())
	return e, nil
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config { return e.cfg }

// NumFrames returns the number of frames Extract yields for n samples.
func (e *Extractor) NumFrames(n int) int {
	if e.cfg.Center {
		return 1 + n/e.cfg.HopSize
	}
	if n < e.cfg.WindowSize {
		return 0
	}
	return (n-e.cfg.WindowSize)/e.cfg.HopSize + 1
}

// Extract computes the mel power spectrogram of pcm.
// Input: pcm is normalized audio samples (range [-1, 1]).
// Output: [T][numMels] matrix where T = NumFrames(len(pcm)).
func (e *Extractor) Extract(pcm []float64) [][]float64 {
	return e.ExtractFrames(pcm, -1)
}

// ExtractFrames is like Extract but stops after maxFrames frames when
// maxFrames >= 0. Frames are independent, so the result equals the first
// maxFrames rows of Extract(pcm).
func (e *Extractor) ExtractFrames(pcm []float64, maxFrames int) [][]float64 {
	cfg := e.cfg
	numFrames := e.NumFrames(len(pcm))
	if maxFrames >= 0 && numFrames > maxFrames {
		numFrames = maxFrames
	}
	if numFrames <= 0 {
		return nil
	}

	signal := pcm
	if cfg.PreEmphasis > 0 && len(pcm) > 0 {
		signal = make([]float64, len(pcm))
		signal[0] = pcm[0]
		for i := 1; i < len(pcm); i++ {
			signal[i] = pcm[i] - cfg.PreEmphasis*pcm[i-1]
		}
	}

	offset := 0
	if cfg.Center {
		offset = -cfg.FFTSize / 2
	}
	// The window is centered inside the FFT frame when shorter than it.
	winPad := (cfg.FFTSize - cfg.WindowSize) / 2

	fft := fourier.NewFFT(cfg.FFTSize)
	frame := make([]float64, cfg.FFTSize)
	coeffs := make([]complex128, cfg.FFTSize/2+1)
	power := make([]float64, cfg.FFTSize/2+1)

	features := make([][]float64, numFrames)
	for t := 0; t < numFrames; t++ {
		start := offset + t*cfg.HopSize
		for i := range frame {
			frame[i] = 0
		}
		for i := 0; i < cfg.WindowSize; i++ {
			idx := start + winPad + i
			if idx < 0 || idx >= len(signal) {
				continue
			}
			frame[winPad+i] = signal[idx] * e.window[i]
		}

		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			power[k] = re*re + im*im
		}

		mel := make([]float64, cfg.NumMels)
		for m, filter := range e.melBank {
			sum := 0.0
			for k, w := range filter {
				if w != 0 {
					sum += w * power[k]
				}
			}
			mel[m] = sum
		}
		features[t] = mel
	}
	return features
}

// PowerToDB converts mel power to decibels relative to ref=1.0 in place and
// clips values more than topDB below the peak. topDB <= 0 disables clipping.
func PowerToDB(features [][]float64, topDB float64) {
	const amin = 1e-10
	peak := math.Inf(-1)
	for _, f := range features {
		for m, v := range f {
			db := 10 * math.Log10(math.Max(amin, v))
			f[m] = db
			if db > peak {
				peak = db
			}
		}
	}
	if topDB <= 0 {
		return
	}
	floor := peak - topDB
	for _, f := range features {
		for m, v := range f {
			if v < floor {
				f[m] = floor
			}
		}
	}
}
