package features

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/haivivi/moodchat/pkg/audio/fbank"
	"github.com/haivivi/moodchat/pkg/audio/resampler"
	"github.com/haivivi/moodchat/pkg/audio/wav"
)

// ErrDecode is returned (wrapped) when a source cannot be decoded into a
// waveform. It is the same sentinel as [wav.ErrDecode].
var ErrDecode = wav.ErrDecode

// Config controls MFCC extraction. It is shared verbatim between training
// and inference; a model is only valid for the config it was trained with.
type Config struct {
	SampleRate      int     `yaml:"sample_rate" json:"sample_rate" msgpack:"sample_rate"`
	NumCoefficients int     `yaml:"num_coefficients" json:"num_coefficients" msgpack:"num_coefficients"`
	MaxPadLen       int     `yaml:"max_pad_len" json:"max_pad_len" msgpack:"max_pad_len"`
	FFTSize         int     `yaml:"fft_size" json:"fft_size" msgpack:"fft_size"`
	HopSize         int     `yaml:"hop_size" json:"hop_size" msgpack:"hop_size"`
	NumMels         int     `yaml:"num_mels" json:"num_mels" msgpack:"num_mels"`
	FMin            float64 `yaml:"fmin" json:"fmin" msgpack:"fmin"`
	FMax            float64 `yaml:"fmax" json:"fmax" msgpack:"fmax"`
	TopDB           float64 `yaml:"top_db" json:"top_db" msgpack:"top_db"`
	// Window is "hann" or "hamming"; empty means hann.
	Window      string  `yaml:"window,omitempty" json:"window,omitempty" msgpack:"window,omitempty"`
	PreEmphasis float64 `yaml:"pre_emphasis,omitempty" json:"pre_emphasis,omitempty" msgpack:"pre_emphasis,omitempty"`
}

// DefaultConfig returns 40 coefficients × 200 frames at 22050 Hz.
func DefaultConfig() Config {
	return Config{
		SampleRate:      22050,
		NumCoefficients: 40,
		MaxPadLen:       200,
		FFTSize:         2048,
		HopSize:         512,
		NumMels:         128,
		FMin:            0,
		FMax:            0,
		TopDB:           80,
		Window:          string(fbank.Hann),
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.NumCoefficients <= 0 {
		return fmt.Errorf("features: invalid coefficient count %d", c.NumCoefficients)
	}
	if c.MaxPadLen <= 0 {
		return fmt.Errorf("features: invalid max_pad_len %d", c.MaxPadLen)
	}
	if c.NumCoefficients > c.NumMels {
		return fmt.Errorf("features: %d coefficients exceed %d mel bands", c.NumCoefficients, c.NumMels)
	}
	switch c.window() {
	case fbank.Hann, fbank.Hamming:
	default:
		return fmt.Errorf("features: unknown window %q", c.Window)
	}
	if c.PreEmphasis < 0 || c.PreEmphasis >= 1 {
		return fmt.Errorf("features: pre_emphasis %g must be in [0, 1)", c.PreEmphasis)
	}
	return c.fbank().Validate()
}

// Fingerprint is a stable string identifying every parameter that affects
// extractor output.
func (c Config) Fingerprint() string {
	fp := fmt.Sprintf("sr%d-c%d-p%d-n%d-h%d-m%d-f%g-%g-db%g",
		c.SampleRate, c.NumCoefficients, c.MaxPadLen, c.FFTSize, c.HopSize,
		c.NumMels, c.FMin, c.FMax, c.TopDB)
	// Defaults are left out so fingerprints of hann, no-emphasis configs
	// stay the same.
	if w := c.window(); w != fbank.Hann {
		fp += "-w" + string(w)
	}
	if c.PreEmphasis > 0 {
		fp += fmt.Sprintf("-pe%g", c.PreEmphasis)
	}
	return fp
}

func (c Config) window() fbank.Window {
	if c.Window == "" {
		return fbank.Hann
	}
	return fbank.Window(c.Window)
}

func (c Config) fbank() fbank.Config {
	return fbank.Config{
		SampleRate:  c.SampleRate,
		WindowSize:  c.FFTSize,
		HopSize:     c.HopSize,
		FFTSize:     c.FFTSize,
		NumMels:     c.NumMels,
		LowFreq:     c.FMin,
		HighFreq:    c.FMax,
		PreEmphasis: c.PreEmphasis,
		Center:      true,
		Window:      c.window(),
	}
}

// Extractor computes fixed-shape MFCC matrices. It holds no per-call
// state and is safe for concurrent use.
type Extractor struct {
	cfg Config
	fb  *fbank.Extractor
	dct *mat.Dense // NumCoefficients × NumMels orthonormal DCT-II basis
}

// New creates an Extractor for cfg.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fb, err := fbank.New(cfg.fbank())
	if err != nil {
		return nil, err
	}
	return &Extractor{cfg: cfg, fb: fb, dct: dctBasis(cfg.NumCoefficients, cfg.NumMels)}, nil
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config { return e.cfg }

// ExtractFile decodes the WAV file at path and extracts its features.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := wav.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return e.Extract(w)
}

// Extract returns the (NumCoefficients × MaxPadLen) MFCC matrix of w.
func (e *Extractor) Extract(w wav.Waveform) (*Matrix, error) {
	raw, err := e.Raw(w)
	if err != nil {
		return nil, err
	}
	m := PadTruncate(raw, e.cfg.MaxPadLen)
	if err := CheckShape(m, e.cfg.NumCoefficients, e.cfg.MaxPadLen); err != nil {
		return nil, err
	}
	return m, nil
}

// Raw returns the unpadded (NumCoefficients × frames) MFCC matrix of w.
func (e *Extractor) Raw(w wav.Waveform) (*Matrix, error) {
	w, err := resampler.Resample(w, e.cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	var mel [][]float64
	if e.cfg.TopDB > 0 {
		// top_db clipping depends on the peak of the whole clip.
		mel = e.fb.Extract(w.Samples)
	} else {
		mel = e.fb.ExtractFrames(w.Samples, e.cfg.MaxPadLen)
	}
	if len(mel) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrDecode)
	}
	fbank.PowerToDB(mel, e.cfg.TopDB)

	out := NewMatrix(e.cfg.NumCoefficients, len(mel))
	col := mat.NewVecDense(e.cfg.NumCoefficients, nil)
	for t, frame := range mel {
		col.MulVec(e.dct, mat.NewVecDense(len(frame), frame))
		for k := 0; k < e.cfg.NumCoefficients; k++ {
			out.Data[k*out.Cols+t] = col.AtVec(k)
		}
	}
	return out, nil
}

// dctBasis builds the first n rows of the orthonormal DCT-II matrix of size m.
func dctBasis(n, m int) *mat.Dense {
	basis := mat.NewDense(n, m, nil)
	scale0 := math.Sqrt(1 / float64(m))
	scale := math.Sqrt(2 / float64(m))
	for k := 0; k < n; k++ {
		s := scale
		if k == 0 {
			s = scale0
		}
		for i := 0; i < m; i++ {
			basis.Set(k, i, s*math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(m))))
		}
	}
	return basis
}
