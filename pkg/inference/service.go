// Package inference classifies single utterances with a trained model.
//
// When no model can be loaded the service still answers: it returns a
// random probability vector flagged as a fallback so callers can tell it
// apart from a genuine prediction.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/haivivi/moodchat/pkg/audio/wav"
	"github.com/haivivi/moodchat/pkg/emotion"
	"github.com/haivivi/moodchat/pkg/features"
	"github.com/haivivi/moodchat/pkg/nn"
)

// ErrDecode is returned when the input audio cannot be decoded.
var ErrDecode = features.ErrDecode

// Result is one prediction.
type Result struct {
	Label         emotion.Label `json:"label"`
	Probabilities []float64     `json:"probabilities"`
	// Fallback is set when the probabilities are random because no model
	// was available.
	Fallback bool `json:"fallback"`
}

// Probability returns the probability assigned to l.
func (r *Result) Probability(l emotion.Label) float64 {
	if !l.Valid() || int(l) >= len(r.Probabilities) {
		return 0
	}
	return r.Probabilities[l]
}

// Extractor turns audio into feature matrices. *features.Extractor and
// *features.CachedExtractor implement it.
type Extractor interface {
	ExtractFile(ctx context.Context, path string) (*features.Matrix, error)
	Extract(w wav.Waveform) (*features.Matrix, error)
	Config() features.Config
}

// Service predicts emotions.
type Service struct {
	ext    Extractor
	handle *Handle
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithRand sets the generator used for fallback predictions.
func WithRand(r *rand.Rand) Option { return func(s *Service) { s.rng = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// New creates a Service. The fallback generator is randomly seeded unless
// WithRand is given.
func New(ext Extractor, handle *Handle, opts ...Option) *Service {
	s := &Service{ext: ext, handle: handle, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Validator returns a model check matching the extractor configuration.
func Validator(cfg features.Config) func(*nn.Model) error {
	return func(m *nn.Model) error {
		mc := m.Config()
		if mc.InputSteps != cfg.MaxPadLen || mc.InputSize != cfg.NumCoefficients {
			return fmt.Errorf("model input (%d, %d) does not match features (%d, %d)",
				mc.InputSteps, mc.InputSize, cfg.MaxPadLen, cfg.NumCoefficients)
		}
		if mc.Classes != emotion.NumLabels {
			return fmt.Errorf("model has %d classes, want %d", mc.Classes, emotion.NumLabels)
		}
		if fp, ok := m.Meta[MetaFeatures]; ok && fp != cfg.Fingerprint() {
			return fmt.Errorf("model trained with features %s, have %s", fp, cfg.Fingerprint())
		}
		return nil
	}
}

// MetaFeatures is the model metadata key holding the feature fingerprint.
const MetaFeatures = "features"

// Predict classifies the WAV file at path. Undecodable audio returns
// (nil, ErrDecode) whether or not a model is loaded.
func (s *Service) Predict(ctx context.Context, path string) (*Result, error) {
	m, err := s.ext.ExtractFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.classify(ctx, m)
}

// PredictWaveform classifies an in-memory waveform.
func (s *Service) PredictWaveform(ctx context.Context, w wav.Waveform) (*Result, error) {
	m, err := s.ext.Extract(w)
	if err != nil {
		return nil, err
	}
	return s.classify(ctx, m)
}

func (s *Service) classify(ctx context.Context, feats *features.Matrix) (*Result, error) {
	model, err := s.handle.LoadOnce(ctx)
	if errors.Is(err, ErrModelLoad) {
		s.logger.Warn("inference: using random fallback prediction", "error", err)
		return s.fallback(), nil
	}
	if err != nil {
		return nil, err
	}
	probs, err := model.Forward(feats.Transpose().RowViews())
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	return &Result{Label: emotion.Label(nn.Argmax(probs)), Probabilities: probs}, nil
}

// fallback draws NumLabels uniform values, normalizes them and picks the
// largest.
func (s *Service) fallback() *Result {
	probs := make([]float64, emotion.NumLabels)
	sum := 0.0
	s.mu.Lock()
	for i := range probs {
		probs[i] = s.rng.Float64()
		sum += probs[i]
	}
	s.mu.Unlock()
	if sum == 0 {
		for i := range probs {
			probs[i] = 1 / float64(len(probs))
		}
	} else {
		for i := range probs {
			probs[i] /= sum
		}
	}
	return &Result{Label: emotion.Label(nn.Argmax(probs)), Probabilities: probs, Fallback: true}
}
