package resampler

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/moodchat/pkg/audio/wav"
)

// Resample returns w converted to dstRate. When the rates already match the
// input is returned unchanged (the sample slice is shared, not copied).
//
// The output length is always round(len(w.Samples) * dstRate / srcRate) so
// that equal durations map to equal frame counts downstream. The filter is
// flushed before trimming; any samples still missing are zero padded.
func Resample(w wav.Waveform, dstRate int) (wav.Waveform, error) {
	if dstRate <= 0 {
		return wav.Waveform{}, fmt.Errorf("resampler: invalid target rate %d", dstRate)
	}
	if err := w.Validate(); err != nil {
		return wav.Waveform{}, err
	}
	if w.SampleRate == dstRate {
		return w, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(w.SampleRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return wav.Waveform{}, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := r.Process(w.Samples)
	if err != nil {
		return wav.Waveform{}, fmt.Errorf("resample error: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return wav.Waveform{}, fmt.Errorf("resample flush: %w", err)
	}
	out = append(out, tail...)

	want := OutputLen(len(w.Samples), w.SampleRate, dstRate)
	samples := make([]float64, want)
	copy(samples, out)
	for i, s := range samples {
		samples[i] = clamp(s)
	}
	return wav.Waveform{Samples: samples, SampleRate: dstRate}, nil
}

// OutputLen returns the number of samples Resample produces for n input
// samples converted from srcRate to dstRate.
func OutputLen(n, srcRate, dstRate int) int {
	if srcRate == dstRate {
		return n
	}
	return int(math.Round(float64(n) * float64(dstRate) / float64(srcRate)))
}

func clamp(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	if s < -1.0 {
		return -1.0
	}
	return s
}
