package resampler

import (
	"math"
	"testing"

	"github.com/haivivi/moodchat/pkg/audio/wav"
)

func tone(freq float64, rate, n int) wav.Waveform {
	s := make([]float64, n)
	for i := range s {
		s[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return wav.Waveform{Samples: s, SampleRate: rate}
}

func TestResampleSameRate(t *testing.T) {
	in := tone(440, 22050, 2205)
	out, err := Resample(in, 22050)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Samples) != len(in.Samples) || &out.Samples[0] != &in.Samples[0] {
		t.Fatal("same-rate resample should return the input unchanged")
	}
}

func TestResampleLength(t *testing.T) {
	tests := []struct {
		name     string
		src, dst int
		n        int
	}{
		{"16k->22.05k", 16000, 22050, 16000},
		{"48k->22.05k", 48000, 22050, 48000},
		{"44.1k->22.05k", 44100, 22050, 4410},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Resample(tone(220, tt.src, tt.n), tt.dst)
			if err != nil {
				t.Fatal(err)
			}
			if out.SampleRate != tt.dst {
				t.Fatalf("SampleRate = %d, want %d", out.SampleRate, tt.dst)
			}
			want := OutputLen(tt.n, tt.src, tt.dst)
			if len(out.Samples) != want {
				t.Fatalf("len = %d, want %d", len(out.Samples), want)
			}
			for i, s := range out.Samples {
				if s > 1 || s < -1 || math.IsNaN(s) {
					t.Fatalf("sample %d out of range: %f", i, s)
				}
			}
		})
	}
}

func TestResampleKeepsTail(t *testing.T) {
	tests := []struct {
		name     string
		src, dst int
	}{
		{"16k->22.05k", 16000, 22050},
		{"48k->22.05k", 48000, 22050},
		{"44.1k->22.05k", 44100, 22050},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tone(220, tt.src, tt.src/2)
			for i := range in.Samples {
				in.Samples[i] *= 2
			}
			out, err := Resample(in, tt.dst)
			if err != nil {
				t.Fatal(err)
			}
			// Last 5 ms: a 220 Hz full-scale tone peaks well above this there.
			tail := out.Samples[len(out.Samples)-tt.dst/200:]
			var peak float64
			for _, s := range tail {
				peak = math.Max(peak, math.Abs(s))
			}
			if peak < 0.1 {
				t.Fatalf("tail peak = %v, want the tone to reach the end", peak)
			}
		})
	}
}

func TestResampleDeterministic(t *testing.T) {
	in := tone(330, 16000, 8000)
	a, err := Resample(in, 22050)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Resample(in, 22050)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, a.Samples[i], b.Samples[i])
		}
	}
}

func TestResampleInvalid(t *testing.T) {
	if _, err := Resample(tone(440, 16000, 100), 0); err == nil {
		t.Fatal("expected error for zero target rate")
	}
	if _, err := Resample(wav.Waveform{SampleRate: 16000}, 22050); err == nil {
		t.Fatal("expected error for empty waveform")
	}
}

func TestOutputLen(t *testing.T) {
	if got := OutputLen(16000, 16000, 22050); got != 22050 {
		t.Errorf("OutputLen = %d, want 22050", got)
	}
	if got := OutputLen(123, 8000, 8000); got != 123 {
		t.Errorf("OutputLen = %d, want 123", got)
	}
}
