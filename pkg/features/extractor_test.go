package features

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/haivivi/moodchat/pkg/audio/wav"
)

func newTestExtractor(t testing.TB) *Extractor {
	t.Helper()
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// voice synthesizes a vowel-like signal: a harmonic stack with a slow
// amplitude envelope.
func voice(rate int, seconds float64) wav.Waveform {
	n := int(seconds * float64(rate))
	s := make([]float64, n)
	for i := range s {
		tm := float64(i) / float64(rate)
		env := 0.5 + 0.4*math.Sin(2*math.Pi*3*tm)
		v := 0.0
		for h := 1; h <= 5; h++ {
			v += math.Sin(2*math.Pi*150*float64(h)*tm) / float64(h)
		}
		s[i] = 0.3 * env * v
	}
	return wav.Waveform{Samples: s, SampleRate: rate}
}

func TestExtractThreeSecondClip(t *testing.T) {
	e := newTestExtractor(t)
	m, err := e.Extract(voice(22050, 3))
	if err != nil {
		t.Fatal(err)
	}
	if r, c := m.Shape(); r != 40 || c != 200 {
		t.Fatalf("shape = (%d, %d), want (40, 200)", r, c)
	}
}

func TestExtractShapeIndependentOfDuration(t *testing.T) {
	e := newTestExtractor(t)
	for _, tc := range []struct {
		rate    int
		seconds float64
	}{
		{22050, 0.05},
		{22050, 1},
		{16000, 2.5},
		{44100, 7},
	} {
		m, err := e.Extract(voice(tc.rate, tc.seconds))
		if err != nil {
			t.Fatalf("%d Hz %.2fs: %v", tc.rate, tc.seconds, err)
		}
		if err := CheckShape(m, 40, 200); err != nil {
			t.Errorf("%d Hz %.2fs: %v", tc.rate, tc.seconds, err)
		}
	}
}

func TestExtractShortInputZeroPadded(t *testing.T) {
	e := newTestExtractor(t)
	w := voice(22050, 1)
	raw, err := e.Raw(w)
	if err != nil {
		t.Fatal(err)
	}
	frames := raw.Cols
	if frames != 1+22050/512 {
		t.Fatalf("raw frames = %d, want %d", frames, 1+22050/512)
	}

	m, err := e.Extract(w)
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < frames; c++ {
			if m.At(r, c) != raw.At(r, c) {
				t.Fatalf("(%d, %d) = %v, want %v", r, c, m.At(r, c), raw.At(r, c))
			}
		}
		for c := frames; c < m.Cols; c++ {
			if m.At(r, c) != 0 {
				t.Fatalf("padding (%d, %d) = %v, want 0", r, c, m.At(r, c))
			}
		}
	}
}

func TestExtractLongInputKeepsFirstFrames(t *testing.T) {
	e := newTestExtractor(t)
	w := voice(22050, 6) // ~259 frames
	raw, err := e.Raw(w)
	if err != nil {
		t.Fatal(err)
	}
	if raw.Cols <= 200 {
		t.Fatalf("raw frames = %d, want > 200", raw.Cols)
	}
	m, err := e.Extract(w)
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < 200; c++ {
			if m.At(r, c) != raw.At(r, c) {
				t.Fatalf("(%d, %d) = %v, want head frame value %v", r, c, m.At(r, c), raw.At(r, c))
			}
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := newTestExtractor(t)
	w := voice(16000, 2)
	a, err := e.Extract(w)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Extract(w)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Fatal("repeated extraction differs")
	}
	other := newTestExtractor(t)
	c, err := other.Extract(w)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(c) {
		t.Fatal("extraction differs across extractor instances")
	}
}

func TestExtractFinite(t *testing.T) {
	e := newTestExtractor(t)
	silence := wav.Waveform{Samples: make([]float64, 22050), SampleRate: 22050}
	for _, w := range []wav.Waveform{voice(22050, 1), silence} {
		m, err := e.Extract(w)
		if err != nil {
			t.Fatal(err)
		}
		for i, v := range m.Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("Data[%d] = %v", i, v)
			}
		}
	}
}

func TestExtractFile(t *testing.T) {
	e := newTestExtractor(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")
	w := voice(22050, 1.5)
	if err := wav.WriteFile(path, w); err != nil {
		t.Fatal(err)
	}
	m, err := e.ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckShape(m, 40, 200); err != nil {
		t.Fatal(err)
	}
}

func TestExtractFileDecodeErrors(t *testing.T) {
	e := newTestExtractor(t)
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("not audio at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.wav")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{garbage, empty, filepath.Join(dir, "missing.wav")} {
		m, err := e.ExtractFile(context.Background(), p)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("%s: expected ErrDecode, got %v", filepath.Base(p), err)
		}
		if m != nil {
			t.Errorf("%s: expected nil matrix on failure", filepath.Base(p))
		}
	}
}

func TestExtractZeroLengthWaveform(t *testing.T) {
	e := newTestExtractor(t)
	_, err := e.Extract(wav.Waveform{SampleRate: 22050})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	c.NumCoefficients = 200
	if _, err := New(c); err == nil {
		t.Error("expected error when coefficients exceed mel bands")
	}
	c = DefaultConfig()
	c.MaxPadLen = 0
	if _, err := New(c); err == nil {
		t.Error("expected error for zero max_pad_len")
	}
	c = DefaultConfig()
	c.Window = "blackman"
	if _, err := New(c); err == nil {
		t.Error("expected error for unknown window")
	}
	c = DefaultConfig()
	c.PreEmphasis = 1.5
	if _, err := New(c); err == nil {
		t.Error("expected error for pre_emphasis >= 1")
	}
}

func TestWindowAndPreEmphasis(t *testing.T) {
	base := newTestExtractor(t)
	want, err := base.Extract(voice(22050, 1))
	if err != nil {
		t.Fatal(err)
	}

	c := DefaultConfig()
	c.Window = ""
	if c.Fingerprint() != DefaultConfig().Fingerprint() {
		t.Error("empty window should fingerprint as hann")
	}

	for _, tc := range []struct {
		name   string
		window string
		pre    float64
	}{
		{"hamming", "hamming", 0},
		{"pre-emphasis", "hann", 0.97},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			c.Window = tc.window
			c.PreEmphasis = tc.pre
			if c.Fingerprint() == DefaultConfig().Fingerprint() {
				t.Fatal("fingerprint ignores the setting")
			}
			e, err := New(c)
			if err != nil {
				t.Fatal(err)
			}
			got, err := e.Extract(voice(22050, 1))
			if err != nil {
				t.Fatal(err)
			}
			if err := CheckShape(got, 40, 200); err != nil {
				t.Fatal(err)
			}
			if got.Equal(want) {
				t.Fatal("setting had no effect on the features")
			}
			if _, err := e.Extract(wav.Waveform{Samples: []float64{}, SampleRate: 22050}); !errors.Is(err, ErrDecode) {
				t.Fatalf("empty waveform: expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("equal configs should share a fingerprint")
	}
	b.MaxPadLen = 100
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("different configs should not share a fingerprint")
	}
}

func TestDCTBasisOrthonormal(t *testing.T) {
	b := dctBasis(8, 8)
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			dot := 0.0
			for k := 0; k < 8; k++ {
				dot += b.At(i, k) * b.At(j, k)
			}
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(dot-want) > 1e-9 {
				t.Fatalf("row %d · row %d = %f, want %f", i, j, dot, want)
			}
		}
	}
}
