package commands

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haivivi/moodchat/pkg/audio/wav"
	"github.com/haivivi/moodchat/pkg/emotion"
	"github.com/haivivi/moodchat/pkg/inference"
)

func writeTone(t *testing.T, path string) {
	t.Helper()
	w := wav.Waveform{Samples: make([]float64, 16000), SampleRate: 16000}
	for i := range w.Samples {
		w.Samples[i] = 0.3 * math.Sin(2*math.Pi*220*float64(i)/16000)
	}
	if err := wav.WriteFile(path, w); err != nil {
		t.Fatal(err)
	}
}

func TestPredictionsString(t *testing.T) {
	ok := newPrediction("a.wav", &inference.Result{
		Label:         emotion.Happy,
		Probabilities: []float64{0.1, 0.7, 0.1, 0.1},
	})
	guess := newPrediction("b.wav", &inference.Result{
		Label:         emotion.Sad,
		Probabilities: []float64{0.2, 0.2, 0.2, 0.4},
		Fallback:      true,
	})
	bad := newPrediction("c.wav", nil)
	bad.Error = "cannot decode audio"

	out := predictions{ok, guess, bad}.String()
	for _, want := range []string{"a.wav: happy", " 70.0%", "b.wav: sad", "random fallback", "c.wav", "no result"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "random fallback") != 1 {
		t.Error("only the fallback prediction should carry the note")
	}
}

func TestPredictionJSONNulls(t *testing.T) {
	data, err := json.Marshal(newPrediction("c.wav", nil))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["label"] != nil || got["probabilities"] != nil {
		t.Fatalf("got %s, want null label and probabilities", data)
	}
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	clip := filepath.Join(dir, "clip.wav")
	garbage := filepath.Join(dir, "garbage.wav")
	out := filepath.Join(dir, "out.json")
	writeTone(t, clip)
	if err := os.WriteFile(garbage, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	// config init writes the defaults once.
	rootCmd.SetArgs([]string{"--config", cfgPath, "config", "init"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatal(err)
	}
	rootCmd.SetArgs([]string{"--config", cfgPath, "config", "init"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("second init without --force should fail")
	}

	// No model exists, so the clip gets a fallback guess and the garbage
	// file gets no result.
	rootCmd.SetArgs([]string{"--config", cfgPath, "--json", "-o", out,
		"predict", "--model", filepath.Join(dir, "models", "m.mdl"), clip, garbage})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var got []struct {
		File          string             `json:"file"`
		Label         *string            `json:"label"`
		Probabilities map[string]float64 `json:"probabilities"`
		Fallback      bool               `json:"fallback"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("%v: %s", err, data)
	}
	if len(got) != 2 {
		t.Fatalf("got %d predictions", len(got))
	}
	if got[0].Label == nil || !got[0].Fallback || len(got[0].Probabilities) != emotion.NumLabels {
		t.Fatalf("clip = %+v", got[0])
	}
	sum := 0.0
	for _, p := range got[0].Probabilities {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("probabilities sum to %g", sum)
	}
	if got[1].Label != nil || got[1].Probabilities != nil {
		t.Fatalf("garbage = %+v", got[1])
	}
	extracted := filepath.Join(dir, "extract.json")
	rootCmd.SetArgs([]string{"--config", cfgPath, "--json", "-o", extracted, "extract", clip})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	data, err = os.ReadFile(extracted)
	if err != nil {
		t.Fatal(err)
	}
	var res extractResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("%v: %s", err, data)
	}
	if res.Duration != "1s" || res.SampleRate != 16000 {
		t.Errorf("extract reported %s at %d Hz, want 1s at 16000 Hz", res.Duration, res.SampleRate)
	}
	if res.Frames != 200 || res.Coefficient != 40 {
		t.Errorf("extract shape = %dx%d", res.Frames, res.Coefficient)
	}
}
