package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Label string  `json:"label" yaml:"label"`
	Score float64 `json:"score" yaml:"score"`
}

type textSample struct{}

func (textSample) String() string { return "plain text\n" }

func TestOutputFormats(t *testing.T) {
	v := sample{Label: "happy", Score: 0.5}

	var buf bytes.Buffer
	if err := Output(v, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	var decoded sample
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || decoded != v {
		t.Fatalf("json = %q (%v)", buf.String(), err)
	}

	buf.Reset()
	if err := Output(v, OutputOptions{Format: FormatYAML, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "label: happy") {
		t.Fatalf("yaml = %q", buf.String())
	}

	buf.Reset()
	if err := Output(textSample{}, OutputOptions{Format: FormatText, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "plain text\n" {
		t.Fatalf("text = %q", buf.String())
	}

	if err := Output(v, OutputOptions{Format: "xml", Writer: &buf}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Output(sample{Label: "sad"}, OutputOptions{Format: FormatJSON, File: path}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"sad"`) {
		t.Fatalf("file = %q", data)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatText, "json": FormatJSON, "yaml": FormatYAML, "text": FormatText} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("table"); err == nil {
		t.Error("expected error")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{12300 * time.Millisecond, "12.3s"},
		{245 * time.Second, "4m5.0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes(512); got != "512 B" {
		t.Errorf("got %q", got)
	}
	if got := FormatBytes(4 * 1024 * 1024); got != "4.00 MB" {
		t.Errorf("got %q", got)
	}
}

func TestBarsRender(t *testing.T) {
	out := Bars{
		Styles:    NewStyles(DefaultTheme),
		Labels:    []string{"angry", "happy", "neutral", "sad"},
		Values:    []float64{0.1, 0.62, 0.2, 0.08},
		Highlight: 1,
		Width:     10,
		Note:      "fallback",
	}.Render()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "happy") || !strings.Contains(lines[1], " 62.0%") {
		t.Fatalf("happy line = %q", lines[1])
	}
	if !strings.Contains(lines[1], strings.Repeat("█", 6)+strings.Repeat("░", 4)) {
		t.Fatalf("happy bar = %q", lines[1])
	}
	if !strings.Contains(lines[4], "fallback") {
		t.Fatalf("note line = %q", lines[4])
	}
}
