package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/haivivi/moodchat/pkg/audio/wav"
	"github.com/haivivi/moodchat/pkg/features"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.wav>",
	Short: "Print the MFCC matrix of a WAV file",
	Long: `Decode a WAV file, resample it and compute its fixed-shape MFCC matrix.

Prints the matrix shape and value summary. Use --json --full to dump the
time-major coefficients.

Example:
  moodchat extract hello.wav
  moodchat extract hello.wav --json --full > hello.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().Bool("full", false, "include the time-major coefficient rows")
}

type extractResult struct {
	File        string      `json:"file" yaml:"file"`
	Duration    string      `json:"duration" yaml:"duration"`
	SampleRate  int         `json:"sample_rate" yaml:"sample_rate"`
	Frames      int         `json:"frames" yaml:"frames"`
	Coefficient int         `json:"coefficients" yaml:"coefficients"`
	Min         float64     `json:"min" yaml:"min"`
	Max         float64     `json:"max" yaml:"max"`
	Mean        float64     `json:"mean" yaml:"mean"`
	StdDev      float64     `json:"stddev" yaml:"stddev"`
	Rows        [][]float64 `json:"rows,omitempty" yaml:"rows,omitempty"`
}

func (r extractResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s at %d Hz)\n", r.File, r.Duration, r.SampleRate)
	fmt.Fprintf(&b, "  shape: %d frames x %d coefficients\n", r.Frames, r.Coefficient)
	fmt.Fprintf(&b, "  range: [%.3f, %.3f]\n", r.Min, r.Max)
	fmt.Fprintf(&b, "  mean:  %.3f (stddev %.3f)\n", r.Mean, r.StdDev)
	return b.String()
}

func runExtract(cmd *cobra.Command, args []string) error {
	full, err := cmd.Flags().GetBool("full")
	if err != nil {
		return fmt.Errorf("failed to read 'full' flag: %w", err)
	}
	ext, err := features.New(getConfig().Features)
	if err != nil {
		return err
	}
	w, err := wav.DecodeFile(args[0])
	if err != nil {
		return err
	}
	m, err := ext.Extract(w)
	if err != nil {
		return err
	}
	t := m.Transpose()
	mean, std := stat.MeanStdDev(t.Data, nil)
	res := extractResult{
		File:        args[0],
		Duration:    w.Duration().String(),
		SampleRate:  w.SampleRate,
		Frames:      t.Rows,
		Coefficient: t.Cols,
		Min:         floats.Min(t.Data),
		Max:         floats.Max(t.Data),
		Mean:        mean,
		StdDev:      std,
	}
	if full {
		res.Rows = t.RowViews()
	}
	return outputResult(res)
}
