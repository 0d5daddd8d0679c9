package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/moodchat/pkg/cli"
	"github.com/haivivi/moodchat/pkg/emotion"
	"github.com/haivivi/moodchat/pkg/features"
	"github.com/haivivi/moodchat/pkg/inference"
	"github.com/haivivi/moodchat/pkg/storage"
)

var predictCmd = &cobra.Command{
	Use:   "predict <file.wav>...",
	Short: "Classify the emotion of WAV files",
	Long: `Classify each file with the model at paths.model.

When no usable model exists the result is a random guess marked as a
fallback. Files that cannot be decoded yield a null label and null
probabilities.

Example:
  moodchat predict hello.wav
  moodchat predict --json clips/*.wav | jq '.[] | .label'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().String("model", "", "model location (default: paths.model)")
}

// prediction is the printed form of one result. Label and Probabilities
// are nil when the file could not be decoded.
type prediction struct {
	File          string             `json:"file" yaml:"file"`
	Label         *emotion.Label     `json:"label" yaml:"label"`
	Probabilities map[string]float64 `json:"probabilities" yaml:"probabilities"`
	Fallback      bool               `json:"fallback" yaml:"fallback"`
	Error         string             `json:"error,omitempty" yaml:"error,omitempty"`
}

func newPrediction(file string, res *inference.Result) prediction {
	p := prediction{File: file}
	if res == nil {
		return p
	}
	l := res.Label
	p.Label = &l
	p.Fallback = res.Fallback
	p.Probabilities = make(map[string]float64, emotion.NumLabels)
	for _, e := range emotion.All() {
		p.Probabilities[e.String()] = res.Probability(e)
	}
	return p
}

type predictions []prediction

func (ps predictions) String() string {
	styles := cli.NewStyles(cli.DefaultTheme)
	var b strings.Builder
	for _, p := range ps {
		if p.Label == nil {
			fmt.Fprintf(&b, "%s\n%s\n\n", styles.Title.Render(p.File), styles.Warn.Render("no result: "+p.Error))
			continue
		}
		bars := cli.Bars{
			Styles:    styles,
			Title:     fmt.Sprintf("%s: %s", p.File, p.Label),
			Highlight: int(*p.Label),
		}
		for _, e := range emotion.All() {
			bars.Labels = append(bars.Labels, e.String())
			bars.Values = append(bars.Values, p.Probabilities[e.String()])
		}
		if p.Fallback {
			bars.Note = "random fallback: no usable model was loaded"
		}
		b.WriteString(bars.Render())
		b.WriteString("\n")
	}
	return b.String()
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg := getConfig()
	if err := flagOverride(cmd, "model", &cfg.Paths.Model, cmd.Flags().GetString); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ext, err := features.New(cfg.Features)
	if err != nil {
		return err
	}
	store, name, err := storage.Open(cfg.Paths.Model, cfg.S3)
	if err != nil {
		return err
	}
	handle := inference.NewHandle(store, name, inference.Validator(cfg.Features))
	svc := inference.New(ext, handle, inference.WithLogger(slog.Default()))

	out := make(predictions, 0, len(args))
	for _, path := range args {
		res, err := svc.Predict(cmd.Context(), path)
		switch {
		case errors.Is(err, inference.ErrDecode):
			slog.Warn("predict: cannot decode", "file", path, "error", err)
			p := newPrediction(path, nil)
			p.Error = "cannot decode audio"
			out = append(out, p)
			continue
		case err != nil:
			return err
		}
		out = append(out, newPrediction(path, res))
	}
	if len(out) > 0 && out[0].Fallback && isTerminalText() {
		cli.PrintWarning("no usable model at %s, predictions are random", cfg.Paths.Model)
	}
	return outputResult(out)
}
