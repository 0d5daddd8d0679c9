package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/haivivi/moodchat/pkg/cli"
	"github.com/haivivi/moodchat/pkg/dataset"
	"github.com/haivivi/moodchat/pkg/emotion"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Build and prepare training data",
	Long: `Build labeled datasets from a directory of WAV files.

The training layout is <root>/<emotion>/*.wav where <emotion> is one of
angry, happy, neutral or sad.`,
}

var datasetBuildCmd = &cobra.Command{
	Use:   "build [root]",
	Short: "Extract features for every file under root",
	Long: `Extract features for every WAV file under root and report the split.

Root defaults to paths.data from the configuration. Extracted matrices are
cached, so a following train run reuses them.

Example:
  moodchat dataset build data/processed`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDatasetBuild,
}

var datasetSortCmd = &cobra.Command{
	Use:   "sort-ravdess <src> <dst>",
	Short: "Copy RAVDESS files into per-emotion directories",
	Long: `Walk a RAVDESS download and copy each clip of a supported emotion to
<dst>/<emotion>/. Calm clips are filed as neutral; other emotions are
skipped.

Example:
  moodchat dataset sort-ravdess ~/Downloads/ravdess data/processed`,
	Args: cobra.ExactArgs(2),
	RunE: runDatasetSort,
}

func init() {
	datasetCmd.AddCommand(datasetBuildCmd)
	datasetCmd.AddCommand(datasetSortCmd)
}

// labelCounts renders a per-label count table in label order.
type labelCounts map[emotion.Label]int

func (c labelCounts) MarshalYAML() (any, error) { return c.named(), nil }

func (c labelCounts) named() map[string]int {
	out := make(map[string]int, len(c))
	for l, n := range c {
		out[l.String()] = n
	}
	return out
}

func (c labelCounts) String() string {
	var b strings.Builder
	for _, l := range emotion.All() {
		fmt.Fprintf(&b, "  %-8s %d\n", l, c[l])
	}
	return b.String()
}

type buildResult struct {
	Root       string      `json:"root" yaml:"root"`
	Examples   int         `json:"examples" yaml:"examples"`
	Train      int         `json:"train" yaml:"train"`
	Validation int         `json:"validation" yaml:"validation"`
	Shape      [3]int      `json:"shape" yaml:"shape"`
	Counts     labelCounts `json:"counts" yaml:"counts"`
}

func (r buildResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d examples (%d train, %d validation)\n", r.Root, r.Examples, r.Train, r.Validation)
	fmt.Fprintf(&b, "  shape: %d x %d x %d\n", r.Shape[0], r.Shape[1], r.Shape[2])
	b.WriteString(r.Counts.String())
	return b.String()
}

func runDatasetBuild(cmd *cobra.Command, args []string) error {
	cfg := getConfig()
	root := cfg.Paths.Data
	if len(args) == 1 {
		root = args[0]
	}
	ds, err := buildDataset(cmd, cfg, root)
	if err != nil {
		return err
	}
	n, steps, size := ds.Shape()
	return outputResult(buildResult{
		Root:       root,
		Examples:   n,
		Train:      len(ds.Train),
		Validation: len(ds.Validation),
		Shape:      [3]int{n, steps, size},
		Counts:     ds.Counts(),
	})
}

// buildDataset extracts the dataset under root with a progress bar.
func buildDataset(cmd *cobra.Command, cfg *cli.Config, root string) (*dataset.Dataset, error) {
	src, err := openSource(cfg)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	p := mpb.NewWithContext(cmd.Context(), mpb.WithWidth(40), mpb.WithOutput(cmd.ErrOrStderr()))
	bar := p.AddBar(0,
		mpb.PrependDecorators(
			decor.Name("Extracting: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)

	b := dataset.NewBuilder(src,
		dataset.WithWorkers(cfg.Training.Workers),
		dataset.WithSeed(cfg.Training.Seed),
		dataset.WithValidationRatio(cfg.Training.ValidationRatio),
		dataset.WithLogger(slog.Default()),
		dataset.WithProgress(func(_, total int) {
			bar.SetTotal(int64(total), false)
			bar.Increment()
		}),
	)
	ds, err := b.Build(cmd.Context(), root, emotion.DefaultMap())
	if err != nil {
		bar.Abort(true)
	} else {
		bar.SetTotal(-1, true)
	}
	p.Wait()
	return ds, err
}

func runDatasetSort(cmd *cobra.Command, args []string) error {
	counts, err := dataset.SortRAVDESS(cmd.Context(), args[0], args[1], slog.Default())
	if err != nil {
		return err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	cli.PrintSuccess("Sorted %d files into %s", total, args[1])
	return outputResult(labelCounts(counts))
}
