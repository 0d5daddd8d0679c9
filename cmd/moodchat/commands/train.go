package commands

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/haivivi/moodchat/pkg/cli"
	"github.com/haivivi/moodchat/pkg/inference"
	"github.com/haivivi/moodchat/pkg/nn"
	"github.com/haivivi/moodchat/pkg/storage"
	"github.com/haivivi/moodchat/pkg/trainer"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the emotion classifier",
	Long: `Build the dataset, train the LSTM classifier and keep the checkpoint with
the best validation accuracy.

The checkpoint goes to paths.model, a local path or an s3://bucket/key URL.
S3 credentials are read from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.

Example:
  moodchat train --data data/processed --epochs 40 --batch-size 32
  moodchat train --model s3://models/moodchat/emotion_model.mdl`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().String("data", "", "dataset root (default: paths.data)")
	trainCmd.Flags().String("model", "", "checkpoint location (default: paths.model)")
	trainCmd.Flags().Int("epochs", 0, "number of epochs (default: training.epochs)")
	trainCmd.Flags().Int("batch-size", 0, "mini-batch size (default: training.batch_size)")
	trainCmd.Flags().Uint64("seed", 0, "split and initialization seed (default: training.seed)")
}

type trainResult trainer.Report

func (r trainResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d epochs on %d examples (%d validation)\n",
		r.RunID, r.Epochs, r.Train, r.Validation)
	for _, e := range r.History {
		mark := " "
		if e.Checkpointed {
			mark = "*"
		}
		fmt.Fprintf(&b, " %s epoch %3d  loss %.4f  val_loss %.4f  val_acc %s  %s\n",
			mark, e.Epoch, e.Loss, e.ValLoss, cli.FormatPercent(e.ValAccuracy), cli.FormatDuration(e.Duration))
	}
	fmt.Fprintf(&b, "best: epoch %d, val_acc %s -> %s\n",
		r.BestEpoch, cli.FormatPercent(r.BestValAccuracy), r.Checkpoint)
	return b.String()
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg := getConfig()
	if err := applyTrainFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, name, err := storage.Open(cfg.Paths.Model, cfg.S3)
	if err != nil {
		return err
	}

	ds, err := buildDataset(cmd, cfg, cfg.Paths.Data)
	if err != nil {
		return err
	}

	model, err := nn.New(cfg.Model, cfg.Training.Seed)
	if err != nil {
		return err
	}
	slog.Info("model initialized", "params", model.NumParams())

	tcfg := cfg.TrainerConfig()
	tcfg.Checkpoint = name

	p := mpb.NewWithContext(cmd.Context(), mpb.WithWidth(40), mpb.WithOutput(cmd.ErrOrStderr()))
	var last atomic.Pointer[string]
	bar := p.AddBar(int64(tcfg.Epochs),
		mpb.PrependDecorators(
			decor.Name("Training: "),
			decor.CountersNoUnit("epoch %d / %d"),
		),
		mpb.AppendDecorators(
			decor.AverageETA(decor.ET_STYLE_GO),
			decor.Any(func(decor.Statistics) string {
				if s := last.Load(); s != nil {
					return " " + *s
				}
				return ""
			}),
		),
	)

	tr, err := trainer.New(model, store, tcfg,
		trainer.WithLogger(slog.Default()),
		trainer.WithMeta(inference.MetaFeatures, cfg.Features.Fingerprint()),
		trainer.OnEpoch(func(e trainer.EpochStats) {
			s := fmt.Sprintf("loss %.3f val_acc %s", e.Loss, strings.TrimSpace(cli.FormatPercent(e.ValAccuracy)))
			last.Store(&s)
			bar.Increment()
		}),
	)
	if err != nil {
		bar.Abort(true)
		p.Wait()
		return err
	}

	rep, err := tr.Train(cmd.Context(), ds)
	if err != nil {
		bar.Abort(false)
	} else {
		bar.SetTotal(-1, true)
	}
	p.Wait()
	if err != nil {
		return err
	}
	cli.PrintSuccess("Best checkpoint (epoch %d) written to %s", rep.BestEpoch, cfg.Paths.Model)
	return outputResult((*trainResult)(rep))
}

func applyTrainFlags(cmd *cobra.Command, cfg *cli.Config) error {
	f := cmd.Flags()
	for _, err := range []error{
		flagOverride(cmd, "data", &cfg.Paths.Data, f.GetString),
		flagOverride(cmd, "model", &cfg.Paths.Model, f.GetString),
		flagOverride(cmd, "epochs", &cfg.Training.Epochs, f.GetInt),
		flagOverride(cmd, "batch-size", &cfg.Training.BatchSize, f.GetInt),
		flagOverride(cmd, "seed", &cfg.Training.Seed, f.GetUint64),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
