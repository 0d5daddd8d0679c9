// Package trainer runs the epoch loop for the emotion classifier and
// keeps the best checkpoint by validation accuracy.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/moodchat/pkg/dataset"
	"github.com/haivivi/moodchat/pkg/nn"
	"github.com/haivivi/moodchat/pkg/storage"
)

// ErrDiverged is returned when a training step produces a non-finite loss.
var ErrDiverged = errors.New("trainer: loss diverged")

// State is the trainer lifecycle position.
type State int32

const (
	Idle State = iota
	DatasetLoaded
	ForwardBackwardPass
	ValidationEvaluation
	CheckpointDecision
	Done
	Failed
)

var stateNames = [...]string{"idle", "dataset_loaded", "forward_backward", "validation", "checkpoint", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// Config holds the loop parameters.
type Config struct {
	Epochs    int    `yaml:"epochs" json:"epochs"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
	Seed      uint64 `yaml:"seed" json:"seed"`
	// Checkpoint is the path of the best model inside the store.
	Checkpoint string `yaml:"checkpoint" json:"checkpoint"`
}

// DefaultConfig returns 40 epochs of batch 32.
func DefaultConfig() Config {
	return Config{Epochs: 40, BatchSize: 32, Seed: 42, Checkpoint: "emotion_model.mdl"}
}

// Validate reports invalid loop parameters.
func (c Config) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("trainer: epochs must be at least 1, got %d", c.Epochs)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("trainer: batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.Checkpoint == "" {
		return errors.New("trainer: checkpoint path is required")
	}
	return nil
}

// EpochStats summarizes one epoch.
type EpochStats struct {
	Epoch        int           `json:"epoch"`
	Loss         float64       `json:"loss"`
	ValLoss      float64       `json:"val_loss"`
	ValAccuracy  float64       `json:"val_accuracy"`
	Checkpointed bool          `json:"checkpointed"`
	Duration     time.Duration `json:"duration"`
}

// Report is the outcome of a training run.
type Report struct {
	RunID           string       `json:"run_id"`
	Epochs          int          `json:"epochs"`
	BestEpoch       int          `json:"best_epoch"`
	BestValAccuracy float64      `json:"best_val_accuracy"`
	Checkpoint      string       `json:"checkpoint"`
	Train           int          `json:"train"`
	Validation      int          `json:"validation"`
	History         []EpochStats `json:"history"`
	Started         time.Time    `json:"started"`
	Finished        time.Time    `json:"finished"`
}

// Trainer owns one model and trains it once.
type Trainer struct {
	cfg    Config
	model  *nn.Model
	store  storage.FileStore
	logger *slog.Logger

	onEpoch func(EpochStats)
	onBatch func(epoch, done, total int)
	meta    map[string]string

	state atomic.Int32
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(t *Trainer) { t.logger = l } }

// OnEpoch registers a callback invoked after every epoch.
func OnEpoch(fn func(EpochStats)) Option { return func(t *Trainer) { t.onEpoch = fn } }

// OnBatch registers a callback invoked after every mini-batch.
func OnBatch(fn func(epoch, done, total int)) Option { return func(t *Trainer) { t.onBatch = fn } }

// WithMeta records key/value provenance in every checkpoint.
func WithMeta(key, value string) Option {
	return func(t *Trainer) { t.meta[key] = value }
}

// New creates a trainer that writes checkpoints for model into store.
func New(model *nn.Model, store storage.FileStore, cfg Config, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Trainer{
		cfg:    cfg,
		model:  model,
		store:  store,
		logger: slog.Default(),
		meta:   map[string]string{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// State returns the current lifecycle state.
func (t *Trainer) State() State { return State(t.state.Load()) }

func (t *Trainer) setState(s State) { t.state.Store(int32(s)) }

// Model returns the model being trained.
func (t *Trainer) Model() *nn.Model { return t.model }

// Train runs the configured number of epochs over ds. After each epoch the
// model is evaluated on the validation split and written to the checkpoint
// path if its accuracy strictly exceeds every earlier epoch. A trainer can
// run only once.
func (t *Trainer) Train(ctx context.Context, ds *dataset.Dataset) (*Report, error) {
	if !t.state.CompareAndSwap(int32(Idle), int32(DatasetLoaded)) {
		return nil, fmt.Errorf("trainer: cannot train in state %s", t.State())
	}
	rep, err := t.run(ctx, ds)
	if err != nil {
		t.setState(Failed)
		t.logger.Error("trainer: failed", "error", err)
		return rep, err
	}
	t.setState(Done)
	return rep, nil
}

func (t *Trainer) run(ctx context.Context, ds *dataset.Dataset) (*Report, error) {
	mcfg := t.model.Config()
	if ds == nil {
		return nil, dataset.ErrEmptyDataset
	}
	if err := ds.Validate(mcfg.InputSteps, mcfg.InputSize); err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:           uuid.NewString(),
		BestEpoch:       0,
		BestValAccuracy: -1,
		Checkpoint:      t.cfg.Checkpoint,
		Train:           len(ds.Train),
		Validation:      len(ds.Validation),
		Started:         time.Now(),
	}
	trainX, trainY := tensors(ds.Train)
	valX, valY := tensors(ds.Validation)
	if len(valX) == 0 {
		// Nothing held out; score on the training set instead.
		valX, valY = trainX, trainY
		t.logger.Warn("trainer: empty validation split, evaluating on training data")
	}

	shuffle := rand.New(rand.NewPCG(t.cfg.Seed, 1))
	drop := rand.New(rand.NewPCG(t.cfg.Seed, 2))
	batches := (len(trainX) + t.cfg.BatchSize - 1) / t.cfg.BatchSize

	t.logger.Info("trainer: start",
		"run", rep.RunID, "train", len(trainX), "validation", len(ds.Validation),
		"epochs", t.cfg.Epochs, "batch_size", t.cfg.BatchSize, "params", t.model.NumParams())

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()
		t.setState(ForwardBackwardPass)
		perm := shuffle.Perm(len(trainX))
		total := 0.0
		for b := 0; b < batches; b++ {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			idx := perm[b*t.cfg.BatchSize : min((b+1)*t.cfg.BatchSize, len(perm))]
			xs := make([][][]float64, len(idx))
			ys := make([]int, len(idx))
			for i, j := range idx {
				xs[i], ys[i] = trainX[j], trainY[j]
			}
			loss, err := t.model.TrainStep(xs, ys, drop)
			if err != nil {
				return rep, err
			}
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return rep, fmt.Errorf("%w: epoch %d batch %d loss %v", ErrDiverged, epoch, b+1, loss)
			}
			total += loss * float64(len(idx))
			if t.onBatch != nil {
				t.onBatch(epoch, b+1, batches)
			}
		}

		t.setState(ValidationEvaluation)
		valLoss, valAcc, err := Evaluate(t.model, valX, valY, t.cfg.BatchSize)
		if err != nil {
			return rep, err
		}

		if math.IsNaN(valLoss) || math.IsInf(valLoss, 0) {
			return rep, fmt.Errorf("%w: epoch %d validation loss %v", ErrDiverged, epoch, valLoss)
		}

		t.setState(CheckpointDecision)
		stats := EpochStats{
			Epoch:       epoch,
			Loss:        total / float64(len(trainX)),
			ValLoss:     valLoss,
			ValAccuracy: valAcc,
		}
		if valAcc > rep.BestValAccuracy {
			if err := t.checkpoint(ctx, rep.RunID, epoch, valAcc); err != nil {
				return rep, err
			}
			rep.BestValAccuracy, rep.BestEpoch = valAcc, epoch
			stats.Checkpointed = true
		}
		stats.Duration = time.Since(start)
		rep.History = append(rep.History, stats)
		rep.Epochs = epoch

		t.logger.Info("trainer: epoch",
			"epoch", epoch, "loss", stats.Loss, "val_loss", valLoss,
			"val_accuracy", valAcc, "checkpointed", stats.Checkpointed,
			"duration", stats.Duration.Round(time.Millisecond))
		if t.onEpoch != nil {
			t.onEpoch(stats)
		}
	}
	rep.Finished = time.Now()
	return rep, nil
}

// checkpoint overwrites the checkpoint file with the current weights.
func (t *Trainer) checkpoint(ctx context.Context, runID string, epoch int, acc float64) error {
	for k, v := range t.meta {
		t.model.Meta[k] = v
	}
	t.model.Meta["run_id"] = runID
	t.model.Meta["epoch"] = strconv.Itoa(epoch)
	t.model.Meta["val_accuracy"] = strconv.FormatFloat(acc, 'f', 4, 64)

	w, err := t.store.Write(ctx, t.cfg.Checkpoint)
	if err != nil {
		return fmt.Errorf("trainer: checkpoint: %w", err)
	}
	if err := t.model.Save(w); err != nil {
		return fmt.Errorf("trainer: checkpoint: %w", w.CloseWithError(err))
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("trainer: checkpoint: %w", err)
	}
	return nil
}

// Evaluate returns mean cross-entropy and accuracy of m over xs in batches.
func Evaluate(m *nn.Model, xs [][][]float64, ys []int, batchSize int) (loss, acc float64, err error) {
	if len(xs) == 0 {
		return 0, 0, dataset.ErrEmptyDataset
	}
	correct := 0
	for start := 0; start < len(xs); start += batchSize {
		end := min(start+batchSize, len(xs))
		probs, err := m.ForwardBatch(xs[start:end])
		if err != nil {
			return 0, 0, err
		}
		for i, p := range probs {
			y := ys[start+i]
			loss += nn.CrossEntropy(p, y)
			if nn.Argmax(p) == y {
				correct++
			}
		}
	}
	n := float64(len(xs))
	return loss / n, float64(correct) / n, nil
}

func tensors(examples []dataset.Example) ([][][]float64, []int) {
	xs := make([][][]float64, len(examples))
	ys := make([]int, len(examples))
	for i, e := range examples {
		xs[i] = e.Features.RowViews()
		ys[i] = int(e.Label)
	}
	return xs, ys
}
