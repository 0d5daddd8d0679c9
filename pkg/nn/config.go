package nn

import "fmt"

// Config describes the network architecture and learning rate.
type Config struct {
	InputSteps   int     `yaml:"input_steps" json:"input_steps" msgpack:"input_steps"`
	InputSize    int     `yaml:"input_size" json:"input_size" msgpack:"input_size"`
	LSTM1        int     `yaml:"lstm1" json:"lstm1" msgpack:"lstm1"`
	LSTM2        int     `yaml:"lstm2" json:"lstm2" msgpack:"lstm2"`
	Dense        int     `yaml:"dense" json:"dense" msgpack:"dense"`
	Classes      int     `yaml:"classes" json:"classes" msgpack:"classes"`
	Dropout      float64 `yaml:"dropout" json:"dropout" msgpack:"dropout"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate" msgpack:"learning_rate"`
}

// DefaultConfig returns the production architecture for (200, 40) MFCC
// input and four emotions.
func DefaultConfig() Config {
	return Config{
		InputSteps:   200,
		InputSize:    40,
		LSTM1:        256,
		LSTM2:        128,
		Dense:        64,
		Classes:      4,
		Dropout:      0.3,
		LearningRate: 1e-3,
	}
}

// Validate reports invalid dimensions or hyperparameters.
func (c Config) Validate() error {
	for _, d := range []struct {
		name string
		v    int
	}{
		{"input_steps", c.InputSteps},
		{"input_size", c.InputSize},
		{"lstm1", c.LSTM1},
		{"lstm2", c.LSTM2},
		{"dense", c.Dense},
		{"classes", c.Classes},
	} {
		if d.v <= 0 {
			return fmt.Errorf("nn: %s must be positive, got %d", d.name, d.v)
		}
	}
	if c.Classes < 2 {
		return fmt.Errorf("nn: need at least 2 classes, got %d", c.Classes)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("nn: dropout must be in [0, 1), got %g", c.Dropout)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("nn: learning rate must be positive, got %g", c.LearningRate)
	}
	return nil
}
