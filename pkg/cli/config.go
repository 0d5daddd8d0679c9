package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/moodchat/pkg/dataset"
	"github.com/haivivi/moodchat/pkg/features"
	"github.com/haivivi/moodchat/pkg/nn"
	"github.com/haivivi/moodchat/pkg/storage"
	"github.com/haivivi/moodchat/pkg/trainer"
)

const (
	// DefaultBaseDir is the configuration directory under $HOME.
	DefaultBaseDir = ".moodchat"
	// DefaultConfigFile is the configuration file name.
	DefaultConfigFile = "config.yaml"
	// DefaultModelPath is where checkpoints go unless configured.
	DefaultModelPath = "models/emotion_model.mdl"
)

// Config is the moodchat configuration file.
type Config struct {
	Features features.Config  `yaml:"features" json:"features"`
	Model    nn.Config        `yaml:"model" json:"model"`
	Training TrainingConfig   `yaml:"training" json:"training"`
	Paths    PathsConfig      `yaml:"paths" json:"paths"`
	S3       storage.S3Config `yaml:"s3,omitempty" json:"s3,omitempty"`

	configPath string
}

// TrainingConfig controls dataset building and the epoch loop.
type TrainingConfig struct {
	Epochs          int     `yaml:"epochs" json:"epochs"`
	BatchSize       int     `yaml:"batch_size" json:"batch_size"`
	Seed            uint64  `yaml:"seed" json:"seed"`
	ValidationRatio float64 `yaml:"validation_ratio" json:"validation_ratio"`
	// Workers bounds parallel feature extraction; 0 uses every CPU.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`
}

// PathsConfig locates data, the model artifact and the feature cache.
type PathsConfig struct {
	// Data is the labeled root: <data>/<emotion>/*.wav.
	Data string `yaml:"data,omitempty" json:"data,omitempty"`
	// Model is a local path or s3://bucket/key URL.
	Model string `yaml:"model" json:"model"`
	// Cache is the feature cache directory. Empty uses ~/.moodchat/cache;
	// "off" disables caching.
	Cache string `yaml:"cache,omitempty" json:"cache,omitempty"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	tc := trainer.DefaultConfig()
	return &Config{
		Features: features.DefaultConfig(),
		Model:    nn.DefaultConfig(),
		Training: TrainingConfig{
			Epochs:          tc.Epochs,
			BatchSize:       tc.BatchSize,
			Seed:            dataset.DefaultSeed,
			ValidationRatio: dataset.DefaultValidationRatio,
		},
		Paths: PathsConfig{Data: "data/processed", Model: DefaultModelPath},
	}
}

// DefaultConfigPath returns ~/.moodchat/config.yaml.
func DefaultConfigPath() (string, error) {
	p, err := NewPaths()
	if err != nil {
		return "", err
	}
	return p.ConfigFile(), nil
}

// LoadConfig reads the configuration at path, or the default location
// when path is empty. A missing file yields the defaults; fields absent
// from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = p
	}
	cfg := DefaultConfig()
	cfg.configPath = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section and their mutual consistency.
func (c *Config) Validate() error {
	if err := c.Features.Validate(); err != nil {
		return err
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if c.Model.InputSteps != c.Features.MaxPadLen || c.Model.InputSize != c.Features.NumCoefficients {
		return fmt.Errorf("model input (%d, %d) must equal features (max_pad_len %d, num_coefficients %d)",
			c.Model.InputSteps, c.Model.InputSize, c.Features.MaxPadLen, c.Features.NumCoefficients)
	}
	if c.Training.ValidationRatio < 0 || c.Training.ValidationRatio >= 1 {
		return fmt.Errorf("validation_ratio must be in [0, 1), got %g", c.Training.ValidationRatio)
	}
	if c.Paths.Model == "" {
		return errors.New("paths.model is required")
	}
	if _, err := storage.ParseLocation(c.Paths.Model); err != nil {
		return err
	}
	return c.TrainerConfig().Validate()
}

// TrainerConfig returns the loop configuration. The checkpoint name is
// filled in by the caller from the model location.
func (c *Config) TrainerConfig() trainer.Config {
	return trainer.Config{
		Epochs:     c.Training.Epochs,
		BatchSize:  c.Training.BatchSize,
		Seed:       c.Training.Seed,
		Checkpoint: filepath.Base(c.Paths.Model),
	}
}

// Save writes the configuration to its path, creating the directory.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config has no path")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SetPath changes where Save writes.
func (c *Config) SetPath(path string) { c.configPath = path }

// Path returns the config file path.
func (c *Config) Path() string { return c.configPath }

// Dir returns the config directory.
func (c *Config) Dir() string { return filepath.Dir(c.configPath) }
