package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/moodchat/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	outputFile   string
	outputFormat string
	outputJSON   bool
	verbose      bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "moodchat",
	Short: "Speech emotion classification toolkit",
	Long: `moodchat - classify the emotion of short speech clips.

Audio is reduced to a fixed 40x200 MFCC matrix and fed to a two-layer
LSTM classifier over four labels: angry, happy, neutral and sad.

Configuration is stored in ~/.moodchat/config.yaml.

Examples:
  # Sort the RAVDESS corpus into one directory per label
  moodchat dataset sort-ravdess ~/ravdess data/processed

  # Train and write the best checkpoint
  moodchat train --data data/processed --epochs 40

  # Classify a clip
  moodchat predict hello.wav
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initLogging, initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.moodchat/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "output format: text, yaml or json")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(cacheCmd)
}

func initLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func initConfig() {
	var err error
	globalConfig, err = cli.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}
