// Package main provides the moodchat CLI tool.
//
// Usage:
//
//	moodchat [flags] <command> [args]
//
// Commands:
//
//	extract   - Print the MFCC matrix summary of a WAV file
//	dataset   - Build a labeled dataset or sort the RAVDESS corpus
//	train     - Train the emotion classifier and checkpoint the best epoch
//	predict   - Classify WAV files with the trained model
//	cache     - Manage the feature cache
//	config    - Show or initialize the configuration
//
// Configuration:
//
//	The CLI reads ~/.moodchat/config.yaml unless --config is given.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/haivivi/moodchat/cmd/moodchat/commands"
	"github.com/haivivi/moodchat/pkg/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := commands.Execute(ctx)
	stop()
	if err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
