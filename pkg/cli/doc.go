// Package cli holds the shared plumbing of the moodchat command: the YAML
// configuration file, the ~/.moodchat directory layout, result output in
// YAML or JSON, and terminal rendering of prediction probabilities.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("")
//	...
//	cli.Output(report, cli.OutputOptions{Format: cli.FormatJSON})
package cli
