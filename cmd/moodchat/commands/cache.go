package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/haivivi/moodchat/pkg/cli"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the feature cache",
	Long: `Manage the on-disk cache of extracted feature matrices.

The cache lives in paths.cache (default ~/.moodchat/cache). Entries are
keyed by the feature configuration and each file's size and mtime, so
stale entries are never served. Purge reclaims the space held by the
current feature configuration.`,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached matrices for the current feature configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		src, err := openSource(getConfig())
		if err != nil {
			return err
		}
		defer src.Close()
		if src.cache == nil {
			return errors.New("feature cache is disabled (paths.cache: off)")
		}
		n, size, err := src.cache.Purge(cmd.Context())
		if err != nil {
			return err
		}
		cli.PrintSuccess("Purged %d cached entries (%s)", n, cli.FormatBytes(size))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
}
