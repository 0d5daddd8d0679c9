package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/moodchat/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Show or initialize the moodchat configuration.

Configuration is stored in ~/.moodchat/config.yaml. Fields missing from
the file keep their built-in defaults.`,
}

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"view"},
	Short:   "Print the effective configuration",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := getConfig()
		fmt.Fprintf(cmd.ErrOrStderr(), "# Config file: %s\n", cfg.Path())
		return outputResult(cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Write the built-in defaults to the config file so they can be edited.

An existing file is left alone unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return fmt.Errorf("failed to read 'force' flag: %w", err)
		}
		path := getConfig().Path()
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
		cfg := cli.DefaultConfig()
		cfg.SetPath(path)
		if err := cfg.Save(); err != nil {
			return err
		}
		cli.PrintSuccess("Wrote %s", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
