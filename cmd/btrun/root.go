package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "btrun",
	Short: "btrun loads behaviour tree templates and ticks agents built from them",
	Long: `btrun builds behaviour trees from YAML or JSON templates, spawns agents that
each own a private clone of the tree, and ticks them at a fixed interval.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFile,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file read before the config; a missing file is ignored")
}

// loadEnvFile makes the dotenv values visible to ${VAR} references in the
// config. Variables already set in the environment win.
func loadEnvFile(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
