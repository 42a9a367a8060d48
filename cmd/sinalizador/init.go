package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/spf13/cobra"

	"github.com/lewtec/sinalizador/annotation"
)

var initCmd = &cobra.Command{
	Use:   "init <folder>",
	Short: "Initialize a new user folder",
	Long: `Initialize a user folder by creating:
- A configuration file with the default flag catalog (config.yaml)
- An images/ directory
- An empty metadata.json

Existing files are left untouched.

Example:
  sinalizador init ./splits/user1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := args[0]
		out := cmd.OutOrStdout()
		if err := os.MkdirAll(folder, 0755); err != nil {
			return fmt.Errorf("failed to create folder: %w", err)
		}

		configFile := filepath.Join(folder, "config.yaml")
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			fmt.Fprintf(out, "Creating default config: %s\n", configFile)
			if err := os.WriteFile(configFile, annotation.DefaultConfigYAML(), 0644); err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
		} else {
			fmt.Fprintf(out, "Config file already exists: %s\n", configFile)
		}
		if _, err := annotation.LoadConfig(configFile); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := annotation.CreateImageFolder(osfs.New(folder)); err != nil {
			return err
		}

		fmt.Fprintln(out, "✓ Initialization complete!")
		fmt.Fprintln(out, "\nNext steps:")
		fmt.Fprintf(out, "  1. Copy images with: sinalizador ingest %s <images...>\n", folder)
		fmt.Fprintf(out, "  2. Start the annotation server: sinalizador serve -u %s\n", folder)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
