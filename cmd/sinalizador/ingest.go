package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lewtec/sinalizador/annotation"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <folder> <image>...",
	Short: "Copy images into a user folder",
	Long: `Copy images into the images/ directory of a user folder and record them in
its metadata.json. Files that are not png, jpeg or gif images are rejected.

The --type value is what decides the name shown to reviewers: "edited" images
are shown as "(EDITED)" and "fake" ones as "(AI-GENERATED)".`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(2)(cmd, args); err != nil {
			return err
		}
		for i, input := range args[1:] {
			fileInfo, err := os.Stat(input)
			if err != nil {
				return fmt.Errorf("on %dth image: %w", i+1, err)
			}
			if fileInfo.IsDir() {
				return fmt.Errorf("on %dth image: must be a file", i+1)
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := cmd.Flags().GetString("type")
		if err != nil {
			return err
		}
		folder, err := annotation.OpenImageFolder(args[0])
		if err != nil {
			return err
		}
		for _, input := range args[1:] {
			f, err := os.Open(input)
			if err != nil {
				return err
			}
			err = folder.Ingest(input, f, kind)
			f.Close()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", folder.DisplayName(filepath.Base(input)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("type", "t", "original", "How the images were produced: original, edited or fake")
}
