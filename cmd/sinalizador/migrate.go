package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/lewtec/sinalizador/internal/domain"
	"github.com/lewtec/sinalizador/internal/repository"
	"github.com/lewtec/sinalizador/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate --from <backend> --to <backend>",
	Short: "Copy users and annotations between storage backends",
	Long: `Copy users and annotations from one storage backend to another.

The source is read through the same loader the server uses, so legacy
documents are validated on the way. The target must not hold any data yet.

Example: sinalizador migrate --from json --to sqlite --outputs ./outputs`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := cmd.Flags().GetString("from")
		if err != nil {
			return err
		}
		to, err := cmd.Flags().GetString("to")
		if err != nil {
			return err
		}
		outputs, err := stringFlag(cmd, "outputs")
		if err != nil {
			return err
		}
		target, err := cmd.Flags().GetString("to-outputs")
		if err != nil {
			return err
		}
		if target == "" {
			target = outputs
		}
		if from == to && target == outputs {
			return fmt.Errorf("source and target are the same")
		}

		log.Printf("Starting migration...")
		log.Printf("  From: %s (%s)", from, outputs)
		log.Printf("  To: %s (%s)", to, target)
		return migrateDatasets(cmd.Context(), from, outputs, to, target)
	},
}

func migrateDatasets(ctx context.Context, fromBackend, fromDir, toBackend, toDir string) error {
	source, err := repository.Open(fromBackend, fromDir)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()
	s, err := store.Open(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to load source: %w", err)
	}

	target, err := repository.Open(toBackend, toDir)
	if err != nil {
		return fmt.Errorf("failed to open target: %w", err)
	}
	defer target.Close()
	for _, name := range []string{domain.DatasetUsers, domain.DatasetAnnotations} {
		doc, err := target.Load(ctx, name)
		if err != nil {
			return err
		}
		if doc != nil {
			return fmt.Errorf("target already has a '%s' dataset (delete it first if you want to recreate it)", name)
		}
	}

	if err := s.Export(ctx, target); err != nil {
		return fmt.Errorf("failed to write target: %w", err)
	}
	log.Printf("Migrated %d users and annotations of %d users", len(s.Users()), len(s.Annotations()))
	return nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().String("from", "json", fmt.Sprintf("Source backend, one of %v", repository.Backends))
	migrateCmd.Flags().String("to", "", fmt.Sprintf("Target backend, one of %v", repository.Backends))
	migrateCmd.Flags().String("to-outputs", "", "Target directory, defaults to --outputs")
	migrateCmd.MarkFlagRequired("to")
}
