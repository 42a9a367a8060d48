package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lewtec/sinalizador/internal/repository"
	"github.com/lewtec/sinalizador/internal/store"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sinalizador",
	Short: "Flag visual inconsistencies on images with bounding boxes",
	Long: strings.TrimSpace(`
Reviewers log in, go through the images of an assigned folder and mark regions
that show a quality problem (shadows, lighting, perspective, ...). Every box may
carry a referring expression describing what is wrong.

Settings can also come from SINALIZADOR_* environment variables or a .env file.
    `),
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("outputs", "o", "./outputs", "Directory where users and annotations are stored (env SINALIZADOR_OUTPUTS)")
	rootCmd.PersistentFlags().StringP("backend", "b", "json", fmt.Sprintf("Storage backend, one of %v (env SINALIZADOR_BACKEND)", repository.Backends))
	rootCmd.MarkPersistentFlagDirname("outputs")
}

// envName maps a flag name to its SINALIZADOR_* variable
func envName(flag string) string {
	return "SINALIZADOR_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// stringFlag returns the flag value. A flag left at its default yields to the
// matching environment variable.
func stringFlag(cmd *cobra.Command, name string) (string, error) {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", err
	}
	if cmd.Flags().Changed(name) {
		return value, nil
	}
	if env, ok := os.LookupEnv(envName(name)); ok && env != "" {
		return env, nil
	}
	return value, nil
}

// openStore opens the configured backend and loads the store from it. The
// caller closes the repository.
func openStore(ctx context.Context, cmd *cobra.Command) (*store.Store, func() error, error) {
	outputs, err := stringFlag(cmd, "outputs")
	if err != nil {
		return nil, nil, err
	}
	backend, err := stringFlag(cmd, "backend")
	if err != nil {
		return nil, nil, err
	}
	repo, err := repository.Open(backend, outputs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	s, err := store.Open(ctx, repo)
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("failed to load annotations: %w", err)
	}
	return s, repo.Close, nil
}
