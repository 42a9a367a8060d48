package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lewtec/sinalizador/annotation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the annotation web server",
	Long: `Start the annotation web server for a user folder.

The folder must contain an images/ directory and a metadata.json file (see
'sinalizador init'). When the folder has a config.yaml it is used as the flag
catalog unless --config points somewhere else.`,
	Example: `  # Serve a folder on the default port
  sinalizador serve -u ./splits/user1

  # Keep annotations in sqlite instead of JSON files
  sinalizador serve -u ./splits/user1 --backend sqlite --port 8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userFolder, err := stringFlag(cmd, "user-folder")
		if err != nil {
			return err
		}
		if userFolder == "" {
			return fmt.Errorf("--user-folder is required")
		}
		configFile, err := stringFlag(cmd, "config")
		if err != nil {
			return err
		}
		if configFile == "" {
			candidate := filepath.Join(userFolder, "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				configFile = candidate
			}
		}
		host, err := stringFlag(cmd, "host")
		if err != nil {
			return err
		}
		port, err := stringFlag(cmd, "port")
		if err != nil {
			return err
		}
		lang, err := stringFlag(cmd, "lang")
		if err != nil {
			return err
		}
		if lang != "" {
			annotation.SetLanguage(lang)
		}

		config, err := annotation.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		folder, err := annotation.OpenImageFolder(userFolder)
		if err != nil {
			return fmt.Errorf("failed to load user folder '%s': %w", userFolder, err)
		}
		s, closeStore, err := openStore(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		app := &annotation.AnnotatorApp{
			Store:  s,
			Folder: folder,
			Config: config,
		}

		addr := net.JoinHostPort(host, port)
		server := &http.Server{
			Addr:    addr,
			Handler: app.GetHTTPHandler(),
		}

		log.Printf("Configuration: %s", stringOr(configFile, "(embedded flags)"))
		log.Printf("User folder: %s", userFolder)
		log.Printf("Flags configured: %d", len(config.Flags))
		log.Printf("Starting server on: %s", addr)

		serverErr := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()

		select {
		case <-cmd.Context().Done():
			log.Printf("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			log.Printf("Server stopped")
			return nil
		case err := <-serverErr:
			return err
		}
	},
}

func stringOr(str, or string) string {
	if str != "" {
		return str
	}
	return or
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("user-folder", "u", "", "Folder with images/ and metadata.json (env SINALIZADOR_USER_FOLDER)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind the webserver (env SINALIZADOR_HOST)")
	serveCmd.Flags().StringP("port", "p", "7865", "Port to bind the webserver (env SINALIZADOR_PORT)")
	serveCmd.Flags().StringP("config", "c", "", "Flag catalog in YAML, defaults to the folder's config.yaml or the built-in flags (env SINALIZADOR_CONFIG)")
	serveCmd.Flags().String("lang", "", fmt.Sprintf("Fallback language, one of %v (env SINALIZADOR_LANG)", annotation.Locales))
	serveCmd.MarkFlagDirname("user-folder")
	serveCmd.MarkFlagFilename("config", "yaml", "yml")
}
