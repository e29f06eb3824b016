package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/earthback/loraprep/internal/review"
)

func newServeCmd() *cobra.Command {
	var addr string
	var dir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a web page for reviewing and editing captions",
		Long: `Serves the curated images with their captions in the browser. Saving a
caption writes the .txt file and updates captions-review.json.`,
		Example: `  # Start server on the default address
  loraprep serve

  # Start server on a custom port
  loraprep serve --addr :3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, p, err := setup()
			if err != nil {
				return err
			}
			curated := or(dir, p.Dataset.Curated())

			store, err := review.Open(curated)
			if err != nil {
				return err
			}

			addr = or(addr, settings.ServeAddr)
			server := &http.Server{
				Addr:              addr,
				Handler:           review.NewRouter(store, p.Caption.Trigger, !verbose),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				images, captioned := store.Counts()
				slog.Info("Caption review available", "addr", addr, "url", "http://localhost"+localPort(addr), "images", images, "captioned", captioned)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default $LORAPREP_ADDR or :8888)")
	cmd.Flags().StringVar(&dir, "dir", "", "Curated image directory (default <dataset>/curated)")

	return cmd
}

func localPort(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ":" + addr
}
