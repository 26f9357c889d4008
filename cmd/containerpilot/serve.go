package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	apihttp "github.com/melih/containerpilot/internal/adapters/http"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", ":3000", "address to listen on")
	_ = v.BindPFlag("http.listen", serveCmd.Flags().Lookup("listen"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd)
	views := apihttp.NewViewStore()
	s := newStack(cfg, views, cmd.ErrOrStderr())
	defer s.Close()

	handler := apihttp.NewContainerHandler(s.provisioner, s.builder, s.logger)
	app := apihttp.NewApp(handler, views, cfg.HTTP.CacheTTL, s.logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", cfg.HTTP.Listen).Str("ssh_host", cfg.SSH.Host).Msg("server starting")
		errCh <- app.Listen(cfg.HTTP.Listen)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
