package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kalambet/prefs/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the record over HTTP (foreground)",
	Long: `Serve the record over HTTP until interrupted.

The record stays loaded for the lifetime of the server, so other prefsctl
commands in the same process cannot load it. Requests must carry
"Authorization: Bearer <token>". Without a configured token (PREFSCTL_TOKEN
or the platform keychain) a random one is generated and printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cmd)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
}

func runServer(ctx context.Context, cmd *cobra.Command) error {
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			slog.Error("closing record", "error", err)
		}
	}()

	token := cfg.Server.Token
	if token == "" {
		token = uuid.NewString()
		fmt.Fprintf(cmd.OutOrStdout(), "API token: %s\n", token)
	}

	handler := api.NewHandler(api.Deps{
		Record: s.rec,
		Mu:     &sync.Mutex{},
		Token:  token,
	})

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout) * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		printStep("Serving %s on http://%s", s.rec.Describe(), ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
