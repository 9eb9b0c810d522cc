package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"oitm.org/internal/auth"
	"oitm.org/internal/backend"
	"oitm.org/internal/config"
	"oitm.org/internal/httpapi"
	"oitm.org/internal/obs"
)

func serveCmd() *cobra.Command {
	var (
		addr      string
		apiBase   string
		loginPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Long: `Run the HTTP gateway.

Settings come from OITM_* environment variables; flags override them.
OITM_AUTH_SECRET must hold the secret the backend signs tokens with.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if apiBase != "" {
				cfg.APIBase = apiBase
			}
			if loginPath != "" {
				cfg.LoginPath = loginPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from OITM_ADDR or :4321)")
	cmd.Flags().StringVar(&apiBase, "api-base", "", "backend API base URL")
	cmd.Flags().StringVar(&loginPath, "login-path", "", "path of the login page")

	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	verifier, err := auth.NewVerifier([]byte(cfg.AuthSecret))
	if err != nil {
		return err
	}
	client, err := backend.New(cfg.APIBase, backend.WithTimeout(cfg.ReplayTimeout))
	if err != nil {
		return err
	}
	api, err := httpapi.New(httpapi.Options{
		Verifier:  verifier,
		Backend:   client,
		LoginPath: cfg.LoginPath,
		Version:   version,

		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		return err
	}
	api.SetRateLimit(cfg.RateBurst, cfg.RatePerSec)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15*time.Second + cfg.ReplayTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	obs.Info("oitm-web started", map[string]any{
		"addr":     cfg.Addr,
		"api_base": cfg.APIBase,
		"version":  version,
	})

	select {
	case err := <-errCh:
		if err != nil {
			obs.Error("listen failed", map[string]any{"addr": cfg.Addr, "error": err.Error()})
		}
		return err
	case <-ctx.Done():
	}

	obs.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obs.Error("shutdown failed", map[string]any{"error": err.Error()})
		return err
	}

	obs.Info("oitm-web stopped", nil)
	return nil
}
