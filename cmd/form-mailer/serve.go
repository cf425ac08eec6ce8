package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shineum/form-mailer-lite/internal/config"
	"github.com/shineum/form-mailer-lite/internal/relay"
	"github.com/shineum/form-mailer-lite/internal/server"
	formtls "github.com/shineum/form-mailer-lite/internal/tls"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the form endpoint over HTTP (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	srvCfg, err := serverConfig(cfg)
	if err != nil {
		return err
	}

	svc := relay.NewService(opener(cfg), cfg.Defaults())
	svc.Startup(ctx)
	defer svc.Shutdown()

	slog.Info("starting form-mailer-lite",
		"listen", cfg.HTTP.Listen,
		"path", cfg.HTTP.Path,
		"provider", cfg.Transport.Provider,
		"tls_enabled", cfg.HTTP.TLS.Enabled,
	)

	// Blocks until a signal cancels ctx.
	if err := server.New(srvCfg, svc).ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		return err
	}

	slog.Info("form-mailer-lite stopped")
	return nil
}

func serverConfig(cfg *config.Config) (server.Config, error) {
	srvCfg := server.Config{
		ListenAddr:   cfg.HTTP.Listen,
		Path:         cfg.HTTP.Path,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}
	if !cfg.HTTP.TLS.Enabled {
		return srvCfg, nil
	}

	tlsCfg, err := formtls.ServerConfig(cfg.HTTP.TLS.CertFile, cfg.HTTP.TLS.KeyFile)
	if err != nil {
		return server.Config{}, err
	}
	srvCfg.TLSConfig = tlsCfg
	return srvCfg, nil
}
