// Command operator runs the external-postgres control plane: it bootstraps
// the administrative connection, drives the provisioning engine from both
// the HTTP API and a Kubernetes Database custom resource, and serves
// credentials into the cluster as replicated Secrets.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/wafflehacks/external-postgres/internal/config"
	"github.com/wafflehacks/external-postgres/internal/dbconn"
	"github.com/wafflehacks/external-postgres/internal/httpapi"
	"github.com/wafflehacks/external-postgres/internal/operator"
	"github.com/wafflehacks/external-postgres/internal/provisioning"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("parse configuration: %w", err)
	}

	zapLog, err := newZapLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer zapLog.Sync() //nolint:errcheck
	log := zapr.NewLogger(zapLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conns, err := dbconn.New(ctx, cfg.ConnectionTemplate(), log.WithName("dbconn"))
	if err != nil {
		return fmt.Errorf("connect to administrative database: %w", err)
	}

	engine := provisioning.New(conns, log.WithName("provisioning"))

	ctl := operator.New(operator.Config{
		KubeconfigPath:    cfg.Kubeconfig,
		KubeContext:       cfg.KubeContext,
		ManagementAddress: cfg.ManagementAddress,
		Secret: operator.SecretConfig{
			Host:    cfg.KubeDatabaseHost,
			Port:    cfg.KubeDatabasePort,
			SSLMode: cfg.KubeDatabaseSSLMode,
		},
	}, engine, log.WithName("operator"))

	if started, err := ctl.Start(ctx); err != nil {
		log.Error(err, "failed to start operator controller")
	} else if !started {
		log.Info("kubeconfig not found at startup, operator remains stopped until retried")
		ctl.WatchKubeconfig(ctx)
	}

	httpServer := &http.Server{
		Addr:    cfg.ManagementAddress,
		Handler: httpapi.New(conns, engine, ctl, log.WithName("httpapi")),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("control-plane HTTP server listening", "address", cfg.ManagementAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			log.Error(err, "HTTP server exited unexpectedly")
		}
	}

	cancel()
	ctl.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newZapLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	if level == "debug" {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zapLevel
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zapLevel
	return cfg.Build()
}
