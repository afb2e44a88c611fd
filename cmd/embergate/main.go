// Command embergate runs the Yggdrasil-compatible authentication proxy:
// it terminates Minecraft session-validation HTTP calls and translates
// them into the LaunchServer WebSocket protocol for one or more
// configured backends.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kardianos/service"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/embergate/embergate/internal/backend"
	"github.com/embergate/embergate/internal/config"
	"github.com/embergate/embergate/internal/httpapi"
	"github.com/embergate/embergate/internal/keypair"
	"github.com/embergate/embergate/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (relative/absolute)")
	dataDir := flag.String("data-dir", "", "override the configured data directory (keys, etc.)")
	install := flag.Bool("install", false, "install embergate as a system service")
	uninstall := flag.Bool("uninstall", false, "uninstall the embergate system service")
	runAsService := flag.Bool("run", false, "run under the service manager (used internally)")
	flag.Parse()

	logLevel := new(slog.LevelVar)
	logger := newLogger(logLevel)

	prog := &program{configPath: *configPath, dataDir: *dataDir, logger: logger, logLevel: logLevel}

	svcArgs := []string{"-run", "-config", *configPath}
	if *dataDir != "" {
		svcArgs = append(svcArgs, "-data-dir", *dataDir)
	}
	svcConfig := &service.Config{
		Name:        "embergate",
		DisplayName: "Embergate authentication proxy",
		Description: "Yggdrasil-compatible proxy in front of one or more LaunchServer backends.",
		Arguments:   svcArgs,
	}

	svc, err := service.New(prog, svcConfig)
	if err != nil {
		logger.Error("failed to initialise service wrapper", "error", err)
		os.Exit(1)
	}

	switch {
	case *install:
		if err := svc.Install(); err != nil {
			logger.Error("install failed", "error", err)
			os.Exit(1)
		}
		logger.Info("service installed")
		return
	case *uninstall:
		if err := svc.Uninstall(); err != nil {
			logger.Error("uninstall failed", "error", err)
			os.Exit(1)
		}
		logger.Info("service uninstalled")
		return
	case *runAsService:
		if err := svc.Run(); err != nil {
			logger.Error("service run failed", "error", err)
			os.Exit(1)
		}
		return
	default:
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if err := runEmbergate(ctx, *configPath, *dataDir, logger, logLevel); err != nil {
			logger.Error("embergate exited with error", "error", err)
			os.Exit(1)
		}
	}
}

// program adapts runEmbergate to kardianos/service's Interface so the
// same binary runs interactively or under a service manager.
type program struct {
	configPath string
	dataDir    string
	logger     *slog.Logger
	logLevel   *slog.LevelVar
	cancel     context.CancelFunc
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go func() {
		if err := runEmbergate(ctx, p.configPath, p.dataDir, p.logger, p.logLevel); err != nil {
			p.logger.Error("embergate exited with error", "error", err)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func newLogger(level *slog.LevelVar) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// parseLogLevel maps the config's log_level string onto a slog.Level,
// defaulting to Info for an unrecognised value.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runEmbergate(ctx context.Context, configPath, dataDirOverride string, logger *slog.Logger, logLevel *slog.LevelVar) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if dataDirOverride != "" {
		cfg.DataDir = dataDirOverride
	}
	logLevel.Set(parseLogLevel(cfg.LogLevel))

	keys, err := keypair.LoadOrCreate(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("loading key material: %w", err)
	}

	registry := metricsRegistry()
	rec := metrics.NewPrometheus(registry)

	descriptors := make([]backend.Descriptor, len(cfg.Backends))
	for i, b := range cfg.Backends {
		descriptors[i] = backend.Descriptor{Name: b.Name, URL: b.URL, Token: b.Token, Assets: b.Assets}
	}
	timeout := time.Duration(cfg.CallTimeoutSeconds) * time.Second

	backends := backend.NewRegistry(descriptors, timeout, logger, rec)
	backends.Start(ctx)

	router := httpapi.NewRouter(backends, keys, httpapi.ServerMeta{
		Name:                  cfg.ServerName,
		ImplementationName:    "Embergate",
		ImplementationVersion: cfg.ImplementationVersion,
	}, logger, registry)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server did not shut down cleanly", "error", err)
	}
	backends.Shutdown(shutdownCtx)

	return nil
}

func metricsRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
