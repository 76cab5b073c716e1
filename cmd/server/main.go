package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/groqtales/groqtales-server/internal/config"
	"github.com/groqtales/groqtales-server/internal/pipeline"
	"github.com/groqtales/groqtales-server/internal/server"
	"github.com/groqtales/groqtales-server/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config.yaml")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, cfg.Telemetry.Tracing, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	svc, err := pipeline.NewFromConfig(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("failed to close services", slog.String("error", err.Error()))
		}
	}()

	// Missing settings are reported per request; warn once at startup too
	if err := svc.Groq.CheckConfig(""); err != nil {
		logger.Warn("completion API not configured", slog.String("error", err.Error()))
	}
	if err := svc.Chain.CheckConfig(); err != nil {
		logger.Warn("chain not configured", slog.String("error", err.Error()))
	}

	srv := server.New(cfg.Server.Port, logger)
	mountRoutes(srv.Router, cfg, svc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
