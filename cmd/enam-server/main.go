package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"enam/internal/config"
	"enam/internal/httpapi"
	"enam/internal/pages"
	"enam/internal/portfolio"
	"enam/internal/source"
	"enam/internal/util"
)

// companiesFile is the NSE equity listing used by portfolio search.
var companiesFile = source.Locator{Kind: source.CSV, Path: "symbols.csv"}

func main() {
	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging.
	var w io.Writer = os.Stdout
	if cfg.Logging.Dir != "" {
		logFile, err := util.OpenLogFile(cfg.Logging.Dir, "enam-server", time.Now())
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer logFile.Close()
		w = io.MultiWriter(os.Stdout, logFile)
	}
	logger := util.NewLoggerTo(w, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	cat := pages.Default()
	if err := cat.Apply(cfg.Pages); err != nil {
		log.Fatalf("applying page overrides: %v", err)
	}

	src := source.NewFetcher(cfg.Sources.BaseURL, cfg.Sources.DataDir, logger)
	folio, err := portfolio.Open(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	srv := httpapi.NewDashboardServer(cat, src, folio, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.LoadCompanies(ctx, companiesFile, "SYMBOL", "NAME OF COMPANY"); err != nil {
		logger.Warn("portfolio search disabled", "error", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: srv.Handler(),
	}

	// gRPC health service for orchestrators.
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalf("listening on %s: %v", grpcAddr, err)
	}

	go func() {
		logger.Info("gRPC health listening", "addr", grpcAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	go func() {
		logger.Info("enam server listening", "addr", httpServer.Addr, "pages", len(cat.Pages()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down enam server")
	hs.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
}
