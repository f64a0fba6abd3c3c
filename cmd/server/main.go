package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	grpcadapter "github.com/simaogato/irrflow/internal/adapter/grpc"
	"github.com/simaogato/irrflow/internal/adapter/httpapi"
	"github.com/simaogato/irrflow/internal/app"
	"github.com/simaogato/irrflow/internal/config"
	"github.com/simaogato/irrflow/internal/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	// 2. Open the storage backend
	ctx := context.Background()
	backend, err := app.OpenBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", cfg.Backend, err)
	}
	defer backend.Close()

	// 3. Initialize the pipeline
	pipelineService := app.NewPipeline(cfg, backend)

	// 4. Start gRPC Server (health + reflection)
	grpcServer := grpcadapter.NewServer(cfg.Server.APIToken)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.Server.GRPCAddr, err)
	}
	go func() {
		log.Infof("gRPC server listening on %s", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC server: %v", err)
		}
	}()

	// 5. Start HTTP trigger server
	handler := httpapi.NewHandler(pipelineService,
		httpapi.WithToken(cfg.Server.APIToken),
		httpapi.WithRunObserver(grpcServer.ReportRun),
	)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("HTTP trigger listening on %s", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve HTTP server: %v", err)
		}
	}()

	// Graceful shutdown
	waitForShutdown(httpServer, grpcServer)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down both servers
// An in-flight pipeline run finishes before the HTTP server returns
func waitForShutdown(httpServer *http.Server, grpcServer *grpcadapter.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Infof("Received signal: %v. Shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")
}
