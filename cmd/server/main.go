package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/himanishpuri/VinylKeeper/internal/config"
	"github.com/himanishpuri/VinylKeeper/internal/storage"
	"github.com/himanishpuri/VinylKeeper/pkg/logger"
	"github.com/himanishpuri/VinylKeeper/pkg/vinylkeeper"
)

var (
	port           int
	dbPath         string
	indexPath      string
	tempDir        string
	allowedOrigins string
	logRequests    bool
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("VINYL_DB_PATH", ""), "Path to the play log database")
	flag.StringVar(&indexPath, "index", getEnvOrDefault("VINYL_INDEX_PATH", ""), "Path to the local fingerprint index")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("VINYL_TEMP_DIR", os.TempDir()), "Temporary directory")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.BoolVar(&logRequests, "log-requests", false, "Log every HTTP request")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()
	log := logger.GetLogger().WithPrefix("[server]")

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if indexPath != "" {
		cfg.IndexPath = indexPath
	}
	cfg.TempDir = tempDir
	if lvl, ok := logger.ParseLevel(cfg.LogLevel); ok {
		logger.SetLevel(lvl)
	}

	opts, err := vinylkeeper.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	opts = append(opts,
		vinylkeeper.WithSource(vinylkeeper.LiveSource(cfg)),
		vinylkeeper.WithLogger(logger.GetLogger().WithPrefix("[vinylkeeper]")),
	)
	service, err := vinylkeeper.NewService(opts...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:           port,
		DBPath:         orDefault(cfg.DBPath, storage.DefaultDBFile),
		IndexPath:      orDefault(cfg.IndexPath, storage.DefaultIndexFile),
		TempDir:        tempDir,
		AllowedOrigins: origins,
		LogRequests:    logRequests,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.StopSession(shutdownCtx)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
