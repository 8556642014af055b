// Package main initializes and starts the ListKeeper HTTP server,
// setting up configuration, logging, database connections, the blob
// store, repositories, services, and handlers.
package main

import (
	"cmp"
	"context"
	"fmt"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/ykarpov/ListKeeper/internal/auth"
	"github.com/ykarpov/ListKeeper/internal/blob"
	"github.com/ykarpov/ListKeeper/internal/config"
	"github.com/ykarpov/ListKeeper/internal/db"
	"github.com/ykarpov/ListKeeper/internal/logger"
	"github.com/ykarpov/ListKeeper/internal/repository"
	"github.com/ykarpov/ListKeeper/internal/server/handler/http"
	"github.com/ykarpov/ListKeeper/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()
	addr := options.Port

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Purge revoked share links in the background.
	db.StartRevokedLinkCleaner(context.Background(), postgresDB,
		time.Hour,      // interval
		24*time.Hour,   // retention: 1 day
		zapLogger,
	)

	// Initialize the local blob store for file attachments.
	blobs, err := blob.NewDiskStore(options.MediaDir)
	if err != nil {
		zapLogger.Fatal("cannot init blob store", zap.Error(err))
	}

	// Initialize the identity-provider credential verifier.
	if options.JWTSecret == "" {
		zapLogger.Fatal("jwt secret is required (-s or JWT_SECRET)")
	}
	jwtManager := auth.NewJWTManager(options.JWTSecret, 24*time.Hour)

	// Initialize repositories.
	checklistRepo := repository.NewPostgresChecklistRepository(postgresDB)
	shareRepo := repository.NewPostgresShareRepository(postgresDB)
	fileRepo := repository.NewPostgresFileRepository(postgresDB)

	// Initialize business-logic services sharing one lock table.
	locks := service.NewLocks()
	accessService := service.NewAccessService(checklistRepo, shareRepo)
	checklistService := service.NewChecklistService(checklistRepo, accessService, blobs, locks, zapLogger)
	shareService := service.NewShareService(shareRepo, checklistRepo, accessService)
	fileService := service.NewFileService(fileRepo, checklistRepo, accessService, blobs, locks, zapLogger)

	// Create HTTP handlers.
	checklistHandler := &http.ChecklistHandler{Service: checklistService}
	shareHandler := &http.ShareHandler{Shares: shareService, Files: fileService}
	fileHandler := &http.FileHandler{Files: fileService}

	// Build the router with middleware and routes.
	router := http.NewRouter(checklistHandler, shareHandler, fileHandler, jwtManager, options.MediaDir, zapLogger)

	server := &nethttp.Server{
		Addr:    addr,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
