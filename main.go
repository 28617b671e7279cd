package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/basit/pitchvault-backend/auth"
	"github.com/basit/pitchvault-backend/initializers"
	"github.com/basit/pitchvault-backend/jobs"
	"github.com/basit/pitchvault-backend/routes"
	"github.com/basit/pitchvault-backend/storage"
	"github.com/basit/pitchvault-backend/utils"
)

func main() {
	cfg, err := initializers.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := initializers.InitLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := initializers.ConnectToDatabase(cfg)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiKey, err := auth.NewOwnerStore(db).Bootstrap(ctx, cfg.OwnerEmail, "", cfg.OwnerPassword)
	if err != nil {
		logger.Fatal("bootstrap owner", zap.Error(err))
	}
	if apiKey != "" {
		logger.Info("owner account created", zap.String("email", cfg.OwnerEmail))
		// Printed once and kept out of the log files.
		fmt.Printf("owner API key: %s\n", apiKey)
	}

	deps := routes.Deps{
		Config:    cfg,
		DB:        db,
		Logger:    logger,
		Blacklist: auth.NewBlacklist(initializers.InitRedis(cfg)),
	}

	s3Client, err := initializers.InitAWS(ctx, cfg)
	if err != nil {
		logger.Fatal("aws", zap.Error(err))
	}
	if s3Client != nil {
		resolver := storage.NewResolver(cfg.StoragePath)
		deps.Importer = storage.NewImporter(storage.NewS3Source(s3Client, cfg.AWSBucketName), resolver, logger)
	}

	jobs.StartCounterReconciler(ctx, db, cfg.CounterReconcileInterval, logger)

	router := routes.SetupRouter(deps)
	logger.Info("listening", zap.String("port", cfg.Port), zap.String("base_url", cfg.BaseURL))
	if err := utils.GraceServer(":"+cfg.Port, router, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
