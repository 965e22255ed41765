// Сервис чистки просроченного: разовый проход (для cron) или цикл по интервалу.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sharepass/internal/config"
	"github.com/sharepass/internal/fileserver"
	"github.com/sharepass/internal/logger"
	"github.com/sharepass/internal/repository"
	"github.com/sharepass/internal/service"
	"github.com/sharepass/internal/startup"
)

func main() {
	logger.SetPrefix("cleanup")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	logger.Info("starting cleanup service")
	cfg := config.Load()

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "cleanup: ")
	defer pool.Close()

	var blobs fileserver.Store
	switch cfg.StorageBackend {
	case "s3":
		s3Store, err := fileserver.NewS3Store(context.Background(), fileserver.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		}, "/api/files")
		if err != nil {
			logger.Errorf("s3 store: %v", err)
			os.Exit(1)
		}
		blobs = s3Store
	default:
		blobs = fileserver.NewDiskStore(cfg.UploadDir, "/api/files")
	}

	sessionRepo := repository.NewSessionRepository(pool)
	transferRepo := repository.NewTransferRepository(pool)
	sweeper := service.NewSweeper(sessionRepo, transferRepo, blobs, cfg.SweepGrace)

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		stats, err := sweeper.Run(ctx)
		if err != nil {
			logger.Errorf("sweep: %v", err)
			os.Exit(1)
		}
		logger.Infof("done: marked=%d blocks_deleted=%d sessions_deleted=%d",
			stats.BlocksMarked, stats.BlocksDeleted, stats.SessionsDeleted)
		return
	}

	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	logger.Infof("sweeping every %v", interval)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Первый проход сразу, дальше по тикеру
	if _, err := sweeper.Run(ctx); err != nil {
		logger.Errorf("sweep: %v", err)
	}
	sweeper.RunPeriodic(ctx, interval)
	logger.Info("cleanup stopped")
}
