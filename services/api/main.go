package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sharepass/internal/config"
	"github.com/sharepass/internal/fileserver"
	"github.com/sharepass/internal/handler"
	"github.com/sharepass/internal/logger"
	"github.com/sharepass/internal/middleware"
	"github.com/sharepass/internal/push"
	"github.com/sharepass/internal/repository"
	"github.com/sharepass/internal/service"
	"github.com/sharepass/internal/startup"
	"github.com/sharepass/internal/storage"
	"github.com/sharepass/internal/storage/memstore"
	"github.com/sharepass/internal/ws"
	"github.com/sharepass/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 2

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	// Redis для rate limit и push-подписок; без REDIS_URL — всё в памяти процесса
	var store storage.Store
	if cfg.Redis.URL != "" {
		store = startup.ConnectRedisWithRetry(cfg.Redis.URL, 30*time.Second, "")
		logger.Info("redis connected")
	} else {
		store = memstore.New()
		logger.Info("redis not configured, using in-memory storage")
	}
	defer store.Close()

	// VAPID-ключи: из env или файла; генерируются при первом запуске
	if cfg.PushVAPIDPublicKey == "" || cfg.PushVAPIDPrivateKey == "" {
		keys, err := push.EnsureVAPIDKeys("")
		if err != nil {
			logger.Errorf("vapid keys: %v (push disabled)", err)
		} else {
			cfg.PushVAPIDPublicKey = keys.PublicKey
			cfg.PushVAPIDPrivateKey = keys.PrivateKey
		}
	}
	pushSender := push.NewSender(store, cfg.PushVAPIDPublicKey, cfg.PushVAPIDPrivateKey, os.Getenv("PUSH_SUBSCRIBER"))

	// Blob-хранилище: диск по умолчанию, S3 по конфигурации
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
		logger.Infof("file storage: s3 bucket=%s", cfg.S3.Bucket)
	default:
		blobs = fileserver.NewDiskStore(cfg.UploadDir, "/api/files")
		logger.Infof("file storage: disk dir=%s", cfg.UploadDir)
	}

	sessionRepo := repository.NewSessionRepository(pool)
	transferRepo := repository.NewTransferRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(0, pushSender)
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	sessionSvc := service.NewSessionService(sessionRepo, store, cfg.SessionTTL)
	transferSvc := service.NewTransferService(sessionSvc, transferRepo, blobs, hub, cfg.BlockTTL)

	var userSvc *service.UserService
	if cfg.JWTSecret != "" {
		userSvc = service.NewUserService(userRepo, []byte(cfg.JWTSecret), cfg.JWTTokenTTL)
	} else {
		logger.Info("JWT_SECRET not set, account endpoints disabled")
	}

	// Фоновая чистка просроченного; выключается SWEEP_INTERVAL_MINUTES=0
	// (тогда чистит только отдельный сервис cleanup)
	sweeper := service.NewSweeper(sessionRepo, transferRepo, blobs, cfg.SweepGrace)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWg sync.WaitGroup
	if cfg.SweepInterval > 0 {
		sweepWg.Add(1)
		go func() {
			defer sweepWg.Done()
			sweeper.RunPeriodic(sweepCtx, cfg.SweepInterval)
		}()
	}

	sessionH := handler.NewSessionHandler(sessionSvc)
	transferH := handler.NewTransferHandler(transferSvc, cfg.MaxUploadSize)
	fileH := handler.NewFileHandler(blobs)
	authH := handler.NewAuthHandler(userSvc)
	configH := handler.NewConfigHandler(cfg)
	pushH := handler.NewPushHandler(sessionSvc, store)
	wsH := handler.NewWSHandler(hub, sessionSvc, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket — иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.Metrics)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/config/client", configH.GetClientConfig)

	r.Post("/api/sessions", sessionH.Create)
	r.Post("/api/sessions/validate", sessionH.Validate)

	r.Post("/api/transfers", transferH.Create)
	r.Get("/api/transfers/{sessionId}", transferH.List)
	r.Put("/api/transfers/block/{blockId}/extend", transferH.Extend)
	r.Delete("/api/transfers/block/{blockId}", transferH.DeleteBlock)
	r.Delete("/api/transfers/text/{itemId}", transferH.DeleteTextItem)
	r.Delete("/api/transfers/file/{itemId}", transferH.DeleteFileItem)

	r.Get("/api/files/{filename}", fileH.Serve)

	r.Post("/api/push/subscribe", pushH.Subscribe)
	r.Delete("/api/push/subscribe", pushH.Unsubscribe)
	r.Get("/ws", wsH.ServeWS)

	r.Post("/api/auth/register", authH.Register)
	r.Post("/api/auth/login", authH.Login)
	if cfg.JWTSecret != "" {
		r.With(middleware.RequireAuth(cfg.JWTSecret)).Get("/api/auth/me", authH.Me)
	}

	webDist := "./web/dist"
	if info, err := os.Stat(webDist); err == nil && info.IsDir() {
		r.Get("/*", spaHandler(webDist))
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	sweepCancel()
	sweepWg.Wait()
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func spaHandler(dir string) http.HandlerFunc {
	fs := http.Dir(dir)
	fileServer := http.FileServer(fs)
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
		if path == "" {
			path = "index.html"
		}
		if f, err := fs.Open(path); err != nil {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
		} else {
			f.Close()
			fileServer.ServeHTTP(w, r)
		}
	}
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := migrations.Files.ReadFile(name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "sharepass"
		password = "sharepass_secret"
		database = "sharepass"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
