package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "cmsapi/docs"
	"cmsapi/internal/config"
	"cmsapi/internal/handlers"
	"cmsapi/internal/logger"
	"cmsapi/internal/mail"
	"cmsapi/internal/repositories"
	"cmsapi/internal/routes"
	"cmsapi/internal/services"
	"cmsapi/internal/storage"
)

const resendWindow = 60 * time.Second

// App owns the process-wide resources and the HTTP router.
type App struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *sql.DB
	rdb    *redis.Client
	engine *gin.Engine
	worker *mail.Worker
	inline *mail.InlineOutbox
}

// New connects to Postgres (and Redis when enabled) and wires every layer.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	a := &App{cfg: cfg, log: log, db: db}

	sender := mail.NewSMTPSender(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
		log,
	)

	var (
		outbox   mail.Outbox
		throttle mail.Throttle
	)
	if cfg.Redis.Enabled {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		ro, err := mail.NewRedisOutbox(a.rdb)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		outbox = ro
		throttle = mail.NewRedisThrottle(a.rdb, "cms:throttle:", resendWindow)
		a.worker = mail.NewWorker(ro, sender, log)
	} else {
		a.inline = mail.NewInlineOutbox(sender, log)
		outbox = a.inline
		throttle = mail.NewMemoryThrottle(resendWindow)
		log.Warn("redis disabled: mail is sent inline and resend throttling is per process")
	}

	files := storage.NewLocal(cfg.Server.MediaRoot, cfg.Server.BaseURL+"/media")
	tokens := services.NewTokenService(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL, nil)

	// === Services ===
	accounts := services.NewAccountService(services.AccountDeps{
		Store:    repositories.NewStore(db),
		Hasher:   services.NewBcryptHasher(0),
		Tokens:   tokens,
		Outbox:   outbox,
		Throttle: throttle,
		Files:    files,
		Log:      log,
	})
	posts := services.NewPostService(repositories.NewPostRepository(db), files, log)
	categories := services.NewCategoryService(repositories.NewCategoryRepository(db))
	gallery := services.NewGalleryService(repositories.NewFileRepository(db), files, log)

	// === Handlers ===
	maxUpload := cfg.MaxUploadBytes()
	maintenance := func() bool { return cfg.Server.Maintenance }
	h := routes.Handlers{
		Auth:       handlers.NewAuthHandler(accounts),
		Users:      handlers.NewUserHandler(accounts, maxUpload),
		Posts:      handlers.NewPostHandler(posts, maxUpload),
		Categories: handlers.NewCategoryHandler(categories),
		Gallery:    handlers.NewGalleryHandler(gallery, maxUpload),
		Health:     handlers.NewHealthHandler(db, maintenance),
	}

	if cfg.Log.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.MaxMultipartMemory = maxUpload
	a.engine = routes.SetupRoutes(engine, h, routes.Options{
		Tokens:            tokens,
		Users:             accounts,
		Maintenance:       maintenance,
		AllowRegistration: func() bool { return cfg.Server.AllowRegistration },
		MediaRoot:         cfg.Server.MediaRoot,
		Log:               log,
	})
	return a, nil
}

func (a *App) Router() http.Handler { return a.engine }

// Serve runs the HTTP server and the mail worker until ctx is cancelled, then
// shuts both down.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerDone := make(chan struct{})
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go func() {
		defer close(workerDone)
		if a.worker != nil {
			_ = a.worker.Run(workerCtx)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("api server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}

	a.log.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("http shutdown failed", zap.Error(err))
	}

	stopWorker()
	<-workerDone
	if a.inline != nil {
		a.inline.Wait()
	}
	return runErr
}

func (a *App) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// Run loads config/config.yaml and serves until SIGINT or SIGTERM.
func Run() {
	cfg := config.LoadConfig()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Env)
	if err != nil {
		panic("Failed to build logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := New(ctx, cfg, log)
	if err != nil {
		log.Fatal("init app failed", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("close resources failed", zap.Error(err))
		}
	}()

	if err := a.Serve(ctx); err != nil {
		log.Error("server stopped with error", zap.Error(err))
	}
}
