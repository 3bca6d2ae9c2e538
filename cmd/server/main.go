package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"UserAuthserver/internal/auth"
	"UserAuthserver/internal/config"
	"UserAuthserver/internal/email"
	"UserAuthserver/internal/httpapi"
	"UserAuthserver/internal/service"
	"UserAuthserver/internal/store/mongo"
	"UserAuthserver/internal/store/postgres"
)

const codePurgeInterval = time.Hour

func main() {
	if err := config.LoadDotEnv(); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	if cfg.DBDSN == "" {
		_, _ = os.Stderr.WriteString("APP_DB_DSN: required\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	var (
		accounts service.AccountsStore
		dbPing   func(context.Context) error
	)
	if cfg.MongoDSN() {
		store, err := mongo.Open(ctx, cfg.DBDSN, "")
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer func() { _ = store.Close(context.Background()) }()
		accounts = store
		dbPing = store.Ping
	} else {
		if err := postgres.RunMigrations(ctx, cfg.DBDSN); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		pgPool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()
		accounts = postgres.NewAccountsStore(pgPool)
		dbPing = pgPool.Ping
	}

	var mailer service.Mailer
	if cfg.SMTPConfigured() {
		mailer = email.NewSMTPMailer(email.SMTPSettings{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUsername,
			Password:  cfg.SMTPPassword,
			TLSMode:   cfg.SMTPTLSMode,
			FromName:  cfg.SMTPFromName,
			FromEmail: cfg.SMTPFromEmail,
		})
	} else {
		logger.Info("smtp not configured, mail delivery disabled")
		mailer = &email.LogMailer{Logger: logger}
	}

	authSvc := &service.AuthService{
		Accounts:    accounts,
		Hasher:      auth.NewPasswordHasher(0),
		Codes:       &auth.CodeIssuer{Length: cfg.CodeLength, TTL: cfg.CodeTTL},
		Tokens:      &auth.TokenIssuer{Secret: []byte(cfg.TokenSecret), TTL: cfg.TokenTTL},
		Locks:       auth.LockPolicy{Threshold: cfg.LockThreshold, LockDuration: cfg.LockDuration},
		Mailer:      mailer,
		Logger:      logger,
		RevealCodes: cfg.RevealCodes,
	}
	profileSvc := &service.ProfileService{Accounts: accounts}

	var redisClient redis.UniversalClient
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		redisClient = client
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:  logger,
		IsProd:  cfg.IsProd(),
		DBPing:  dbPing,
		Auth:    authSvc,
		Profile: profileSvc,
		Redis:   redisClient,
	})

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go purgeExpiredCodes(purgeCtx, logger, accounts)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// purgeExpiredCodes sweeps lapsed one-time codes so they do not sit in the
// store indefinitely. Correctness never depends on the sweep: consumption
// checks expiry itself.
func purgeExpiredCodes(ctx context.Context, logger *slog.Logger, accounts service.AccountsStore) {
	ticker := time.NewTicker(codePurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := accounts.PurgeExpiredCodes(ctx, time.Now())
			if err != nil {
				logger.Error("purge expired codes", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired codes", "count", n)
			}
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
