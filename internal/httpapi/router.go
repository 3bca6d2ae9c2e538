package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"UserAuthserver/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth    *service.AuthService
	Profile *service.ProfileService

	// Redis makes the attempt budgets shared across replicas; when nil the
	// limiters fall back to in-process sliding windows.
	Redis redis.UniversalClient
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:     logger,
		isProd:     opts.IsProd,
		dbPing:     opts.DBPing,
		authSvc:    opts.Auth,
		profileSvc: opts.Profile,
	}

	if opts.Redis != nil {
		api.strictLimiter = newRedisLimiter(opts.Redis, "throttle:strict", strictLimit, strictWindow)
		api.codeLimiter = newRedisLimiter(opts.Redis, "throttle:code", codeLimit, codeWindow)
	} else {
		api.strictLimiter = newMemoryLimiter(strictLimit, strictWindow)
		api.codeLimiter = newMemoryLimiter(codeLimit, codeWindow)
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)

	apiMux.HandleFunc("POST /v1/auth/signup", api.handleSignup)
	apiMux.HandleFunc("POST /v1/auth/verify-email", api.handleVerifyEmail)
	apiMux.HandleFunc("POST /v1/auth/signin", api.handleSignin)
	apiMux.HandleFunc("POST /v1/auth/resend-verification", api.handleResendVerification)
	apiMux.HandleFunc("POST /v1/auth/forgot-password", api.handleForgotPassword)
	apiMux.HandleFunc("POST /v1/auth/reset-password", api.handleResetPassword)
	apiMux.HandleFunc("POST /v1/auth/logout", api.requireAuth(api.handleLogout))

	apiMux.HandleFunc("GET /v1/users/me", api.requireAuth(api.handleMe))
	apiMux.HandleFunc("PATCH /v1/users/me", api.requireAuth(api.handleMeUpdate))
	apiMux.HandleFunc("DELETE /v1/users/me", api.requireAuth(api.handleMeDeactivate))

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc    *service.AuthService
	profileSvc *service.ProfileService

	strictLimiter Limiter
	codeLimiter   Limiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
