package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fundraiseer/apiserver/config"
	"github.com/fundraiseer/apiserver/internal/cache"
	"github.com/fundraiseer/apiserver/internal/handlers"
	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/metrics"
	"github.com/fundraiseer/apiserver/internal/storage"
	"github.com/fundraiseer/apiserver/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gorillahandlers "github.com/gorilla/handlers"
)

const shutdownTimeout = 15 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	closers    []func(ctx context.Context) error
}

// RouterDeps is everything the HTTP layer needs.
type RouterDeps struct {
	Services  *Services
	Storage   *storage.Storage
	Validator *validation.Validator
	Counter   cache.Counter
}

// New connects every backend selected by cfg and constructs a Server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{}
	fail := func(err error) (*Server, error) {
		_ = s.closeAll(ctx)
		return nil, err
	}

	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, backend.Close)

	kv, closeCache, err := OpenCache(ctx, cfg.Redis)
	if err != nil {
		return fail(err)
	}
	s.closers = append(s.closers, ignoreCtx(closeCache))

	notifier, closeNotifier, err := OpenNotifier(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	s.closers = append(s.closers, ignoreCtx(closeNotifier))

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fail(fmt.Errorf("open storage: %w", err))
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return fail(fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err))
	}

	v, err := validation.New()
	if err != nil {
		return fail(fmt.Errorf("load schemas: %w", err))
	}

	s.router = NewRouter(cfg, RouterDeps{
		Services:  NewServices(backend, kv, notifier, cfg.Auth.OTPTTL),
		Storage:   objects,
		Validator: v,
		Counter:   kv,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      withCORS(cfg.CORS, s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// NewRouter mounts every API route on a fresh router.
func NewRouter(cfg config.Config, deps RouterDeps) *chi.Mux {
	handlers.ExposeErrors(cfg.IsDev())

	svc := deps.Services
	auth := handlers.NewAuth(cfg.Auth.JWTSecret, svc.Users)

	var loginLimiter, forgotLimiter, verifyLimiter, contactLimiter *cache.Limiter
	if deps.Counter != nil {
		rl := cfg.RateLimit
		loginLimiter = cache.NewLimiter(deps.Counter, "login", rl.LoginMax, rl.LoginWindow)
		forgotLimiter = cache.NewLimiter(deps.Counter, "forgot-password", rl.ForgotMax, rl.ForgotWindow)
		verifyLimiter = cache.NewLimiter(deps.Counter, "verify-otp", rl.VerifyMax, rl.VerifyWindow)
		contactLimiter = cache.NewLimiter(deps.Counter, "contact", rl.ContactMax, rl.ContactWindow)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if cfg.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(
		logger.Middleware,
		metrics.Middleware,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Get("/metrics", metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(gorillahandlers.CompressHandler)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, svc.Auth, svc.Users, deps.Validator, auth, handlers.AuthOptions{
				JWTSecret:        cfg.Auth.JWTSecret,
				TokenTTL:         cfg.Auth.TokenTTL,
				ResetTokenTTL:    cfg.Auth.ResetTokenTTL,
				ResetRequiresOTP: cfg.Auth.ResetRequiresOTP,
				LoginLimiter:     loginLimiter,
				ForgotLimiter:    forgotLimiter,
				VerifyLimiter:    verifyLimiter,
			})
		})
		r.Route("/campaigns", func(r chi.Router) {
			handlers.CampaignRouter(r, svc.Campaigns, svc.Donations, svc.Comments, deps.Validator, auth)
		})
		r.Route("/donations", func(r chi.Router) {
			handlers.DonationRouter(r, svc.Donations, deps.Validator, auth)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, svc.Users, deps.Storage, deps.Validator, auth)
		})
		r.Route("/dashboard", func(r chi.Router) {
			handlers.DashboardRouter(r, svc.Dashboard, svc.Campaigns, svc.Donations, auth)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, svc.Users, svc.Campaigns, svc.Donations, svc.Dashboard, deps.Validator, auth)
		})
		r.Route("/contact", func(r chi.Router) {
			handlers.ContactRouter(r, svc.Contacts, deps.Validator, auth, contactLimiter)
		})
	})
	router.Route("/uploads", func(r chi.Router) {
		handlers.UploadsRouter(r, deps.Storage)
	})
	return router
}

func withCORS(cfg config.CORSConfig, next http.Handler) http.Handler {
	if len(cfg.AllowedOrigins) == 0 {
		return next
	}
	return gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(cfg.AllowedOrigins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		gorillahandlers.ExposedHeaders([]string{"Retry-After"}),
		gorillahandlers.AllowCredentials(),
	)(next)
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Default().WithField("addr", s.httpServer.Addr).Info("http server listening")
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Default().Info("shutting down http server")
	return s.Shutdown(shutdownCtx)
}

// Shutdown attempts a graceful shutdown and releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.closeAll(ctx))
}

func (s *Server) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func ignoreCtx(fn func() error) func(context.Context) error {
	return func(context.Context) error { return fn() }
}
