package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	cfg "github.com/example/jwtauth/internal/config"
	"github.com/example/jwtauth/internal/dbmigrate"
	"github.com/example/jwtauth/internal/logging"
	"github.com/gorilla/mux"
)

type App struct {
	DB          UserStore
	cfg         *cfg.Config
	log         *slog.Logger
	tokens      *TokenService
	users       *UserService
	errors      *ErrorMapper
	rateLimiter *RateLimiter
}

func NewApp(c *cfg.Config, db UserStore, logger *slog.Logger) (*App, error) {
	tokens := NewTokenService([]byte(c.JwtSecret), c.JwtTTL, c.JwtIssuer)
	users, err := NewUserService(db, NewBcryptHasher(c.BcryptCost), tokens, logger)
	if err != nil {
		return nil, fmt.Errorf("user service: %w", err)
	}
	return &App{
		DB:     db,
		cfg:    c,
		log:    logger,
		tokens: tokens,
		users:  users,
		errors: NewErrorMapper(c.Secrets()...),
	}, nil
}

// route declares one endpoint. An empty role marks the route public.
type route struct {
	method  string
	path    string
	role    string
	limited bool
	handler appHandler
}

func (a *App) routes() []route {
	return []route{
		{method: http.MethodGet, path: "/api/public/health", handler: a.HandleHealth},
		{method: http.MethodGet, path: "/api/public/ready", handler: a.HandleReady},
		{method: http.MethodGet, path: "/api/public/info", handler: a.HandleInfo},
		{method: http.MethodPost, path: "/api/auth/signup", limited: true, handler: a.HandleSignUp},
		{method: http.MethodPost, path: "/api/auth/login", limited: true, handler: a.HandleLogin},
		{method: http.MethodGet, path: "/api/user/profile", role: RoleUser, handler: a.HandleProfile},
		{method: http.MethodGet, path: "/api/user/info", role: RoleUser, handler: a.HandleUserInfo},
	}
}

// global is the middleware every response passes through, outermost first.
func (a *App) global() []mux.MiddlewareFunc {
	return []mux.MiddlewareFunc{a.Recover, SecurityHeaders, a.Logging, a.CORS}
}

// wrapGlobal applies the global chain to handlers mux serves without a route
// match, which r.Use does not reach.
func (a *App) wrapGlobal(h http.Handler) http.Handler {
	mws := a.global()
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Router composes each route as RateLimit -> RequireAuth -> RequireRole -> handler
// behind the global middleware.
func (a *App) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(a.global()...)

	for _, rt := range a.routes() {
		h := a.handle(rt.handler)
		if rt.role != "" {
			h = a.RequireAuth(a.RequireRole(rt.role)(h))
		}
		if rt.limited {
			h = a.RateLimit(h)
		}
		r.Handle(rt.path, h).Methods(rt.method, http.MethodOptions)
	}

	r.NotFoundHandler = a.wrapGlobal(a.handle(func(w http.ResponseWriter, r *http.Request) error {
		return newError(KindNotFound, "No handler found for "+r.Method+" "+r.URL.Path, nil)
	}))
	r.MethodNotAllowedHandler = a.wrapGlobal(a.handle(func(w http.ResponseWriter, r *http.Request) error {
		return newError(KindMethodNotAllowed, "Request method '"+r.Method+"' is not supported", nil)
	}))

	return r
}

func openStore(c *cfg.Config, logger *slog.Logger) (UserStore, error) {
	switch c.DBAdapter {
	case "sqlite":
		return NewSQLiteDB(c.SQLiteFile)
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres config error: %w", err)
		}

		logger.Info("applying database migrations", "dir", c.MigrationsDir)
		if err := dbmigrate.Apply(c.MigrationsDir, dsn, logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}

		p, err := NewPostgresDB(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		logger.Info("connected to PostgreSQL database")
		return p, nil
	case "memory":
		logger.Warn("using in-memory database (not recommended for production)")
		return NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}
}

func main() {
	c, err := cfg.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	if len(c.JwtSecret) < 32 {
		logger.Warn("JWT_SECRET is shorter than 256 bits; generate one with cmd/secret")
	}

	db, err := openStore(c, logger)
	if err != nil {
		logger.Error("store init failed", "adapter", c.DBAdapter, "err", err)
		os.Exit(1)
	}

	app, err := NewApp(c, db, logger)
	if err != nil {
		logger.Error("app init failed", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Handler:      app.Router(),
		Addr:         ":" + c.Port,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("starting server", "addr", srv.Addr, "adapter", c.DBAdapter, "version", c.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
	if err := app.DB.Close(); err != nil {
		logger.Error("closing store", "err", err)
	}
	logger.Info("server exited properly")
}
