package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "reviewhub/internal/adapters/http_server"
	"reviewhub/internal/adapters/jwtauth"
	"reviewhub/internal/adapters/observability"
	redisad "reviewhub/internal/adapters/redis"
	"reviewhub/internal/app"
	"reviewhub/internal/authz"
	"reviewhub/internal/domain"
	"reviewhub/internal/shared"
	"reviewhub/internal/storage/gormusers"
	"reviewhub/internal/storage/memory"
	mysqlrepo "reviewhub/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks []func(context.Context) error

	// reviews
	var repo domain.ReviewRepository
	switch cfg.Storage {
	case "memory":
		repo = memory.New()
		log.Warn().Msg("using in-memory review storage")
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		if cfg.Migrate {
			if err := mysqlrepo.RunMigrations(ctx, db); err != nil {
				log.Fatal().Err(err).Msg("migrations failed")
			}
		}
		repo = mysqlrepo.New(db)
		checks = append(checks, db.PingContext)
	default:
		log.Fatal().Str("storage", cfg.Storage).Msg("unknown STORAGE")
	}

	// users
	udb, err := gormusers.Open(cfg.UserDBDriver, cfg.UserDBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("user db open failed")
	}
	if err := gormusers.Migrate(udb); err != nil {
		log.Fatal().Err(err).Msg("user db migrate failed")
	}
	users := gormusers.New(udb)
	auth, err := jwtauth.New(users, cfg.JWTSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("JWT_SECRET must be set")
	}

	// redis: aggregate cache and, optionally, permission overrides
	var (
		cache     domain.Cache
		overrides authz.OverrideStore
	)
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("redis ping failed")
		}
		cache = rc
		checks = append(checks, rc.Ping)
		if cfg.OverrideStore == "redis" {
			overrides = redisad.NewOverrideStore(rc.Client())
		}
	} else if cfg.OverrideStore == "redis" {
		log.Fatal().Msg("OVERRIDE_STORE=redis needs REDIS_ADDR")
	}

	matrix, err := authz.LoadMatrix(cfg.RoleMatrixFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.RoleMatrixFile).Msg("role matrix invalid")
	}
	gate := authz.NewGate(authz.NewResolver(matrix, overrides))
	gate.Observe = observability.ObserveAuthz
	log.Info().Interface("roles", matrix.RoleNames()).Str("admin", string(matrix.AdminRole)).Msg("role matrix loaded")

	stats := app.NewStatsService(repo, cache, cfg.CacheTTL)
	reviews := app.NewReviewService(repo, stats)
	reviews.Written = observability.ObserveWrite

	// http
	srv := server.New(server.Options{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		TrustProxy:     cfg.TrustProxy,
	})
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Reviews: reviews,
		Stats:   stats,
		Users:   app.NewUserService(users, auth, gate),
		Gate:    gate,
		Auth:    auth,
		Ready: func(ctx context.Context) error {
			var errs []error
			for _, check := range checks {
				errs = append(errs, check(ctx))
			}
			return errors.Join(errs...)
		},
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("storage", cfg.Storage).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
