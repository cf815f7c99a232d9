package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/semaphore"

	"reviewhub/internal/adapters/feed"
	"reviewhub/internal/adapters/observability"
	redisad "reviewhub/internal/adapters/redis"
	"reviewhub/internal/app"
	"reviewhub/internal/domain"
	"reviewhub/internal/shared"
	"reviewhub/internal/storage/memory"
	mysqlrepo "reviewhub/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "ingestor", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "ingestor",
		Usage: "Pull reviews for a set of entities from the upstream feed",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "entities", Value: strings.Join(cfg.IngestEntities, ","), Usage: "type:identifier[:name],... (INGEST_ENTITIES)"},
			&cli.StringFlag{Name: "platform", Value: "", Usage: "platform for payloads that do not name one"},
			&cli.IntFlag{Name: "workers", Value: int64(cfg.Workers), Usage: "entities ingested concurrently"},
			&cli.IntFlag{Name: "count", Value: int64(cfg.ReviewCount), Usage: "reviews requested per entity"},
			&cli.StringFlag{Name: "feed-url", Value: cfg.FeedBase, Usage: "feed base URL"},
			&cli.StringFlag{Name: "feed-key", Value: cfg.FeedKey, Usage: "feed API key"},
			&cli.IntFlag{Name: "feed-rps", Value: int64(cfg.FeedRPS), Usage: "feed requests per second"},
			&cli.StringFlag{Name: "storage", Value: cfg.Storage, Usage: "mysql or memory"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, cfg, c)
		},
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("ingestion failed")
	}
}

func run(ctx context.Context, cfg shared.Config, c *cli.Command) error {
	var targets []app.IngestTarget
	platform := domain.Platform(strings.ToLower(c.String("platform")))
	if platform != "" && !platform.Valid() {
		return fmt.Errorf("unknown platform %q", platform)
	}
	for _, s := range strings.Split(c.String("entities"), ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		t, err := app.ParseTarget(s)
		if err != nil {
			return fmt.Errorf("entity %q: %w", s, err)
		}
		t.Platform = platform
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return fmt.Errorf("no entities to ingest; set --entities or INGEST_ENTITIES")
	}
	workers := int(c.Int("workers"))
	if workers < 1 {
		workers = 1
	}

	log.Info().
		Str("base", c.String("feed-url")).
		Int("workers", workers).
		Int("reviews", int(c.Int("count"))).
		Int("entities", len(targets)).
		Msg("ingestor starting")

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	var repo domain.ReviewRepository
	switch c.String("storage") {
	case "memory":
		repo = memory.New()
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return fmt.Errorf("sql.Open: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("db ping: %w", err)
		}
		log.Info().Msg("db ping ok")
		if cfg.Migrate {
			if err := mysqlrepo.RunMigrations(ctx, db); err != nil {
				return err
			}
		}
		repo = mysqlrepo.New(db)
	default:
		return fmt.Errorf("unknown storage %q", c.String("storage"))
	}

	client, err := feed.New(c.String("feed-url"), c.String("feed-key"), int(c.Int("feed-rps")))
	if err != nil {
		return fmt.Errorf("feed client: %w", err)
	}

	// Bumping the stats generation keeps API aggregates in step with ingested rows.
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	}
	reviews := app.NewReviewService(repo, app.NewStatsService(repo, cache, cfg.CacheTTL))
	reviews.Written = observability.ObserveWrite
	ing := app.NewIngestionService(client, reviews)

	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		total  app.IngestResult
		failed int
	)
	for _, t := range targets {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(t app.IngestTarget) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := ing.IngestEntity(ctx, t, int(c.Int("count")))
			observability.ObserveIngest("created", res.Created)
			observability.ObserveIngest("skipped", res.Skipped)
			observability.ObserveIngest("invalid", res.Invalid)

			mu.Lock()
			defer mu.Unlock()
			total.Fetched += res.Fetched
			total.Created += res.Created
			total.Skipped += res.Skipped
			total.Invalid += res.Invalid
			if err != nil {
				failed++
				observability.ObserveIngestFailure(err)
				log.Warn().Str("entity", t.Identifier).Err(err).Msg("ingest failed")
			}
		}(t)
	}
	wg.Wait()

	log.Info().
		Int("fetched", total.Fetched).
		Int("created", total.Created).
		Int("skipped", total.Skipped).
		Int("invalid", total.Invalid).
		Int("failed_entities", failed).
		Msg("ingestion completed")
	if failed > 0 {
		return fmt.Errorf("%d of %d entities failed", failed, len(targets))
	}
	return ctx.Err()
}
