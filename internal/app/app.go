// Package app assembles the match pipeline and its backing services from the
// service config. Both the worker process and matchctl build through it.
package app

import (
	"context"
	"fmt"
	"time"

	"match-workers/internal/common/aws"
	"match-workers/internal/common/config"
	"match-workers/internal/common/database"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/metrics"
	"match-workers/internal/common/observability"
	"match-workers/internal/matching/pipeline"
	"match-workers/internal/matching/scorer"
	"match-workers/internal/notify"
	"match-workers/internal/store/cache"
	"match-workers/internal/store/postgres"
	"match-workers/internal/store/search"
)

// Options controls how hard Build tries to reach its dependencies.
type Options struct {
	Retries      int
	InitialDelay time.Duration
	// Migrate applies the embedded schema regardless of config.
	Migrate bool
	// DryRun forces the log-only notifier.
	DryRun bool
}

type App struct {
	Config   *config.Config
	Postgres *database.PostgresClient
	Redis    *database.RedisClient
	Elastic  *database.ElasticsearchClient

	Store    *postgres.Store
	Cache    *cache.ProfileCache
	Indexer  *search.Indexer
	Notifier pipeline.Notifier
	Pipeline *pipeline.Pipeline

	log logger.Logger
}

// Build connects to Postgres (required) and, when configured, Redis and
// Elasticsearch. Optional services that stay unreachable are skipped with a
// warning rather than failing the build.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, obs *observability.Observability, opts Options) (*App, error) {
	if opts.Retries <= 0 {
		opts.Retries = 1
	}
	a := &App{Config: cfg, log: log}

	err := Retry(ctx, func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		a.Postgres = pg
		return nil
	}, opts.Retries, opts.InitialDelay, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected successfully", nil)

	if opts.Migrate || cfg.Database.Postgres.MigrateOnStart {
		if err := postgres.Migrate(ctx, a.Postgres.DB); err != nil {
			a.Close()
			return nil, err
		}
		log.Info("Match schema applied", nil)
	}

	a.Store = postgres.New(a.Postgres.DB, log.WithFields(map[string]interface{}{"component": "postgres-store"}),
		postgres.WithDefaultThreshold(cfg.Matching.DefaultThreshold),
		postgres.WithClaimLease(cfg.Matching.ClaimLease()))

	var profiles pipeline.ProfileStore = a.Store
	if cfg.Database.Redis.Enabled() {
		if rc := a.connectRedis(ctx, opts); rc != nil {
			a.Redis = rc
			a.Cache = cache.NewProfileCache(a.Store, rc.Client, cfg.Matching.CacheTTL(), log)
			profiles = a.Cache
		}
	}

	if cfg.Database.Elasticsearch.Enabled() {
		if ec := a.connectElasticsearch(ctx, opts); ec != nil {
			a.Elastic = ec
			a.Indexer = search.NewIndexer(ec.Client, cfg.Database.Elasticsearch.MatchIndex)
		}
	}

	notifier, err := NewNotifier(ctx, cfg, a, opts.DryRun, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Notifier = notifier

	pipeOpts := []pipeline.Option{
		pipeline.WithScorer(scorer.New(scorer.Options{
			IncludeSkills:         cfg.Matching.IncludeSkills,
			IncludeQualifications: cfg.Matching.IncludeQualifications,
		})),
		pipeline.WithPageSize(cfg.Matching.PageSize),
		pipeline.WithRecorder(metrics.NewPrometheusRecorder()),
		pipeline.WithTracer(obs.Tracer()),
	}
	if a.Indexer != nil {
		pipeOpts = append(pipeOpts, pipeline.WithIndexer(a.Indexer))
	}
	a.Pipeline = pipeline.New(profiles, a.Store, a.Notifier,
		log.WithFields(map[string]interface{}{"component": "pipeline"}), pipeOpts...)

	return a, nil
}

// NewNotifier picks the AWS notifier when a channel is enabled, else the
// log-only one.
func NewNotifier(ctx context.Context, cfg *config.Config, a *App, dryRun bool, log logger.Logger) (pipeline.Notifier, error) {
	n := cfg.Notifications
	if dryRun || (!n.Email.Enabled && !n.SMS.Enabled) {
		log.Info("No notification channel enabled, alerts are logged only", map[string]interface{}{"dryRun": dryRun})
		return notify.NewLogNotifier(log), nil
	}

	clients, err := aws.NewClients(ctx, n.AWS.Region, config.GetDuration(n.Timeout))
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	return notify.New(notify.ConfigFrom(n), a.Postgres.DB, clients.SES, clients.SNS, log), nil
}

func (a *App) connectRedis(ctx context.Context, opts Options) *database.RedisClient {
	var rc *database.RedisClient
	err := Retry(ctx, func() error {
		c, err := database.NewRedis(a.Config.Database.Redis)
		if err != nil {
			return err
		}
		if err := c.Ping(ctx); err != nil {
			c.Close()
			return err
		}
		rc = c
		return nil
	}, optionalRetries(opts), opts.InitialDelay, a.log, "Redis connection")
	if err != nil {
		a.log.WithError(err).Warn("Profile cache disabled", nil)
		return nil
	}
	a.log.Info("Redis connected successfully", nil)
	return rc
}

func (a *App) connectElasticsearch(ctx context.Context, opts Options) *database.ElasticsearchClient {
	var ec *database.ElasticsearchClient
	err := Retry(ctx, func() error {
		c, err := database.NewElasticsearch(a.Config.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := c.Ping(ctx); err != nil {
			return err
		}
		ec = c
		return nil
	}, optionalRetries(opts), opts.InitialDelay, a.log, "Elasticsearch connection")
	if err != nil {
		a.log.WithError(err).Warn("Match index disabled", nil)
		return nil
	}
	a.log.Info("Elasticsearch connected successfully", nil)
	return ec
}

// optionalRetries bounds how long startup waits on a service it can run without.
func optionalRetries(opts Options) int {
	if opts.Retries > 3 {
		return 3
	}
	return opts.Retries
}

// Ready reports whether the required backing services answer.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Postgres.Ping(ctx); err != nil {
		return err
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.log.WithError(err).Warn("Error closing Redis", nil)
		}
	}
	if a.Postgres != nil {
		if err := a.Postgres.Close(); err != nil {
			a.log.WithError(err).Warn("Error closing PostgreSQL", nil)
		}
	}
}

const maxRetryDelay = 30 * time.Second

// Retry attempts operation with exponential backoff.
func Retry(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", operationName, ctx.Err())
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
