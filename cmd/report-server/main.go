package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/mining-reports/internal/artifact"
	"github.com/ahmethakanbesel/mining-reports/internal/config"
	"github.com/ahmethakanbesel/mining-reports/internal/datasource"
	"github.com/ahmethakanbesel/mining-reports/internal/dispatch"
	"github.com/ahmethakanbesel/mining-reports/internal/job"
	"github.com/ahmethakanbesel/mining-reports/internal/observability"
	"github.com/ahmethakanbesel/mining-reports/internal/platform/sqlite"
	"github.com/ahmethakanbesel/mining-reports/internal/report"
	jobrepo "github.com/ahmethakanbesel/mining-reports/internal/repository/job"
	"github.com/ahmethakanbesel/mining-reports/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("report-server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(observability.NewLogger(cfg.LogLevel))

	// Root context: cancelled on SIGINT/SIGTERM.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	// Open job record store
	db, err := sqlite.Open(rootCtx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open job database: %w", err)
	}
	defer func() { _ = db.Close() }()

	specs, err := cfg.ParseDataSources()
	if err != nil {
		return err
	}
	sources, err := datasource.Open(rootCtx, specs)
	if err != nil {
		return err
	}
	defer func() { _ = sources.Close() }()

	backend, closeBackend, err := openArtifactBackend(rootCtx, cfg.Artifact)
	if err != nil {
		return err
	}
	defer closeBackend()
	store := artifact.NewStore(backend)

	registry := report.Default()
	jobRepo := jobrepo.NewRepository(db.DB)
	jobSvc := job.NewService(jobRepo, sources, store)
	worker := job.NewWorker(jobRepo, registry, datasource.NewExecutor(sources, cfg.QueryTimeout), store)
	pool := job.NewPool(worker, cfg.Workers)

	g, ctx := errgroup.WithContext(rootCtx)

	// The pool runs locally in worker processes, and in every process when
	// dispatch is local.
	runPool := cfg.Enabled(config.ServiceWorker) || cfg.Dispatch.Mode == config.DispatchLocal
	if runPool {
		g.Go(func() error {
			pool.Run(ctx)
			return nil
		})
	}

	closeDispatch, err := setupDispatch(ctx, g, cfg, jobSvc, pool)
	if err != nil {
		return err
	}
	defer closeDispatch()

	if cfg.Reaper.StaleAfter > 0 {
		var tracker job.Tracker
		if runPool {
			tracker = pool
		}
		reaper := job.NewReaper(jobRepo, tracker, cfg.Reaper.StaleAfter, cfg.Reaper.Interval)
		g.Go(func() error {
			reaper.Run(ctx)
			return nil
		})
		slog.Info("reaper enabled", "staleAfter", cfg.Reaper.StaleAfter, "interval", cfg.Reaper.Interval)
	}

	if cfg.Enabled(config.ServiceHTTP) {
		srv := server.New(ctx, cfg.Port, server.Services{Jobs: jobSvc, Reports: registry, Metrics: cfg.MetricsEnabled})
		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			// Drain connections with a deadline.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("report-server started",
		"services", cfg.Services,
		"dispatch", cfg.Dispatch.Mode,
		"dataSources", sources.Names(),
		"artifactBackend", cfg.Artifact.Backend,
		"workers", cfg.Workers,
	)

	err = g.Wait()
	slog.Info("report-server stopped")
	return err
}

// openArtifactBackend builds the configured backend, wrapped in the Redis
// read cache when one is configured.
func openArtifactBackend(ctx context.Context, cfg config.ArtifactConfig) (artifact.Backend, func(), error) {
	var (
		backend artifact.Backend
		err     error
	)
	switch cfg.Backend {
	case config.BackendS3:
		backend, err = artifact.NewS3Backend(ctx, artifact.S3Config{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
		})
	default:
		backend, err = artifact.NewFileBackend(cfg.Dir)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("artifact backend: %w", err)
	}

	if cfg.CacheRedisAddr == "" {
		return backend, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.CacheRedisAddr,
		Password: cfg.CacheRedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// The cache is optional; run without it.
		slog.Warn("artifact cache unavailable", "addr", cfg.CacheRedisAddr, "error", err)
		_ = client.Close()
		return backend, func() {}, nil
	}
	slog.Info("artifact cache enabled", "addr", cfg.CacheRedisAddr, "ttl", cfg.CacheTTL)
	cached := artifact.NewCachedBackend(backend, artifact.NewRedisCache(client), cfg.CacheTTL)
	return cached, func() { _ = client.Close() }, nil
}

// setupDispatch wires how submitted jobs reach a worker. With local dispatch
// the service feeds the pool directly. With NATS or AMQP the HTTP role
// publishes and the worker role consumes into its pool.
func setupDispatch(ctx context.Context, g *errgroup.Group, cfg config.Config, jobSvc *job.Service, pool *job.Pool) (func(), error) {
	switch cfg.Dispatch.Mode {
	case config.DispatchNATS:
		nc, err := dispatch.ConnectNATS(cfg.Dispatch.NATSURL)
		if err != nil {
			return nil, err
		}
		jobSvc.SetDispatcher(dispatch.NewNATSDispatcher(nc, cfg.Dispatch.NATSSubject))
		if cfg.Enabled(config.ServiceWorker) {
			consumer := dispatch.NewNATSConsumer(nc, cfg.Dispatch.NATSSubject, cfg.Dispatch.NATSQueue, pool)
			g.Go(func() error { return consumer.Run(ctx) })
		}
		return func() { _ = nc.Drain() }, nil

	case config.DispatchAMQP:
		client, err := dispatch.DialAMQP(cfg.Dispatch.AMQPURL)
		if err != nil {
			return nil, err
		}
		if err := client.DeclareQueue(cfg.Dispatch.AMQPQueue); err != nil {
			client.Close()
			return nil, err
		}
		jobSvc.SetDispatcher(dispatch.NewAMQPDispatcher(client, cfg.Dispatch.AMQPQueue))
		if cfg.Enabled(config.ServiceWorker) {
			consumer := dispatch.NewAMQPConsumer(client, cfg.Dispatch.AMQPQueue, pool)
			g.Go(func() error { return consumer.Run(ctx) })
		}
		return client.Close, nil

	default:
		jobSvc.SetDispatcher(pool)
		return func() {}, nil
	}
}
