package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hostdash/internal/config"
	"hostdash/internal/domain"
	"hostdash/internal/repository"
	"hostdash/internal/router"
	"hostdash/internal/sampler"
	"hostdash/internal/scheduler"
	"hostdash/internal/service"
	"hostdash/internal/tasks"
	"hostdash/internal/telemetry"
	"hostdash/internal/util"
)

const schedulerStopTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:  "hostdash",
		Usage: "sample host metrics, keep their history and serve them over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration file",
				Value:   "hostdash.yaml",
				EnvVars: []string{"HOSTDASH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before reading HOSTDASH_* variables",
				Value: ".env",
			},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "db", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "log-level", Usage: "error, warn, info or debug"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "hostdash:", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(c.String("config"), c.String("env-file"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}

	return cfg, cfg.Validate()
}

func LoggerInitialize(cfg config.LoggingConfig) (*util.MetricsLogger, error) {

	level, err := util.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	util.SetLoggerPath(cfg.Dir)
	util.CheckAndCreateLogFolder(cfg.Dir)
	util.SetCommonLoggerAttributes(level)

	metricsLogger := &util.MetricsLogger{}
	if err := metricsLogger.Init(cfg.File, false, cfg.Console); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	metricsLogger.LogEvent(util.LOG_LEVEL_INFO, "Service started")

	currentTime := time.Now().Format(time.RFC3339)

	fmt.Fprintf(os.Stderr, "\n%s: hostdash agent started \n", currentTime)

	return metricsLogger, nil
}

func newStore(cfg config.StorageConfig) (domain.MetricStore, error) {
	switch cfg.Type {
	case config.StorageSQLite:
		util.CheckAndCreateLogFolder(filepath.Dir(cfg.Path))
		return repository.NewSQLiteStore(cfg.Path), nil
	case config.StorageMemory:
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := LoggerInitialize(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.DeInit()

	metricStore, err := newStore(cfg.Storage)
	if err != nil {
		return err
	}
	if err := metricStore.Init(); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to initialize metric store: ", err)
		return fmt.Errorf("failed to initialize metric store: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	metrics := telemetry.New()
	hostSampler := sampler.New(sampler.NewHost(), cfg.SamplerConfig(), logger)

	sched := scheduler.New(logger, metrics)
	if cfg.ScheduledTasks.Enabled {
		ids, err := tasks.Register(sched, cfg.TasksConfig(), tasks.Deps{
			Sampler: hostSampler,
			Store:   metricStore,
			Logger:  logger,
			Metrics: metrics,
		})
		if err != nil {
			metricStore.Close()
			return err
		}
		logger.LogFields(util.LOG_LEVEL_INFO, "Scheduled tasks registered", zap.Strings("jobs", ids))
		sched.Start()
	} else {
		logger.LogEvent(util.LOG_LEVEL_INFO, "Scheduled tasks disabled")
	}

	svc := service.New(metricStore, hostSampler, loc, logger)
	server := router.NewServer(cfg.Server.Addr, router.NewRouter(svc, metrics, logger))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return router.Serve(server, logger)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.LogEvent(util.LOG_LEVEL_INFO, "Shutting down server...")

		var errs error
		if err := router.GracefulShutdown(server, router.ShutdownTimeout); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("server shutdown: %w", err))
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), schedulerStopTimeout)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("scheduler stop: %w", err))
		}

		if err := metricStore.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store close: %w", err))
		}

		if errs != nil {
			logger.LogEvent(util.LOG_LEVEL_ERROR, "Stopped with error: ", errs)
			return errs
		}
		logger.LogEvent(util.LOG_LEVEL_INFO, "Server stopped gracefully.")
		return nil
	})

	return g.Wait()
}
