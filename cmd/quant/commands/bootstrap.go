package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/regimerisk/internal/engine"
	"github.com/wonny/regimerisk/internal/factors"
	"github.com/wonny/regimerisk/internal/metrics"
	"github.com/wonny/regimerisk/internal/scenario"
	"github.com/wonny/regimerisk/internal/store"
	"github.com/wonny/regimerisk/pkg/config"
	"github.com/wonny/regimerisk/pkg/database"
	"github.com/wonny/regimerisk/pkg/logger"
	"github.com/wonny/regimerisk/pkg/redis"
)

// app holds the wired components shared by every command
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	rc      *redis.Client
	store   store.Store
	metrics *metrics.Prometheus
	engine  *engine.Engine
}

// newApp loads config and connects only what the configuration selects
// overrides run after loading, before any component is built
func newApp(ctx context.Context, overrides ...func(*config.Config)) (*app, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	for _, o := range overrides {
		o(cfg)
	}

	a := &app{cfg: cfg, log: logger.New(cfg)}

	if cfg.NeedsDatabase() {
		a.db, err = database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := database.EnsureSchema(ctx, a.db.Pool); err != nil {
			a.close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	a.rc, err = redis.New(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	a.store, err = store.Open(cfg, a.db, a.rc)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open correlation store: %w", err)
	}

	table := scenario.DefaultTable()
	if cfg.Risk.AssumptionsFile != "" {
		table, err = scenario.LoadTable(cfg.Risk.AssumptionsFile)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	var recorder metrics.Recorder = metrics.Nop{}
	if cfg.MetricsEnabled {
		a.metrics = metrics.NewPrometheus()
		recorder = a.metrics
	}

	a.engine = engine.New(a.store, engine.ConfigFrom(cfg, table), recorder, a.log)
	if a.rc.Enabled() {
		a.engine.WithReportCache(redis.NewCache(a.rc, cfg.Store.KeyPrefix))
	}

	a.log.WithFields(map[string]interface{}{
		"env":     cfg.Env,
		"store":   cfg.Store.Backend,
		"redis":   a.rc.Enabled(),
		"metrics": cfg.MetricsEnabled,
	}).Debug("Application initialized")

	return a, nil
}

// factorSource picks the configured factor series source. csvPath overrides it.
func (a *app) factorSource(csvPath string, start time.Time) (factors.Source, error) {
	if csvPath != "" {
		return factors.CSVSource{Path: csvPath}, nil
	}
	switch a.cfg.Risk.FactorSource {
	case "postgres":
		if a.db == nil {
			return nil, fmt.Errorf("postgres factor source requires DATABASE_URL")
		}
		return factors.RepositorySource{Repo: factors.NewRepository(a.db.Pool), Start: start}, nil
	default:
		return factors.CSVSource{Path: a.cfg.Risk.FactorCSV}, nil
	}
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close correlation store")
		}
	}
	if a.rc != nil {
		_ = a.rc.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// parseDate parses YYYY-MM-DD, falling back when empty
func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}
