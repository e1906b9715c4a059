package cli

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"userManagement/internal/config"
	"userManagement/internal/db"
	"userManagement/internal/logging"
	"userManagement/internal/metrics"
	"userManagement/internal/users"
	"userManagement/repository"
)

// runtime is what one command invocation needs: config, logger, metrics
// and, once opened, the store.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	db      *sql.DB
}

// newRuntime loads configuration. strict requires JWT_SECRET to be set.
func newRuntime(deps commandDeps, strict bool) (*runtime, error) {
	load := config.LoadWithDefaults
	if strict {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, &ExitError{Code: ExitCodeUsage, Err: err}
	}
	if deps.globals.DBPath != "" {
		cfg.Database.Path = deps.globals.DBPath
	}

	logger := zap.NewNop()
	if deps.globals.Verbose || strict {
		logger, err = logging.New(logging.Options{
			Env:       cfg.App.Env,
			Level:     cfg.Log.Level,
			File:      cfg.Log.File,
			MaxSizeMB: cfg.Log.MaxSizeMB,
			MaxFiles:  cfg.Log.MaxFiles,
		})
		if err != nil {
			return nil, &ExitError{Code: ExitCodeUsage, Err: err}
		}
	}
	return &runtime{cfg: cfg, logger: logger, metrics: metrics.New()}, nil
}

// migrator reports every step transition to the log and to metrics.
func (r *runtime) migrator() *db.Migrator {
	m := db.NewMigrator(r.logger)
	m.Observe = func(s db.Step, st db.State) {
		r.metrics.ObserveMigrationStep(s.Version, st.String())
	}
	return m
}

// open connects to the store and brings it to the latest schema.
func (r *runtime) open(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	d, err := db.NewProvider(r.cfg.Database.Path, r.migrator()).Get(ctx)
	if err != nil {
		return nil, err
	}
	r.db = d
	return d, nil
}

func (r *runtime) service(ctx context.Context) (*users.Service, error) {
	d, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	return users.NewService(repository.NewUserRepository(d), r.logger, r.metrics), nil
}

func (r *runtime) close() {
	if r.db != nil {
		_ = r.db.Close()
	}
	logging.Sync(r.logger)
}
