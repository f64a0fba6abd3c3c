// Package app wires configuration to storage backends and services.
package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/simaogato/irrflow/internal/adapter/repository/file"
	"github.com/simaogato/irrflow/internal/adapter/repository/postgres"
	"github.com/simaogato/irrflow/internal/adapter/repository/sqlite"
	"github.com/simaogato/irrflow/internal/config"
	"github.com/simaogato/irrflow/internal/domain"
	"github.com/simaogato/irrflow/internal/finance"
	"github.com/simaogato/irrflow/internal/usecase/pipeline"
)

// Storage is everything the commands need from a backend
type Storage interface {
	domain.Repository
	domain.CashflowStore
	domain.IrrReader
}

// Backend is an opened Storage and the handle releasing it
type Backend struct {
	Storage
	close func() error
}

// Close releases the backend's resources
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend opens the storage selected by cfg.Backend
func OpenBackend(ctx context.Context, cfg config.Config) (*Backend, error) {
	logger := log.WithFields(log.Fields{
		"component": "app",
		"backend":   cfg.Backend,
	})

	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := postgres.NewDB(cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		tables := postgres.Tables{
			Cashflows:   cfg.Database.CashflowTable,
			Irrs:        cfg.Database.IrrTable,
			SourceQuery: cfg.Database.SourceQuery,
		}
		repo := postgres.NewRepository(db, tables)
		if cfg.Database.EnsureSchema {
			if err := db.EnsureSchema(ctx, repo.CashflowTable(), repo.IrrTable()); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		logger.Info("connected to postgres")
		return &Backend{Storage: repo, close: db.Close}, nil

	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", cfg.SQLite.Path).Info("opened sqlite store")
		return &Backend{Storage: store, close: store.Close}, nil

	case config.BackendFile:
		logger.WithFields(log.Fields{
			"input":  cfg.Files.CSVInput,
			"output": cfg.Files.NDJSONOutput,
		}).Info("using file backend")
		return &Backend{Storage: file.NewRepository(cfg.Files.CSVInput, cfg.Files.NDJSONOutput)}, nil

	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// NewPipeline builds the pipeline service for repo with cfg's run options
func NewPipeline(cfg config.Config, repo domain.Repository) *pipeline.PipelineService {
	return pipeline.NewPipelineService(repo, finance.NewSolver(), pipeline.Options{
		Parallelism:       cfg.Pipeline.Parallelism,
		FailOnSolverError: cfg.Pipeline.FailOnSolverError,
	})
}
