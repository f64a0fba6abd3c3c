package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/simaogato/irrflow/internal/domain"
	"github.com/simaogato/irrflow/internal/usecase/allocator"
)

var tracer = otel.Tracer("github.com/simaogato/irrflow/internal/usecase/pipeline")

// Options tunes how a pipeline run computes entities
type Options struct {
	// Parallelism is the number of entities computed at once; 0 or 1 means sequential
	Parallelism int
	// FailOnSolverError aborts the run when an entity's IRR cannot be computed,
	// instead of skipping that entity
	FailOnSolverError bool
}

// RunResult summarizes one pipeline run
type RunResult struct {
	RunID      uuid.UUID           `json:"run_id"`
	Cashflows  int                 `json:"cashflows"`
	Entities   int                 `json:"entities"`
	Irrs       int                 `json:"irrs"`
	Skipped    []domain.EntityName `json:"skipped"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`

	// Records holds the published Irr records, flattened by entity name
	Records []domain.Irr `json:"-"`
}

// PipelineService runs fetch -> allocate -> compute -> publish over a repository
type PipelineService struct {
	Repo    domain.Repository
	Solver  domain.IrrSolver
	Options Options

	now func() time.Time
}

// NewPipelineService creates a new PipelineService instance
func NewPipelineService(repo domain.Repository, solver domain.IrrSolver, opts Options) *PipelineService {
	return &PipelineService{
		Repo:    repo,
		Solver:  solver,
		Options: opts,
		now:     time.Now,
	}
}

// Run executes one full pipeline invocation
// Logic:
//  1. Fetch every cashflow from the repository
//  2. Build one ledger per entity and allocate the cashflows (must finish before any computation)
//  3. Compute each entity's Irr sequence
//  4. Publish all Irr records, replacing the destination contents
//
// Any fetch, allocation or publish failure fails the whole run; nothing is retried
func (s *PipelineService) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.New(),
		StartedAt: s.now(),
		Skipped:   []domain.EntityName{},
	}

	ctx, span := tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("run_id", result.RunID.String())))
	defer span.End()

	logger := log.WithFields(log.Fields{
		"component": "pipeline",
		"run_id":    result.RunID,
	})
	logger.Info("irr pipeline started")

	// 1. Fetch
	cashflows, err := s.Repo.GetCashflows(ctx)
	if err != nil {
		return nil, failRun(span, logger, fmt.Errorf("failed to get cashflows: %w", err))
	}
	result.Cashflows = len(cashflows)

	// 2. Allocate
	entities, err := allocator.BuildAndAllocate(cashflows)
	if err != nil {
		return nil, failRun(span, logger, fmt.Errorf("failed to allocate cashflows: %w", err))
	}
	result.Entities = len(entities)

	// 3. Compute
	skipped, err := s.computeAll(ctx, entities, logger)
	if err != nil {
		return nil, failRun(span, logger, err)
	}
	result.Skipped = skipped

	// 4. Publish
	if err := s.Repo.LoadIrrs(ctx, entities); err != nil {
		return nil, failRun(span, logger, fmt.Errorf("failed to load irrs: %w", err))
	}

	result.Records = domain.FlattenIrrs(entities)
	result.Irrs = len(result.Records)
	result.FinishedAt = s.now()

	span.SetAttributes(
		attribute.Int("cashflows", result.Cashflows),
		attribute.Int("entities", result.Entities),
		attribute.Int("irrs", result.Irrs),
	)
	logger.WithFields(log.Fields{
		"cashflows": result.Cashflows,
		"entities":  result.Entities,
		"irrs":      result.Irrs,
		"skipped":   len(result.Skipped),
		"duration":  result.FinishedAt.Sub(result.StartedAt).String(),
	}).Info("irr pipeline finished")

	return result, nil
}

// computeAll calculates every entity and returns the names of the entities skipped
// because their IRR could not be computed
func (s *PipelineService) computeAll(ctx context.Context, entities map[domain.EntityName]*domain.Entity, logger *log.Entry) ([]domain.EntityName, error) {
	var (
		mu      sync.Mutex
		skipped = []domain.EntityName{}
	)

	compute := func(ctx context.Context, entity *domain.Entity) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := entity.CalculateIrr(s.Solver)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrIrrNotComputable) || s.Options.FailOnSolverError {
			return fmt.Errorf("failed to calculate irr: %w", err)
		}

		logger.WithField("entity", entity.Name()).WithError(err).Warn("skipping entity")
		mu.Lock()
		skipped = append(skipped, entity.Name())
		mu.Unlock()
		return nil
	}

	if s.Options.Parallelism <= 1 {
		for _, entity := range entities {
			if err := compute(ctx, entity); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.Options.Parallelism)
		for _, entity := range entities {
			entity := entity
			g.Go(func() error {
				return compute(gctx, entity)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	slices.Sort(skipped)
	return skipped, nil
}

func failRun(span trace.Span, logger *log.Entry, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.WithError(err).Error("irr pipeline failed")
	return err
}
