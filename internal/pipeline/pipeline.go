// Package pipeline runs the hiring stages end to end: ingest from the source
// platform, evaluate with the model and push to the ATS.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/hiring-pipeline/internal/atssync"
	"github.com/spigell/hiring-pipeline/internal/evaluation"
	"github.com/spigell/hiring-pipeline/internal/getonboard"
	"github.com/spigell/hiring-pipeline/internal/prompts"
	"github.com/spigell/hiring-pipeline/internal/records"
	"github.com/spigell/hiring-pipeline/internal/store"
)

// Source is the candidate source platform.
type Source interface {
	GetJob(ctx context.Context, jobID string) (*getonboard.Job, error)
	ListApplications(ctx context.Context, jobID string) ([]getonboard.Application, error)
}

// Deps wires the stages. Source, Evaluator and Sync may be nil when the
// corresponding stage is not configured; calling that stage then fails with
// a configuration error.
type Deps struct {
	Store     *store.Store
	Source    Source
	Resolver  *prompts.Resolver
	Evaluator *evaluation.Evaluator
	Sync      *atssync.Machine
	Logger    *zap.Logger
}

type Pipeline struct {
	store     *store.Store
	source    Source
	resolver  *prompts.Resolver
	evaluator *evaluation.Evaluator
	sync      *atssync.Machine
	logger    *zap.Logger
}

func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Resolver == nil && deps.Store != nil {
		deps.Resolver = prompts.NewResolver(deps.Store)
	}

	return &Pipeline{
		store:     deps.Store,
		source:    deps.Source,
		resolver:  deps.Resolver,
		evaluator: deps.Evaluator,
		sync:      deps.Sync,
		logger:    deps.Logger,
	}
}

// Evaluate runs a single evaluation.
func (p *Pipeline) Evaluate(ctx context.Context, req evaluation.Request) (records.CandidateEvaluation, error) {
	if p.evaluator == nil {
		return records.CandidateEvaluation{}, records.Configuration("", "", "language model is not configured")
	}
	return p.evaluator.Evaluate(ctx, req)
}

// Store exposes the record store for recruiter edits.
func (p *Pipeline) Store() *store.Store {
	return p.store
}
