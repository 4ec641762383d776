// Package acquire obtains external dependencies by trying an ordered list of
// strategies (package managers, release downloads, model downloads, Python
// virtual environments) until one succeeds.
package acquire

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/ledger"
	"github.com/subforge/subforge/internal/logging"
)

// Result describes a successful acquisition.
type Result struct {
	Entry ledger.Entry
	// Strategy names the strategy that succeeded.
	Strategy   string
	Companions map[catalog.ID]ledger.Entry
	// Attempts lists the strategies that declined before the winner.
	Attempts []Attempt
}

// Selector runs the strategy chain for a dependency.
type Selector struct {
	env *Env
	// order overrides the catalog order per dependency.
	order  map[catalog.ID][]catalog.Kind
	logger *slog.Logger
}

// NewSelector builds a Selector. order may be nil.
func NewSelector(env *Env, order map[catalog.ID][]catalog.Kind) *Selector {
	return &Selector{env: env, order: order, logger: logging.OrNop(env.Logger)}
}

// Strategies returns the runnable strategy chain for req.
func (s *Selector) Strategies(req Request) (catalog.Dependency, []Strategy, error) {
	dep, ok := catalog.Lookup(req.Dependency)
	if !ok {
		return catalog.Dependency{}, nil, fmt.Errorf("unknown dependency %q", req.Dependency)
	}
	specs := catalog.Reorder(dep.Strategies(req.GOOS), s.order[dep.ID])
	strategies := make([]Strategy, 0, len(specs))
	for _, spec := range specs {
		strategies = append(strategies, s.env.Build(dep, spec, req.GOOS))
	}
	return dep, strategies, nil
}

// Acquire tries each strategy for req.Dependency in order.
func (s *Selector) Acquire(ctx context.Context, req Request) (Result, error) {
	dep, strategies, err := s.Strategies(req)
	if err != nil {
		return Result{}, err
	}
	return s.Run(ctx, dep, req, strategies)
}

// Run executes strategies in order. The first Installed outcome wins and
// later strategies never run. Unavailable moves on to the next strategy.
// Fatal stops the chain. When every strategy declines the error is an
// *AcquisitionFailedError carrying each attempt and the manual steps.
func (s *Selector) Run(ctx context.Context, dep catalog.Dependency, req Request, strategies []Strategy) (Result, error) {
	log := s.logger.With(logging.FieldDependency, dep.ID)
	var attempts []Attempt

	for _, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return Result{}, &FatalError{Dependency: dep.ID, Strategy: strategy.Name(), Reason: "canceled", Err: err}
		}

		log.Debug("trying strategy", logging.FieldStrategy, strategy.Name())
		req.report(Progress{Strategy: strategy.Name(), Percent: -1, Message: "trying " + strategy.Name()})

		switch outcome := strategy.Attempt(ctx, req).(type) {
		case Installed:
			log.Info("dependency installed",
				logging.FieldStrategy, strategy.Name(),
				"version", outcome.Version,
				logging.FieldPath, outcome.Path,
			)
			return Result{
				Entry:      ledger.Entry{Version: outcome.Version, ResolvedPath: outcome.Path},
				Strategy:   strategy.Name(),
				Companions: outcome.Companions,
				Attempts:   attempts,
			}, nil

		case Unavailable:
			log.Info("strategy unavailable",
				logging.FieldStrategy, strategy.Name(),
				"reason", outcome.Reason,
				"manager_invoked", outcome.ManagerInvoked,
			)
			attempts = append(attempts, Attempt{
				Strategy:       strategy.Name(),
				ManagerInvoked: outcome.ManagerInvoked,
				ExitCode:       outcome.ExitCode,
				Reason:         outcome.Reason,
			})

		case Fatal:
			log.Error("strategy failed", logging.FieldStrategy, strategy.Name(), "reason", outcome.Reason, logging.Error(outcome.Err))
			return Result{}, &FatalError{Dependency: dep.ID, Strategy: strategy.Name(), Reason: outcome.Reason, Err: outcome.Err}

		default:
			return Result{}, fmt.Errorf("strategy %s returned unexpected outcome %T", strategy.Name(), outcome)
		}
	}

	return Result{}, &AcquisitionFailedError{
		Dependency:   dep.ID,
		Attempts:     attempts,
		Instructions: dep.ManualInstructions(req.GOOS),
	}
}
