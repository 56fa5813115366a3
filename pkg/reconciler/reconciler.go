package reconciler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/converge/pkg/log"
	"github.com/cuemby/converge/pkg/metrics"
	"github.com/cuemby/converge/pkg/types"
)

// Resource describes the existence side of one reconcilable object
type Resource struct {
	// Kind is a short machine name used for logs and metrics ("list", "vg")
	Kind string

	// Label is the human name used in comments ("Volume Group")
	Label string

	// Name identifies the resource; it never changes during reconciliation
	Name string

	// Exists queries whether the resource is present
	Exists func(ctx context.Context) (bool, error)

	// Create makes the resource and returns a description of what was done
	Create func(ctx context.Context) (string, error)

	// Remove deletes the resource and returns a description of what was done
	Remove func(ctx context.Context) (string, error)
}

// Plan is the outcome of inspecting one attribute
type Plan struct {
	// Changes are recorded in the result, under dry-run as well
	Changes []types.Change

	// Apply performs the mutation; nil when nothing needs to change
	Apply func(ctx context.Context) error

	// Verify re-queries after Apply and fails when the effect is missing
	Verify func(ctx context.Context) error

	// Comment replaces the result comment after a successful Apply
	Comment string

	// Failure is the comment used when Apply or Verify fails
	Failure string
}

// InSync reports whether the plan needs no mutation
func (p Plan) InSync() bool {
	return p.Apply == nil
}

// Step reconciles a single attribute of an existing resource
type Step struct {
	// Field names the attribute for logging
	Field string

	// Plan fetches the actual value and returns what has to change
	Plan func(ctx context.Context) (Plan, error)
}

// Engine drives desired-versus-actual convergence for one invocation
type Engine struct {
	// DryRun reports what would change without invoking any mutation
	DryRun bool
}

// NewEngine creates an engine
func NewEngine(dryRun bool) *Engine {
	return &Engine{DryRun: dryRun}
}

// Present ensures res exists and then runs steps in order. The first failure
// stops the pass; changes applied before it stay applied and recorded.
func (e *Engine) Present(ctx context.Context, res Resource, steps ...Step) *types.Result {
	timer := metrics.NewTimer()
	result := e.present(ctx, res, steps)
	timer.ObserveDurationVec(metrics.ReconciliationDuration, res.Kind)
	metrics.ObserveResult(res.Kind, result)
	return result
}

// Absent ensures res does not exist
func (e *Engine) Absent(ctx context.Context, res Resource) *types.Result {
	timer := metrics.NewTimer()
	result := e.absent(ctx, res)
	timer.ObserveDurationVec(metrics.ReconciliationDuration, res.Kind)
	metrics.ObserveResult(res.Kind, result)
	return result
}

func (e *Engine) present(ctx context.Context, res Resource, steps []Step) *types.Result {
	logger := log.WithResource(res.Kind, res.Name)
	result := types.NewResult(res.Name)
	result.Comment = fmt.Sprintf("%s %s already present", res.Label, res.Name)

	exists, err := res.Exists(ctx)
	if err != nil {
		return result.Fail(fmt.Sprintf("Failed to query %s %s: %v", res.Label, res.Name, err))
	}

	if !exists {
		if e.DryRun {
			return result.Pending(fmt.Sprintf("%s %s is set to be created", res.Label, res.Name))
		}

		logger.Info().Msg("creating")
		desc, err := res.Create(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("create failed")
			return result.Fail(fmt.Sprintf("Failed to create %s %s: %v", res.Label, res.Name, err))
		}

		exists, err = res.Exists(ctx)
		if err != nil || !exists {
			return result.Fail(fmt.Sprintf("Failed to create %s %s", res.Label, res.Name))
		}

		result.Record("created", types.ActionAdd, desc)
		result.Comment = fmt.Sprintf("Created %s %s", res.Label, res.Name)
	}

	for _, step := range steps {
		if !e.runStep(ctx, logger, res, step, result) {
			return result
		}
	}

	return result
}

// runStep returns false when the pass must stop
func (e *Engine) runStep(ctx context.Context, logger zerolog.Logger, res Resource, step Step, result *types.Result) bool {
	plan, err := step.Plan(ctx)
	if err != nil {
		logger.Error().Err(err).Str("field", step.Field).Msg("inspecting attribute failed")
		result.Fail(fmt.Sprintf("Failed to update %s %s: %v", res.Label, res.Name, err))
		return false
	}

	if plan.InSync() {
		logger.Debug().Str("field", step.Field).Msg("in sync")
		return true
	}

	if e.DryRun {
		result.Diff = append(result.Diff, plan.Changes...)
		result.Pending(fmt.Sprintf("%s %s is set to be updated", res.Label, res.Name))
		return true
	}

	logger.Info().Str("field", step.Field).Msg("updating")
	if err := plan.Apply(ctx); err != nil {
		logger.Error().Err(err).Str("field", step.Field).Msg("update failed")
		result.Fail(failureComment(res, plan, err))
		return false
	}

	if plan.Verify != nil {
		if err := plan.Verify(ctx); err != nil {
			logger.Error().Err(err).Str("field", step.Field).Msg("verification failed")
			result.Fail(failureComment(res, plan, err))
			return false
		}
	}

	result.Diff = append(result.Diff, plan.Changes...)
	if plan.Comment != "" {
		result.Comment = plan.Comment
	} else {
		result.Comment = fmt.Sprintf("%s %s has been updated", res.Label, res.Name)
	}
	return true
}

func (e *Engine) absent(ctx context.Context, res Resource) *types.Result {
	logger := log.WithResource(res.Kind, res.Name)
	result := types.NewResult(res.Name)

	exists, err := res.Exists(ctx)
	if err != nil {
		return result.Fail(fmt.Sprintf("Failed to query %s %s: %v", res.Label, res.Name, err))
	}

	if !exists {
		result.Comment = fmt.Sprintf("%s %s already absent", res.Label, res.Name)
		return result
	}

	if e.DryRun {
		return result.Pending(fmt.Sprintf("%s %s is set to be removed", res.Label, res.Name))
	}

	logger.Info().Msg("removing")
	desc, err := res.Remove(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("remove failed")
		return result.Fail(fmt.Sprintf("Failed to remove %s %s: %v", res.Label, res.Name, err))
	}

	exists, err = res.Exists(ctx)
	if err != nil || exists {
		return result.Fail(fmt.Sprintf("Failed to remove %s %s", res.Label, res.Name))
	}

	result.Record("removed", types.ActionRemove, desc)
	result.Comment = fmt.Sprintf("Removed %s %s", res.Label, res.Name)
	return result
}

// Invalid builds the failed result for desired state rejected up front
func Invalid(kind, name string, err error) *types.Result {
	result := types.NewResult(name).Fail(err.Error())
	metrics.ObserveResult(kind, result)
	return result
}

func failureComment(res Resource, plan Plan, err error) string {
	if plan.Failure != "" {
		return fmt.Sprintf("%s: %v", plan.Failure, err)
	}
	return fmt.Sprintf("Failed to update %s %s: %v", res.Label, res.Name, err)
}
