package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/converge/pkg/log"
	"github.com/cuemby/converge/pkg/lvm"
	"github.com/cuemby/converge/pkg/mailman"
	"github.com/cuemby/converge/pkg/metrics"
	"github.com/cuemby/converge/pkg/reconciler"
	"github.com/cuemby/converge/pkg/types"
)

// Checker reports whether the tools behind a module are installed
type Checker interface {
	Available() bool
}

// Applier runs state files against the reconcilers
type Applier struct {
	engine  *reconciler.Engine
	mailman *mailman.Reconciler
	lvm     *lvm.Reconciler

	checkers map[string]Checker
}

// Modules wires the applier to its primitives
type Modules struct {
	Mailman        mailman.Primitives
	MailmanOptions mailman.Options

	LVM        lvm.Primitives
	LVMOptions lvm.Options
}

// NewApplier creates an applier. test is the process-wide dry-run flag.
// Primitives that also implement Checker are asked for availability before
// each state of their module runs.
func NewApplier(modules Modules, test bool) *Applier {
	engine := reconciler.NewEngine(test)
	a := &Applier{
		engine:   engine,
		checkers: make(map[string]Checker),
	}
	if modules.Mailman != nil {
		a.mailman = mailman.NewReconciler(engine, modules.Mailman, modules.MailmanOptions)
		if c, ok := modules.Mailman.(Checker); ok {
			a.checkers["mailman"] = c
		}
	}
	if modules.LVM != nil {
		a.lvm = lvm.NewReconciler(engine, modules.LVM, modules.LVMOptions)
		if c, ok := modules.LVM.(Checker); ok {
			a.checkers["lvm"] = c
		}
	}
	return a
}

// Apply runs every state in order. A failed state does not stop the run;
// the returned Run carries one result per state. When ctx is cancelled the
// partial Run is returned together with the context error.
func (a *Applier) Apply(ctx context.Context, f *File, source string) (*types.Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	run := &types.Run{
		ID:        id.String(),
		Source:    source,
		Test:      a.engine.DryRun,
		StartedAt: time.Now().UTC(),
	}
	logger := log.WithRunID(run.ID)
	logger.Info().Str("source", source).Bool("test", run.Test).Int("states", len(f.States)).Msg("run started")

	for i := range f.States {
		e := &f.States[i]
		if err := ctx.Err(); err != nil {
			run.FinishedAt = time.Now().UTC()
			logger.Warn().Err(err).Int("completed", len(run.Results)).Msg("run interrupted")
			return run, err
		}

		start := time.Now()
		result := a.applyEntry(ctx, e)
		run.Results = append(run.Results, types.StateResult{
			ID:       e.ID,
			State:    e.State,
			Result:   *result,
			Duration: time.Since(start),
		})
		logResult(logger, e, result)
	}

	run.FinishedAt = time.Now().UTC()
	_, failed, _, _ := run.Summary()
	metrics.LastRunTimestamp.Set(float64(run.FinishedAt.Unix()))
	metrics.LastRunFailed.Set(float64(failed))

	logger.Info().Int("failed", failed).Dur("duration", run.FinishedAt.Sub(run.StartedAt)).Msg("run finished")
	return run, nil
}

func logResult(logger zerolog.Logger, e *Entry, result *types.Result) {
	ev := logger.Info()
	if result.Failed() {
		ev = logger.Error()
	}
	ev.Str("id", e.ID).
		Str("state", e.State).
		Str("result", result.Outcome.String()).
		Str("comment", result.Comment).
		Msg("state applied")
}

func (a *Applier) applyEntry(ctx context.Context, e *Entry) *types.Result {
	module := e.Module()
	if c, ok := a.checkers[module]; ok && !c.Available() {
		return types.NewResult(e.Name).Fail(fmt.Sprintf("Module %s is not available on this host", module))
	}

	switch e.State {
	case MailmanListPresent, MailmanListAbsent:
		if a.mailman == nil {
			break
		}
		if e.State == MailmanListAbsent {
			archives := true
			if e.Archives != nil {
				archives = *e.Archives
			}
			return a.mailman.ListAbsent(ctx, e.Name, archives)
		}
		return a.mailman.ListPresent(ctx, listSpec(e))

	case LVMPVPresent:
		if a.lvm != nil {
			return a.lvm.PVPresent(ctx, lvm.PVSpec{Device: e.Name})
		}
	case LVMPVAbsent:
		if a.lvm != nil {
			return a.lvm.PVAbsent(ctx, e.Name)
		}
	case LVMVGPresent:
		if a.lvm != nil {
			return a.lvm.VGPresent(ctx, lvm.VGSpec{Name: e.Name, Devices: e.Devices.SplitCommas()})
		}
	case LVMVGAbsent:
		if a.lvm != nil {
			return a.lvm.VGAbsent(ctx, e.Name)
		}
	case LVMLVPresent:
		if a.lvm != nil {
			return a.lvm.LVPresent(ctx, lvSpec(e))
		}
	case LVMLVAbsent:
		if a.lvm != nil {
			return a.lvm.LVAbsent(ctx, e.Name, e.VGName)
		}
	default:
		return types.NewResult(e.Name).Fail(fmt.Sprintf("Unknown state %s", e.State))
	}

	return types.NewResult(e.Name).Fail(fmt.Sprintf("Module %s is not configured", module))
}

func listSpec(e *Entry) mailman.ListSpec {
	spec := mailman.ListSpec{
		Name:          e.Name,
		Owners:        e.Owner,
		Password:      e.Password,
		MembersAbsent: e.MembersAbsent,
		Explicit:      e.Explicit,
		Language:      e.Language,
		URLHost:       e.URLHost,
		EmailHost:     e.EmailHost,
	}
	if e.MembersPresent != nil {
		spec.MembersPresent = *e.MembersPresent
		spec.HasMembersPresent = true
	}
	return spec
}

func lvSpec(e *Entry) lvm.LVSpec {
	return lvm.LVSpec{
		Name:        e.Name,
		VGName:      e.VGName,
		Size:        e.Size,
		Extents:     e.Extents,
		Snapshot:    e.Snapshot,
		PV:          e.PV,
		ThinVolume:  e.ThinVolume,
		ThinPool:    e.ThinPool,
		AllowResize: e.AllowResize,
	}
}
