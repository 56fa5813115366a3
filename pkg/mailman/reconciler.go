package mailman

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cuemby/converge/pkg/log"
	"github.com/cuemby/converge/pkg/reconciler"
	"github.com/cuemby/converge/pkg/types"
)

const (
	// DefaultOwner is used by newlist when the state names no owner
	DefaultOwner = "root@localhost.localdomain"

	// DefaultPasswordLength is the length of generated list passwords
	DefaultPasswordLength = 8

	kind  = "list"
	label = "List"

	passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var _ Primitives = (*CLI)(nil)

// ListSpec is the desired state of one mailing list
type ListSpec struct {
	Name string

	// Owners replaces the list's owner set when non-empty
	Owners []string

	// Password is checked and set when non-nil
	Password *string

	MembersPresent []string
	MembersAbsent  []string

	// HasMembersPresent is true when members_present was given at all,
	// even as an empty list
	HasMembersPresent bool

	// Explicit removes every subscriber not in MembersPresent
	Explicit bool

	Language  string
	URLHost   string
	EmailHost string
}

// Validate rejects desired state before any primitive runs
func (s ListSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: list name is required", types.ErrValidation)
	}
	if s.Password != nil && *s.Password == "" {
		return fmt.Errorf("%w: Empty passwords are not allowed", types.ErrValidation)
	}
	if s.Explicit && !s.HasMembersPresent {
		return fmt.Errorf("%w: explicit requires members_present for list %s", types.ErrValidation, s.Name)
	}
	return nil
}

// Options configures a Reconciler
type Options struct {
	DefaultOwner   string
	PasswordLength int
}

// Reconciler converges mailing lists towards a ListSpec
type Reconciler struct {
	engine *reconciler.Engine
	prims  Primitives
	opts   Options
}

// NewReconciler creates a mailing-list reconciler
func NewReconciler(engine *reconciler.Engine, prims Primitives, opts Options) *Reconciler {
	if opts.DefaultOwner == "" {
		opts.DefaultOwner = DefaultOwner
	}
	if opts.PasswordLength <= 0 {
		opts.PasswordLength = DefaultPasswordLength
	}
	return &Reconciler{
		engine: engine,
		prims:  prims,
		opts:   opts,
	}
}

// listRun carries normalized desired state through one ListPresent pass
type listRun struct {
	spec    ListSpec
	owners  []string
	present []string
	absent  []string

	// unsubscribed tracks addresses already scheduled for removal so the
	// explicit cleanup does not report them twice
	unsubscribed addressSet

	logger zerolog.Logger
}

// ListPresent ensures the list exists, then reconciles password, owners and
// membership in that order
func (r *Reconciler) ListPresent(ctx context.Context, spec ListSpec) *types.Result {
	if err := spec.Validate(); err != nil {
		return reconciler.Invalid(kind, spec.Name, err)
	}

	run := &listRun{
		spec:         spec,
		owners:       NormalizeAddresses(spec.Owners),
		present:      NormalizeAddresses(spec.MembersPresent),
		absent:       NormalizeAddresses(spec.MembersAbsent),
		unsubscribed: make(addressSet),
		logger:       log.WithResource(kind, spec.Name),
	}

	var steps []reconciler.Step
	if spec.Password != nil {
		steps = append(steps, r.passwordStep(run))
	}
	if len(run.owners) > 0 {
		steps = append(steps, r.ownerStep(run))
	}
	if spec.HasMembersPresent {
		steps = append(steps, r.subscribeStep(run))
	}
	if len(run.absent) > 0 {
		steps = append(steps, r.unsubscribeStep(run))
	}
	if spec.Explicit {
		steps = append(steps, r.explicitStep(run))
	}

	return r.engine.Present(ctx, r.resource(run), steps...)
}

// ListAbsent removes the list, with its archives when archives is set
func (r *Reconciler) ListAbsent(ctx context.Context, name string, archives bool) *types.Result {
	if name == "" {
		return reconciler.Invalid(kind, name, fmt.Errorf("%w: list name is required", types.ErrValidation))
	}

	return r.engine.Absent(ctx, reconciler.Resource{
		Kind:  kind,
		Label: label,
		Name:  name,
		Exists: func(ctx context.Context) (bool, error) {
			return r.prims.Exists(ctx, name)
		},
		Remove: func(ctx context.Context) (string, error) {
			if err := r.prims.Remove(ctx, name, archives); err != nil {
				return "", err
			}
			return fmt.Sprintf("List %s has been removed", name), nil
		},
	})
}

func (r *Reconciler) resource(run *listRun) reconciler.Resource {
	name := run.spec.Name
	return reconciler.Resource{
		Kind:  kind,
		Label: label,
		Name:  name,
		Exists: func(ctx context.Context) (bool, error) {
			return r.prims.Exists(ctx, name)
		},
		Create: func(ctx context.Context) (string, error) {
			opts := CreateOptions{
				Owner:     r.opts.DefaultOwner,
				Language:  run.spec.Language,
				URLHost:   run.spec.URLHost,
				EmailHost: run.spec.EmailHost,
			}
			if len(run.owners) > 0 {
				opts.Owner = run.owners[0]
			}
			if run.spec.Password != nil {
				opts.Password = *run.spec.Password
			} else {
				pw, err := RandomPassword(r.opts.PasswordLength)
				if err != nil {
					return "", err
				}
				opts.Password = pw
			}
			if err := r.prims.Create(ctx, name, opts); err != nil {
				return "", err
			}
			return fmt.Sprintf("List %s has been created", name), nil
		},
	}
}

// passwordStep compares by authenticating, since only a hash is stored
func (r *Reconciler) passwordStep(run *listRun) reconciler.Step {
	name, password := run.spec.Name, *run.spec.Password
	return reconciler.Step{
		Field: "password",
		Plan: func(ctx context.Context) (reconciler.Plan, error) {
			ok, err := r.prims.CheckPassword(ctx, name, password)
			if err != nil {
				return reconciler.Plan{}, err
			}
			if ok {
				return reconciler.Plan{}, nil
			}
			return reconciler.Plan{
				Changes: []types.Change{{Field: "PW", Action: types.ActionChange, Value: "Password has been changed"}},
				Apply: func(ctx context.Context) error {
					return r.prims.SetPassword(ctx, name, password)
				},
				Failure: fmt.Sprintf("Failed to set password of list %s", name),
			}, nil
		},
	}
}

// ownerStep replaces the whole owner list when the sets differ in any way
func (r *Reconciler) ownerStep(run *listRun) reconciler.Step {
	name, desired := run.spec.Name, run.owners
	return reconciler.Step{
		Field: "owner",
		Plan: func(ctx context.Context) (reconciler.Plan, error) {
			actual, err := r.prims.GetOwners(ctx, name)
			if err != nil {
				return reconciler.Plan{}, err
			}
			if newAddressSet(NormalizeAddresses(actual)).equal(newAddressSet(desired)) {
				return reconciler.Plan{}, nil
			}

			run.logger.Debug().Strs("actual", actual).Strs("desired", desired).Msg("owners differ")
			return reconciler.Plan{
				Changes: []types.Change{{
					Field:  "Owner",
					Action: types.ActionChange,
					Value:  "Owner has been changed:\n" + strings.Join(desired, "\n"),
				}},
				Apply: func(ctx context.Context) error {
					return r.prims.SetOwners(ctx, name, desired)
				},
				Failure: fmt.Sprintf("Failed to set owners of list %s", name),
			}, nil
		},
	}
}

func (r *Reconciler) subscribeStep(run *listRun) reconciler.Step {
	name := run.spec.Name
	return reconciler.Step{
		Field: "members_present",
		Plan: func(ctx context.Context) (reconciler.Plan, error) {
			var add []string
			for _, m := range run.present {
				ok, err := r.prims.IsMember(ctx, name, m)
				if err != nil {
					return reconciler.Plan{}, err
				}
				if !ok {
					add = append(add, m)
				}
			}
			if len(add) == 0 {
				return reconciler.Plan{}, nil
			}

			changes := make([]types.Change, 0, len(add))
			for _, m := range add {
				changes = append(changes, types.Change{Field: "Subscribed", Action: types.ActionAdd, Value: m})
			}
			return reconciler.Plan{
				Changes: changes,
				Apply: func(ctx context.Context) error {
					return r.prims.AddMembers(ctx, name, add)
				},
				Failure: "Failed to add new members",
			}, nil
		},
	}
}

func (r *Reconciler) unsubscribeStep(run *listRun) reconciler.Step {
	name := run.spec.Name
	return reconciler.Step{
		Field: "members_absent",
		Plan: func(ctx context.Context) (reconciler.Plan, error) {
			var del []string
			for _, m := range run.absent {
				ok, err := r.prims.IsMember(ctx, name, m)
				if err != nil {
					return reconciler.Plan{}, err
				}
				if ok {
					del = append(del, m)
				}
			}
			if len(del) == 0 {
				return reconciler.Plan{}, nil
			}

			changes := make([]types.Change, 0, len(del))
			for _, m := range del {
				run.unsubscribed.add(m)
				changes = append(changes, types.Change{Field: "Unsubscribed", Action: types.ActionRemove, Value: m})
			}
			return reconciler.Plan{
				Changes: changes,
				Apply: func(ctx context.Context) error {
					return r.prims.RemoveMembers(ctx, name, del)
				},
				Failure: "Failed to remove members",
			}, nil
		},
	}
}

// explicitStep removes every subscriber that is not in members_present. It
// runs after subscribeStep so that members added in this pass stay.
func (r *Reconciler) explicitStep(run *listRun) reconciler.Step {
	name := run.spec.Name
	return reconciler.Step{
		Field: "explicit",
		Plan: func(ctx context.Context) (reconciler.Plan, error) {
			members, err := r.prims.ListMembers(ctx, name, false)
			if err != nil {
				return reconciler.Plan{}, err
			}

			keep := newAddressSet(run.present)
			var del []string
			for _, m := range NormalizeAddresses(members) {
				if keep.has(m) || run.unsubscribed.has(m) {
					continue
				}
				del = append(del, m)
			}
			if len(del) == 0 {
				return reconciler.Plan{}, nil
			}

			run.logger.Info().Strs("members", del).Msg("explicit membership removes unlisted subscribers")
			changes := make([]types.Change, 0, len(del))
			for _, m := range del {
				changes = append(changes, types.Change{
					Field:  "Unsubscribed",
					Action: types.ActionRemove,
					Value:  m + " (explicit flag)",
				})
			}
			return reconciler.Plan{
				Changes: changes,
				Apply: func(ctx context.Context) error {
					return r.prims.RemoveMembers(ctx, name, del)
				},
				Failure: "Failed to remove members",
			}, nil
		},
	}
}

// RandomPassword returns n characters drawn from crypto/rand
func RandomPassword(n int) (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(passwordAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		b.WriteByte(passwordAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
