package reconciler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/converge/pkg/types"
)

// fakeResource tracks existence and counts mutations
type fakeResource struct {
	exists      bool
	createFails bool
	createNoop  bool
	removeNoop  bool
	creates     int
	removes     int
}

func (f *fakeResource) resource() Resource {
	return Resource{
		Kind:  "widget",
		Label: "Widget",
		Name:  "w1",
		Exists: func(ctx context.Context) (bool, error) {
			return f.exists, nil
		},
		Create: func(ctx context.Context) (string, error) {
			f.creates++
			if f.createFails {
				return "", errors.New("tool exploded")
			}
			if !f.createNoop {
				f.exists = true
			}
			return "widget w1 created", nil
		},
		Remove: func(ctx context.Context) (string, error) {
			f.removes++
			if !f.removeNoop {
				f.exists = false
			}
			return "widget w1 removed", nil
		},
	}
}

// attr is a fake attribute with an actual and a desired value
type attr struct {
	field   string
	actual  string
	desired string
	applies int
	fail    bool
	verify  bool
}

func (a *attr) step() Step {
	return Step{
		Field: a.field,
		Plan: func(ctx context.Context) (Plan, error) {
			if a.actual == a.desired {
				return Plan{}, nil
			}
			p := Plan{
				Changes: []types.Change{{Field: a.field, Action: types.ActionChange, Value: a.desired}},
				Apply: func(ctx context.Context) error {
					a.applies++
					if a.fail {
						return errors.New("refused")
					}
					a.actual = a.desired
					return nil
				},
			}
			if a.verify {
				p.Verify = func(ctx context.Context) error {
					return errors.New("still wrong")
				}
				p.Failure = "Widget w1 could not be changed"
			}
			return p, nil
		},
	}
}

func TestPresent_CreatesMissingResource(t *testing.T) {
	f := &fakeResource{}
	e := NewEngine(false)

	r := e.Present(context.Background(), f.resource())

	assert.Equal(t, types.OutcomeTrue, r.Outcome)
	assert.Equal(t, "Created Widget w1", r.Comment)
	assert.Equal(t, map[string]string{"created": "widget w1 created"}, r.Changes())
	assert.Equal(t, 1, f.creates)
}

func TestPresent_DryRunNeverMutates(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		want   string
	}{
		{"missing resource", false, "Widget w1 is set to be created"},
		{"drifted attribute", true, "Widget w1 is set to be updated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeResource{exists: tt.exists}
			a := &attr{field: "color", actual: "red", desired: "blue"}
			e := NewEngine(true)

			r := e.Present(context.Background(), f.resource(), a.step())

			assert.Equal(t, types.OutcomeUnknown, r.Outcome)
			assert.Equal(t, tt.want, r.Comment)
			assert.Zero(t, f.creates)
			assert.Zero(t, a.applies)
		})
	}
}

func TestPresent_DryRunRecordsPlannedChanges(t *testing.T) {
	f := &fakeResource{exists: true}
	a := &attr{field: "color", actual: "red", desired: "blue"}

	r := NewEngine(true).Present(context.Background(), f.resource(), a.step())

	assert.Equal(t, map[string]string{"color": "blue"}, r.Changes())
}

func TestPresent_FailedCreateStopsPass(t *testing.T) {
	tests := []struct {
		name string
		f    *fakeResource
	}{
		{"create errors", &fakeResource{createFails: true}},
		{"create has no effect", &fakeResource{createNoop: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &attr{field: "color", actual: "red", desired: "blue"}

			r := NewEngine(false).Present(context.Background(), tt.f.resource(), a.step())

			assert.Equal(t, types.OutcomeFalse, r.Outcome)
			assert.Contains(t, r.Comment, "Failed to create Widget w1")
			assert.Zero(t, a.applies)
			assert.Empty(t, r.Diff)
		})
	}
}

func TestPresent_FailFastKeepsEarlierChanges(t *testing.T) {
	f := &fakeResource{exists: true}
	first := &attr{field: "color", actual: "red", desired: "blue"}
	second := &attr{field: "size", actual: "s", desired: "l", fail: true}
	third := &attr{field: "shape", actual: "round", desired: "square"}

	r := NewEngine(false).Present(context.Background(), f.resource(), first.step(), second.step(), third.step())

	assert.Equal(t, types.OutcomeFalse, r.Outcome)
	assert.Equal(t, map[string]string{"color": "blue"}, r.Changes())
	assert.Contains(t, r.Comment, "refused")
	assert.Zero(t, third.applies)
}

func TestPresent_VerifyFailure(t *testing.T) {
	f := &fakeResource{exists: true}
	a := &attr{field: "size", actual: "s", desired: "l", verify: true}

	r := NewEngine(false).Present(context.Background(), f.resource(), a.step())

	assert.Equal(t, types.OutcomeFalse, r.Outcome)
	assert.Equal(t, "Widget w1 could not be changed: still wrong", r.Comment)
	assert.Empty(t, r.Diff)
}

func TestPresent_Idempotent(t *testing.T) {
	f := &fakeResource{}
	a := &attr{field: "color", actual: "red", desired: "blue"}
	e := NewEngine(false)

	first := e.Present(context.Background(), f.resource(), a.step())
	require.Equal(t, types.OutcomeTrue, first.Outcome)
	require.NotEmpty(t, first.Changes())

	second := e.Present(context.Background(), f.resource(), a.step())
	assert.Equal(t, types.OutcomeTrue, second.Outcome)
	assert.Empty(t, second.Changes())
	assert.Equal(t, "Widget w1 already present", second.Comment)
	assert.Equal(t, 1, f.creates)
	assert.Equal(t, 1, a.applies)
}

func TestPresent_QueryError(t *testing.T) {
	res := Resource{
		Kind:  "widget",
		Label: "Widget",
		Name:  "w1",
		Exists: func(ctx context.Context) (bool, error) {
			return false, types.ErrPrimitive
		},
	}

	r := NewEngine(false).Present(context.Background(), res)

	assert.Equal(t, types.OutcomeFalse, r.Outcome)
	assert.Contains(t, r.Comment, "Failed to query Widget w1")
}

func TestAbsent(t *testing.T) {
	tests := []struct {
		name        string
		f           *fakeResource
		dryRun      bool
		wantOutcome types.Outcome
		wantComment string
		wantRemoves int
	}{
		{"already absent", &fakeResource{}, false, types.OutcomeTrue, "Widget w1 already absent", 0},
		{"removes", &fakeResource{exists: true}, false, types.OutcomeTrue, "Removed Widget w1", 1},
		{"dry run", &fakeResource{exists: true}, true, types.OutcomeUnknown, "Widget w1 is set to be removed", 0},
		{"remove has no effect", &fakeResource{exists: true, removeNoop: true}, false, types.OutcomeFalse, "Failed to remove Widget w1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewEngine(tt.dryRun).Absent(context.Background(), tt.f.resource())

			assert.Equal(t, tt.wantOutcome, r.Outcome)
			assert.Equal(t, tt.wantComment, r.Comment)
			assert.Equal(t, tt.wantRemoves, tt.f.removes)
		})
	}
}

func TestInvalid(t *testing.T) {
	err := errors.New("explicit requires members_present")

	r := Invalid("list", "announce", err)

	assert.Equal(t, types.OutcomeFalse, r.Outcome)
	assert.Equal(t, "explicit requires members_present", r.Comment)
}
