package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/converge/pkg/lvm"
	"github.com/cuemby/converge/pkg/mailman"
	"github.com/cuemby/converge/pkg/types"
)

// listServer is a minimal Mailman with one list store
type listServer struct {
	lists     map[string][]string
	available bool
	calls     []string
}

func (s *listServer) Available() bool { return s.available }

func (s *listServer) Exists(ctx context.Context, name string) (bool, error) {
	_, ok := s.lists[name]
	return ok, nil
}

func (s *listServer) Create(ctx context.Context, name string, opts mailman.CreateOptions) error {
	s.calls = append(s.calls, "create "+name)
	s.lists[name] = nil
	return nil
}

func (s *listServer) Remove(ctx context.Context, name string, archives bool) error {
	if archives {
		s.calls = append(s.calls, "remove -a "+name)
	} else {
		s.calls = append(s.calls, "remove "+name)
	}
	delete(s.lists, name)
	return nil
}

func (s *listServer) ListMembers(ctx context.Context, name string, fullnames bool) ([]string, error) {
	return s.lists[name], nil
}

func (s *listServer) IsMember(ctx context.Context, name, address string) (bool, error) {
	for _, m := range s.lists[name] {
		if m == address {
			return true, nil
		}
	}
	return false, nil
}

func (s *listServer) AddMembers(ctx context.Context, name string, addresses []string) error {
	s.calls = append(s.calls, "add")
	s.lists[name] = append(s.lists[name], addresses...)
	return nil
}

func (s *listServer) RemoveMembers(ctx context.Context, name string, addresses []string) error {
	s.calls = append(s.calls, "remove_members")
	return nil
}

func (s *listServer) GetOwners(ctx context.Context, name string) ([]string, error) {
	return nil, nil
}

func (s *listServer) SetOwners(ctx context.Context, name string, owners []string) error {
	return nil
}

func (s *listServer) SetPassword(ctx context.Context, name, password string) error {
	return nil
}

func (s *listServer) CheckPassword(ctx context.Context, name, password string) (bool, error) {
	return true, nil
}

// pvOnly is an LVM that only knows physical volumes
type pvOnly struct {
	lvm.Primitives
	pvs   map[string]bool
	calls []string
}

func (p *pvOnly) PVDisplay(ctx context.Context, device string) (*lvm.PVInfo, error) {
	if !p.pvs[device] {
		return nil, nil
	}
	return &lvm.PVInfo{Name: device}, nil
}

func (p *pvOnly) PVCreate(ctx context.Context, device string) error {
	p.calls = append(p.calls, "pvcreate "+device)
	p.pvs[device] = true
	return nil
}

func TestApply(t *testing.T) {
	mm := &listServer{lists: map[string][]string{"legacy": nil}, available: true}
	pv := &pvOnly{pvs: map[string]bool{}}
	a := NewApplier(Modules{Mailman: mm, LVM: pv}, false)

	f, err := Parse([]byte(`
states:
  - id: announce
    state: mailman.list_present
    name: announce
    members_present: x@example.org
  - state: mailman.list_absent
    name: legacy
  - state: lvm.pv_present
    name: /dev/sdb
`))
	require.NoError(t, err)

	run, err := a.Apply(context.Background(), f, "site.yaml")
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "site.yaml", run.Source)
	assert.False(t, run.Test)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
	require.Len(t, run.Results, 3)

	assert.Equal(t, "announce", run.Results[0].ID)
	assert.Equal(t, types.OutcomeTrue, run.Results[0].Result.Outcome)
	assert.Equal(t, "x@example.org", run.Results[0].Result.Changes()["Subscribed"])

	assert.Equal(t, "mailman.list_absent", run.Results[1].State)
	assert.Equal(t, "Removed List legacy", run.Results[1].Result.Comment)

	assert.Equal(t, "Created Physical Volume /dev/sdb", run.Results[2].Result.Comment)

	assert.Equal(t, []string{"create announce", "add", "remove -a legacy"}, mm.calls)
	assert.Equal(t, []string{"pvcreate /dev/sdb"}, pv.calls)

	succeeded, failed, pending, changed := run.Summary()
	assert.Equal(t, 3, succeeded)
	assert.Zero(t, failed)
	assert.Zero(t, pending)
	assert.Equal(t, 3, changed)
}

func TestApply_TestMode(t *testing.T) {
	mm := &listServer{lists: map[string][]string{}, available: true}
	a := NewApplier(Modules{Mailman: mm}, true)

	f, err := Parse([]byte("states:\n  - state: mailman.list_present\n    name: announce\n"))
	require.NoError(t, err)

	run, err := a.Apply(context.Background(), f, "site.yaml")
	require.NoError(t, err)

	assert.True(t, run.Test)
	assert.Equal(t, types.OutcomeUnknown, run.Results[0].Result.Outcome)
	assert.Empty(t, mm.calls)
}

func TestApply_FailuresDoNotStopTheRun(t *testing.T) {
	mm := &listServer{lists: map[string][]string{}, available: false}
	pv := &pvOnly{pvs: map[string]bool{}}
	a := NewApplier(Modules{Mailman: mm, LVM: pv}, false)

	f, err := Parse([]byte(`
states:
  - state: mailman.list_present
    name: announce
  - state: mailman.list_present
    name: staff
    explicit: true
  - state: lvm.pv_present
    name: /dev/sdb
`))
	require.NoError(t, err)

	run, err := a.Apply(context.Background(), f, "site.yaml")
	require.NoError(t, err)

	require.Len(t, run.Results, 3)
	assert.Equal(t, types.OutcomeFalse, run.Results[0].Result.Outcome)
	assert.Equal(t, "Module mailman is not available on this host", run.Results[0].Result.Comment)
	assert.Equal(t, types.OutcomeFalse, run.Results[1].Result.Outcome)
	assert.Equal(t, types.OutcomeTrue, run.Results[2].Result.Outcome)
	assert.Empty(t, mm.calls)

	_, failed, _, _ := run.Summary()
	assert.Equal(t, 2, failed)
}

func TestApply_ExplicitNeedsMembersPresent(t *testing.T) {
	mm := &listServer{lists: map[string][]string{"staff": {"x@example.org"}}, available: true}
	a := NewApplier(Modules{Mailman: mm}, false)

	f, err := Parse([]byte("states:\n  - state: mailman.list_present\n    name: staff\n    explicit: true\n"))
	require.NoError(t, err)

	run, err := a.Apply(context.Background(), f, "site.yaml")
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeFalse, run.Results[0].Result.Outcome)
	assert.Contains(t, run.Results[0].Result.Comment, "explicit requires members_present")
	assert.Empty(t, mm.calls)
}

func TestApply_ModuleNotConfigured(t *testing.T) {
	a := NewApplier(Modules{}, false)

	f, err := Parse([]byte("states:\n  - state: lvm.vg_absent\n    name: data\n"))
	require.NoError(t, err)

	run, err := a.Apply(context.Background(), f, "site.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Module lvm is not configured", run.Results[0].Result.Comment)
}

func TestApply_Cancelled(t *testing.T) {
	a := NewApplier(Modules{}, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, err := Parse([]byte("states:\n  - state: lvm.vg_absent\n    name: data\n"))
	require.NoError(t, err)

	run, err := a.Apply(ctx, f, "site.yaml")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, run.Results)
}

// cancellingPV cancels the run from inside the first pvcreate
type cancellingPV struct {
	*pvOnly
	cancel context.CancelFunc
}

func (c *cancellingPV) PVCreate(ctx context.Context, device string) error {
	defer c.cancel()
	return c.pvOnly.PVCreate(ctx, device)
}

func TestApply_CancelledKeepsCompletedStates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pv := &cancellingPV{pvOnly: &pvOnly{pvs: map[string]bool{}}, cancel: cancel}
	a := NewApplier(Modules{LVM: pv}, false)

	f, err := Parse([]byte(`
states:
  - state: lvm.pv_present
    name: /dev/sdb
  - state: lvm.pv_present
    name: /dev/sdc
`))
	require.NoError(t, err)

	run, err := a.Apply(ctx, f, "site.yaml")
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, run)
	require.Len(t, run.Results, 1)
	assert.Equal(t, "Created Physical Volume /dev/sdb", run.Results[0].Result.Comment)
	assert.False(t, run.FinishedAt.IsZero())
	assert.Equal(t, []string{"pvcreate /dev/sdb"}, pv.calls)
}
