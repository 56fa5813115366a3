package lvm

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuemby/converge/pkg/reconciler"
	"github.com/cuemby/converge/pkg/types"
)

const (
	kindPV = "pv"
	kindVG = "vg"
	kindLV = "lv"

	labelPV = "Physical Volume"
	labelVG = "Volume Group"
	labelLV = "Logical Volume"
)

var _ Primitives = (*CLI)(nil)

// PVSpec is the desired state of one physical volume
type PVSpec struct {
	Device string
}

// VGSpec is the desired state of one volume group
type VGSpec struct {
	Name    string
	Devices []string
}

// LVSpec is the desired state of one logical volume
type LVSpec struct {
	Name   string
	VGName string

	Size    string
	Extents int

	// Snapshot names a snapshot of Name; the snapshot is the managed volume
	Snapshot string

	PV          string
	ThinVolume  bool
	ThinPool    bool
	AllowResize bool
}

// Validate rejects desired state before any primitive runs
func (s LVSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: logical volume name is required", types.ErrValidation)
	}
	if s.VGName == "" {
		return fmt.Errorf("%w: vgname is required for logical volume %s", types.ErrValidation, s.Name)
	}
	if s.Extents < 0 {
		return fmt.Errorf("%w: extents must not be negative", types.ErrValidation)
	}
	if s.AllowResize && s.Size != "" {
		if _, err := ParseSize(s.Size); err != nil {
			return err
		}
	}
	return nil
}

// volumeName is the name the volume is addressed by. A snapshot is created
// from Name but lives under its own name.
func (s LVSpec) volumeName() string {
	if s.Snapshot != "" {
		return s.Snapshot
	}
	return s.Name
}

// Options configures a Reconciler
type Options struct {
	// RealPath resolves symlinks such as /dev/disk/by-id entries
	RealPath func(string) string
}

// Reconciler converges LVM physical volumes, volume groups and logical
// volumes
type Reconciler struct {
	engine   *reconciler.Engine
	prims    Primitives
	realPath func(string) string
}

// NewReconciler creates an LVM reconciler
func NewReconciler(engine *reconciler.Engine, prims Primitives, opts Options) *Reconciler {
	if opts.RealPath == nil {
		opts.RealPath = realPath
	}
	return &Reconciler{
		engine:   engine,
		prims:    prims,
		realPath: opts.RealPath,
	}
}

// realPath returns the input unchanged when it cannot be resolved
func realPath(p string) string {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return p
	}
	return resolved
}

func (r *Reconciler) pvExists(device string) func(context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		pv, err := r.prims.PVDisplay(ctx, r.realPath(device))
		return pv != nil, err
	}
}

func (r *Reconciler) vgExists(name string) func(context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		vg, err := r.prims.VGDisplay(ctx, name)
		return vg != nil, err
	}
}

func (r *Reconciler) lvExists(path string) func(context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		lv, err := r.prims.LVDisplay(ctx, path)
		return lv != nil, err
	}
}

// PVPresent initializes the device as a physical volume
func (r *Reconciler) PVPresent(ctx context.Context, spec PVSpec) *types.Result {
	if spec.Device == "" {
		return reconciler.Invalid(kindPV, spec.Device, fmt.Errorf("%w: device is required", types.ErrValidation))
	}

	return r.engine.Present(ctx, reconciler.Resource{
		Kind:   kindPV,
		Label:  labelPV,
		Name:   spec.Device,
		Exists: r.pvExists(spec.Device),
		Create: func(ctx context.Context) (string, error) {
			if err := r.prims.PVCreate(ctx, spec.Device); err != nil {
				return "", err
			}
			return fmt.Sprintf("Physical volume %q successfully created", spec.Device), nil
		},
	})
}

// PVAbsent removes the LVM label from the device
func (r *Reconciler) PVAbsent(ctx context.Context, device string) *types.Result {
	if device == "" {
		return reconciler.Invalid(kindPV, device, fmt.Errorf("%w: device is required", types.ErrValidation))
	}

	return r.engine.Absent(ctx, reconciler.Resource{
		Kind:   kindPV,
		Label:  labelPV,
		Name:   device,
		Exists: r.pvExists(device),
		Remove: func(ctx context.Context) (string, error) {
			if err := r.prims.PVRemove(ctx, device); err != nil {
				return "", err
			}
			return fmt.Sprintf("Labels on physical volume %q successfully wiped", device), nil
		},
	})
}

// VGPresent creates the volume group on its devices, or, when it already
// exists, extends it with every orphaned device it is missing. A device that
// belongs to another group is a conflict and is never reassigned.
func (r *Reconciler) VGPresent(ctx context.Context, spec VGSpec) *types.Result {
	if spec.Name == "" {
		return reconciler.Invalid(kindVG, spec.Name, fmt.Errorf("%w: volume group name is required", types.ErrValidation))
	}

	res := reconciler.Resource{
		Kind:   kindVG,
		Label:  labelVG,
		Name:   spec.Name,
		Exists: r.vgExists(spec.Name),
		Create: func(ctx context.Context) (string, error) {
			if err := r.prims.VGCreate(ctx, spec.Name, spec.Devices); err != nil {
				return "", err
			}
			return fmt.Sprintf("Volume group %q successfully created", spec.Name), nil
		},
	}

	steps := make([]reconciler.Step, 0, len(spec.Devices))
	for _, device := range spec.Devices {
		steps = append(steps, r.memberStep(spec.Name, device))
	}
	return r.engine.Present(ctx, res, steps...)
}

func (r *Reconciler) memberStep(vgName, device string) reconciler.Step {
	return reconciler.Step{
		Field: device,
		Plan: func(ctx context.Context) (reconciler.Plan, error) {
			real := r.realPath(device)
			pv, err := r.prims.PVDisplay(ctx, real)
			if err != nil {
				return reconciler.Plan{}, err
			}

			switch {
			case pv == nil:
				return reconciler.Plan{}, fmt.Errorf("%w: pv %s is not present", types.ErrNotFound, device)
			case pv.VGName == vgName:
				return reconciler.Plan{}, nil
			case !pv.Orphan():
				return reconciler.Plan{}, fmt.Errorf("%w: %s is part of %s", types.ErrConflict, device, pv.VGName)
			}

			return reconciler.Plan{
				Changes: []types.Change{{Field: device, Action: types.ActionAdd, Value: "added to " + vgName}},
				Apply: func(ctx context.Context) error {
					return r.prims.VGExtend(ctx, vgName, device)
				},
				Verify: func(ctx context.Context) error {
					pv, err := r.prims.PVDisplay(ctx, real)
					if err != nil {
						return err
					}
					if pv == nil || pv.VGName != vgName {
						return fmt.Errorf("%w: %s is not a member after vgextend", types.ErrPrimitive, device)
					}
					return nil
				},
				Failure: fmt.Sprintf("%s could not be added", device),
			}, nil
		},
	}
}

// VGAbsent removes the volume group
func (r *Reconciler) VGAbsent(ctx context.Context, name string) *types.Result {
	if name == "" {
		return reconciler.Invalid(kindVG, name, fmt.Errorf("%w: volume group name is required", types.ErrValidation))
	}

	return r.engine.Absent(ctx, reconciler.Resource{
		Kind:   kindVG,
		Label:  labelVG,
		Name:   name,
		Exists: r.vgExists(name),
		Remove: func(ctx context.Context) (string, error) {
			if err := r.prims.VGRemove(ctx, name); err != nil {
				return "", err
			}
			return fmt.Sprintf("Volume group %q successfully removed", name), nil
		},
	})
}

// LVPresent creates the logical volume and, with AllowResize and Size,
// extends it when it is smaller than Size. Volumes are never shrunk.
func (r *Reconciler) LVPresent(ctx context.Context, spec LVSpec) *types.Result {
	name := spec.volumeName()
	if err := spec.Validate(); err != nil {
		return reconciler.Invalid(kindLV, name, err)
	}

	path := DevicePath(spec.VGName, name)
	res := reconciler.Resource{
		Kind:   kindLV,
		Label:  labelLV,
		Name:   name,
		Exists: r.lvExists(path),
		Create: func(ctx context.Context) (string, error) {
			opts := LVCreateOptions{
				Name:       name,
				VGName:     spec.VGName,
				Size:       spec.Size,
				Extents:    spec.Extents,
				PV:         spec.PV,
				ThinVolume: spec.ThinVolume,
				ThinPool:   spec.ThinPool,
			}
			if spec.Snapshot != "" {
				opts.Origin = spec.Name
			}
			if err := r.prims.LVCreate(ctx, opts); err != nil {
				return "", err
			}
			return fmt.Sprintf("Logical volume %q created", name), nil
		},
	}

	if !spec.AllowResize || spec.Size == "" {
		return r.engine.Present(ctx, res)
	}
	return r.engine.Present(ctx, res, r.resizeStep(spec, name, path))
}

func (r *Reconciler) resizeStep(spec LVSpec, name, path string) reconciler.Step {
	vgName, _, _ := strings.Cut(spec.VGName, "/")
	return reconciler.Step{
		Field: "size",
		Plan: func(ctx context.Context) (reconciler.Plan, error) {
			desired, err := ParseSize(spec.Size)
			if err != nil {
				return reconciler.Plan{}, err
			}

			vg, err := r.prims.VGDisplay(ctx, vgName)
			if err != nil {
				return reconciler.Plan{}, err
			}
			if vg == nil {
				return reconciler.Plan{}, fmt.Errorf("%w: volume group %s", types.ErrNotFound, vgName)
			}

			current, err := r.currentSizeKB(ctx, path, vg.ExtentSizeKB)
			if err != nil {
				return reconciler.Plan{}, err
			}
			if current >= desired {
				return reconciler.Plan{}, nil
			}

			return reconciler.Plan{
				Changes: []types.Change{
					{Field: "old", Action: types.ActionChange, Value: strconv.FormatUint(current, 10)},
					{Field: "new", Action: types.ActionChange, Value: strconv.FormatUint(desired, 10)},
				},
				Apply: func(ctx context.Context) error {
					return r.prims.LVResize(ctx, spec.Size, path)
				},
				Verify: func(ctx context.Context) error {
					after, err := r.currentSizeKB(ctx, path, vg.ExtentSizeKB)
					if err != nil {
						return err
					}
					if after != desired {
						return fmt.Errorf("%w: size is %d kB, expected %d kB", types.ErrPrimitive, after, desired)
					}
					return nil
				},
				Comment: fmt.Sprintf("Logical Volume %s has been extended to %s", name, spec.Size),
				Failure: fmt.Sprintf("Logical Volume %s already present and could not get resized", name),
			}, nil
		},
	}
}

// currentSizeKB is the allocated size: extents times the group's extent size
func (r *Reconciler) currentSizeKB(ctx context.Context, path string, extentKB uint64) (uint64, error) {
	lv, err := r.prims.LVDisplay(ctx, path)
	if err != nil {
		return 0, err
	}
	if lv == nil {
		return 0, fmt.Errorf("%w: logical volume %s", types.ErrNotFound, path)
	}
	return lv.Extents * extentKB, nil
}

// LVAbsent removes the named volume from vgName
func (r *Reconciler) LVAbsent(ctx context.Context, name, vgName string) *types.Result {
	if name == "" || vgName == "" {
		return reconciler.Invalid(kindLV, name, fmt.Errorf("%w: name and vgname are required", types.ErrValidation))
	}

	return r.engine.Absent(ctx, reconciler.Resource{
		Kind:   kindLV,
		Label:  labelLV,
		Name:   name,
		Exists: r.lvExists(DevicePath(vgName, name)),
		Remove: func(ctx context.Context) (string, error) {
			if err := r.prims.LVRemove(ctx, name, vgName); err != nil {
				return "", err
			}
			return fmt.Sprintf("Logical volume %q successfully removed", name), nil
		},
	})
}
