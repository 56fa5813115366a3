package lvm

import "context"

// orphanVG is the pseudo volume group LVM reports for unassigned PVs
const orphanVG = "#orphans_lvm2"

// PVInfo is the actual state of a physical volume
type PVInfo struct {
	Name   string
	VGName string
}

// Orphan reports whether the PV belongs to no volume group
func (p *PVInfo) Orphan() bool {
	return p.VGName == "" || p.VGName == orphanVG
}

// VGInfo is the actual state of a volume group
type VGInfo struct {
	Name         string
	ExtentSizeKB uint64
}

// LVInfo is the actual state of a logical volume
type LVInfo struct {
	Name    string
	VGName  string
	Path    string
	Extents uint64
}

// LVCreateOptions are the lvcreate parameters of one logical volume
type LVCreateOptions struct {
	Name string

	// VGName is "vg/pool" for thin volumes
	VGName string

	Size    string
	Extents int

	// Origin makes the volume a snapshot of VGName/Origin
	Origin string

	// PV restricts allocation to one physical volume
	PV string

	ThinVolume bool
	ThinPool   bool
}

// Primitives is everything the reconciler needs from the LVM toolset.
// Display methods return nil without error when the object does not exist.
type Primitives interface {
	PVDisplay(ctx context.Context, device string) (*PVInfo, error)
	PVCreate(ctx context.Context, device string) error
	PVRemove(ctx context.Context, device string) error

	VGDisplay(ctx context.Context, name string) (*VGInfo, error)
	VGCreate(ctx context.Context, name string, devices []string) error
	VGExtend(ctx context.Context, name, device string) error
	VGRemove(ctx context.Context, name string) error

	LVDisplay(ctx context.Context, path string) (*LVInfo, error)
	LVCreate(ctx context.Context, opts LVCreateOptions) error
	LVResize(ctx context.Context, size, path string) error
	LVRemove(ctx context.Context, name, vgName string) error
}
