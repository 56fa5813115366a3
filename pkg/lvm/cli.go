package lvm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cuemby/converge/pkg/command"
	"github.com/cuemby/converge/pkg/log"
	"github.com/cuemby/converge/pkg/types"
)

var reportFlags = []string{"--reportformat", "json", "--units", "b", "--nosuffix"}

type pvReport struct {
	Report []struct {
		PV []pvData `json:"pv"`
	} `json:"report"`
}

type pvData struct {
	PVName string `json:"pv_name"`
	VGName string `json:"vg_name"`
}

type vgReport struct {
	Report []struct {
		VG []vgData `json:"vg"`
	} `json:"report"`
}

type vgData struct {
	VGName       string `json:"vg_name"`
	VGExtentSize string `json:"vg_extent_size"`
}

type lvReport struct {
	Report []struct {
		LV []lvData `json:"lv"`
	} `json:"report"`
}

type lvData struct {
	LVName       string `json:"lv_name"`
	VGName       string `json:"vg_name"`
	LVPath       string `json:"lv_path"`
	LVSize       string `json:"lv_size"`
	VGExtentSize string `json:"vg_extent_size"`
}

// CLI implements Primitives with the LVM command line tools
type CLI struct {
	runner command.Runner
	logger zerolog.Logger
}

// NewCLI creates LVM primitives backed by runner
func NewCLI(runner command.Runner) *CLI {
	return &CLI{
		runner: runner,
		logger: log.WithComponent("lvm"),
	}
}

// Available reports whether the lvm binary is installed
func (c *CLI) Available() bool {
	return c.runner.LookPath("lvm")
}

func (c *CLI) report(ctx context.Context, tool string, fields string, v any) error {
	args := append([]string{"-o", fields}, reportFlags...)
	out, err := c.runner.Run(ctx, nil, tool, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out.Stdout, v); err != nil {
		return fmt.Errorf("%w: unable to parse %s report: %v", types.ErrPrimitive, tool, err)
	}
	return nil
}

// PVDisplay looks up one physical volume by device path. pvs reports kernel
// device names, so symlinks such as /dev/disk/by-id entries are resolved on
// both sides before comparing.
func (c *CLI) PVDisplay(ctx context.Context, device string) (*PVInfo, error) {
	var rep pvReport
	if err := c.report(ctx, "pvs", "pv_name,vg_name", &rep); err != nil {
		return nil, err
	}
	want := realPath(device)
	for _, r := range rep.Report {
		for _, pv := range r.PV {
			if pv.PVName == device || realPath(pv.PVName) == want {
				return &PVInfo{Name: pv.PVName, VGName: pv.VGName}, nil
			}
		}
	}
	return nil, nil
}

// PVCreate initializes device for use by LVM
func (c *CLI) PVCreate(ctx context.Context, device string) error {
	c.logger.Info().Str("device", device).Msg("creating physical volume")
	if _, err := c.runner.Run(ctx, nil, "pvcreate", "-y", device); err != nil {
		return fmt.Errorf("unable to create physical volume %s: %w", device, err)
	}
	return nil
}

// PVRemove wipes the LVM label from device
func (c *CLI) PVRemove(ctx context.Context, device string) error {
	c.logger.Info().Str("device", device).Msg("removing physical volume")
	if _, err := c.runner.Run(ctx, nil, "pvremove", "-y", device); err != nil {
		return fmt.Errorf("unable to remove physical volume %s: %w", device, err)
	}
	return nil
}

// VGDisplay looks up one volume group by name
func (c *CLI) VGDisplay(ctx context.Context, name string) (*VGInfo, error) {
	var rep vgReport
	if err := c.report(ctx, "vgs", "vg_name,vg_extent_size", &rep); err != nil {
		return nil, err
	}
	for _, r := range rep.Report {
		for _, vg := range r.VG {
			if vg.VGName != name {
				continue
			}
			extent, err := parseKB(vg.VGExtentSize)
			if err != nil {
				return nil, fmt.Errorf("volume group %s: %w", name, err)
			}
			return &VGInfo{Name: vg.VGName, ExtentSizeKB: extent}, nil
		}
	}
	return nil, nil
}

// VGCreate creates a volume group on devices
func (c *CLI) VGCreate(ctx context.Context, name string, devices []string) error {
	c.logger.Info().Str("vg", name).Strs("devices", devices).Msg("creating volume group")
	args := append([]string{name}, devices...)
	if _, err := c.runner.Run(ctx, nil, "vgcreate", args...); err != nil {
		return fmt.Errorf("unable to create volume group %s: %w", name, err)
	}
	return nil
}

// VGExtend adds device to the volume group
func (c *CLI) VGExtend(ctx context.Context, name, device string) error {
	c.logger.Info().Str("vg", name).Str("device", device).Msg("extending volume group")
	if _, err := c.runner.Run(ctx, nil, "vgextend", name, device); err != nil {
		return fmt.Errorf("unable to extend volume group %s with %s: %w", name, device, err)
	}
	return nil
}

// VGRemove removes the volume group
func (c *CLI) VGRemove(ctx context.Context, name string) error {
	c.logger.Info().Str("vg", name).Msg("removing volume group")
	if _, err := c.runner.Run(ctx, nil, "vgremove", "-y", name); err != nil {
		return fmt.Errorf("unable to remove volume group %s: %w", name, err)
	}
	return nil
}

// LVDisplay looks up one logical volume by its /dev/<vg>/<lv> path
func (c *CLI) LVDisplay(ctx context.Context, path string) (*LVInfo, error) {
	var rep lvReport
	if err := c.report(ctx, "lvs", "lv_name,vg_name,lv_path,lv_size,vg_extent_size", &rep); err != nil {
		return nil, err
	}
	for _, r := range rep.Report {
		for _, lv := range r.LV {
			// thin pools have no device node and report an empty lv_path
			if lv.LVPath != path && DevicePath(lv.VGName, lv.LVName) != path {
				continue
			}
			size, err := parseKB(lv.LVSize)
			if err != nil {
				return nil, fmt.Errorf("logical volume %s: %w", path, err)
			}
			extent, err := parseKB(lv.VGExtentSize)
			if err != nil {
				return nil, fmt.Errorf("logical volume %s: %w", path, err)
			}
			if extent == 0 {
				return nil, fmt.Errorf("%w: logical volume %s reports a zero extent size", types.ErrPrimitive, path)
			}
			return &LVInfo{
				Name:    lv.LVName,
				VGName:  lv.VGName,
				Path:    path,
				Extents: size / extent,
			}, nil
		}
	}
	return nil, nil
}

// LVCreate creates a logical volume, thin pool, thin volume or snapshot
func (c *CLI) LVCreate(ctx context.Context, opts LVCreateOptions) error {
	c.logger.Info().Str("lv", opts.Name).Str("vg", opts.VGName).Msg("creating logical volume")
	if _, err := c.runner.Run(ctx, nil, "lvcreate", lvCreateArgs(opts)...); err != nil {
		return fmt.Errorf("unable to create logical volume %s: %w", opts.Name, err)
	}
	return nil
}

func lvCreateArgs(opts LVCreateOptions) []string {
	args := []string{"-y"}
	if opts.ThinPool {
		args = append(args, "--thinpool", opts.Name)
	} else {
		args = append(args, "-n", opts.Name)
	}

	switch {
	case opts.Extents > 0:
		args = append(args, "-l", strconv.Itoa(opts.Extents))
	case opts.ThinVolume:
		args = append(args, "-V", opts.Size)
	case opts.Size != "":
		args = append(args, "-L", opts.Size)
	}

	if opts.ThinVolume {
		args = append(args, "--thin")
	}

	if opts.Origin != "" {
		args = append(args, "-s", opts.VGName+"/"+opts.Origin)
	} else {
		args = append(args, opts.VGName)
	}

	if opts.PV != "" {
		args = append(args, opts.PV)
	}
	return args
}

// LVResize grows or shrinks the volume at path to size
func (c *CLI) LVResize(ctx context.Context, size, path string) error {
	c.logger.Info().Str("lv", path).Str("size", size).Msg("resizing logical volume")
	if _, err := c.runner.Run(ctx, nil, "lvresize", "-L", size, path); err != nil {
		return fmt.Errorf("unable to resize logical volume %s: %w", path, err)
	}
	return nil
}

// LVRemove removes the named volume from vgName
func (c *CLI) LVRemove(ctx context.Context, name, vgName string) error {
	c.logger.Info().Str("lv", name).Str("vg", vgName).Msg("removing logical volume")
	if _, err := c.runner.Run(ctx, nil, "lvremove", "-y", vgName+"/"+name); err != nil {
		return fmt.Errorf("unable to remove logical volume %s: %w", name, err)
	}
	return nil
}

// parseKB converts a byte count from a --units b report into kB
func parseKB(s string) (uint64, error) {
	b, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed size %q in report", types.ErrPrimitive, s)
	}
	return b / 1024, nil
}

// DevicePath returns the device node of a logical volume. For thin volumes
// vgName may be "vg/pool"; only the volume group part is used.
func DevicePath(vgName, name string) string {
	vg, _, _ := strings.Cut(vgName, "/")
	return "/dev/" + vg + "/" + name
}
