package migrate

import (
	"context"
	"fmt"
	"strconv"

	units "github.com/docker/go-units"

	"github.com/projecteru2/shuttle/remote"
)

// provision creates the destination volume with the exact source size,
// formats it and mounts it on a fresh directory of the destination node.
func (w *Workflow) provision(ctx context.Context) error {
	node, dev := w.plan.Node, w.plan.DevicePath()

	w.step("Creating %s (%s) on %s", dev, units.BytesSize(float64(w.desc.DiskSize)), node)
	if _, err := w.exec.Run(ctx, node, remote.Cmd(
		"lvcreate", "--yes", "-Zy", "-Wy",
		"-L", strconv.FormatInt(w.desc.DiskSize, 10)+"b",
		"-n", w.plan.VolumeName,
		w.plan.VolumeGroup,
	)); err != nil {
		return fmt.Errorf("create volume %s: %w", dev, err)
	}

	fs := w.conf.Volume.FSType
	w.step("Formatting %s as %s", dev, fs)
	if _, err := w.exec.Run(ctx, node, remote.Cmd("mkfs."+fs, "-F", dev)); err != nil {
		return fmt.Errorf("format %s: %w", dev, err)
	}

	dir, err := w.mkTempDir(ctx, node, "destination")
	if err != nil {
		return err
	}
	w.dstDir = dir
	w.step("Mounting %s at %s:%s", dev, node, dir)
	return w.mount(ctx, node, "destination volume", "-t", fs, dev, dir)
}
