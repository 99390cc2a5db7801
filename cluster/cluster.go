package cluster

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/shuttle/config"
	"github.com/projecteru2/shuttle/remote"
	"github.com/projecteru2/shuttle/types"
)

// maxSizeDrift is the divisor of the reported disk size beyond which a
// mismatch with the volume is logged.
const maxSizeDrift = 20

// Client drives the cluster manager CLI. Commands about the source instance
// run on the control node (remote.Local); registration runs on the
// destination master.
type Client struct {
	exec remote.Executor
	conf config.ClusterConfig
}

// New creates a cluster Client.
func New(exec remote.Executor, conf config.ClusterConfig) *Client {
	return &Client{exec: exec, conf: conf}
}

// Lookup succeeds only when the local control node knows the instance.
func (c *Client) Lookup(ctx context.Context, instance string) error {
	out, err := c.exec.Run(ctx, remote.Local, remote.Cmd(c.conf.InstanceTool, "list", "--no-headers", "-o", "name", instance))
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) == "" {
		return fmt.Errorf("instance %s not listed", instance)
	}
	return nil
}

// Describe loads the descriptor of instance from the local control node.
func (c *Client) Describe(ctx context.Context, instance string) (*types.InstanceDescriptor, error) {
	dump, err := c.exec.Run(ctx, remote.Local, remote.Cmd(c.conf.InstanceTool, "info", instance))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDescriptorUnavailable, err)
	}
	d, err := ParseInfo(instance, dump)
	if err != nil {
		return nil, err
	}
	logger := log.WithFunc("cluster.Describe")
	// The info dump rounds the disk size; the volume itself is authoritative.
	exact, err := c.VolumeSize(ctx, d.Node, d.VolumePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDescriptorUnavailable, err)
	}
	if drift := exact - d.DiskSize; drift > d.DiskSize/maxSizeDrift || -drift > d.DiskSize/maxSizeDrift {
		logger.Warnf(ctx, "%s: volume is %d bytes, cluster reports %s", instance, exact, units.BytesSize(float64(d.DiskSize)))
	}
	d.DiskSize = exact
	logger.Infof(ctx, "%s on %s: %d vcpus, %s memory, %s disk %s, %d nics",
		d.Name, d.Node, d.CPU, units.BytesSize(float64(d.Memory)),
		units.BytesSize(float64(d.DiskSize)), d.VolumePath, len(d.NICs))
	return d, nil
}

// VolumeSize returns the exact size in bytes of the block device at path on node.
func (c *Client) VolumeSize(ctx context.Context, node, path string) (int64, error) {
	out, err := c.exec.Run(ctx, node, remote.Cmd("blockdev", "--getsize64", path))
	if err != nil {
		return 0, fmt.Errorf("size of %s on %s: %w", path, node, err)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("size of %s on %s: unexpected output %q", path, node, out)
	}
	return size, nil
}

// Master asks node which control node manages it.
func (c *Client) Master(ctx context.Context, node string) (string, error) {
	out, err := c.exec.Run(ctx, node, remote.Cmd(c.conf.ClusterTool, "getmaster"))
	if err != nil {
		return "", err
	}
	master := firstColumn(out)
	if master == "" {
		return "", fmt.Errorf("%s reported no master", node)
	}
	return master, nil
}

// Shutdown stops instance and waits for the cluster manager to confirm.
func (c *Client) Shutdown(ctx context.Context, instance string) error {
	_, err := c.exec.Run(ctx, remote.Local, remote.Cmd(c.conf.InstanceTool, "shutdown", instance))
	return err
}

// Rename renames instance with the IP conflict check disabled.
func (c *Client) Rename(ctx context.Context, from, to string) error {
	_, err := c.exec.Run(ctx, remote.Local, remote.Cmd(c.conf.InstanceTool, "rename", "--no-ip-check", from, to))
	return err
}

// Add registers the new instance on the destination master, adopting the
// already populated volume.
func (c *Client) Add(ctx context.Context, d *types.InstanceDescriptor, plan *types.MigrationPlan) error {
	_, err := c.exec.Run(ctx, plan.Master, AddCommand(c.conf, d, plan))
	return err
}

// Remove permanently deletes instance from the local control node.
func (c *Client) Remove(ctx context.Context, instance string) error {
	_, err := c.exec.Run(ctx, remote.Local, RemoveCommand(c.conf, instance))
	return err
}

// RemoveCommand is the forced removal command, also shown to the operator
// when they decline removal.
func RemoveCommand(conf config.ClusterConfig, instance string) remote.Command {
	return remote.Cmd(conf.InstanceTool, "remove", "--force", instance)
}

// AddCommand builds the registration command for the new instance.
func AddCommand(conf config.ClusterConfig, d *types.InstanceDescriptor, plan *types.MigrationPlan) remote.Command {
	argv := []string{
		conf.InstanceTool, "add",
		"-t", "plain",
		"-n", plan.Node,
		"-o", conf.OSType,
		"--no-install",
		"--disk", fmt.Sprintf("0:adopt=%s,vg=%s", plan.VolumeName, plan.VolumeGroup),
		"-B", fmt.Sprintf("vcpus=%d,memory=%d", d.CPU, d.Memory/units.MiB),
		"-H", hvParams(conf.Hypervisor, d, plan),
	}
	if nets := NetDirectives(d.NICs); len(nets) > 0 {
		argv = append(argv, nets...)
	} else {
		argv = append(argv, "--no-nics")
	}
	argv = append(argv, d.Name)
	return remote.Cmd(argv...)
}

// NetDirectives returns one "--net <index>:link=<link>" pair per NIC.
func NetDirectives(nics []types.NIC) []string {
	var out []string
	for _, n := range nics {
		out = append(out, "--net", strconv.Itoa(n.Index)+":link="+n.Link)
	}
	return out
}

func hvParams(hv string, d *types.InstanceDescriptor, plan *types.MigrationPlan) string {
	var params []string
	if d.KernelPath != "" {
		params = append(params, "kernel_path="+d.KernelPath)
	}
	if d.InitrdPath != "" {
		params = append(params, "initrd_path="+d.InitrdPath)
	}
	if plan.NetQueues > 0 {
		params = append(params, "virtio_net_queues="+strconv.Itoa(plan.NetQueues))
	}
	if len(params) == 0 {
		return hv
	}
	return hv + ":" + strings.Join(params, ",")
}
