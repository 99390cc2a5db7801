package migrate

import (
	"context"
	"fmt"

	"github.com/projecteru2/shuttle/remote"
)

// prepareSource maps the renamed instance name to a placeholder address in
// the control node's hosts file so the rename resolves without DNS.
func (w *Workflow) prepareSource(ctx context.Context) error {
	line := w.hostsLine()
	hosts := w.conf.HostsFile
	w.step("Adding %q to %s", line, hosts)

	w.ledger.Register(ctx, "remove hosts entry", remote.Local, remote.Shell(
		"sed -i %s %s", remote.Quote("/ # shuttle "+w.plan.RunID+"$/d"), remote.Quote(hosts)))
	if _, err := w.exec.Run(ctx, remote.Local, remote.Shell(
		"echo %s >> %s", remote.Quote(line), remote.Quote(hosts))); err != nil {
		return fmt.Errorf("add hosts entry: %w", err)
	}
	return nil
}

func (w *Workflow) hostsLine() string {
	return fmt.Sprintf("%s %s # shuttle %s", w.conf.PlaceholderAddress, w.plan.OriginalName, w.plan.RunID)
}

func (w *Workflow) shutdown(ctx context.Context) error {
	w.step("Shutting down %s", w.desc.Name)
	if err := w.cluster.Shutdown(ctx, w.desc.Name); err != nil {
		return fmt.Errorf("shutdown %s: %w", w.desc.Name, err)
	}
	return nil
}

// rename is one-way: the original keeps its new name whatever happens next.
func (w *Workflow) rename(ctx context.Context) error {
	w.step("Renaming %s to %s", w.desc.Name, w.plan.OriginalName)
	if err := w.cluster.Rename(ctx, w.desc.Name, w.plan.OriginalName); err != nil {
		return fmt.Errorf("rename %s: %w", w.desc.Name, err)
	}
	return nil
}

// mountSource mounts the source volume read-only on the source node.
func (w *Workflow) mountSource(ctx context.Context) error {
	node := w.desc.Node
	dir, err := w.mkTempDir(ctx, node, "source")
	if err != nil {
		return err
	}
	w.srcDir = dir
	w.step("Mounting %s read-only at %s:%s", w.desc.VolumePath, node, dir)
	argv := []string{"-o", "ro"}
	if fs := w.conf.Volume.SourceFSType; fs != "" {
		argv = append(argv, "-t", fs)
	}
	argv = append(argv, w.desc.VolumePath, dir)
	return w.mount(ctx, node, "source volume", argv...)
}
