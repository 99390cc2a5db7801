package migrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/shuttle/remote"
)

// patchBootConfig points the copied root filesystem's fstab at the new
// volume, whose filesystem UUID changed with the reformat.
func (w *Workflow) patchBootConfig(ctx context.Context) error {
	logger := log.WithFunc("migrate.patchBootConfig")
	node, dev := w.plan.Node, w.plan.DevicePath()
	fstab := path.Join(w.dstDir, "etc", "fstab")

	var cur bytes.Buffer
	if err := w.exec.Stream(ctx, node, remote.Cmd("cat", fstab), nil, &cur); err != nil {
		// A guest without a readable fstab is treated like one without a
		// root entry; transport failures still abort.
		var ee *remote.ExecError
		if !errors.As(err, &ee) || ee.ExitStatus <= 0 {
			return fmt.Errorf("read %s: %w", fstab, err)
		}
		logger.Warnf(ctx, "cannot read %s:%s: %v", node, fstab, err)
		w.warnNotPatched("cannot read " + fstab)
		return nil
	}
	id, err := w.exec.Run(ctx, node, remote.Cmd("blkid", "-s", "UUID", "-o", "value", dev))
	if err != nil {
		return fmt.Errorf("read uuid of %s: %w", dev, err)
	}
	if id == "" {
		return fmt.Errorf("read uuid of %s: blkid printed nothing", dev)
	}

	patched, old, ok := RewriteRootDevice(cur.String(), "UUID="+id)
	if !ok {
		logger.Warnf(ctx, "no entry mounting / in %s:%s, left unchanged", node, fstab)
		w.warnNotPatched("no root filesystem entry found in " + fstab)
		return nil
	}
	w.step("Rewriting root device %s to UUID=%s in %s", old, id, fstab)
	if err := w.exec.Stream(ctx, node, remote.Shell("cat > %s", remote.Quote(fstab)), strings.NewReader(patched), nil); err != nil {
		return fmt.Errorf("write %s: %w", fstab, err)
	}
	return nil
}

func (w *Workflow) warnNotPatched(reason string) {
	_, _ = fmt.Fprintf(w.out, "WARNING: %s; boot configuration NOT patched, "+
		"the new instance may not boot until it is fixed by hand\n", reason)
}

// RewriteRootDevice replaces the device field of the first active fstab
// entry mounted on "/" with device. It returns the new content, the device
// that was replaced and whether such an entry was found. Everything else,
// including the whitespace of the rewritten line, is preserved.
func RewriteRootDevice(fstab, device string) (string, string, bool) {
	lines := strings.SplitAfter(fstab, "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") || fields[1] != "/" {
			continue
		}
		start := strings.Index(line, fields[0])
		lines[i] = line[:start] + device + line[start+len(fields[0]):]
		return strings.Join(lines, ""), fields[0], true
	}
	return fstab, "", false
}
