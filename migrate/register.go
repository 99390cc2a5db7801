package migrate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/shuttle/cluster"
	"github.com/projecteru2/shuttle/remote"
)

// unmount releases the destination then the source mount. The ledger still
// holds unmount-if-mounted entries, which become no-ops.
func (w *Workflow) unmount(ctx context.Context) error {
	w.step("Unmounting %s:%s and %s:%s", w.plan.Node, w.dstDir, w.desc.Node, w.srcDir)
	if _, err := w.exec.Run(ctx, w.plan.Node, remote.Cmd("umount", w.dstDir)); err != nil {
		return fmt.Errorf("unmount destination: %w", err)
	}
	if _, err := w.exec.Run(ctx, w.desc.Node, remote.Cmd("umount", w.srcDir)); err != nil {
		return fmt.Errorf("unmount source: %w", err)
	}
	return nil
}

// register adds the new instance on the destination master, adopting the
// populated volume. Past this point the new instance is never removed.
func (w *Workflow) register(ctx context.Context) error {
	w.step("Registering %s on %s via %s", w.desc.Name, w.plan.Node, w.plan.Master)
	if err := w.cluster.Add(ctx, w.desc, w.plan); err != nil {
		return fmt.Errorf("register %s: %w", w.desc.Name, err)
	}
	return nil
}

// decideRemoval asks whether to delete the renamed original. Only "yes",
// in any case, removes it.
func (w *Workflow) decideRemoval(ctx context.Context) error {
	logger := log.WithFunc("migrate.decideRemoval")
	name := w.plan.OriginalName
	_, _ = fmt.Fprintf(w.out, "Remove original instance %s from this cluster? Type 'yes' to confirm: ", name)

	answer, err := readAnswer(ctx, w.in)
	if ctx.Err() != nil {
		_, _ = fmt.Fprintf(w.out, "\nInterrupted, keeping %s.\n", name)
		return fmt.Errorf("removal prompt: %w", ctx.Err())
	}
	if err != nil {
		logger.Warnf(ctx, "read answer: %v", err)
	}
	if strings.EqualFold(answer, "yes") {
		w.step("Removing %s", name)
		if err := w.cluster.Remove(ctx, name); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
		return nil
	}
	_, _ = fmt.Fprintf(w.out, "Keeping %s. Remove it later with:\n  %s\n", name, cluster.RemoveCommand(w.conf.Cluster, name))
	return ErrUserDeclined
}

// readAnswer reads one line from r, giving up when ctx is done. The reading
// goroutine is abandoned on cancellation; the process exits soon after.
func readAnswer(ctx context.Context, r io.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		done <- result{strings.TrimSpace(line), err}
	}()
	select {
	case res := <-done:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
