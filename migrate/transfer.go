package migrate

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	"github.com/projecteru2/core/log"
	"golang.org/x/sync/errgroup"

	"github.com/projecteru2/shuttle/progress/transfer"
	"github.com/projecteru2/shuttle/remote"
)

// copyData streams a tar of the source mount into the destination mount,
// relayed through the control node. The archive stays on one filesystem and
// keeps numeric ownership, permissions, hard links, special files and xattrs.
func (w *Workflow) copyData(ctx context.Context) error {
	logger := log.WithFunc("migrate.copyData")
	src, dst := w.desc.Node, w.plan.Node

	total, err := w.usedBytes(ctx, src, w.srcDir)
	if err != nil {
		return err
	}
	w.step("Copying %s from %s:%s to %s:%s", units.BytesSize(float64(total)), src, w.srcDir, dst, w.dstDir)

	create := remote.Cmd("tar", "--one-file-system", "--numeric-owner", "--xattrs", "-C", w.srcDir, "-cpf", "-", ".")
	extract := remote.Cmd("tar", "--numeric-owner", "--xattrs", "-C", w.dstDir, "-xpf", "-")

	counter := transfer.NewCounter(w.tracker, total, transfer.DefaultInterval)
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := w.exec.Stream(gctx, src, create, nil, io.MultiWriter(pw, counter))
		_ = pw.CloseWithError(err)
		if err != nil {
			return fmt.Errorf("archive source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := w.exec.Stream(gctx, dst, extract, pr, nil)
		_ = pr.CloseWithError(err)
		if err != nil {
			return fmt.Errorf("extract on destination: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("copy filesystem: %w", err)
	}
	counter.Finish()
	logger.Infof(ctx, "copied %s (%d bytes of archive)", units.HumanSize(float64(counter.Done())), counter.Done())
	return nil
}

// usedBytes asks df for the bytes in use under dir. An unparsable answer
// only disables the progress total.
func (w *Workflow) usedBytes(ctx context.Context, host, dir string) (int64, error) {
	out, err := w.exec.Run(ctx, host, remote.Cmd("df", "--output=used", "-B1", dir))
	if err != nil {
		return 0, fmt.Errorf("measure %s: %w", dir, err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	n, perr := strconv.ParseInt(strings.TrimSpace(lines[len(lines)-1]), 10, 64)
	if perr != nil {
		log.WithFunc("migrate.usedBytes").Warnf(ctx, "unexpected df output %q on %s, progress total unknown", out, host)
		return 0, nil
	}
	return n, nil
}
