package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	cmdcore "github.com/projecteru2/shuttle/cmd/core"
	"github.com/projecteru2/shuttle/lock"
	"github.com/projecteru2/shuttle/lock/flock"
	"github.com/projecteru2/shuttle/migrate"
	"github.com/projecteru2/shuttle/progress"
	"github.com/projecteru2/shuttle/progress/transfer"
	storejson "github.com/projecteru2/shuttle/storage/json"
)

type Handler struct {
	cmdcore.BaseHandler
}

func (h Handler) Migrate(cmd *cobra.Command, _ []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	logger := log.WithFunc("cmd.migrate")
	instance, _ := cmd.Flags().GetString("instance")
	node, _ := cmd.Flags().GetString("node")

	release, err := lock.TryAcquire(ctx, flock.New(conf.InstanceLockPath(instance)), instance)
	if err != nil {
		return fmt.Errorf("another migration of %s may be running: %w", instance, err)
	}
	defer release()

	exec, closeExec, err := cmdcore.InitExecutor(ctx, conf)
	if err != nil {
		return err
	}
	defer closeExec()

	if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec
		logger.Warnf(ctx, "stdin is not a terminal, the removal answer will be read from it")
	}

	opts := []migrate.Option{
		migrate.WithOutput(cmd.OutOrStdout()),
		migrate.WithInput(cmd.InOrStdin()),
		migrate.WithTracker(copyTracker(ctx)),
	}
	if conf.HistoryFile != "" {
		opts = append(opts, migrate.WithHistory(storejson.New[migrate.History](conf.HistoryFile)))
	}
	w := migrate.New(exec, conf, opts...)
	err = w.Execute(ctx, instance, node)
	switch {
	case errors.Is(err, migrate.ErrUserDeclined):
		logger.Infof(ctx, "%s migrated to %s, original kept as %s", instance, node, w.Plan().OriginalName)
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s to %s (reached %s): %w", instance, node, w.State(), err)
	}
	logger.Infof(ctx, "%s migrated to %s", instance, node)
	return nil
}

// copyTracker prints byte progress in place when stdout is a terminal and
// only the start and end otherwise.
func copyTracker(ctx context.Context) progress.Tracker {
	logger := log.WithFunc("cmd.copyTracker")
	tty := term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec
	return progress.NewTracker(func(e transfer.Event) {
		switch e.Phase {
		case transfer.PhaseStart:
			if e.BytesTotal > 0 {
				logger.Infof(ctx, "copying %s", cmdcore.FormatSize(e.BytesTotal))
			}
		case transfer.PhaseCopy:
			if !tty {
				return
			}
			if e.BytesTotal > 0 {
				// tar overhead can push the count past df's figure
				pct := min(float64(e.BytesDone)/float64(e.BytesTotal)*100, 100) //nolint:mnd
				fmt.Printf("\r  %s / %s (%.1f%%)", cmdcore.FormatSize(e.BytesDone), cmdcore.FormatSize(e.BytesTotal), pct)
			} else {
				fmt.Printf("\r  %s copied", cmdcore.FormatSize(e.BytesDone))
			}
		case transfer.PhaseDone:
			if tty {
				fmt.Println()
			}
			logger.Infof(ctx, "copy done: %s", cmdcore.FormatSize(e.BytesDone))
		}
	})
}
