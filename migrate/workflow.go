package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/shuttle/cluster"
	"github.com/projecteru2/shuttle/config"
	"github.com/projecteru2/shuttle/ledger"
	"github.com/projecteru2/shuttle/preflight"
	"github.com/projecteru2/shuttle/progress"
	"github.com/projecteru2/shuttle/remote"
	"github.com/projecteru2/shuttle/storage"
	"github.com/projecteru2/shuttle/types"
)

// ErrUserDeclined is returned when the operator keeps the original instance.
// The migration itself succeeded.
var ErrUserDeclined = errors.New("removal of original instance declined")

// Workflow moves one instance to another node. It owns the ledger of
// everything it acquires and releases it when Execute returns.
type Workflow struct {
	exec    remote.Executor
	conf    *config.Config
	cluster *cluster.Client
	ledger  *ledger.Ledger

	out     io.Writer
	in      io.Reader
	tracker progress.Tracker
	history storage.Store[History]

	state State

	desc *types.InstanceDescriptor
	plan *types.MigrationPlan
	// mount points created on the destination and the source node.
	dstDir string
	srcDir string
}

// Option customizes a Workflow.
type Option func(*Workflow)

// WithOutput sets where step lines and undo echoes go. Defaults to stdout.
func WithOutput(w io.Writer) Option { return func(wf *Workflow) { wf.out = w } }

// WithInput sets where the removal answer is read from. Defaults to stdin.
func WithInput(r io.Reader) Option { return func(wf *Workflow) { wf.in = r } }

// WithTracker receives transfer.Event values during the copy.
func WithTracker(t progress.Tracker) Option { return func(wf *Workflow) { wf.tracker = t } }

// WithHistory appends the outcome of every Execute to store.
func WithHistory(store storage.Store[History]) Option {
	return func(wf *Workflow) { wf.history = store }
}

// New creates a Workflow.
func New(exec remote.Executor, conf *config.Config, opts ...Option) *Workflow {
	w := &Workflow{
		exec:    exec,
		conf:    conf,
		cluster: cluster.New(exec, conf.Cluster),
		out:     os.Stdout,
		in:      os.Stdin,
		tracker: progress.Nop,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.ledger = ledger.New(exec, w.out)
	return w
}

// State returns the last state reached.
func (w *Workflow) State() State { return w.state }

// Ledger exposes the undo ledger.
func (w *Workflow) Ledger() *ledger.Ledger { return w.ledger }

// Plan returns the plan once the instance has been described, nil before.
func (w *Workflow) Plan() *types.MigrationPlan { return w.plan }

// Execute runs the whole migration of instance to node. The ledger is
// unwound on every return path, on a context detached from ctx so an
// interrupt still releases what was acquired.
func (w *Workflow) Execute(ctx context.Context, instance, node string) (err error) {
	logger := log.WithFunc("migrate.Execute")
	started := time.Now()
	defer func() {
		detached := context.WithoutCancel(ctx)
		if uerr := w.ledger.UnwindAll(detached); uerr != nil {
			logger.Warnf(ctx, "cleanup incomplete: %v", uerr)
		}
		w.record(detached, instance, node, started, err)
		if err != nil && !errors.Is(err, ErrUserDeclined) && w.state.Registered() {
			logger.Warnf(ctx, "%s is registered on %s and was left running", instance, node)
		}
	}()

	w.notePreviousFailure(ctx, instance)
	w.step("Checking %s and destination %s", instance, node)
	master, err := preflight.Validate(ctx, w.exec, w.cluster, instance, node)
	if err != nil {
		return err
	}
	d, err := w.cluster.Describe(ctx, instance)
	if err != nil {
		return fmt.Errorf("describe %s: %w", instance, err)
	}
	w.desc = d
	w.plan = NewPlan(w.conf, d, node, master)
	logger.Infof(ctx, "run %s: %s (%s) -> %s via %s, volume %s, %d net queues",
		w.plan.RunID, d.Name, d.Node, node, master, w.plan.DevicePath(), w.plan.NetQueues)
	w.advance(ctx, StateValidated)

	steps := []struct {
		fn   func(context.Context) error
		next State
	}{
		{w.provision, StateDiskProvisioned},
		{w.prepareSource, StateSourcePrepared},
		{w.shutdown, StateInstanceShutdown},
		{w.rename, StateInstanceRenamed},
		{w.mountSource, StateSourceMounted},
		{w.copyData, StateDataCopied},
		{w.patchBootConfig, StateConfigPatched},
		{w.unmount, StateUnmounted},
		{w.register, StateInstanceRegistered},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted after %s: %w", w.state, err)
		}
		if err := s.fn(ctx); err != nil {
			return err
		}
		w.advance(ctx, s.next)
	}

	w.advance(ctx, StateAwaitingRemovalDecision)
	err = w.decideRemoval(ctx)
	if err != nil && !errors.Is(err, ErrUserDeclined) {
		return err
	}
	w.advance(ctx, StateDone)
	return err
}

func (w *Workflow) advance(ctx context.Context, s State) {
	log.WithFunc("migrate.advance").Infof(ctx, "%s -> %s", w.state, s)
	w.state = s
}

func (w *Workflow) step(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "==> "+format+"\n", args...)
}

// mkTempDir creates a directory on host and registers its removal.
func (w *Workflow) mkTempDir(ctx context.Context, host, what string) (string, error) {
	dir, err := w.exec.Run(ctx, host, remote.Cmd("mktemp", "-d"))
	if err != nil {
		return "", fmt.Errorf("create %s mount point: %w", what, err)
	}
	if dir == "" {
		return "", fmt.Errorf("create %s mount point: mktemp printed nothing on %s", what, host)
	}
	w.ledger.Register(ctx, "remove "+what+" mount point", host, removeDirIfPresent(dir))
	return dir, nil
}

// mount registers the unmount before mounting so an interrupted mount is
// still released.
func (w *Workflow) mount(ctx context.Context, host, what string, argv ...string) error {
	dir := argv[len(argv)-1]
	w.ledger.Register(ctx, "unmount "+what, host, unmountIfMounted(dir))
	if _, err := w.exec.Run(ctx, host, remote.Cmd(append([]string{"mount"}, argv...)...)); err != nil {
		return fmt.Errorf("mount %s: %w", what, err)
	}
	return nil
}

func removeDirIfPresent(dir string) remote.Command {
	q := remote.Quote(dir)
	return remote.Shell("[ ! -d %s ] || rmdir %s", q, q)
}

func unmountIfMounted(dir string) remote.Command {
	q := remote.Quote(dir)
	return remote.Shell("if mountpoint -q %s; then umount %s; fi", q, q)
}
