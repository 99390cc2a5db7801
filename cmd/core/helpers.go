package core

import (
	"context"
	"fmt"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/projecteru2/shuttle/config"
	"github.com/projecteru2/shuttle/remote"
	"github.com/projecteru2/shuttle/remote/local"
	"github.com/projecteru2/shuttle/remote/ssh"
)

// BaseHandler provides shared config access for all command handlers.
type BaseHandler struct {
	ConfProvider func() *config.Config
}

// Init returns the command context and validated config in one call.
func (h BaseHandler) Init(cmd *cobra.Command) (context.Context, *config.Config, error) {
	conf, err := h.Conf()
	if err != nil {
		return nil, nil, err
	}
	return CommandContext(cmd), conf, nil
}

// Conf validates and returns the config. All handlers call this first.
func (h BaseHandler) Conf() (*config.Config, error) {
	if h.ConfProvider == nil {
		return nil, fmt.Errorf("config provider is nil")
	}
	conf := h.ConfProvider()
	if conf == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	return conf, nil
}

// CommandContext returns command context, falling back to Background.
func CommandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// InitExecutor builds the executor used by every step: the control node
// through sh, everything else over SSH. The returned func closes the SSH
// connections.
func InitExecutor(ctx context.Context, conf *config.Config) (remote.Executor, func(), error) {
	sshExec, err := ssh.New(ctx, conf.SSH)
	if err != nil {
		return nil, nil, fmt.Errorf("init ssh: %w", err)
	}
	closeFn := func() { _ = sshExec.Close() }
	return remote.NewRouter(local.New(), sshExec, conf.CommandTimeout), closeFn, nil
}

func FormatSize(bytes int64) string {
	return units.HumanSize(float64(bytes))
}
