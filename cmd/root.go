package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdcore "github.com/projecteru2/shuttle/cmd/core"
	cmdmigrate "github.com/projecteru2/shuttle/cmd/migrate"
	"github.com/projecteru2/shuttle/config"
)

// DefaultConfigFile is read when SHUTTLE_CONFIG is unset. It may be absent.
const DefaultConfigFile = "/etc/shuttle/config.json"

var conf *config.Config

var rootCmd = newRootCmd(cmdmigrate.Handler{
	BaseHandler: cmdcore.BaseHandler{ConfProvider: func() *config.Config { return conf }},
})

func newRootCmd(h cmdmigrate.Actions) *cobra.Command {
	cmd := cmdmigrate.Command(h)
	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// Flag errors print usage; anything after them does not.
		if err := cmd.ValidateRequiredFlags(); err != nil {
			return err
		}
		for _, name := range []string{"instance", "node"} {
			if v, _ := cmd.Flags().GetString(name); strings.TrimSpace(v) == "" {
				return fmt.Errorf("--%s must not be empty", name)
			}
		}
		cmd.SilenceUsage = true
		return initConfig(commandContext(cmd))
	}
	return cmd
}

func initConfig(ctx context.Context) error {
	conf = config.DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("SHUTTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range config.Keys {
		_ = v.BindEnv(key)
	}

	cfgFile := os.Getenv("SHUTTLE_CONFIG")
	if cfgFile == "" {
		cfgFile = DefaultConfigFile
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	if err := v.Unmarshal(conf); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if conf.Cluster.InstanceTool == "" || conf.Cluster.ClusterTool == "" {
		return fmt.Errorf("cluster.instance_tool and cluster.cluster_tool must be set")
	}
	if conf.Volume.FSType == "" {
		return fmt.Errorf("volume.fs_type must be set")
	}

	return log.SetupLog(ctx, &conf.Log, "")
}

// Execute is the main entry point called from main.go.
func Execute() error {
	ctx, cancel := newCommandContext()
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}
