package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls    int
	instance string
	node     string
}

func (r *recorder) Migrate(cmd *cobra.Command, _ []string) error {
	r.calls++
	r.instance, _ = cmd.Flags().GetString("instance")
	r.node, _ = cmd.Flags().GetString("node")
	return nil
}

func run(t *testing.T, args ...string) (*recorder, string, error) {
	t.Helper()
	r := &recorder{}
	c := newRootCmd(r)
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetArgs(args)
	err := c.ExecuteContext(context.Background())
	return r, out.String(), err
}

func TestRootRejectsBadInvocations(t *testing.T) {
	t.Setenv("SHUTTLE_CONFIG", filepath.Join(t.TempDir(), "absent.json"))
	cases := []struct {
		name string
		args []string
		msg  string
	}{
		{"no flags", nil, `required flag(s) "instance", "node" not set`},
		{"no node", []string{"--instance", "dns01.lan"}, `required flag(s) "node" not set`},
		{"no instance", []string{"-n", "kvm02.lan"}, `required flag(s) "instance" not set`},
		{"blank instance", []string{"-i", "", "-n", "kvm02.lan"}, "--instance must not be empty"},
		{"blank node", []string{"-i", "dns01.lan", "--node", "  "}, "--node must not be empty"},
		{"unknown flag", []string{"-i", "dns01.lan", "-n", "kvm02.lan", "--force"}, "unknown flag: --force"},
		{"positional argument", []string{"-i", "dns01.lan", "-n", "kvm02.lan", "extra"}, "extra"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, out, err := run(t, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
			assert.Contains(t, out, "Usage:")
			assert.Zero(t, r.calls)
		})
	}
}

func TestRootRunsMigration(t *testing.T) {
	t.Setenv("SHUTTLE_CONFIG", filepath.Join(t.TempDir(), "absent.json"))
	lockDir := t.TempDir()
	t.Setenv("SHUTTLE_LOCK_DIR", lockDir)

	r, out, err := run(t, "-i", "dns01.lan", "--node", "kvm02.lan")
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, "dns01.lan", r.instance)
	assert.Equal(t, "kvm02.lan", r.node)
	assert.NotContains(t, out, "Usage:")
	require.NotNil(t, conf)
	assert.Equal(t, lockDir, conf.LockDir)
	assert.Equal(t, filepath.Join(lockDir, "dns01.lan.lock"), conf.InstanceLockPath("dns01.lan"))
}

func TestInitConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "command_timeout": "30s",
  "volume": {"fs_type": "xfs", "group": "kvmvg"},
  "ssh": {"port": 2222}
}`), 0o600))
	t.Setenv("SHUTTLE_CONFIG", path)

	require.NoError(t, initConfig(context.Background()))
	assert.Equal(t, 30*time.Second, conf.CommandTimeout)
	assert.Equal(t, "xfs", conf.Volume.FSType)
	assert.Equal(t, "kvmvg", conf.Volume.Group)
	assert.Equal(t, "_kvm", conf.Volume.Suffix)
	assert.Equal(t, 2222, conf.SSH.Port)
	assert.Equal(t, "gnt-instance", conf.Cluster.InstanceTool)
}

func TestInitConfigRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"volume": `), 0o600))
	t.Setenv("SHUTTLE_CONFIG", path)

	err := initConfig(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
