package config

import (
	"os"
	"path/filepath"
	"time"

	coretypes "github.com/projecteru2/core/types"
)

// Config holds global Shuttle configuration.
type Config struct {
	SSH     SSHConfig     `json:"ssh" mapstructure:"ssh"`
	Cluster ClusterConfig `json:"cluster" mapstructure:"cluster"`
	Volume  VolumeConfig  `json:"volume" mapstructure:"volume"`

	// CommandTimeout bounds every non-streaming remote command.
	// Zero means no bound.
	CommandTimeout time.Duration `json:"command_timeout" mapstructure:"command_timeout"`

	// HostsFile is the control node's hosts file receiving the placeholder entry.
	HostsFile string `json:"hosts_file" mapstructure:"hosts_file"`
	// PlaceholderAddress is written next to the renamed instance name.
	PlaceholderAddress string `json:"placeholder_address" mapstructure:"placeholder_address"`
	// OriginalSuffix is appended to the instance name when the source is renamed.
	OriginalSuffix string `json:"original_suffix" mapstructure:"original_suffix"`

	// LockDir holds per-instance migration lock files on the control node.
	LockDir string `json:"lock_dir" mapstructure:"lock_dir"`
	// HistoryFile records the outcome of every run. Empty disables it.
	HistoryFile string `json:"history_file" mapstructure:"history_file"`

	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log" mapstructure:"log"`
}

// SSHConfig describes how remote nodes are reached.
type SSHConfig struct {
	User string `json:"user" mapstructure:"user"`
	Port int    `json:"port" mapstructure:"port"`
	// IdentityFiles are private keys tried after the agent. Missing files are skipped.
	IdentityFiles []string `json:"identity_files" mapstructure:"identity_files"`
	KnownHosts    string   `json:"known_hosts" mapstructure:"known_hosts"`
	// InsecureIgnoreHostKey disables known_hosts verification.
	InsecureIgnoreHostKey bool          `json:"insecure_ignore_host_key" mapstructure:"insecure_ignore_host_key"`
	UseAgent              bool          `json:"use_agent" mapstructure:"use_agent"`
	DialTimeout           time.Duration `json:"dial_timeout" mapstructure:"dial_timeout"`
}

// ClusterConfig names the cluster manager tools and the shape of the new instance.
type ClusterConfig struct {
	InstanceTool string `json:"instance_tool" mapstructure:"instance_tool"`
	ClusterTool  string `json:"cluster_tool" mapstructure:"cluster_tool"`
	// Hypervisor is the hypervisor the new instance is registered with.
	Hypervisor string `json:"hypervisor" mapstructure:"hypervisor"`
	// OSType is the boot image profile passed to instance registration.
	OSType string `json:"os_type" mapstructure:"os_type"`
}

// VolumeConfig controls the destination block device.
type VolumeConfig struct {
	// Suffix is appended to the instance name to form the destination volume name.
	Suffix string `json:"suffix" mapstructure:"suffix"`
	// Group overrides the destination volume group. Empty reuses the source group.
	Group  string `json:"group" mapstructure:"group"`
	FSType string `json:"fs_type" mapstructure:"fs_type"`
	// SourceFSType is passed to mount -t on the source side. Empty lets mount detect it.
	SourceFSType string `json:"source_fs_type" mapstructure:"source_fs_type"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	var identities []string
	knownHosts := ""
	if home, err := os.UserHomeDir(); err == nil {
		identities = []string{
			filepath.Join(home, ".ssh", "id_ed25519"),
			filepath.Join(home, ".ssh", "id_rsa"),
		}
		knownHosts = filepath.Join(home, ".ssh", "known_hosts")
	}
	return &Config{
		SSH: SSHConfig{
			User:          "root",
			Port:          22, //nolint:mnd
			IdentityFiles: identities,
			KnownHosts:    knownHosts,
			UseAgent:      true,
			DialTimeout:   10 * time.Second, //nolint:mnd
		},
		Cluster: ClusterConfig{
			InstanceTool: "gnt-instance",
			ClusterTool:  "gnt-cluster",
			Hypervisor:   "kvm",
			OSType:       "debootstrap+default",
		},
		Volume: VolumeConfig{
			Suffix: "_kvm",
			FSType: "ext4",
		},
		HostsFile:          "/etc/hosts",
		PlaceholderAddress: "127.0.0.1",
		OriginalSuffix:     "_original",
		LockDir:            "/var/lock/shuttle",
		HistoryFile:        "/var/lib/shuttle/history.json",
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    500,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// InstanceLockPath returns the lock file guarding migrations of one instance.
func (c *Config) InstanceLockPath(instance string) string {
	return filepath.Join(c.LockDir, instance+".lock")
}

// Keys lists every setting that can come from the config file or a
// SHUTTLE_ environment variable (dots become underscores).
var Keys = []string{
	"ssh.user", "ssh.port", "ssh.identity_files", "ssh.known_hosts",
	"ssh.insecure_ignore_host_key", "ssh.use_agent", "ssh.dial_timeout",
	"cluster.instance_tool", "cluster.cluster_tool", "cluster.hypervisor", "cluster.os_type",
	"volume.suffix", "volume.group", "volume.fs_type", "volume.source_fs_type",
	"command_timeout", "hosts_file", "placeholder_address", "original_suffix", "lock_dir", "history_file",
	"log.level", "log.usejson", "log.filename", "log.maxsize", "log.maxage", "log.maxbackups",
}
