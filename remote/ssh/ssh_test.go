package ssh_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"

	"github.com/projecteru2/shuttle/config"
	"github.com/projecteru2/shuttle/remote"
	"github.com/projecteru2/shuttle/remote/ssh"
)

func writeKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := gossh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func TestNewWithoutCredentials(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	conf := config.SSHConfig{IdentityFiles: []string{filepath.Join(t.TempDir(), "missing")}, InsecureIgnoreHostKey: true}
	_, err := ssh.New(context.Background(), conf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ssh credentials")
}

func TestNewRequiresKnownHosts(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	conf := config.SSHConfig{IdentityFiles: []string{writeKey(t)}}
	_, err := ssh.New(context.Background(), conf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known_hosts")
}

func TestStreamUnreachableHost(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	e, err := ssh.New(context.Background(), config.SSHConfig{
		User:                  "root",
		Port:                  port,
		IdentityFiles:         []string{writeKey(t)},
		InsecureIgnoreHostKey: true,
		DialTimeout:           2 * time.Second,
	})
	require.NoError(t, err)
	defer e.Close() //nolint:errcheck

	_, err = e.Run(context.Background(), "127.0.0.1", remote.Cmd("true"))
	var ee *remote.ExecError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, -1, ee.ExitStatus)
	assert.Equal(t, "127.0.0.1", ee.Host)
	assert.Equal(t, "true", ee.Command)
	assert.Contains(t, err.Error(), "dial")
}
