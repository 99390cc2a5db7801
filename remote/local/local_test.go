package local_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/shuttle/remote"
	"github.com/projecteru2/shuttle/remote/local"
)

func TestRunTrimsStdout(t *testing.T) {
	out, err := local.New().Run(context.Background(), remote.Local, remote.Shell("echo '  hello  '"))
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestRunExitStatus(t *testing.T) {
	_, err := local.New().Run(context.Background(), remote.Local, remote.Shell("echo oops >&2; exit 3"))
	require.Error(t, err)
	var ee *remote.ExecError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 3, ee.ExitStatus)
	assert.Equal(t, remote.Local, ee.Host)
	assert.Contains(t, ee.Stderr, "oops")
}

func TestStreamPipesStdin(t *testing.T) {
	var out bytes.Buffer
	err := local.New().Stream(context.Background(), remote.Local, remote.Cmd("tr", "a-z", "A-Z"), strings.NewReader("abc"), &out)
	require.NoError(t, err)
	assert.Equal(t, "ABC", out.String())
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := local.New().Run(ctx, remote.Local, remote.Cmd("sleep", "5"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
