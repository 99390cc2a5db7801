package preflight_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/shuttle/cluster"
	"github.com/projecteru2/shuttle/config"
	"github.com/projecteru2/shuttle/preflight"
	"github.com/projecteru2/shuttle/remote"
	"github.com/projecteru2/shuttle/remote/remotetest"
)

func newClient(f *remotetest.Fake) *cluster.Client {
	return cluster.New(f, config.DefaultConfig().Cluster)
}

func TestValidateReturnsMaster(t *testing.T) {
	f := remotetest.New().
		On(remote.Local, "gnt-instance list", "dns01.lan").
		On("kvm02.lan", "gnt-cluster getmaster", "master02.lan")

	master, err := preflight.Validate(context.Background(), f, newClient(f), "dns01.lan", "kvm02.lan")
	require.NoError(t, err)
	assert.Equal(t, "master02.lan", master)
	assert.Equal(t, []string{"true"}, f.Commands("master02.lan"))
}

func TestValidateCauses(t *testing.T) {
	cases := []struct {
		name  string
		fake  func() *remotetest.Fake
		cause string
	}{
		{
			name:  "instance unknown locally",
			fake:  func() *remotetest.Fake { return remotetest.New() },
			cause: preflight.CauseSourceControlNode,
		},
		{
			name: "destination node unreachable",
			fake: func() *remotetest.Fake {
				return remotetest.New().
					On(remote.Local, "gnt-instance list", "dns01.lan").
					Fail("kvm02.lan", "true")
			},
			cause: preflight.CauseDestinationNode,
		},
		{
			name: "master query fails",
			fake: func() *remotetest.Fake {
				return remotetest.New().
					On(remote.Local, "gnt-instance list", "dns01.lan").
					Fail("kvm02.lan", "getmaster")
			},
			cause: preflight.CauseDestinationMaster,
		},
		{
			name: "master unreachable",
			fake: func() *remotetest.Fake {
				return remotetest.New().
					On(remote.Local, "gnt-instance list", "dns01.lan").
					On("kvm02.lan", "getmaster", "master02.lan").
					Fail("master02.lan", "true")
			},
			cause: preflight.CauseDestinationMaster,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.fake()
			_, err := preflight.Validate(context.Background(), f, newClient(f), "dns01.lan", "kvm02.lan")
			var pe *preflight.Error
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.cause, pe.Cause)
			assert.Contains(t, err.Error(), tc.cause)
			assert.Equal(t, -1, f.Index("lvcreate"))
		})
	}
}
