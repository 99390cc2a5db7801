package migrate_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/shuttle/migrate"
	"github.com/projecteru2/shuttle/remote/remotetest"
	storejson "github.com/projecteru2/shuttle/storage/json"
)

func TestExecuteRecordsHistory(t *testing.T) {
	ctx := context.Background()
	store := storejson.New[migrate.History](filepath.Join(t.TempDir(), "history.json"))

	ok, _ := newWorkflow(happyFake(nil), "yes\n", migrate.WithHistory(store))
	require.NoError(t, ok.Execute(ctx, "dns01.lan", dstNode))

	failing, _ := newWorkflow(happyFake(func(f *remotetest.Fake) { f.Fail(dstNode, "lvcreate") }), "", migrate.WithHistory(store))
	require.Error(t, failing.Execute(ctx, "dns01.lan", dstNode))

	declined, out := newWorkflow(happyFake(nil), "no\n", migrate.WithHistory(store))
	require.ErrorIs(t, declined.Execute(ctx, "dns01.lan", dstNode), migrate.ErrUserDeclined)
	assert.Contains(t, out.String(), "NOTE: previous run "+failing.Plan().RunID+" of dns01.lan")
	assert.Contains(t, out.String(), "failed in state Validated")

	var h migrate.History
	require.NoError(t, store.With(ctx, func(got *migrate.History) error {
		h = *got
		return nil
	}))
	require.Len(t, h.Runs, 3)

	first := h.Runs[0]
	assert.Equal(t, ok.Plan().RunID, first.RunID)
	assert.Equal(t, "Done", first.State)
	assert.Equal(t, srcNode, first.SourceNode)
	assert.Equal(t, master, first.Master)
	assert.Equal(t, "/dev/xenvg/dns01.lan_kvm", first.Volume)
	assert.Empty(t, first.Error)
	assert.False(t, first.FinishedAt.Before(first.StartedAt))

	assert.Equal(t, "Validated", h.Runs[1].State)
	assert.Contains(t, h.Runs[1].Error, "lvcreate")

	assert.True(t, h.Runs[2].Declined)
	assert.Empty(t, h.Runs[2].Error)
}

func TestExecuteQuietAfterSuccessfulRun(t *testing.T) {
	ctx := context.Background()
	store := storejson.New[migrate.History](filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, store.Update(ctx, func(h *migrate.History) error {
		h.Append(migrate.Record{RunID: "r1", Instance: "dns01.lan", State: "Validated", Error: "lvcreate failed"})
		h.Append(migrate.Record{RunID: "r2", Instance: "dns01.lan", State: "Done"})
		h.Append(migrate.Record{RunID: "r3", Instance: "web01.lan", State: "Validated", Error: "mkfs failed"})
		return nil
	}))

	w, out := newWorkflow(happyFake(nil), "yes\n", migrate.WithHistory(store))
	require.NoError(t, w.Execute(ctx, "dns01.lan", dstNode))
	assert.NotContains(t, out.String(), "NOTE: previous run")
}

func TestHistoryAppendCaps(t *testing.T) {
	var h migrate.History
	h.Init()
	for i := range migrate.MaxHistory + 5 {
		h.Append(migrate.Record{RunID: string(rune('a' + i%26))})
	}
	assert.Len(t, h.Runs, migrate.MaxHistory)
	assert.Equal(t, string(rune('a'+5%26)), h.Runs[0].RunID)
}
