package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotui/duotui/explorer"
	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/fakefs"
	"github.com/duotui/duotui/pane"
)

func newConnectedPane(t *testing.T, label string) *pane.Pane {
	t.Helper()
	fake := fakefs.New()
	fake.Hostname = label
	fake.PutDir("/sub")
	ep := &fsops.Endpoint{Kind: fsops.KindLocal, FS: fake}
	p := pane.New(ep, "/", "", label)
	require.NoError(t, p.Connect(context.Background()))
	return p
}

func TestActiveAndOppositePaneRouting(t *testing.T) {
	local := newConnectedPane(t, "local")
	remote := newConnectedPane(t, "remote")
	b := New(local, remote)

	assert.Same(t, local, b.ActivePane())
	assert.Same(t, remote, b.OppositePane())

	b.ActiveTab = TabRemote
	assert.Same(t, remote, b.ActivePane())
	assert.Same(t, local, b.OppositePane())
}

func TestToggleTabFlipsLocalRemote(t *testing.T) {
	b := New(newConnectedPane(t, "local"), newConnectedPane(t, "remote"))
	b.ToggleTab()
	assert.Equal(t, TabRemote, b.ActiveTab)
	b.ToggleTab()
	assert.Equal(t, TabLocal, b.ActiveTab)
}

func TestEnterFindSetsMatchingFindTab(t *testing.T) {
	b := New(newConnectedPane(t, "local"), newConnectedPane(t, "remote"))
	found := explorer.New("/", "")
	b.EnterFind(found)
	assert.Equal(t, TabFindLocal, b.ActiveTab)
	assert.True(t, b.IsFindTab())
	assert.Same(t, found, b.SelectionSource())

	b.ToggleTab()
	assert.Equal(t, TabLocal, b.ActiveTab)
	assert.Nil(t, b.Found)
}

func TestSyncCdMirrorsOntoOppositeWhenEnabled(t *testing.T) {
	b := New(newConnectedPane(t, "local"), newConnectedPane(t, "remote"))
	b.SyncBrowsing = true

	oppErr, err := b.SyncCd(context.Background(), "sub")
	require.NoError(t, err)
	assert.NoError(t, oppErr)
	assert.Equal(t, "/sub", b.Local.Explorer.Wrkdir)
	assert.Equal(t, "/sub", b.Remote.Explorer.Wrkdir)
}

func TestSyncCdDoesNotMirrorOnFindTab(t *testing.T) {
	b := New(newConnectedPane(t, "local"), newConnectedPane(t, "remote"))
	b.SyncBrowsing = true
	b.EnterFind(explorer.New("/", ""))

	_, err := b.SyncCd(context.Background(), "sub")
	require.NoError(t, err)
	assert.Equal(t, "/sub", b.Local.Explorer.Wrkdir)
	assert.Equal(t, "/", b.Remote.Explorer.Wrkdir, "opposite must not move on a Find tab")
}

func TestSyncCdReportsDisconnectedOppositeButKeepsSyncBrowsingOn(t *testing.T) {
	b := New(newConnectedPane(t, "local"), newConnectedPane(t, "remote"))
	b.SyncBrowsing = true
	require.NoError(t, b.Remote.Disconnect(context.Background()))

	oppErr, err := b.SyncCd(context.Background(), "sub")
	require.NoError(t, err)
	assert.Error(t, oppErr)
	assert.True(t, b.SyncBrowsing, "a failed mirror must not disable sync_browsing")
}
