package pane

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/fakefs"
)

func newTestPane(t *testing.T) (*Pane, *fakefs.FS) {
	t.Helper()
	fake := fakefs.New()
	fake.Hostname = "fakehost"
	fake.PutDir("/home")
	fake.PutFile("/home/a.txt", []byte("hello"))
	ep := &fsops.Endpoint{Kind: fsops.KindLocal, FS: fake}
	return New(ep, "/", "", "test"), fake
}

func TestConnectSeedsLabelAndWrkdir(t *testing.T) {
	p, _ := newTestPane(t)
	require.NoError(t, p.Connect(context.Background()))
	assert.True(t, p.Connected)
	assert.Equal(t, "fakehost", p.Label)
	assert.Equal(t, "/", p.Explorer.Wrkdir)
}

func TestReloadPopulatesExplorerFiles(t *testing.T) {
	p, _ := newTestPane(t)
	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Reload(context.Background()))
	require.Len(t, p.Explorer.Files, 1)
	assert.Equal(t, "home", p.Explorer.Files[0].Name)
}

func TestCdChangesWrkdirAndReloads(t *testing.T) {
	p, _ := newTestPane(t)
	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Cd(context.Background(), "home"))
	assert.Equal(t, "/home", p.Explorer.Wrkdir)
	require.Len(t, p.Explorer.Files, 1)
	assert.Equal(t, "a.txt", p.Explorer.Files[0].Name)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	p, _ := newTestPane(t)
	require.NoError(t, p.Disconnect(context.Background()))
	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Disconnect(context.Background()))
	require.NoError(t, p.Disconnect(context.Background()))
	assert.False(t, p.Connected)
}
