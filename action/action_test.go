package action

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotui/duotui/browser"
	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/fakefs"
	"github.com/duotui/duotui/pane"
	"github.com/duotui/duotui/transfer"
)

func newDispatcher(t *testing.T) (*Dispatcher, *fakefs.FS, *fakefs.FS) {
	t.Helper()
	localFake := fakefs.New()
	remoteFake := fakefs.New()
	localFake.PutFile("/a.txt", []byte("hello"))
	localFake.PutDir("/dir")

	local := pane.New(&fsops.Endpoint{Kind: fsops.KindLocal, FS: localFake}, "/", "", "local")
	remote := pane.New(&fsops.Endpoint{Kind: fsops.KindSFTP, FS: remoteFake}, "/", "", "remote")
	require.NoError(t, local.Connect(context.Background()))
	require.NoError(t, remote.Connect(context.Background()))
	require.NoError(t, local.Reload(context.Background()))

	b := browser.New(local, remote)
	return &Dispatcher{Browser: b}, localFake, remoteFake
}

func TestMkdirCreatesAndReloads(t *testing.T) {
	d, _, _ := newDispatcher(t)
	require.NoError(t, d.Mkdir(context.Background(), "newdir"))
	exists, err := d.Browser.Local.Endpoint.FS.Exists(context.Background(), "/newdir")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteRemovesFileAndDir(t *testing.T) {
	d, local, _ := newDispatcher(t)
	err := d.Delete(context.Background(), []fsops.File{
		fsops.NewFile("/a.txt", fsops.KindRegular, 5),
		fsops.NewFile("/dir", fsops.KindDirectory, 0),
	})
	require.NoError(t, err)
	_, err = local.Stat(context.Background(), "/a.txt")
	assert.Error(t, err)
	_, err = local.Stat(context.Background(), "/dir")
	assert.Error(t, err)
}

func TestRenameMovesFile(t *testing.T) {
	d, local, _ := newDispatcher(t)
	require.NoError(t, d.Rename(context.Background(), "/a.txt", "b.txt"))
	exists, _ := local.Exists(context.Background(), "/b.txt")
	assert.True(t, exists)
	exists, _ = local.Exists(context.Background(), "/a.txt")
	assert.False(t, exists)
}

func TestSymlinkCreatesLink(t *testing.T) {
	d, local, _ := newDispatcher(t)
	require.NoError(t, d.Symlink(context.Background(), "/a.txt", "/link"))
	f, err := local.Stat(context.Background(), "/link")
	require.NoError(t, err)
	assert.Equal(t, fsops.KindSymlink, f.Kind)
	assert.Equal(t, "/a.txt", f.SymlinkTarget)
}

func TestEnqueueDequeueToggleTransferQueue(t *testing.T) {
	d, _, _ := newDispatcher(t)
	f := fsops.NewFile("/a.txt", fsops.KindRegular, 5)
	d.Enqueue(f)
	assert.Len(t, d.Browser.ActivePane().Explorer.TransferQueue, 1)
	d.Dequeue(f.Path)
	assert.Empty(t, d.Browser.ActivePane().Explorer.TransferQueue)
}

func TestTransferFallsBackToQueueWhenSelectionEmpty(t *testing.T) {
	d, _, _ := newDispatcher(t)
	f := fsops.NewFile("/a.txt", fsops.KindRegular, 5)
	d.Enqueue(f)

	task := d.Transfer(context.Background(), nil, transfer.Options{})
	summary := task.Run(context.Background())
	require.Empty(t, summary.FilesFailed)
	assert.Equal(t, []string{"/a.txt"}, summary.FilesOK)
}

func TestFindMatchesGlobRecursively(t *testing.T) {
	d, local, _ := newDispatcher(t)
	local.PutDir("/dir/sub")
	local.PutFile("/dir/sub/report.txt", []byte("x"))

	matches, err := d.Find(context.Background(), "/", "*.txt")
	require.NoError(t, err)
	var names []string
	for _, m := range matches {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "a.txt")
	assert.Contains(t, names, "report.txt")
}

func TestOpenHandsLocalCopyToOpener(t *testing.T) {
	d, _, _ := newDispatcher(t)
	var seenPath string
	d.Opener = func(p string) error {
		seenPath = p
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
		return nil
	}
	err := d.Open(context.Background(), fsops.NewFile("/a.txt", fsops.KindRegular, 5))
	require.NoError(t, err)
	_, statErr := os.Stat(seenPath)
	assert.True(t, os.IsNotExist(statErr), "temp file should be removed after Open returns")
}

func TestEditUploadsModifiedFileBack(t *testing.T) {
	d, local, _ := newDispatcher(t)
	d.Editor = func(p string) error {
		return os.WriteFile(p, []byte("edited"), 0o600)
	}
	err := d.Edit(context.Background(), fsops.NewFile("/a.txt", fsops.KindRegular, 5))
	require.NoError(t, err)

	rh, err := local.OpenRead(context.Background(), "/a.txt")
	require.NoError(t, err)
	buf := make([]byte, 6)
	_, _ = rh.Read(buf)
	assert.Equal(t, "edited", string(buf))
}
