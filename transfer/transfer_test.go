package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/fakefs"
)

func TestRunCopiesSingleFile(t *testing.T) {
	src := fakefs.New()
	src.PutFile("/a.txt", []byte("hello"))
	dst := fakefs.New()

	task := NewTask(src, dst, []fsops.File{fsops.NewFile("/a.txt", fsops.KindRegular, 5)}, Options{})
	summary := task.Run(context.Background())

	require.Empty(t, summary.FilesFailed)
	assert.Equal(t, []string{"/a.txt"}, summary.FilesOK)
	assert.Equal(t, StateSucceeded, task.State())

	rh, err := dst.OpenRead(context.Background(), "/a.txt")
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = rh.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestRunRecursesIntoDirectories(t *testing.T) {
	src := fakefs.New()
	src.PutDir("/dir")
	src.PutFile("/dir/x.txt", []byte("x"))
	dst := fakefs.New()

	task := NewTask(src, dst, []fsops.File{fsops.NewFile("/dir", fsops.KindDirectory, 0)}, Options{})
	summary := task.Run(context.Background())

	require.Empty(t, summary.FilesFailed)
	assert.Contains(t, summary.FilesOK, "/dir/x.txt")
	exists, err := dst.Exists(context.Background(), "/dir/x.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunOverBlockOnlyDestinationUsesBridge(t *testing.T) {
	src := fakefs.New()
	src.PutFile("/a.txt", []byte("hello"))

	block := fakefs.NewBlock()
	dst := &fsops.RemoteBridged{Inner: block}

	task := NewTask(src, dst, []fsops.File{fsops.NewFile("/a.txt", fsops.KindRegular, 5)}, Options{})
	summary := task.Run(context.Background())

	require.Empty(t, summary.FilesFailed)
	assert.Equal(t, []string{"/a.txt"}, summary.FilesOK)
	exists, err := block.Exists(context.Background(), "/a.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestConflictSkip(t *testing.T) {
	src := fakefs.New()
	src.PutFile("/a.txt", []byte("new"))
	dst := fakefs.New()
	dst.PutFile("/a.txt", []byte("old"))

	task := NewTask(src, dst, []fsops.File{fsops.NewFile("/a.txt", fsops.KindRegular, 3)}, Options{OnConflict: ConflictSkip})
	summary := task.Run(context.Background())

	assert.Equal(t, []string{"/a.txt"}, summary.FilesSkipped)
	assert.Empty(t, summary.FilesOK)
}

func TestConflictRenamePicksNextAvailableName(t *testing.T) {
	src := fakefs.New()
	src.PutFile("/a.txt", []byte("new"))
	dst := fakefs.New()
	dst.PutFile("/a.txt", []byte("old"))

	task := NewTask(src, dst, []fsops.File{fsops.NewFile("/a.txt", fsops.KindRegular, 3)}, Options{OnConflict: ConflictRename})
	summary := task.Run(context.Background())

	require.Len(t, summary.FilesOK, 1)
	exists, err := dst.Exists(context.Background(), "/a (1).txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestConflictOverwriteReplacesDestination(t *testing.T) {
	src := fakefs.New()
	src.PutFile("/a.txt", []byte("new"))
	dst := fakefs.New()
	dst.PutFile("/a.txt", []byte("old"))

	task := NewTask(src, dst, []fsops.File{fsops.NewFile("/a.txt", fsops.KindRegular, 3)}, Options{OnConflict: ConflictOverwrite})
	summary := task.Run(context.Background())

	require.Len(t, summary.FilesOK, 1)
	rh, err := dst.OpenRead(context.Background(), "/a.txt")
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, _ = rh.Read(buf)
	assert.Equal(t, "new", string(buf))
}

func TestCancelStopsBeforeFurtherEntries(t *testing.T) {
	src := fakefs.New()
	src.PutDir("/dir")
	src.PutFile("/dir/a.txt", []byte("a"))
	src.PutFile("/dir/b.txt", []byte("b"))
	dst := fakefs.New()

	task := NewTask(src, dst, []fsops.File{fsops.NewFile("/dir", fsops.KindDirectory, 0)}, Options{})
	task.Cancel()
	summary := task.Run(context.Background())

	assert.Equal(t, StateCancelled, task.State())
	assert.Empty(t, summary.FilesOK)
}

func TestProgressNeverExceedsAggregate(t *testing.T) {
	src := fakefs.New()
	src.PutFile("/a.txt", []byte("hello"))
	dst := fakefs.New()

	task := NewTask(src, dst, []fsops.File{fsops.NewFile("/a.txt", fsops.KindRegular, 5)}, Options{})
	task.Run(context.Background())

	snap := task.Progress()
	assert.LessOrEqual(t, snap.Bytes, snap.Total)
}
