package explorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotui/duotui/fsops"
)

func file(name string, kind fsops.Kind, size int64) fsops.File {
	return fsops.File{Path: "/" + name, Name: name, Kind: kind, Size: size}
}

func TestSetFilesGroupsDirsFirstThenSortsByName(t *testing.T) {
	e := New("/", "")
	e.SortBy = SortByName
	e.SortDir = SortAsc
	e.GroupDirs = GroupFirst

	e.SetFiles([]fsops.File{
		file("zzz.txt", fsops.KindRegular, 10),
		file("bdir", fsops.KindDirectory, 0),
		file("adir", fsops.KindDirectory, 0),
		file("aaa.txt", fsops.KindRegular, 5),
	})

	names := make([]string, len(e.Files))
	for i, f := range e.Files {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"adir", "bdir", "aaa.txt", "zzz.txt"}, names)
}

func TestSetFilesFiltersHiddenUnlessShowHidden(t *testing.T) {
	e := New("/", "")
	e.SetFiles([]fsops.File{file(".hidden", fsops.KindRegular, 1), file("visible", fsops.KindRegular, 1)})
	require.Len(t, e.Files, 1)
	assert.Equal(t, "visible", e.Files[0].Name)

	e.ShowHidden = true
	e.SetFiles([]fsops.File{file(".hidden", fsops.KindRegular, 1), file("visible", fsops.KindRegular, 1)})
	assert.Len(t, e.Files, 2)
}

func TestSetFilesClampsSelectedIndex(t *testing.T) {
	e := New("/", "")
	e.SetFiles([]fsops.File{file("a", fsops.KindRegular, 1), file("b", fsops.KindRegular, 1), file("c", fsops.KindRegular, 1)})
	e.SelectedIndex = 2
	e.SetFiles([]fsops.File{file("a", fsops.KindRegular, 1)})
	assert.Equal(t, 0, e.SelectedIndex)
}

func TestCdPushesHistoryAndPopRestores(t *testing.T) {
	e := New("/home", "")
	prev := e.Cd("/home/sub")
	assert.Equal(t, "/home", prev)
	assert.Equal(t, "/home/sub", e.Wrkdir)

	back, ok := e.Pop()
	assert.True(t, ok)
	assert.Equal(t, "/home", back)
	assert.Equal(t, "/home", e.Wrkdir)
}

func TestEnqueueDequeueDedupByPath(t *testing.T) {
	e := New("/", "")
	f1 := file("a.txt", fsops.KindRegular, 1)
	e.EnqueueTransfer(f1, f1)
	assert.Len(t, e.TransferQueue, 1, "duplicate path should not be queued twice")

	e.DequeueTransfer(f1.Path)
	assert.Empty(t, e.TransferQueue)
}

func TestSelectedFilesFallsBackToSingleSelection(t *testing.T) {
	e := New("/", "")
	e.SetFiles([]fsops.File{file("a", fsops.KindRegular, 1), file("b", fsops.KindRegular, 1)})
	e.SelectedIndex = 1

	got := e.SelectedFiles()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Name)
}

func TestCacheListingRoundTrips(t *testing.T) {
	e := New("/", "")
	files := []fsops.File{file("a", fsops.KindRegular, 1)}
	e.CacheListing("/", files)

	got, ok := e.CachedListing("/")
	require.True(t, ok)
	assert.Equal(t, files, got)

	_, ok = e.CachedListing("/nope")
	assert.False(t, ok)
}

func TestFormatRendersWidthTokens(t *testing.T) {
	e := New("/", "{NAME:<10}{SIZE:>6}")
	out := e.Format(fsops.File{Name: "a.txt", Size: 42})
	assert.Len(t, out, 16)
}

func TestToAbsPathJoinsRelativeAgainstWrkdir(t *testing.T) {
	e := New("/home/user", "")
	assert.Equal(t, "/home/user/docs", e.ToAbsPath("docs"))
	assert.Equal(t, "/etc/passwd", e.ToAbsPath("/etc/passwd"))
}

func TestListingCacheHonorsTTL(t *testing.T) {
	e := New("/", "")
	e.cache.Set("/x", []fsops.File{file("a", fsops.KindRegular, 1)}, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	_, ok := e.CachedListing("/x")
	assert.False(t, ok, "entry should have expired")
}
