package smb

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/duotui/duotui/fsops"
)

func TestSplitPathSeparatesShareAndRest(t *testing.T) {
	share, rest := splitPath("/myshare/a/b.txt")
	assert.Equal(t, "myshare", share)
	assert.Equal(t, "a/b.txt", rest)
}

func TestSplitPathShareOnly(t *testing.T) {
	share, rest := splitPath("/myshare")
	assert.Equal(t, "myshare", share)
	assert.Equal(t, "", rest)
}

func TestTranslateErrMapsOSErrors(t *testing.T) {
	assert.True(t, fsops.IsKind(translateErr("stat", "/x", os.ErrNotExist), fsops.KindNotFound))
	assert.True(t, fsops.IsKind(translateErr("mkdir", "/x", os.ErrExist), fsops.KindExists))
	assert.True(t, fsops.IsKind(translateErr("remove", "/x", os.ErrPermission), fsops.KindPermission))
	assert.True(t, fsops.IsKind(translateErr("copy", "/x", errors.New("boom")), fsops.KindIO))
}

type fakeFileInfo struct {
	name  string
	size  int64
	isDir bool
	mtime time.Time
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return 0o644 }
func (f fakeFileInfo) ModTime() time.Time { return f.mtime }
func (f fakeFileInfo) IsDir() bool        { return f.isDir }
func (f fakeFileInfo) Sys() any           { return nil }

func TestFileFromInfoMapsRegularFile(t *testing.T) {
	mtime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	file := fileFromInfo("/myshare/a.txt", fakeFileInfo{name: "a.txt", size: 42, mtime: mtime})
	assert.Equal(t, "/myshare/a.txt", file.Path)
	assert.Equal(t, fsops.KindRegular, file.Kind)
	assert.Equal(t, int64(42), file.Size)
	assert.True(t, file.HasTime)
	assert.Equal(t, mtime, file.ModTime)
}

func TestFileFromInfoMapsDirectory(t *testing.T) {
	file := fileFromInfo("/myshare/sub", fakeFileInfo{name: "sub", isDir: true})
	assert.Equal(t, fsops.KindDirectory, file.Kind)
}
