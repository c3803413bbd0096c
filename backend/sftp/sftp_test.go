package sftp

import (
	"os"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotui/duotui/fsops"
)

func TestTranslateErrMapsOSErrors(t *testing.T) {
	assert.True(t, fsops.IsKind(translateErr("stat", "/x", os.ErrNotExist), fsops.KindNotFound))
	assert.True(t, fsops.IsKind(translateErr("stat", "/x", os.ErrPermission), fsops.KindPermission))
}

func TestTranslateErrMapsStatusErrorCodes(t *testing.T) {
	assert.True(t, fsops.IsKind(translateErr("open", "/x", &sftp.StatusError{Code: sftp.ErrSSHFxNoSuchFile}), fsops.KindNotFound))
	assert.True(t, fsops.IsKind(translateErr("open", "/x", &sftp.StatusError{Code: sftp.ErrSSHFxPermissionDenied}), fsops.KindPermission))
	assert.True(t, fsops.IsKind(translateErr("open", "/x", &sftp.StatusError{Code: sftp.ErrSSHFxOpUnsupported}), fsops.KindUnsupported))
}

func TestTranslateErrFallsBackToIO(t *testing.T) {
	assert.True(t, fsops.IsKind(translateErr("open", "/x", &sftp.StatusError{Code: sftp.ErrSSHFxFailure}), fsops.KindIO))
}

type fakeFileInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	mtime time.Time
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return f.mode }
func (f fakeFileInfo) ModTime() time.Time { return f.mtime }
func (f fakeFileInfo) IsDir() bool        { return f.mode.IsDir() }
func (f fakeFileInfo) Sys() any           { return nil }

func TestFileFromInfoMapsRegularFile(t *testing.T) {
	file := fileFromInfo("/a.txt", fakeFileInfo{name: "a.txt", size: 7, mode: 0o644})
	require.Equal(t, fsops.KindRegular, file.Kind)
	assert.Equal(t, int64(7), file.Size)
	assert.True(t, file.Mode.Valid)
	assert.Equal(t, uint32(0o644), file.Mode.Perm)
}

func TestFileFromInfoMapsDirectory(t *testing.T) {
	file := fileFromInfo("/sub", fakeFileInfo{name: "sub", mode: os.ModeDir | 0o755})
	assert.Equal(t, fsops.KindDirectory, file.Kind)
}

func TestFileFromInfoMapsSymlink(t *testing.T) {
	file := fileFromInfo("/link", fakeFileInfo{name: "link", mode: os.ModeSymlink | 0o777})
	assert.Equal(t, fsops.KindSymlink, file.Kind)
}
