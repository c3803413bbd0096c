package localfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotui/duotui/fsops"
)

func TestFileFromInfoMapsRegularFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o644))

	info, err := os.Lstat(p)
	require.NoError(t, err)

	file := fileFromInfo(p, info)
	assert.Equal(t, fsops.KindRegular, file.Kind)
	assert.Equal(t, int64(5), file.Size)
	assert.True(t, file.HasTime)
	assert.True(t, file.Mode.Valid)
}

func TestFileFromInfoMapsDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	info, err := os.Lstat(sub)
	require.NoError(t, err)

	file := fileFromInfo(sub, info)
	assert.Equal(t, fsops.KindDirectory, file.Kind)
}

func TestFileFromInfoMapsSymlinkAndResolvesTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	info, err := os.Lstat(link)
	require.NoError(t, err)

	file := fileFromInfo(link, info)
	assert.Equal(t, fsops.KindSymlink, file.Kind)
	assert.Equal(t, target, file.SymlinkTarget)
}

func TestTranslateOSErrMapsNotExist(t *testing.T) {
	dir := t.TempDir()
	_, err := os.Open(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.True(t, fsops.IsKind(translateOSErr("stat", "missing.txt", err), fsops.KindNotFound))
}

func TestTranslateOSErrMapsExist(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	_, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL, 0o644)
	require.Error(t, err)
	assert.True(t, fsops.IsKind(translateOSErr("create", p, err), fsops.KindExists))
}

func TestTranslateOSErrMapsDirNotEmpty(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.txt"), []byte("x"), 0o644))

	err := os.Remove(sub)
	require.Error(t, err)
	assert.True(t, fsops.IsKind(translateOSErr("remove", sub, err), fsops.KindDirNotEmpty))
}
