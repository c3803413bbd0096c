package scp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotui/duotui/fsops"
)

func TestParseCHeaderExtractsSize(t *testing.T) {
	size, err := parseCHeader("C0644 12345 filename\n")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), size)
}

func TestParseCHeaderRejectsMalformedLine(t *testing.T) {
	_, err := parseCHeader("garbage")
	assert.Error(t, err)
}

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	assert.Equal(t, `'plain'`, shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

func TestParseLsLaClassifiesKindsAndSkipsDotEntries(t *testing.T) {
	out := "drwxr-xr-x 2 user group 4096 1700000000 .\n" +
		"drwxr-xr-x 2 user group 4096 1700000000 ..\n" +
		"drwxr-xr-x 2 user group 4096 1700000001 subdir\n" +
		"lrwxrwxrwx 1 user group 5 1700000002 linkname\n" +
		"-rw-r--r-- 1 user group 11 1700000003 file with spaces.txt\n"

	files := parseLsLa("/remote", []byte(out))
	require.Len(t, files, 3)

	assert.Equal(t, "/remote/subdir", files[0].Path)
	assert.Equal(t, fsops.KindDirectory, files[0].Kind)

	assert.Equal(t, "/remote/linkname", files[1].Path)
	assert.Equal(t, fsops.KindSymlink, files[1].Kind)

	assert.Equal(t, "/remote/file with spaces.txt", files[2].Path)
	assert.Equal(t, fsops.KindRegular, files[2].Kind)
	assert.Equal(t, int64(11), files[2].Size)
	assert.True(t, files[2].HasTime)
}

func TestParseStatLineClassifiesKindFromHexMode(t *testing.T) {
	dir, err := parseStatLine("/remote/subdir", "0 1700000000 4000")
	require.NoError(t, err)
	assert.Equal(t, fsops.KindDirectory, dir.Kind)

	link, err := parseStatLine("/remote/link", "5 1700000001 a000")
	require.NoError(t, err)
	assert.Equal(t, fsops.KindSymlink, link.Kind)

	file, err := parseStatLine("/remote/a.txt", "11 1700000002 81a4")
	require.NoError(t, err)
	assert.Equal(t, fsops.KindRegular, file.Kind)
	assert.Equal(t, int64(11), file.Size)
	assert.True(t, file.Mode.Valid)
	assert.Equal(t, uint32(0o644), file.Mode.Perm)
}

func TestParseStatLineRejectsMalformedLine(t *testing.T) {
	_, err := parseStatLine("/remote/x", "not enough")
	assert.Error(t, err)
}
