package ftp

import (
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"

	"github.com/duotui/duotui/fsops"
)

func TestFileFromEntryMapsRegularFile(t *testing.T) {
	mtime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	file := fileFromEntry("/a.txt", &ftp.Entry{Type: ftp.EntryTypeFile, Size: 42, Time: mtime})
	assert.Equal(t, fsops.KindRegular, file.Kind)
	assert.Equal(t, int64(42), file.Size)
	assert.Equal(t, mtime, file.ModTime)
	assert.True(t, file.HasTime)
}

func TestFileFromEntryMapsDirectory(t *testing.T) {
	file := fileFromEntry("/sub", &ftp.Entry{Type: ftp.EntryTypeFolder})
	assert.Equal(t, fsops.KindDirectory, file.Kind)
}

func TestFileFromEntryMapsSymlink(t *testing.T) {
	file := fileFromEntry("/link", &ftp.Entry{Type: ftp.EntryTypeLink})
	assert.Equal(t, fsops.KindSymlink, file.Kind)
}
