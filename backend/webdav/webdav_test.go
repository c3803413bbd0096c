package webdav

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/duotui/duotui/backend/webdav/api"
	"github.com/duotui/duotui/fsops"
)

func TestFileFromResponseMapsFileWithETag(t *testing.T) {
	r := api.Response{Props: api.Prop{Size: 42, ETag: `"abc123"`}}
	file := fileFromResponse("/a.txt", r)
	assert.Equal(t, fsops.KindRegular, file.Kind)
	assert.Equal(t, int64(42), file.Size)
	assert.Equal(t, `"abc123"`, file.Metadata["etag"])
}

func TestTranslateErrMapsStatusCodesInMessage(t *testing.T) {
	assert.True(t, fsops.IsKind(translateErr("stat", "/x", errors.New("404 Not Found")), fsops.KindNotFound))
	assert.True(t, fsops.IsKind(translateErr("get", "/x", errors.New("401 Unauthorized")), fsops.KindAuth))
	assert.True(t, fsops.IsKind(translateErr("get", "/x", errors.New("403 Forbidden")), fsops.KindAuth))
	assert.True(t, fsops.IsKind(translateErr("mkcol", "/x", errors.New("409 Conflict")), fsops.KindExists))
	assert.True(t, fsops.IsKind(translateErr("put", "/x", errors.New("500 Internal Server Error")), fsops.KindIO))
}
