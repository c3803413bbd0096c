package s3

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"

	"github.com/duotui/duotui/fsops"
)

func TestSplitPathSeparatesBucketAndKey(t *testing.T) {
	bucket, key := splitPath("/mybucket/some/nested/key.txt")
	assert.Equal(t, "mybucket", bucket)
	assert.Equal(t, "some/nested/key.txt", key)
}

func TestSplitPathBucketOnly(t *testing.T) {
	bucket, key := splitPath("/mybucket")
	assert.Equal(t, "mybucket", bucket)
	assert.Equal(t, "", key)
}

func TestJoinPathRoundTripsWithSplitPath(t *testing.T) {
	assert.Equal(t, "/mybucket/a/b.txt", joinPath("mybucket", "a/b.txt"))
	assert.Equal(t, "/mybucket", joinPath("mybucket", ""))

	bucket, key := splitPath(joinPath("mybucket", "a/b.txt"))
	assert.Equal(t, "mybucket", bucket)
	assert.Equal(t, "a/b.txt", key)
}

func TestTranslateErrMapsNotFoundCodes(t *testing.T) {
	err := translateErr("stat", "/mybucket/x", awserr.New(s3.ErrCodeNoSuchKey, "missing", nil))
	assert.True(t, fsops.IsKind(err, fsops.KindNotFound))
}

func TestTranslateErrMapsExistsCodes(t *testing.T) {
	err := translateErr("mkdir", "/mybucket", awserr.New(s3.ErrCodeBucketAlreadyExists, "taken", nil))
	assert.True(t, fsops.IsKind(err, fsops.KindExists))
}

func TestTranslateErrMapsAuthCodes(t *testing.T) {
	err := translateErr("list", "/mybucket", awserr.New("AccessDenied", "nope", nil))
	assert.True(t, fsops.IsKind(err, fsops.KindAuth))
}

func TestTranslateErrFallsBackToIOForUnrecognizedCode(t *testing.T) {
	err := translateErr("copy", "/mybucket/x", awserr.New("SomeOtherFailure", "boom", nil))
	assert.True(t, fsops.IsKind(err, fsops.KindIO))
}

func TestTranslateErrFallsBackToIOForNonAWSError(t *testing.T) {
	err := translateErr("copy", "/mybucket/x", errors.New("plain error"))
	assert.True(t, fsops.IsKind(err, fsops.KindIO))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)))
	assert.True(t, isNotFound(awserr.New("NotFound", "missing", nil)))
	assert.False(t, isNotFound(awserr.New("AccessDenied", "nope", nil)))
	assert.False(t, isNotFound(errors.New("plain error")))
}

func TestIsAlreadyOwned(t *testing.T) {
	assert.True(t, isAlreadyOwned(awserr.New(s3.ErrCodeBucketAlreadyOwnedByYou, "mine", nil)))
	assert.False(t, isAlreadyOwned(awserr.New(s3.ErrCodeBucketAlreadyExists, "taken", nil)))
	assert.False(t, isAlreadyOwned(errors.New("plain error")))
}
