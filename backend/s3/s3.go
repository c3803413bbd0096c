// Package s3 provides the S3 FsOps adapter using aws-sdk-go, adapted
// from the teacher's backend/s3 package. Paths are "bucket/key": the
// first path segment names the bucket, the remainder is the object key,
// matching the teacher's split() convention.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/uri"
)

func init() {
	fsops.Register(&fsops.RegInfo{Name: fsops.KindS3, Description: "Amazon S3 (or compatible) storage", NewFS: NewFS})
}

// FS is the S3 adapter. S3 has no real directories or partial streams,
// only whole-object GetObject/PutObject plus the uploader/downloader's
// concurrent-part helpers, so FS implements fsops.BlockFS and is
// wrapped by fsops.RemoteBridged in NewFS.
type FS struct {
	region   string
	endpoint string
	creds    credentials.Value
	pwd      string

	sess *session.Session
	c    *s3.S3
	up   *s3manager.Uploader
	down *s3manager.Downloader
}

func NewFS(e *fsops.Endpoint) (fsops.FS, error) {
	creds, _ := e.Credentials.(uri.Credentials)
	f := &FS{
		region: "us-east-1",
		pwd:    "/" + strings.TrimPrefix(e.Path, "/"),
		creds: credentials.Value{
			AccessKeyID:     creds.User,
			SecretAccessKey: creds.Password,
		},
	}
	if e.Host != "" {
		f.endpoint = e.Host
	}
	return &fsops.RemoteBridged{Inner: f}, nil
}

func (f *FS) Connect(ctx context.Context) (fsops.ConnectInfo, error) {
	cfg := aws.NewConfig().WithRegion(f.region)
	if f.endpoint != "" {
		cfg = cfg.WithEndpoint(f.endpoint).WithS3ForcePathStyle(true)
	}
	if f.creds.AccessKeyID != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentialsFromCreds(f.creds))
	}
	sess, err := session.NewSessionWithOptions(session.Options{Config: *cfg, SharedConfigState: session.SharedConfigEnable})
	if err != nil {
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindBadConfig, "connect", f.endpoint, err)
	}
	f.sess = sess
	f.c = s3.New(sess)
	f.up = s3manager.NewUploader(sess)
	f.down = s3manager.NewDownloader(sess)
	if _, err := f.c.ListBucketsWithContext(ctx, &s3.ListBucketsInput{}); err != nil {
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindAuth, "connect", f.endpoint, err)
	}
	return fsops.ConnectInfo{Hostname: f.endpoint, Pwd: f.pwd}, nil
}

func (f *FS) Disconnect(ctx context.Context) error { return nil }
func (f *FS) IsConnected() bool                    { return f.c != nil }
func (f *FS) Pwd(ctx context.Context) (string, error) { return f.pwd, nil }

func (f *FS) ChangeDir(ctx context.Context, dir string) (string, error) {
	abs := f.abs(dir)
	if bucket, key := splitPath(abs); key != "" {
		if ok, err := f.Exists(ctx, abs); err != nil || !ok {
			return "", fsops.NewError(fsops.KindNotDir, "change_dir", abs, err)
		}
		_ = bucket
	}
	f.pwd = abs
	return abs, nil
}

func (f *FS) abs(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return strings.TrimRight(f.pwd, "/") + "/" + p
}

// splitPath mirrors the teacher's Fs.split: first segment is the
// bucket, the rest is the key.
func splitPath(p string) (bucket, key string) {
	p = strings.TrimPrefix(p, "/")
	i := strings.IndexByte(p, '/')
	if i < 0 {
		return p, ""
	}
	return p[:i], p[i+1:]
}

func joinPath(bucket, key string) string {
	if key == "" {
		return "/" + bucket
	}
	return "/" + bucket + "/" + key
}

func (f *FS) listBuckets(ctx context.Context) ([]fsops.File, error) {
	resp, err := f.c.ListBucketsWithContext(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fsops.NewError(fsops.KindIO, "list_buckets", "", err)
	}
	out := make([]fsops.File, 0, len(resp.Buckets))
	for _, b := range resp.Buckets {
		file := fsops.NewFile("/"+aws.StringValue(b.Name), fsops.KindDirectory, 0)
		file.HasTime = true
		file.ModTime = aws.TimeValue(b.CreationDate)
		out = append(out, file)
	}
	return out, nil
}

func (f *FS) ListDir(ctx context.Context, dir string) ([]fsops.File, error) {
	abs := f.abs(dir)
	bucket, key := splitPath(abs)
	if bucket == "" {
		return f.listBuckets(ctx)
	}
	prefix := key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var out []fsops.File
	seen := map[string]bool{}
	err := f.c.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket), Prefix: aws.String(prefix), Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(cp.Prefix), prefix), "/")
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, fsops.NewFile(joinPath(bucket, strings.TrimPrefix(aws.StringValue(cp.Prefix), "/")), fsops.KindDirectory, 0))
		}
		for _, obj := range page.Contents {
			k := aws.StringValue(obj.Key)
			if k == prefix {
				continue
			}
			file := fsops.NewFile(joinPath(bucket, k), fsops.KindRegular, aws.Int64Value(obj.Size))
			file.HasTime = true
			file.ModTime = aws.TimeValue(obj.LastModified)
			file.Metadata = map[string]string{"etag": aws.StringValue(obj.ETag)}
			out = append(out, file)
		}
		return true
	})
	if err != nil {
		return nil, translateErr("list_dir", abs, err)
	}
	return out, nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsops.File, error) {
	abs := f.abs(p)
	bucket, key := splitPath(abs)
	if key == "" {
		_, err := f.c.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
		if err != nil {
			return fsops.File{}, translateErr("stat", abs, err)
		}
		return fsops.NewFile(abs, fsops.KindDirectory, 0), nil
	}
	resp, err := f.c.HeadObjectWithContext(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		// key may be a "directory" prefix with no marker object.
		if isNotFound(err) {
			entries, lerr := f.ListDir(ctx, abs)
			if lerr == nil && len(entries) > 0 {
				return fsops.NewFile(abs, fsops.KindDirectory, 0), nil
			}
		}
		return fsops.File{}, translateErr("stat", abs, err)
	}
	file := fsops.NewFile(abs, fsops.KindRegular, aws.Int64Value(resp.ContentLength))
	file.HasTime = true
	file.ModTime = aws.TimeValue(resp.LastModified)
	file.Metadata = map[string]string{"etag": aws.StringValue(resp.ETag)}
	return file, nil
}

func (f *FS) Exists(ctx context.Context, p string) (bool, error) {
	_, err := f.Stat(ctx, p)
	if err == nil {
		return true, nil
	}
	if fsops.IsKind(err, fsops.KindNotFound) {
		return false, nil
	}
	return false, err
}

// Mkdir creates a zero-byte key/ marker object, the teacher's
// createDirectoryMarker convention (S3 has no real directories).
func (f *FS) Mkdir(ctx context.Context, p string) error {
	abs := f.abs(p)
	bucket, key := splitPath(abs)
	if key == "" {
		_, err := f.c.CreateBucketWithContext(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
		if err != nil && !isAlreadyOwned(err) {
			return translateErr("mkdir", abs, err)
		}
		return nil
	}
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}
	_, err := f.c.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket), Key: aws.String(key), Body: strings.NewReader(""),
	})
	if err != nil {
		return translateErr("mkdir", abs, err)
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, file fsops.File) error {
	bucket, key := splitPath(file.Path)
	if file.Kind == fsops.KindDirectory && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	_, err := f.c.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return translateErr("remove", file.Path, err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	abs := f.abs(p)
	bucket, key := splitPath(abs)
	prefix := key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var delErr error
	err := f.c.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket), Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, last bool) bool {
		ids := make([]*s3.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, &s3.ObjectIdentifier{Key: obj.Key})
		}
		if len(ids) == 0 {
			return true
		}
		_, delErr = f.c.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket), Delete: &s3.Delete{Objects: ids},
		})
		return delErr == nil
	})
	if err != nil {
		return translateErr("remove_dir_all", abs, err)
	}
	if delErr != nil {
		return translateErr("remove_dir_all", abs, delErr)
	}
	return nil
}

func (f *FS) Rename(ctx context.Context, from, to string) error {
	if err := f.Copy(ctx, from, to); err != nil {
		return err
	}
	bucket, key := splitPath(f.abs(from))
	_, err := f.c.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return translateErr("rename", from, err)
	}
	return nil
}

// Copy uses S3's server-side CopyObject, avoiding a download+upload
// round trip for same-account transfers.
func (f *FS) Copy(ctx context.Context, from, to string) error {
	srcBucket, srcKey := splitPath(f.abs(from))
	dstBucket, dstKey := splitPath(f.abs(to))
	_, err := f.c.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(fmt.Sprintf("%s/%s", srcBucket, srcKey)),
	})
	if err != nil {
		return translateErr("copy", to, err)
	}
	return nil
}

func (f *FS) Symlink(ctx context.Context, target, linkPath string) error {
	return fsops.NewError(fsops.KindUnsupported, "symlink", linkPath, nil)
}

func (f *FS) Chmod(ctx context.Context, file fsops.File, mode fsops.Mode) error {
	return fsops.NewError(fsops.KindUnsupported, "chmod", file.Path, nil)
}

// Download implements fsops.BlockFS: a whole-object GetObject via the
// downloader's concurrent-part fetch, written directly into w.
func (f *FS) Download(ctx context.Context, p string, w io.Writer) error {
	bucket, key := splitPath(f.abs(p))
	wat, ok := w.(io.WriterAt)
	if !ok {
		wat = sequentialWriterAt{w}
	}
	_, err := f.down.DownloadWithContext(ctx, wat, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return translateErr("download", p, err)
	}
	return nil
}

// sequentialWriterAt adapts a plain io.Writer to io.WriterAt for
// callers that can't seek (the spill file RemoteBridged hands us
// already satisfies io.WriterAt directly via *os.File).
type sequentialWriterAt struct{ w io.Writer }

func (fw sequentialWriterAt) WriteAt(p []byte, offset int64) (int, error) { return fw.w.Write(p) }

// Upload implements fsops.BlockFS via the multipart uploader, which
// picks single-PutObject vs multipart automatically by size.
func (f *FS) Upload(ctx context.Context, p string, r io.Reader, meta fsops.File, size int64) error {
	bucket, key := splitPath(f.abs(p))
	_, err := f.up.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(bucket), Key: aws.String(key), Body: r,
	})
	if err != nil {
		return translateErr("upload", p, err)
	}
	return nil
}

func (f *FS) Exec(ctx context.Context, cmdline string) (fsops.ExecResult, error) {
	return fsops.ExecResult{}, fsops.NewError(fsops.KindUnsupported, "exec", cmdline, nil)
}

func translateErr(op, path string, err error) error {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchBucket, s3.ErrCodeNoSuchKey, "NotFound":
			return fsops.NewError(fsops.KindNotFound, op, path, err)
		case s3.ErrCodeBucketAlreadyExists, s3.ErrCodeBucketAlreadyOwnedByYou:
			return fsops.NewError(fsops.KindExists, op, path, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fsops.NewError(fsops.KindAuth, op, path, err)
		}
	}
	return fsops.NewError(fsops.KindIO, op, path, err)
}

func isNotFound(err error) bool {
	aerr, ok := err.(awserr.Error)
	return ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound")
}

func isAlreadyOwned(err error) bool {
	aerr, ok := err.(awserr.Error)
	return ok && aerr.Code() == s3.ErrCodeBucketAlreadyOwnedByYou
}
