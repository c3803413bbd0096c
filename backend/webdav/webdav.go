// Package webdav provides the WebDAV FsOps adapter over PROPFIND/
// MKCOL/GET/PUT/DELETE/MOVE/COPY, adapted from the teacher's
// backend/webdav package. It talks HTTP directly through
// internal/rest rather than a WebDAV-specific library: the teacher
// itself hand-rolls the protocol on net/http for the same reason
// (no single WebDAV client library covers every server's quirks).
package webdav

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/duotui/duotui/backend/webdav/api"
	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/rest"
	"github.com/duotui/duotui/internal/uri"
)

func init() {
	fsops.Register(&fsops.RegInfo{Name: fsops.KindWebDAV, Description: "WebDAV server", NewFS: NewFS})
}

// FS is the WebDAV adapter. PROPFIND/GET/PUT stream over plain HTTP,
// so FS implements fsops.FS directly.
type FS struct {
	endpoint string
	user     string
	pass     string
	pwd      string

	srv *rest.Client
}

func NewFS(e *fsops.Endpoint) (fsops.FS, error) {
	creds, _ := e.Credentials.(uri.Credentials)
	scheme := "https"
	if e.Port == 80 {
		scheme = "http"
	}
	root := fmt.Sprintf("%s://%s:%d/", scheme, e.Host, e.Port)
	return &FS{
		endpoint: root,
		user:     creds.User,
		pass:     creds.Password,
		pwd:      "/" + strings.TrimPrefix(e.Path, "/"),
		srv:      rest.NewClient(http.DefaultClient).SetRoot(root).SetUserPass(creds.User, creds.Password),
	}, nil
}

func (f *FS) Connect(ctx context.Context) (fsops.ConnectInfo, error) {
	if _, err := f.propfind(ctx, f.pwd, "0"); err != nil {
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindAuth, "connect", f.endpoint, err)
	}
	return fsops.ConnectInfo{Hostname: f.endpoint, Pwd: f.pwd}, nil
}

func (f *FS) Disconnect(ctx context.Context) error { return nil }
func (f *FS) IsConnected() bool                    { return f.srv != nil }
func (f *FS) Pwd(ctx context.Context) (string, error) { return f.pwd, nil }

func (f *FS) abs(p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Clean(strings.TrimRight(f.pwd, "/") + "/" + p)
}

func (f *FS) ChangeDir(ctx context.Context, dir string) (string, error) {
	abs := f.abs(dir)
	ms, err := f.propfind(ctx, abs, "0")
	if err != nil || len(ms.Responses) == 0 || !ms.Responses[0].IsDir() {
		return "", fsops.NewError(fsops.KindNotDir, "change_dir", abs, err)
	}
	f.pwd = abs
	return abs, nil
}

const propfindBody = `<?xml version="1.0"?>
<d:propfind xmlns:d="DAV:">
  <d:prop>
    <d:resourcetype/>
    <d:getcontentlength/>
    <d:getlastmodified/>
    <d:getetag/>
  </d:prop>
</d:propfind>`

func (f *FS) propfind(ctx context.Context, p, depth string) (*api.Multistatus, error) {
	var ms api.Multistatus
	err := f.srv.CallXML(ctx, &rest.Opts{
		Method: "PROPFIND",
		Path:   rest.URLPathEscape(p),
		Body:   strings.NewReader(propfindBody),
		ExtraHeaders: map[string]string{
			"Depth":        depth,
			"Content-Type": "application/xml",
		},
	}, &ms)
	if err != nil {
		return nil, err
	}
	return &ms, nil
}

func (f *FS) ListDir(ctx context.Context, dir string) ([]fsops.File, error) {
	abs := f.abs(dir)
	ms, err := f.propfind(ctx, abs, "1")
	if err != nil {
		return nil, translateErr("list_dir", abs, err)
	}
	out := make([]fsops.File, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		if !r.StatusOK() {
			continue
		}
		href, _ := rest.URLJoin("/", r.Href)
		clean := path.Clean(href)
		if clean == abs {
			continue
		}
		out = append(out, fileFromResponse(clean, r))
	}
	return out, nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsops.File, error) {
	abs := f.abs(p)
	ms, err := f.propfind(ctx, abs, "0")
	if err != nil {
		return fsops.File{}, translateErr("stat", abs, err)
	}
	if len(ms.Responses) == 0 {
		return fsops.File{}, fsops.NewError(fsops.KindNotFound, "stat", abs, nil)
	}
	return fileFromResponse(abs, ms.Responses[0]), nil
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

func (f *FS) Mkdir(ctx context.Context, p string) error {
	abs := f.abs(p)
	_, err := f.srv.Call(ctx, &rest.Opts{Method: "MKCOL", Path: rest.URLPathEscape(abs)})
	if err != nil {
		return translateErr("mkdir", abs, err)
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, file fsops.File) error {
	_, err := f.srv.Call(ctx, &rest.Opts{Method: "DELETE", Path: rest.URLPathEscape(file.Path)})
	if err != nil {
		return translateErr("remove", file.Path, err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	abs := f.abs(p)
	_, err := f.srv.Call(ctx, &rest.Opts{Method: "DELETE", Path: rest.URLPathEscape(abs)})
	if err != nil {
		return translateErr("remove_dir_all", abs, err)
	}
	return nil
}

func (f *FS) destHeader(to string) map[string]string {
	dest, _ := rest.URLJoin(f.endpoint, rest.URLPathEscape(f.abs(to)))
	return map[string]string{"Destination": dest, "Overwrite": "T"}
}

func (f *FS) Rename(ctx context.Context, from, to string) error {
	abs := f.abs(from)
	_, err := f.srv.Call(ctx, &rest.Opts{Method: "MOVE", Path: rest.URLPathEscape(abs), ExtraHeaders: f.destHeader(to)})
	if err != nil {
		return translateErr("rename", abs, err)
	}
	return nil
}

func (f *FS) Copy(ctx context.Context, from, to string) error {
	abs := f.abs(from)
	_, err := f.srv.Call(ctx, &rest.Opts{Method: "COPY", Path: rest.URLPathEscape(abs), ExtraHeaders: f.destHeader(to)})
	if err != nil {
		return translateErr("copy", abs, err)
	}
	return nil
}

func (f *FS) Symlink(ctx context.Context, target, linkPath string) error {
	return fsops.NewError(fsops.KindUnsupported, "symlink", linkPath, nil)
}

func (f *FS) Chmod(ctx context.Context, file fsops.File, mode fsops.Mode) error {
	return fsops.NewError(fsops.KindUnsupported, "chmod", file.Path, nil)
}

type readHandle struct {
	io.ReadCloser
	size int64
}

func (h *readHandle) Size() int64 { return h.size }

func (f *FS) OpenRead(ctx context.Context, p string) (fsops.ReadHandle, error) {
	abs := f.abs(p)
	resp, err := f.srv.Call(ctx, &rest.Opts{Method: "GET", Path: rest.URLPathEscape(abs)})
	if err != nil {
		return nil, translateErr("open_read", abs, err)
	}
	return &readHandle{ReadCloser: resp.Body, size: resp.ContentLength}, nil
}

type writeHandle struct {
	*io.PipeWriter
	done chan error
}

func (w *writeHandle) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return err
	}
	return <-w.done
}

func (f *FS) OpenWrite(ctx context.Context, p string, meta fsops.File, sizeHint int64) (fsops.WriteHandle, error) {
	abs := f.abs(p)
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	headers := map[string]string{}
	if sizeHint > 0 {
		headers["Content-Length"] = strconv.FormatInt(sizeHint, 10)
	}
	go func() {
		_, err := f.srv.Call(ctx, &rest.Opts{Method: "PUT", Path: rest.URLPathEscape(abs), Body: pr, ExtraHeaders: headers})
		done <- err
		_ = pr.Close()
	}()
	return &writeHandle{PipeWriter: pw, done: done}, nil
}

func (f *FS) FinalizeWrite(ctx context.Context, w fsops.WriteHandle) error {
	if err := w.Close(); err != nil {
		return translateErr("finalize_write", "", err)
	}
	return nil
}

func (f *FS) Exec(ctx context.Context, cmdline string) (fsops.ExecResult, error) {
	return fsops.ExecResult{}, fsops.NewError(fsops.KindUnsupported, "exec", cmdline, nil)
}

func fileFromResponse(abs string, r api.Response) fsops.File {
	kind := fsops.KindRegular
	if r.IsDir() {
		kind = fsops.KindDirectory
	}
	file := fsops.NewFile(abs, kind, r.Props.Size)
	file.HasTime = true
	file.ModTime = r.ModTime()
	if r.Props.ETag != "" {
		file.Metadata = map[string]string{"etag": r.Props.ETag}
	}
	return file
}

func translateErr(op, path string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "404"):
		return fsops.NewError(fsops.KindNotFound, op, path, err)
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return fsops.NewError(fsops.KindAuth, op, path, err)
	case strings.Contains(msg, "409"):
		return fsops.NewError(fsops.KindExists, op, path, err)
	default:
		return fsops.NewError(fsops.KindIO, op, path, err)
	}
}
