// Package ftp provides the FTP/FTPS FsOps adapter using
// github.com/jlaffaye/ftp, adapted from the teacher's backend/ftp
// package (connection dial options, pacer retry of the dial in
// Connect).
package ftp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/jlaffaye/ftp"

	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/pacer"
	"github.com/duotui/duotui/internal/uri"
)

func init() {
	fsops.Register(&fsops.RegInfo{Name: fsops.KindFTP, Description: "FTP connection", NewFS: NewFS})
	fsops.Register(&fsops.RegInfo{Name: fsops.KindFTPS, Description: "FTPS connection", NewFS: NewFS})
}

// FS is the FTP/FTPS adapter. jlaffaye/ftp streams natively (Retr/Stor
// each return an io.ReadCloser/accept an io.Reader), so FS implements
// fsops.FS directly.
type FS struct {
	addr   string
	user   string
	pass   string
	tls    bool
	pwd    string

	mu     sync.Mutex
	conn   *ftp.ServerConn
	pacer  *pacer.Pacer
}

func NewFS(e *fsops.Endpoint) (fsops.FS, error) {
	creds, _ := e.Credentials.(uri.Credentials)
	port := e.Port
	if port == 0 {
		if e.Kind == fsops.KindFTPS {
			port = 990
		} else {
			port = 21
		}
	}
	return &FS{
		addr:  fmt.Sprintf("%s:%d", e.Host, port),
		user:  creds.User,
		pass:  creds.Password,
		tls:   e.Kind == fsops.KindFTPS,
		pwd:   e.Path,
		pacer: pacer.New(),
	}, nil
}

func (f *FS) Connect(ctx context.Context) (fsops.ConnectInfo, error) {
	err := f.pacer.Call(ctx, func() (bool, error) {
		opts := []ftp.DialOption{ftp.DialWithContext(ctx), ftp.DialWithTimeout(fsops.DefaultTimeout)}
		if f.tls {
			opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{InsecureSkipVerify: false}))
		}
		c, err := ftp.Dial(f.addr, opts...)
		if err != nil {
			return true, err
		}
		if err := c.Login(f.user, f.pass); err != nil {
			_ = c.Quit()
			return false, err // auth failure is not worth retrying
		}
		f.mu.Lock()
		f.conn = c
		f.mu.Unlock()
		return false, nil
	})
	if err != nil {
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindAuth, "connect", f.addr, err)
	}
	if f.pwd == "" {
		wd, err := f.conn.CurrentDir()
		if err != nil {
			wd = "/"
		}
		f.pwd = wd
	}
	return fsops.ConnectInfo{Hostname: f.addr, Pwd: f.pwd}, nil
}

func (f *FS) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.Quit()
	f.conn = nil
	if err != nil {
		return fsops.NewError(fsops.KindNetwork, "disconnect", f.addr, err)
	}
	return nil
}

func (f *FS) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return false
	}
	return f.conn.NoOp() == nil
}

func (f *FS) client() (*ftp.ServerConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil, fsops.NewError(fsops.KindNotConnected, "ftp", "", nil)
	}
	return f.conn, nil
}

func (f *FS) Pwd(ctx context.Context) (string, error) { return f.pwd, nil }

func (f *FS) abs(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Clean(path.Join(f.pwd, p))
}

func (f *FS) ChangeDir(ctx context.Context, dir string) (string, error) {
	c, err := f.client()
	if err != nil {
		return "", err
	}
	abs := f.abs(dir)
	if err := c.ChangeDir(abs); err != nil {
		return "", fsops.NewError(fsops.KindNotDir, "change_dir", abs, err)
	}
	f.pwd = abs
	return abs, nil
}

func (f *FS) ListDir(ctx context.Context, dir string) ([]fsops.File, error) {
	c, err := f.client()
	if err != nil {
		return nil, err
	}
	abs := f.abs(dir)
	entries, err := c.List(abs)
	if err != nil {
		return nil, fsops.NewError(fsops.KindNotFound, "list_dir", abs, err)
	}
	out := make([]fsops.File, 0, len(entries))
	for _, ent := range entries {
		if ent.Name == "." || ent.Name == ".." {
			continue
		}
		out = append(out, fileFromEntry(path.Join(abs, ent.Name), ent))
	}
	return out, nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsops.File, error) {
	abs := f.abs(p)
	dir, base := path.Split(abs)
	conn, err := f.client()
	if err != nil {
		return fsops.File{}, err
	}
	list, err := conn.List(dir)
	if err != nil {
		return fsops.File{}, fsops.NewError(fsops.KindNotFound, "stat", abs, err)
	}
	for _, ent := range list {
		if ent.Name == base {
			return fileFromEntry(abs, ent), nil
		}
	}
	return fsops.File{}, fsops.NewError(fsops.KindNotFound, "stat", abs, nil)
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
	c, err := f.client()
	if err != nil {
		return err
	}
	if err := c.MakeDir(f.abs(p)); err != nil {
		return fsops.NewError(fsops.KindExists, "mkdir", f.abs(p), err)
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, file fsops.File) error {
	c, err := f.client()
	if err != nil {
		return err
	}
	var rmErr error
	if file.Kind == fsops.KindDirectory {
		rmErr = c.RemoveDir(file.Path)
	} else {
		rmErr = c.Delete(file.Path)
	}
	if rmErr != nil {
		return fsops.NewError(fsops.KindIO, "remove", file.Path, rmErr)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	c, err := f.client()
	if err != nil {
		return err
	}
	abs := f.abs(p)
	if err := c.RemoveDirRecur(abs); err != nil {
		return fsops.NewError(fsops.KindIO, "remove_dir_all", abs, err)
	}
	return nil
}

func (f *FS) Rename(ctx context.Context, from, to string) error {
	c, err := f.client()
	if err != nil {
		return err
	}
	if err := c.Rename(f.abs(from), f.abs(to)); err != nil {
		return fsops.NewError(fsops.KindIO, "rename", f.abs(from), err)
	}
	return nil
}

func (f *FS) Copy(ctx context.Context, from, to string) error {
	// FTP has no server-side copy verb; download then upload.
	src, err := f.OpenRead(ctx, from)
	if err != nil {
		return err
	}
	defer src.Close()
	fi, err := f.Stat(ctx, from)
	if err != nil {
		return err
	}
	dst, err := f.OpenWrite(ctx, to, fi, fi.Size)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fsops.NewError(fsops.KindIO, "copy", to, err)
	}
	return f.FinalizeWrite(ctx, dst)
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
	c, err := f.client()
	if err != nil {
		return nil, err
	}
	abs := f.abs(p)
	size, _ := c.FileSize(abs)
	resp, err := c.Retr(abs)
	if err != nil {
		return nil, fsops.NewError(fsops.KindNotFound, "open_read", abs, err)
	}
	return &readHandle{ReadCloser: resp, size: size}, nil
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
	c, err := f.client()
	if err != nil {
		return nil, err
	}
	abs := f.abs(p)
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- c.Stor(abs, pr)
		_ = pr.Close()
	}()
	return &writeHandle{PipeWriter: pw, done: done}, nil
}

func (f *FS) FinalizeWrite(ctx context.Context, w fsops.WriteHandle) error {
	if err := w.Close(); err != nil {
		return fsops.NewError(fsops.KindIO, "finalize_write", "", err)
	}
	return nil
}

func (f *FS) Exec(ctx context.Context, cmdline string) (fsops.ExecResult, error) {
	return fsops.ExecResult{}, fsops.NewError(fsops.KindUnsupported, "exec", cmdline, nil)
}

func fileFromEntry(abs string, ent *ftp.Entry) fsops.File {
	kind := fsops.KindRegular
	switch ent.Type {
	case ftp.EntryTypeFolder:
		kind = fsops.KindDirectory
	case ftp.EntryTypeLink:
		kind = fsops.KindSymlink
	}
	file := fsops.NewFile(abs, kind, int64(ent.Size))
	file.ModTime = ent.Time
	file.HasTime = true
	return file
}
