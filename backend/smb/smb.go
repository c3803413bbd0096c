// Package smb provides the SMB/CIFS FsOps adapter using
// github.com/cloudsoda/go-smb2, adapted from the teacher's backend/smb
// package (NTLM dialer setup, share mount, path split). Paths are
// "share/path": the first segment names the SMB share.
package smb

import (
	"context"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	smb2 "github.com/cloudsoda/go-smb2"

	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/uri"
)

func init() {
	fsops.Register(&fsops.RegInfo{Name: fsops.KindSMB, Description: "SMB / CIFS share", NewFS: NewFS})
}

// FS is the SMB adapter. go-smb2's Share.OpenFile returns an
// *smb2.File implementing io.ReaderAt/io.WriterAt, real streaming, so
// FS implements fsops.FS directly rather than going through BlockFS.
type FS struct {
	addr   string
	user   string
	pass   string
	domain string
	share  string
	pwd    string

	tconn   net.Conn
	session *smb2.Session
	fsShare *smb2.Share
}

func NewFS(e *fsops.Endpoint) (fsops.FS, error) {
	creds, _ := e.Credentials.(uri.Credentials)
	port := e.Port
	if port == 0 {
		port = 445
	}
	share, p := splitPath(strings.TrimPrefix(e.Path, "/"))
	return &FS{
		addr:  net.JoinHostPort(e.Host, strconv.Itoa(port)),
		user:  creds.User,
		pass:  creds.Password,
		share: share,
		pwd:   "/" + p,
	}, nil
}

func splitPath(p string) (share, rest string) {
	p = strings.TrimPrefix(p, "/")
	i := strings.IndexByte(p, '/')
	if i < 0 {
		return p, ""
	}
	return p[:i], p[i+1:]
}

func (f *FS) Connect(ctx context.Context) (fsops.ConnectInfo, error) {
	d := net.Dialer{Timeout: fsops.DefaultTimeout}
	tconn, err := d.DialContext(ctx, "tcp", f.addr)
	if err != nil {
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindNetwork, "connect", f.addr, err)
	}
	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{User: f.user, Password: f.pass, Domain: f.domain},
	}
	session, err := dialer.DialConn(ctx, tconn, f.addr)
	if err != nil {
		_ = tconn.Close()
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindAuth, "connect", f.addr, err)
	}
	share, err := session.Mount(f.share)
	if err != nil {
		_ = session.Logoff()
		_ = tconn.Close()
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindNotFound, "mount_share", f.share, err)
	}
	f.tconn = tconn
	f.session = session
	f.fsShare = share
	return fsops.ConnectInfo{Hostname: f.addr, Pwd: f.pwd}, nil
}

func (f *FS) Disconnect(ctx context.Context) error {
	if f.fsShare != nil {
		_ = f.fsShare.Umount()
	}
	var err error
	if f.session != nil {
		err = f.session.Logoff()
	}
	if f.tconn != nil {
		_ = f.tconn.Close()
	}
	if err != nil {
		return fsops.NewError(fsops.KindNetwork, "disconnect", f.addr, err)
	}
	return nil
}

func (f *FS) IsConnected() bool {
	return f.session != nil && f.session.Echo() == nil
}

func (f *FS) Pwd(ctx context.Context) (string, error) { return f.pwd, nil }

func (f *FS) abs(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return strings.TrimRight(f.pwd, "/") + "/" + p
}

func (f *FS) toShare(p string) string {
	return strings.ReplaceAll(strings.TrimPrefix(f.abs(p), "/"), "/", `\`)
}

func (f *FS) ChangeDir(ctx context.Context, dir string) (string, error) {
	abs := f.abs(dir)
	stat, err := f.fsShare.Stat(f.toShare(abs))
	if err != nil || !stat.IsDir() {
		return "", fsops.NewError(fsops.KindNotDir, "change_dir", abs, err)
	}
	f.pwd = abs
	return abs, nil
}

func (f *FS) ListDir(ctx context.Context, dir string) ([]fsops.File, error) {
	abs := f.abs(dir)
	entries, err := f.fsShare.ReadDir(f.toShare(abs))
	if err != nil {
		return nil, translateErr("list_dir", abs, err)
	}
	out := make([]fsops.File, 0, len(entries))
	for _, ent := range entries {
		if ent.Name() == "." || ent.Name() == ".." {
			continue
		}
		out = append(out, fileFromInfo(strings.TrimRight(abs, "/")+"/"+ent.Name(), ent))
	}
	return out, nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsops.File, error) {
	abs := f.abs(p)
	info, err := f.fsShare.Stat(f.toShare(abs))
	if err != nil {
		return fsops.File{}, translateErr("stat", abs, err)
	}
	return fileFromInfo(abs, info), nil
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
	if err := f.fsShare.Mkdir(f.toShare(abs), 0o755); err != nil {
		return translateErr("mkdir", abs, err)
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, file fsops.File) error {
	if err := f.fsShare.Remove(f.toShare(file.Path)); err != nil {
		return translateErr("remove", file.Path, err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	abs := f.abs(p)
	if err := f.fsShare.RemoveAll(f.toShare(abs)); err != nil {
		return translateErr("remove_dir_all", abs, err)
	}
	return nil
}

func (f *FS) Rename(ctx context.Context, from, to string) error {
	if err := f.fsShare.Rename(f.toShare(f.abs(from)), f.toShare(f.abs(to))); err != nil {
		return translateErr("rename", from, err)
	}
	return nil
}

func (f *FS) Copy(ctx context.Context, from, to string) error {
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
	*smb2.File
	size int64
}

func (h *readHandle) Size() int64 { return h.size }

func (f *FS) OpenRead(ctx context.Context, p string) (fsops.ReadHandle, error) {
	abs := f.abs(p)
	fh, err := f.fsShare.OpenFile(f.toShare(abs), os.O_RDONLY, 0)
	if err != nil {
		return nil, translateErr("open_read", abs, err)
	}
	info, _ := fh.Stat()
	var size int64
	if info != nil {
		size = info.Size()
	}
	return &readHandle{File: fh, size: size}, nil
}

func (f *FS) OpenWrite(ctx context.Context, p string, meta fsops.File, sizeHint int64) (fsops.WriteHandle, error) {
	abs := f.abs(p)
	fh, err := f.fsShare.OpenFile(f.toShare(abs), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, translateErr("open_write", abs, err)
	}
	return fh, nil
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

func fileFromInfo(abs string, info fs.FileInfo) fsops.File {
	kind := fsops.KindRegular
	if info.IsDir() {
		kind = fsops.KindDirectory
	}
	file := fsops.NewFile(abs, kind, info.Size())
	file.HasTime = true
	file.ModTime = info.ModTime()
	return file
}

func translateErr(op, path string, err error) error {
	if os.IsNotExist(err) {
		return fsops.NewError(fsops.KindNotFound, op, path, err)
	}
	if os.IsExist(err) {
		return fsops.NewError(fsops.KindExists, op, path, err)
	}
	if os.IsPermission(err) {
		return fsops.NewError(fsops.KindPermission, op, path, err)
	}
	return fsops.NewError(fsops.KindIO, op, path, err)
}
