// Package sftp provides the SFTP FsOps adapter using
// github.com/pkg/sftp over golang.org/x/crypto/ssh, adapted from the
// teacher's backend/sftp package (connection dial pattern, pacer retry
// of the dial in Connect, ssh-agent auth fallback).
package sftp

import (
	"context"
	"io"
	"os"
	"path"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	sshagent "github.com/xanzy/ssh-agent"
	"golang.org/x/crypto/ssh"

	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/pacer"
	"github.com/duotui/duotui/internal/uri"
)

func init() {
	fsops.Register(&fsops.RegInfo{
		Name:        fsops.KindSFTP,
		Description: "SSH/SFTP connection",
		NewFS:       NewFS,
	})
}

// FS is the SFTP adapter: pkg/sftp gives native streaming, so FS
// implements fsops.FS directly rather than going through RemoteBridged.
type FS struct {
	endpoint *fsops.Endpoint
	sshConf  *ssh.ClientConfig
	addr     string

	mu         sync.Mutex
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	pwd        string
	pacer      *pacer.Pacer
}

// NewFS builds a disconnected SFTP adapter from e (Host/Port/User and
// uri.Credentials populated by internal/uri.Parse).
func NewFS(e *fsops.Endpoint) (fsops.FS, error) {
	creds, _ := e.Credentials.(uri.Credentials)
	conf, err := buildSSHConfig(creds)
	if err != nil {
		return nil, fsops.NewError(fsops.KindBadConfig, "new_fs", e.Host, err)
	}
	port := e.Port
	if port == 0 {
		port = 22
	}
	return &FS{
		endpoint: e,
		sshConf:  conf,
		addr:     e.Host + ":" + strconv.Itoa(port),
		pwd:      e.Path,
		pacer:    pacer.New(),
	}, nil
}

func buildSSHConfig(creds uri.Credentials) (*ssh.ClientConfig, error) {
	var auths []ssh.AuthMethod
	if creds.Password != "" {
		auths = append(auths, ssh.Password(creds.Password))
	}
	if agentClient, _, err := sshagent.New(); err == nil && agentClient != nil {
		auths = append(auths, ssh.PublicKeysCallback(agentClient.Signers))
	}
	if len(auths) == 0 {
		return nil, errors.New("sftp: no authentication method available")
	}
	return &ssh.ClientConfig{
		User:            creds.User,
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // host-key pinning is a bookmark-store concern, out of scope (spec.md §1)
		Timeout:         fsops.DefaultTimeout,
	}, nil
}

func (f *FS) Connect(ctx context.Context) (fsops.ConnectInfo, error) {
	err := f.pacer.Call(ctx, func() (bool, error) {
		client, err := ssh.Dial("tcp", f.addr, f.sshConf)
		if err != nil {
			return true, err
		}
		sc, err := sftp.NewClient(client)
		if err != nil {
			_ = client.Close()
			return true, err
		}
		f.mu.Lock()
		f.sshClient, f.sftpClient = client, sc
		f.mu.Unlock()
		return false, nil
	})
	if err != nil {
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindNetwork, "connect", f.addr, err)
	}
	if f.pwd == "" {
		wd, err := f.sftpClient.Getwd()
		if err != nil {
			wd = "/"
		}
		f.pwd = wd
	}
	return fsops.ConnectInfo{Hostname: f.endpoint.Host, Pwd: f.pwd}, nil
}

func (f *FS) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	if f.sftpClient != nil {
		if err := f.sftpClient.Close(); err != nil {
			errs = append(errs, err)
		}
		f.sftpClient = nil
	}
	if f.sshClient != nil {
		if err := f.sshClient.Close(); err != nil {
			errs = append(errs, err)
		}
		f.sshClient = nil
	}
	if len(errs) > 0 {
		return fsops.NewError(fsops.KindNetwork, "disconnect", f.addr, errs[0])
	}
	return nil
}

func (f *FS) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sftpClient != nil
}

func (f *FS) client() (*sftp.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sftpClient == nil {
		return nil, fsops.NewError(fsops.KindNotConnected, "sftp", "", nil)
	}
	return f.sftpClient, nil
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
	info, err := c.Stat(abs)
	if err != nil {
		return "", translateErr("change_dir", abs, err)
	}
	if !info.IsDir() {
		return "", fsops.NewError(fsops.KindNotDir, "change_dir", abs, nil)
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
	entries, err := c.ReadDir(abs)
	if err != nil {
		return nil, translateErr("list_dir", abs, err)
	}
	out := make([]fsops.File, 0, len(entries))
	for _, ent := range entries {
		out = append(out, fileFromInfo(path.Join(abs, ent.Name()), ent))
	}
	return out, nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsops.File, error) {
	c, err := f.client()
	if err != nil {
		return fsops.File{}, err
	}
	abs := f.abs(p)
	info, err := c.Lstat(abs)
	if err != nil {
		return fsops.File{}, translateErr("stat", abs, err)
	}
	return fileFromInfo(abs, info), nil
}

func (f *FS) Exists(ctx context.Context, p string) (bool, error) {
	c, err := f.client()
	if err != nil {
		return false, err
	}
	_, err = c.Lstat(f.abs(p))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, translateErr("exists", f.abs(p), err)
}

func (f *FS) Mkdir(ctx context.Context, p string) error {
	c, err := f.client()
	if err != nil {
		return err
	}
	if err := c.Mkdir(f.abs(p)); err != nil {
		return translateErr("mkdir", f.abs(p), err)
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, file fsops.File) error {
	c, err := f.client()
	if err != nil {
		return err
	}
	if file.Kind == fsops.KindDirectory {
		if err := c.RemoveDirectory(file.Path); err != nil {
			return translateErr("remove", file.Path, err)
		}
		return nil
	}
	if err := c.Remove(file.Path); err != nil {
		return translateErr("remove", file.Path, err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	c, err := f.client()
	if err != nil {
		return err
	}
	abs := f.abs(p)
	entries, err := c.ReadDir(abs)
	if err != nil {
		return translateErr("remove_dir_all", abs, err)
	}
	for _, ent := range entries {
		child := path.Join(abs, ent.Name())
		if ent.IsDir() {
			if err := f.RemoveDirAll(ctx, child); err != nil {
				return err
			}
		} else if err := c.Remove(child); err != nil {
			return translateErr("remove_dir_all", child, err)
		}
	}
	if err := c.RemoveDirectory(abs); err != nil {
		return translateErr("remove_dir_all", abs, err)
	}
	return nil
}

func (f *FS) Rename(ctx context.Context, from, to string) error {
	c, err := f.client()
	if err != nil {
		return err
	}
	if err := c.PosixRename(f.abs(from), f.abs(to)); err != nil {
		return translateErr("rename", f.abs(from), err)
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
	c, err := f.client()
	if err != nil {
		return err
	}
	if err := c.Symlink(target, f.abs(linkPath)); err != nil {
		return translateErr("symlink", f.abs(linkPath), err)
	}
	return nil
}

func (f *FS) Chmod(ctx context.Context, file fsops.File, mode fsops.Mode) error {
	c, err := f.client()
	if err != nil {
		return err
	}
	if !mode.Valid {
		return fsops.NewError(fsops.KindUnsupported, "chmod", file.Path, nil)
	}
	if err := c.Chmod(file.Path, os.FileMode(mode.Perm)); err != nil {
		return translateErr("chmod", file.Path, err)
	}
	return nil
}

type readHandle struct {
	*sftp.File
	size int64
}

func (h *readHandle) Size() int64 { return h.size }

func (f *FS) OpenRead(ctx context.Context, p string) (fsops.ReadHandle, error) {
	c, err := f.client()
	if err != nil {
		return nil, err
	}
	abs := f.abs(p)
	fh, err := c.Open(abs)
	if err != nil {
		return nil, translateErr("open_read", abs, err)
	}
	size := int64(0)
	if info, err := fh.Stat(); err == nil {
		size = info.Size()
	}
	return &readHandle{File: fh, size: size}, nil
}

func (f *FS) OpenWrite(ctx context.Context, p string, meta fsops.File, sizeHint int64) (fsops.WriteHandle, error) {
	c, err := f.client()
	if err != nil {
		return nil, err
	}
	abs := f.abs(p)
	fh, err := c.Create(abs)
	if err != nil {
		return nil, translateErr("open_write", abs, err)
	}
	return fh, nil
}

func (f *FS) FinalizeWrite(ctx context.Context, w fsops.WriteHandle) error {
	return w.Close()
}

func (f *FS) Exec(ctx context.Context, cmdline string) (fsops.ExecResult, error) {
	f.mu.Lock()
	client := f.sshClient
	f.mu.Unlock()
	if client == nil {
		return fsops.ExecResult{}, fsops.NewError(fsops.KindNotConnected, "exec", cmdline, nil)
	}
	session, err := client.NewSession()
	if err != nil {
		return fsops.ExecResult{}, fsops.NewError(fsops.KindNetwork, "exec", cmdline, err)
	}
	defer session.Close()
	var stdout, stderr sink
	session.Stdout = &stdout
	session.Stderr = &stderr
	exitCode := 0
	if err := session.Run(cmdline); err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		} else {
			return fsops.ExecResult{}, fsops.NewError(fsops.KindIO, "exec", cmdline, err)
		}
	}
	return fsops.ExecResult{Stdout: stdout.b, Stderr: stderr.b, ExitCode: exitCode}, nil
}

// sink is a tiny io.Writer that accumulates bytes, used to capture a
// session's stdout/stderr.
type sink struct{ b []byte }

func (w *sink) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func fileFromInfo(abs string, info os.FileInfo) fsops.File {
	kind := fsops.KindRegular
	if info.Mode()&os.ModeSymlink != 0 {
		kind = fsops.KindSymlink
	} else if info.IsDir() {
		kind = fsops.KindDirectory
	}
	file := fsops.NewFile(abs, kind, info.Size())
	file.ModTime = info.ModTime()
	file.HasTime = true
	file.Mode = fsops.Mode{Valid: true, Perm: uint32(info.Mode().Perm())}
	if sftpStat, ok := info.Sys().(*sftp.FileStat); ok {
		file.UID, file.GID, file.HasOwner = sftpStat.UID, sftpStat.GID, true
	}
	return file
}

func translateErr(op, path string, err error) error {
	if os.IsNotExist(err) {
		return fsops.NewError(fsops.KindNotFound, op, path, err)
	}
	if os.IsPermission(err) {
		return fsops.NewError(fsops.KindPermission, op, path, err)
	}
	if statusErr, ok := err.(*sftp.StatusError); ok {
		switch statusErr.Code {
		case sftp.ErrSSHFxNoSuchFile:
			return fsops.NewError(fsops.KindNotFound, op, path, err)
		case sftp.ErrSSHFxPermissionDenied:
			return fsops.NewError(fsops.KindPermission, op, path, err)
		case sftp.ErrSSHFxOpUnsupported:
			return fsops.NewError(fsops.KindUnsupported, op, path, err)
		}
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return fsops.NewError(fsops.KindNetwork, op, path, err)
	}
	return fsops.NewError(fsops.KindIO, op, path, err)
}
