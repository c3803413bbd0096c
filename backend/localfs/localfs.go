// Package localfs provides the Localhost FsOps adapter: direct OS calls,
// native streaming, exec via the host shell.
package localfs

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/duotui/duotui/fsops"
)

func init() {
	fsops.Register(&fsops.RegInfo{
		Name:        fsops.KindLocal,
		Description: "The local filesystem",
		NewFS:       NewFS,
	})
}

// FS is the Localhost adapter: an fsops.FS over the OS filesystem.
type FS struct {
	root      string
	connected bool
}

// NewFS builds a disconnected Localhost adapter rooted at e.Path (or the
// process cwd if empty).
func NewFS(e *fsops.Endpoint) (fsops.FS, error) {
	root := e.Path
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fsops.NewError(fsops.KindIO, "new_fs", root, err)
		}
		root = wd
	}
	return &FS{root: root}, nil
}

// Connect is a no-op beyond verifying the root exists; Localhost has no
// session to establish.
func (f *FS) Connect(ctx context.Context) (fsops.ConnectInfo, error) {
	if _, err := os.Stat(f.root); err != nil {
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindNotFound, "connect", f.root, err)
	}
	f.connected = true
	hostname, _ := os.Hostname()
	return fsops.ConnectInfo{Hostname: hostname, Pwd: f.root}, nil
}

func (f *FS) Disconnect(ctx context.Context) error {
	f.connected = false
	return nil
}

func (f *FS) IsConnected() bool { return f.connected }

func (f *FS) Pwd(ctx context.Context) (string, error) {
	if !f.connected {
		return "", fsops.NewError(fsops.KindNotConnected, "pwd", "", nil)
	}
	return f.root, nil
}

func (f *FS) ChangeDir(ctx context.Context, path string) (string, error) {
	abs := f.abs(path)
	fi, err := os.Stat(abs)
	if err != nil {
		return "", translateOSErr("change_dir", abs, err)
	}
	if !fi.IsDir() {
		return "", fsops.NewError(fsops.KindNotDir, "change_dir", abs, nil)
	}
	f.root = abs
	return abs, nil
}

func (f *FS) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(f.root, p))
}

func (f *FS) ListDir(ctx context.Context, path string) ([]fsops.File, error) {
	abs := f.abs(path)
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, translateOSErr("list_dir", abs, err)
	}
	out := make([]fsops.File, 0, len(entries))
	for _, ent := range entries {
		info, err := ent.Info()
		if err != nil {
			continue // entry vanished mid-listing; skip rather than fail the whole list
		}
		out = append(out, fileFromInfo(filepath.Join(abs, ent.Name()), info))
	}
	return out, nil
}

func (f *FS) Stat(ctx context.Context, path string) (fsops.File, error) {
	abs := f.abs(path)
	info, err := os.Lstat(abs)
	if err != nil {
		return fsops.File{}, translateOSErr("stat", abs, err)
	}
	return fileFromInfo(abs, info), nil
}

func (f *FS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Lstat(f.abs(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, translateOSErr("exists", f.abs(path), err)
}

func (f *FS) Mkdir(ctx context.Context, path string) error {
	err := os.Mkdir(f.abs(path), 0o755)
	if err != nil {
		return translateOSErr("mkdir", f.abs(path), err)
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, file fsops.File) error {
	err := os.Remove(file.Path)
	if err != nil {
		return translateOSErr("remove", file.Path, err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, path string) error {
	err := os.RemoveAll(f.abs(path))
	if err != nil {
		return translateOSErr("remove_dir_all", f.abs(path), err)
	}
	return nil
}

func (f *FS) Rename(ctx context.Context, from, to string) error {
	err := os.Rename(f.abs(from), f.abs(to))
	if err != nil {
		return translateOSErr("rename", f.abs(from), err)
	}
	return nil
}

func (f *FS) Copy(ctx context.Context, from, to string) error {
	src, err := os.Open(f.abs(from))
	if err != nil {
		return translateOSErr("copy", f.abs(from), err)
	}
	defer src.Close()
	dst, err := os.OpenFile(f.abs(to), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return translateOSErr("copy", f.abs(to), err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fsops.NewError(fsops.KindIO, "copy", f.abs(to), err)
	}
	return nil
}

func (f *FS) Symlink(ctx context.Context, target, linkPath string) error {
	err := os.Symlink(target, f.abs(linkPath))
	if err != nil {
		return translateOSErr("symlink", f.abs(linkPath), err)
	}
	return nil
}

func (f *FS) Chmod(ctx context.Context, file fsops.File, mode fsops.Mode) error {
	if !mode.Valid {
		return fsops.NewError(fsops.KindUnsupported, "chmod", file.Path, nil)
	}
	err := os.Chmod(file.Path, os.FileMode(mode.Perm))
	if err != nil {
		return translateOSErr("chmod", file.Path, err)
	}
	return nil
}

type localReadHandle struct {
	*os.File
	size int64
}

func (h *localReadHandle) Size() int64 { return h.size }

func (f *FS) OpenRead(ctx context.Context, path string) (fsops.ReadHandle, error) {
	abs := f.abs(path)
	fh, err := os.Open(abs)
	if err != nil {
		return nil, translateOSErr("open_read", abs, err)
	}
	info, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, translateOSErr("open_read", abs, err)
	}
	return &localReadHandle{File: fh, size: info.Size()}, nil
}

func (f *FS) OpenWrite(ctx context.Context, path string, meta fsops.File, sizeHint int64) (fsops.WriteHandle, error) {
	abs := f.abs(path)
	fh, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, translateOSErr("open_write", abs, err)
	}
	return fh, nil
}

func (f *FS) FinalizeWrite(ctx context.Context, w fsops.WriteHandle) error {
	return w.Close()
}

func (f *FS) Exec(ctx context.Context, cmdline string) (fsops.ExecResult, error) {
	shell, flag := "/bin/sh", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd", "/C"
	}
	cmd := exec.CommandContext(ctx, shell, flag, cmdline)
	cmd.Dir = f.root
	var stdout, stderr []byte
	outPipe, _ := cmd.StdoutPipe()
	errPipe, _ := cmd.StderrPipe()
	if err := cmd.Start(); err != nil {
		return fsops.ExecResult{}, fsops.NewError(fsops.KindIO, "exec", cmdline, err)
	}
	stdout, _ = io.ReadAll(outPipe)
	stderr, _ = io.ReadAll(errPipe)
	err := cmd.Wait()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		return fsops.ExecResult{}, fsops.NewError(fsops.KindIO, "exec", cmdline, err)
	}
	return fsops.ExecResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}, nil
}

func fileFromInfo(abs string, info os.FileInfo) fsops.File {
	kind := fsops.KindRegular
	var target string
	if info.Mode()&os.ModeSymlink != 0 {
		kind = fsops.KindSymlink
		target, _ = os.Readlink(abs)
	} else if info.IsDir() {
		kind = fsops.KindDirectory
	}
	file := fsops.NewFile(abs, kind, info.Size())
	file.SymlinkTarget = target
	file.ModTime = info.ModTime()
	file.HasTime = true
	file.Mode = fsops.Mode{Valid: true, Perm: uint32(info.Mode().Perm())}
	if owner := ownerOf(info); owner != nil {
		file.UID, file.GID, file.HasOwner = owner.uid, owner.gid, true
	}
	return file
}

type ownerInfo struct{ uid, gid uint32 }

// ownerOf is platform-specific (populated via statOwner in *_unix.go); the
// portable fallback here reports no owner, which mirrors the teacher's
// behavior on backends that can't report uid/gid (e.g. S3, WebDAV).
var statOwner = func(os.FileInfo) *ownerInfo { return nil }

func ownerOf(info os.FileInfo) *ownerInfo { return statOwner(info) }

func translateOSErr(op, path string, err error) error {
	// ENOTEMPTY also satisfies os.IsExist, so it is checked first.
	if pe, ok := err.(*os.PathError); ok && pe.Err.Error() == "directory not empty" {
		return fsops.NewError(fsops.KindDirNotEmpty, op, path, err)
	}
	switch {
	case os.IsNotExist(err):
		return fsops.NewError(fsops.KindNotFound, op, path, err)
	case os.IsPermission(err):
		return fsops.NewError(fsops.KindPermission, op, path, err)
	case os.IsExist(err):
		return fsops.NewError(fsops.KindExists, op, path, err)
	default:
		return fsops.NewError(fsops.KindIO, op, path, err)
	}
}
