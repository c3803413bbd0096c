package fsops

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"
)

// BlockFS is the minimum surface a remote protocol client must expose:
// block-granular (whole-file) download/upload, no partial streaming.
// RemoteBridged adapts any BlockFS into the full FS interface.
type BlockFS interface {
	Connect(ctx context.Context) (ConnectInfo, error)
	Disconnect(ctx context.Context) error
	IsConnected() bool

	Pwd(ctx context.Context) (string, error)
	ChangeDir(ctx context.Context, path string) (string, error)
	ListDir(ctx context.Context, path string) ([]File, error)
	Stat(ctx context.Context, path string) (File, error)
	Exists(ctx context.Context, path string) (bool, error)

	Mkdir(ctx context.Context, path string) error
	Remove(ctx context.Context, f File) error
	RemoveDirAll(ctx context.Context, path string) error
	Rename(ctx context.Context, from, to string) error // may return KindUnsupported
	Copy(ctx context.Context, from, to string) error
	Symlink(ctx context.Context, target, linkPath string) error
	Chmod(ctx context.Context, f File, mode Mode) error

	Download(ctx context.Context, path string, w io.Writer) error
	Upload(ctx context.Context, path string, r io.Reader, meta File, sizeHint int64) error

	Exec(ctx context.Context, cmdline string) (ExecResult, error)
}

// NativeStreamFS is implemented by a BlockFS that can also stream
// natively; when present, RemoteBridged becomes a passthrough for
// OpenRead/OpenWrite instead of spilling to a temp file.
type NativeStreamFS interface {
	OpenReadNative(ctx context.Context, path string) (ReadHandle, error)
	OpenWriteNative(ctx context.Context, path string, meta File, sizeHint int64) (WriteHandle, error)
}

// RemoteBridged wraps a BlockFS to satisfy the full FS interface,
// emulating streaming via spill files when the backend has none.
type RemoteBridged struct {
	Inner  BlockFS
	TmpDir string // defaults to os.TempDir() when empty
}

func (b *RemoteBridged) tmpDir() string {
	if b.TmpDir != "" {
		return b.TmpDir
	}
	return os.TempDir()
}

func (b *RemoteBridged) Connect(ctx context.Context) (ConnectInfo, error) { return b.Inner.Connect(ctx) }
func (b *RemoteBridged) Disconnect(ctx context.Context) error            { return b.Inner.Disconnect(ctx) }
func (b *RemoteBridged) IsConnected() bool                               { return b.Inner.IsConnected() }
func (b *RemoteBridged) Pwd(ctx context.Context) (string, error)         { return b.Inner.Pwd(ctx) }
func (b *RemoteBridged) ChangeDir(ctx context.Context, path string) (string, error) {
	return b.Inner.ChangeDir(ctx, path)
}
func (b *RemoteBridged) ListDir(ctx context.Context, path string) ([]File, error) {
	return b.Inner.ListDir(ctx, path)
}
func (b *RemoteBridged) Stat(ctx context.Context, path string) (File, error) {
	return b.Inner.Stat(ctx, path)
}
func (b *RemoteBridged) Exists(ctx context.Context, path string) (bool, error) {
	return b.Inner.Exists(ctx, path)
}
func (b *RemoteBridged) Mkdir(ctx context.Context, path string) error { return b.Inner.Mkdir(ctx, path) }
func (b *RemoteBridged) Remove(ctx context.Context, f File) error     { return b.Inner.Remove(ctx, f) }
func (b *RemoteBridged) RemoveDirAll(ctx context.Context, path string) error {
	return b.Inner.RemoveDirAll(ctx, path)
}

// Rename falls back to copy+remove when the backend reports Unsupported,
// satisfying P7.
func (b *RemoteBridged) Rename(ctx context.Context, from, to string) error {
	err := b.Inner.Rename(ctx, from, to)
	if err == nil || !IsKind(err, KindUnsupported) {
		return err
	}
	if err := b.Inner.Copy(ctx, from, to); err != nil {
		return err
	}
	f, statErr := b.Inner.Stat(ctx, from)
	if statErr != nil {
		return statErr
	}
	return b.Inner.Remove(ctx, f)
}

func (b *RemoteBridged) Copy(ctx context.Context, from, to string) error {
	return b.Inner.Copy(ctx, from, to)
}
func (b *RemoteBridged) Symlink(ctx context.Context, target, linkPath string) error {
	return b.Inner.Symlink(ctx, target, linkPath)
}
func (b *RemoteBridged) Chmod(ctx context.Context, f File, mode Mode) error {
	return b.Inner.Chmod(ctx, f, mode)
}
func (b *RemoteBridged) Exec(ctx context.Context, cmdline string) (ExecResult, error) {
	return b.Inner.Exec(ctx, cmdline)
}

// spillFreeSpaceCheck bounds the spill by the temp dir's free space,
// per the design rationale in §4.1.
func (b *RemoteBridged) spillFreeSpaceCheck(sizeHint int64) error {
	if sizeHint <= 0 {
		return nil
	}
	usage, err := disk.Usage(b.tmpDir())
	if err != nil {
		return nil // best-effort: don't fail the transfer over a diagnostic
	}
	if usage.Free < uint64(sizeHint) {
		return NewError(KindNoSpace, "spill", b.tmpDir(), fmt.Errorf("need %d bytes, have %d free", sizeHint, usage.Free))
	}
	return nil
}

func (b *RemoteBridged) spillPath() string {
	return filepath.Join(b.tmpDir(), "duotui-spill-"+uuid.NewString())
}

// spillReadHandle deletes the backing spill file on Close.
type spillReadHandle struct {
	*os.File
	size int64
	path string
}

func (h *spillReadHandle) Size() int64 { return h.size }
func (h *spillReadHandle) Close() error {
	err := h.File.Close()
	_ = os.Remove(h.path)
	return err
}

func (b *RemoteBridged) OpenRead(ctx context.Context, path string) (ReadHandle, error) {
	if ns, ok := b.Inner.(NativeStreamFS); ok {
		return ns.OpenReadNative(ctx, path)
	}
	info, err := b.Inner.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := b.spillFreeSpaceCheck(info.Size); err != nil {
		return nil, err
	}
	spill := b.spillPath()
	f, err := os.OpenFile(spill, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, NewError(KindIO, "open_read:spill", path, err)
	}
	if err := b.Inner.Download(ctx, path, f); err != nil {
		_ = f.Close()
		_ = os.Remove(spill)
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		_ = os.Remove(spill)
		return nil, NewError(KindIO, "open_read:seek", path, err)
	}
	return &spillReadHandle{File: f, size: info.Size, path: spill}, nil
}

// spillWriteHandle spools to a local temp file; FinalizeWrite uploads it.
type spillWriteHandle struct {
	*os.File
	path     string
	destPath string
	meta     File
	sizeHint int64
}

func (b *RemoteBridged) OpenWrite(ctx context.Context, path string, meta File, sizeHint int64) (WriteHandle, error) {
	if ns, ok := b.Inner.(NativeStreamFS); ok {
		return ns.OpenWriteNative(ctx, path, meta, sizeHint)
	}
	if err := b.spillFreeSpaceCheck(sizeHint); err != nil {
		return nil, err
	}
	spill := b.spillPath()
	f, err := os.OpenFile(spill, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, NewError(KindIO, "open_write:spill", path, err)
	}
	return &spillWriteHandle{File: f, path: spill, destPath: path, meta: meta, sizeHint: sizeHint}, nil
}

func (b *RemoteBridged) FinalizeWrite(ctx context.Context, w WriteHandle) error {
	sw, ok := w.(*spillWriteHandle)
	if !ok {
		// native passthrough handle: nothing more to do beyond closing.
		return w.Close()
	}
	defer os.Remove(sw.path)
	if err := sw.File.Sync(); err != nil {
		return NewError(KindIO, "finalize_write:sync", sw.destPath, err)
	}
	if _, err := sw.File.Seek(0, io.SeekStart); err != nil {
		return NewError(KindIO, "finalize_write:seek", sw.destPath, err)
	}
	uploadErr := b.Inner.Upload(ctx, sw.destPath, sw.File, sw.meta, sw.sizeHint)
	closeErr := sw.File.Close()
	if uploadErr != nil {
		return uploadErr
	}
	if closeErr != nil {
		return NewError(KindIO, "finalize_write:close", sw.destPath, closeErr)
	}
	return nil
}
