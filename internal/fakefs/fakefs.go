// Package fakefs provides in-memory fsops.FS fakes for package tests,
// mirroring the role of the teacher's fstest fixtures but implemented
// directly against this repo's FS interface rather than rclone's.
//
// Two variants are provided: FS (native streaming, like Localhost) and
// BlockFS (whole-object only, forcing fsops.RemoteBridged's spill path)
// so tests can exercise both code paths named in spec.md §8.
package fakefs

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/duotui/duotui/fsops"
)

type node struct {
	file fsops.File
	data []byte
}

// FS is a native-streaming in-memory fsops.FS.
type FS struct {
	mu        sync.Mutex
	nodes     map[string]*node
	connected bool
	Hostname  string
}

// New builds an empty, disconnected fake FS rooted at "/".
func New() *FS {
	return &FS{
		nodes:    map[string]*node{"/": {file: fsops.File{Path: "/", Name: "/", Kind: fsops.KindDirectory}}},
		Hostname: "fake",
	}
}

func (f *FS) Connect(ctx context.Context) (fsops.ConnectInfo, error) {
	f.connected = true
	return fsops.ConnectInfo{Hostname: f.Hostname, Pwd: "/"}, nil
}
func (f *FS) Disconnect(ctx context.Context) error { f.connected = false; return nil }
func (f *FS) IsConnected() bool                    { return f.connected }

func (f *FS) Pwd(ctx context.Context) (string, error) { return "/", nil }

func (f *FS) ChangeDir(ctx context.Context, p string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[clean(p)]
	if !ok || n.file.Kind != fsops.KindDirectory {
		return "", fsops.NewError(fsops.KindNotFound, "change_dir", p, nil)
	}
	return clean(p), nil
}

func (f *FS) ListDir(ctx context.Context, p string) ([]fsops.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dir := clean(p)
	var out []fsops.File
	for key, n := range f.nodes {
		if key == "/" || key == dir {
			continue
		}
		if path.Dir(key) == dir {
			out = append(out, n.file)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsops.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[clean(p)]
	if !ok {
		return fsops.File{}, fsops.NewError(fsops.KindNotFound, "stat", p, nil)
	}
	return n.file, nil
}

func (f *FS) Exists(ctx context.Context, p string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[clean(p)]
	return ok, nil
}

func (f *FS) Mkdir(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := clean(p)
	if _, ok := f.nodes[key]; ok {
		return fsops.NewError(fsops.KindExists, "mkdir", p, nil)
	}
	f.nodes[key] = &node{file: fsops.NewFile(key, fsops.KindDirectory, 0)}
	return nil
}

func (f *FS) Remove(ctx context.Context, file fsops.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.nodes, clean(file.Path))
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := clean(p)
	for key := range f.nodes {
		if key == prefix || strings.HasPrefix(key, prefix+"/") {
			delete(f.nodes, key)
		}
	}
	return nil
}

func (f *FS) Rename(ctx context.Context, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fromKey, toKey := clean(from), clean(to)
	n, ok := f.nodes[fromKey]
	if !ok {
		return fsops.NewError(fsops.KindNotFound, "rename", from, nil)
	}
	delete(f.nodes, fromKey)
	n.file.Path = toKey
	n.file.Name = path.Base(toKey)
	f.nodes[toKey] = n
	return nil
}

func (f *FS) Copy(ctx context.Context, from, to string) error {
	f.mu.Lock()
	n, ok := f.nodes[clean(from)]
	f.mu.Unlock()
	if !ok {
		return fsops.NewError(fsops.KindNotFound, "copy", from, nil)
	}
	cp := *n
	cp.file.Path = clean(to)
	cp.file.Name = path.Base(clean(to))
	f.mu.Lock()
	f.nodes[clean(to)] = &cp
	f.mu.Unlock()
	return nil
}

func (f *FS) Symlink(ctx context.Context, target, linkPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := clean(linkPath)
	file := fsops.NewFile(key, fsops.KindSymlink, 0)
	file.SymlinkTarget = target
	f.nodes[key] = &node{file: file}
	return nil
}

func (f *FS) Chmod(ctx context.Context, file fsops.File, mode fsops.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[clean(file.Path)]; ok {
		n.file.Mode = mode
	}
	return nil
}

type readHandle struct {
	*bytes.Reader
	size int64
}

func (r *readHandle) Size() int64  { return r.size }
func (r *readHandle) Close() error { return nil }

func (f *FS) OpenRead(ctx context.Context, p string) (fsops.ReadHandle, error) {
	f.mu.Lock()
	n, ok := f.nodes[clean(p)]
	f.mu.Unlock()
	if !ok {
		return nil, fsops.NewError(fsops.KindNotFound, "open_read", p, nil)
	}
	return &readHandle{Reader: bytes.NewReader(n.data), size: int64(len(n.data))}, nil
}

type writeHandle struct {
	buf  bytes.Buffer
	fs   *FS
	path string
	meta fsops.File
}

func (w *writeHandle) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *writeHandle) Close() error                { return nil }

func (f *FS) OpenWrite(ctx context.Context, p string, meta fsops.File, sizeHint int64) (fsops.WriteHandle, error) {
	return &writeHandle{fs: f, path: clean(p), meta: meta}, nil
}

func (f *FS) FinalizeWrite(ctx context.Context, w fsops.WriteHandle) error {
	wh, ok := w.(*writeHandle)
	if !ok {
		return nil
	}
	data := wh.buf.Bytes()
	wh.fs.mu.Lock()
	defer wh.fs.mu.Unlock()
	file := fsops.NewFile(wh.path, fsops.KindRegular, int64(len(data)))
	wh.fs.nodes[wh.path] = &node{file: file, data: append([]byte(nil), data...)}
	return nil
}

func (f *FS) Exec(ctx context.Context, cmdline string) (fsops.ExecResult, error) {
	return fsops.ExecResult{}, fsops.NewError(fsops.KindUnsupported, "exec", cmdline, nil)
}

// PutFile seeds the fake with a ready-made file (test setup helper).
func (f *FS) PutFile(p string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := clean(p)
	f.nodes[key] = &node{file: fsops.NewFile(key, fsops.KindRegular, int64(len(data))), data: data}
}

// PutDir seeds the fake with an empty directory.
func (f *FS) PutDir(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := clean(p)
	f.nodes[key] = &node{file: fsops.NewFile(key, fsops.KindDirectory, 0)}
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	c := path.Clean(p)
	if !strings.HasPrefix(c, "/") {
		c = "/" + c
	}
	return c
}

var _ io.Writer = (*writeHandle)(nil)

// BlockFS is a whole-object-only fake implementing fsops.BlockFS, used to
// exercise fsops.RemoteBridged's spill-file emulation path (spec.md §8:
// "one fake native-streaming, one block-only").
type BlockFS struct {
	*FS
}

// NewBlock builds an empty BlockFS fake.
func NewBlock() *BlockFS { return &BlockFS{FS: New()} }

func (b *BlockFS) Download(ctx context.Context, p string, w io.Writer) error {
	b.mu.Lock()
	n, ok := b.nodes[clean(p)]
	b.mu.Unlock()
	if !ok {
		return fsops.NewError(fsops.KindNotFound, "download", p, nil)
	}
	_, err := w.Write(n.data)
	return err
}

func (b *BlockFS) Upload(ctx context.Context, p string, r io.Reader, meta fsops.File, sizeHint int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.PutFile(p, data)
	return nil
}
