// Package action maps user intents onto pane-agnostic FsOps/Browser
// operations, per spec.md §4.6, extended with the Enqueue/Dequeue/
// Symlink intents SPEC_FULL.md adds.
package action

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"github.com/duotui/duotui/browser"
	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/transfer"
)

// Dispatcher routes Intents through a Browser.
type Dispatcher struct {
	Browser *browser.Browser

	// Opener/Editor are the external-viewer/editor boundary: spec.md
	// keeps terminal embedding out of scope, so Open/Edit only go as
	// far as handing a local path to this callback.
	Opener func(localPath string) error
	Editor func(localPath string) error
}

// Result is what Dispatch returns: either a transfer task to drive
// from the event loop, or nothing (synchronous intents complete
// within Dispatch itself).
type Result struct {
	Task *transfer.Task
}

// Delete removes every file in the selection: remove_dir_all for
// directories, remove otherwise.
func (d *Dispatcher) Delete(ctx context.Context, files []fsops.File) error {
	fs := d.Browser.ActivePane().Endpoint.FS
	for _, f := range files {
		var err error
		if f.Kind == fsops.KindDirectory {
			err = fs.RemoveDirAll(ctx, f.Path)
		} else {
			err = fs.Remove(ctx, f)
		}
		if err != nil {
			return err
		}
	}
	return d.Browser.ActivePane().Reload(ctx)
}

// Mkdir creates name under the active pane's wrkdir.
func (d *Dispatcher) Mkdir(ctx context.Context, name string) error {
	active := d.Browser.ActivePane()
	p := path.Join(active.Explorer.Wrkdir, name)
	if err := active.Endpoint.FS.Mkdir(ctx, p); err != nil {
		return err
	}
	return active.Reload(ctx)
}

// Rename renames old to new (new is always joined under the active
// pane's wrkdir).
func (d *Dispatcher) Rename(ctx context.Context, oldPath, newName string) error {
	active := d.Browser.ActivePane()
	to := path.Join(active.Explorer.Wrkdir, newName)
	if err := active.Endpoint.FS.Rename(ctx, oldPath, to); err != nil {
		return err
	}
	return active.Reload(ctx)
}

// Chmod applies mode to every selected file.
func (d *Dispatcher) Chmod(ctx context.Context, files []fsops.File, mode fsops.Mode) error {
	active := d.Browser.ActivePane()
	for _, f := range files {
		if err := active.Endpoint.FS.Chmod(ctx, f, mode); err != nil {
			return err
		}
	}
	return active.Reload(ctx)
}

// Copy copies src to dst on the active pane's FS (same-endpoint copy,
// distinct from a cross-endpoint Transfer).
func (d *Dispatcher) Copy(ctx context.Context, src, dst string) error {
	active := d.Browser.ActivePane()
	if err := active.Endpoint.FS.Copy(ctx, src, dst); err != nil {
		return err
	}
	return active.Reload(ctx)
}

// Symlink creates a symlink on the active pane's FS.
func (d *Dispatcher) Symlink(ctx context.Context, target, linkPath string) error {
	active := d.Browser.ActivePane()
	if err := active.Endpoint.FS.Symlink(ctx, target, linkPath); err != nil {
		return err
	}
	return active.Reload(ctx)
}

// Cd changes directory on the active pane, mirroring onto the
// opposite pane when sync_browsing is on (§4.4). A mirror failure is
// returned as oppositeErr for the caller to log, never as err.
func (d *Dispatcher) Cd(ctx context.Context, rel string) (oppositeErr, err error) {
	return d.Browser.SyncCd(ctx, rel)
}

// Transfer builds a TransferTask moving files from the active pane to
// the opposite one. An empty files falls back to the active pane's
// transfer_queue (termscp's batch-queue UX, SPEC_FULL §4.5).
func (d *Dispatcher) Transfer(ctx context.Context, files []fsops.File, opts transfer.Options) *transfer.Task {
	active := d.Browser.ActivePane()
	opposite := d.Browser.OppositePane()
	if len(files) == 0 {
		files = active.Explorer.TransferQueue
	}
	return transfer.NewTask(active.Endpoint.FS, opposite.Endpoint.FS, files, opts)
}

// Enqueue adds files to the active pane's transfer queue (the
// supplemented batch-queue feature from SPEC_FULL.md).
func (d *Dispatcher) Enqueue(files ...fsops.File) {
	d.Browser.ActivePane().Explorer.EnqueueTransfer(files...)
}

// Dequeue removes p from the active pane's transfer queue.
func (d *Dispatcher) Dequeue(p string) {
	d.Browser.ActivePane().Explorer.DequeueTransfer(p)
}

// Find walks the active pane's FS tree matching a glob, populating
// browser.Found. It collapses the local/remote Find variants into one
// because the walk is expressed purely over FsOps.
func (d *Dispatcher) Find(ctx context.Context, root, globPattern string) ([]fsops.File, error) {
	fs := d.Browser.ActivePane().Endpoint.FS
	var matches []fsops.File
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := fs.ListDir(ctx, dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if ok, _ := path.Match(globPattern, e.Name); ok {
				matches = append(matches, e)
			}
			if e.Kind == fsops.KindDirectory {
				if err := walk(e.Path); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return matches, nil
}

// Exec runs cmd on the active pane's FS.
func (d *Dispatcher) Exec(ctx context.Context, cmd string) (fsops.ExecResult, error) {
	return d.Browser.ActivePane().Endpoint.FS.Exec(ctx, cmd)
}

// Open downloads f to a local temp file and hands it to Opener.
func (d *Dispatcher) Open(ctx context.Context, f fsops.File) error {
	local, err := d.downloadToTemp(ctx, f)
	if err != nil {
		return err
	}
	defer os.Remove(local)
	return d.Opener(local)
}

// Edit downloads f to a local temp file, runs Editor, and on a clean
// editor exit uploads the (possibly modified) file back.
func (d *Dispatcher) Edit(ctx context.Context, f fsops.File) error {
	local, err := d.downloadToTemp(ctx, f)
	if err != nil {
		return err
	}
	defer os.Remove(local)
	if err := d.Editor(local); err != nil {
		return err
	}
	return d.uploadFromLocal(ctx, local, f)
}

func (d *Dispatcher) downloadToTemp(ctx context.Context, f fsops.File) (string, error) {
	active := d.Browser.ActivePane()
	r, err := active.Endpoint.FS.OpenRead(ctx, f.Path)
	if err != nil {
		return "", err
	}
	defer r.Close()
	tmp, err := os.CreateTemp("", "duotui-edit-*-"+sanitizeName(f.Name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), tmp.Close()
}

func (d *Dispatcher) uploadFromLocal(ctx context.Context, local string, f fsops.File) error {
	active := d.Browser.ActivePane()
	in, err := os.Open(local)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	w, err := active.Endpoint.FS.OpenWrite(ctx, f.Path, f, info.Size())
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		_ = w.Close()
		return err
	}
	return active.Endpoint.FS.FinalizeWrite(ctx, w)
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
}
