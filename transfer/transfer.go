// Package transfer implements the recursive transfer pipeline: size
// aggregation, per-file copy with conflict resolution, directory
// recursion, progress reporting and cancellation, per spec.md §4.5.
package transfer

import (
	"context"
	"io"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/progress"
)

// OnConflict is the filename-conflict resolution policy.
type OnConflict int

const (
	ConflictOverwrite OnConflict = iota
	ConflictSkip
	ConflictPrompt
	ConflictRename
)

// Options configures one TransferTask.
type Options struct {
	OnConflict      OnConflict
	PreserveMode    bool
	PreserveTimes   bool
	FollowSymlinks  bool
	MaxSymlinkDepth int
	ChunkSize       int           // default 65536
	TickEvery       time.Duration // default 100ms

	// PromptResolver is consulted when OnConflict == ConflictPrompt.
	// It returns the resolution to apply for this one file.
	PromptResolver func(ctx context.Context, destPath string) (OnConflict, error)
}

func (o Options) chunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return 65536
}

func (o Options) tickEvery() time.Duration {
	if o.TickEvery > 0 {
		return o.TickEvery
	}
	return 100 * time.Millisecond
}

// State is a TransferTask's lifecycle state.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCancelling
	StateSucceeded
	StateFailed
	StateCancelled
)

// Summary is what Task.Run returns.
type Summary struct {
	FilesOK        []string
	FilesFailed    []FailedFile
	FilesSkipped   []string
	BytesTransferred int64
	Elapsed        time.Duration
}

// FailedFile pairs a path with the error that aborted it.
type FailedFile struct {
	Path string
	Err  error
}

// Task is one TransferTask: source/destination endpoints, the root
// files to transfer, and live state observed by the caller.
type Task struct {
	Source      fsops.FS
	Destination fsops.FS
	Roots       []fsops.File
	Options     Options

	OnProgress func(progress.Snapshot)

	mu            sync.Mutex
	state         State
	failedReason  error
	cancel        int32 // atomic flag, set via Cancel()
	stats         *progress.Stats
	aggregate     int64
	bytesDone     int64
	currentFile   string
	startedAt     time.Time
}

// NewTask builds a pending Task.
func NewTask(src, dst fsops.FS, roots []fsops.File, opts Options) *Task {
	return &Task{Source: src, Destination: dst, Roots: roots, Options: opts, state: StatePending}
}

// Cancel requests cancellation; observed at the next chunk/entry
// boundary, per §4.5 point 4 and §5's atomic-flag requirement.
func (t *Task) Cancel() { atomic.StoreInt32(&t.cancel, 1) }

func (t *Task) cancelled() bool { return atomic.LoadInt32(&t.cancel) != 0 }

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// CurrentFile returns the path the task is transferring right now.
func (t *Task) CurrentFile() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentFile
}

// Progress returns a point-in-time snapshot; bytes_done is clamped so
// the reported fraction never exceeds 1.0, per §4.5.
func (t *Task) Progress() progress.Snapshot {
	snap := t.stats.Snapshot()
	if snap.Total > 0 && snap.Bytes > snap.Total {
		snap.Bytes = snap.Total
	}
	return snap
}

// Run drives the task through size aggregation then per-root transfer.
// It blocks until the task reaches a terminal state; callers wanting
// the §4.7 cooperative-tick model should run this on a worker
// goroutine and read Progress()/State() from the event loop.
func (t *Task) Run(ctx context.Context) Summary {
	t.startedAt = time.Now()
	t.setState(StateRunning)

	aggregate, err := t.aggregateSize(ctx)
	if err != nil {
		t.failedReason = err
		t.setState(StateFailed)
		return Summary{Elapsed: time.Since(t.startedAt)}
	}
	t.aggregate = aggregate
	t.stats = progress.NewStats(aggregate, 0)

	summary := Summary{}
	var rootErr error
	for _, root := range t.Roots {
		if t.cancelled() {
			t.setState(StateCancelling)
			break
		}
		t.transferRoot(ctx, root, &summary)
		if t.failedReason != nil {
			if !fsops.IsFatalForTask(kindOf(t.failedReason)) {
				// fatal for this root only: go on with the next root
				rootErr = t.failedReason
				t.failedReason = nil
				continue
			}
			t.setState(StateFailed)
			summary.Elapsed = time.Since(t.startedAt)
			return summary
		}
	}
	summary.BytesTransferred = t.stats.Snapshot().Bytes
	summary.Elapsed = time.Since(t.startedAt)
	if t.cancelled() {
		t.setState(StateCancelled)
	} else if rootErr != nil {
		t.failedReason = rootErr
		t.setState(StateFailed)
	} else {
		t.setState(StateSucceeded)
	}
	return summary
}

// aggregateSize walks every root with bounded fan-out (errgroup),
// summing file sizes. Symlinks are skipped unless FollowSymlinks, and
// cycles are broken by a canonical-path set, per §4.5 point 1.
func (t *Task) aggregateSize(ctx context.Context) (int64, error) {
	var total int64
	var mu sync.Mutex
	seen := make(map[string]bool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	var walk func(f fsops.File, depth int) error
	walk = func(f fsops.File, depth int) error {
		if f.Kind == fsops.KindSymlink {
			if !t.Options.FollowSymlinks || depth > t.Options.MaxSymlinkDepth {
				return nil
			}
			mu.Lock()
			if seen[f.SymlinkTarget] {
				mu.Unlock()
				return nil
			}
			seen[f.SymlinkTarget] = true
			mu.Unlock()
		}
		if f.Kind != fsops.KindDirectory {
			mu.Lock()
			total += f.Size
			mu.Unlock()
			return nil
		}
		entries, err := t.Source.ListDir(gctx, f.Path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			e := e
			g.Go(func() error { return walk(e, depth+1) })
		}
		return nil
	}
	for _, root := range t.Roots {
		root := root
		g.Go(func() error { return walk(root, 0) })
	}
	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, nil
}

// transferRoot walks one root, copying files and recursing into
// directories in listing order, per §4.5 point 3.
func (t *Task) transferRoot(ctx context.Context, root fsops.File, summary *Summary) {
	destPath := root.Path
	t.transferEntry(ctx, root, destPath, summary)
}

func (t *Task) transferEntry(ctx context.Context, src fsops.File, destPath string, summary *Summary) {
	if t.cancelled() {
		return
	}
	t.mu.Lock()
	t.currentFile = src.Path
	t.mu.Unlock()

	if src.Kind == fsops.KindDirectory {
		if err := t.Destination.Mkdir(ctx, destPath); err != nil && !fsops.IsKind(err, fsops.KindExists) {
			t.recordOrAbort(src.Path, err, summary)
			return
		}
		entries, err := t.Source.ListDir(ctx, src.Path)
		if err != nil {
			t.recordOrAbort(src.Path, err, summary)
			return
		}
		for _, e := range entries {
			if t.cancelled() {
				return
			}
			t.transferEntry(ctx, e, path.Join(destPath, e.Name), summary)
			if t.failedReason != nil {
				return
			}
		}
		return
	}

	if src.Kind == fsops.KindSymlink {
		if !t.Options.FollowSymlinks {
			return
		}
	}

	exists, err := t.Destination.Exists(ctx, destPath)
	if err != nil {
		t.recordOrAbort(src.Path, err, summary)
		return
	}
	if exists {
		resolved := t.Options.OnConflict
		if resolved == ConflictPrompt && t.Options.PromptResolver != nil {
			resolved, err = t.Options.PromptResolver(ctx, destPath)
			if err != nil {
				t.recordOrAbort(src.Path, err, summary)
				return
			}
		}
		switch resolved {
		case ConflictSkip:
			summary.FilesSkipped = append(summary.FilesSkipped, src.Path)
			return
		case ConflictRename:
			destPath = t.nextAvailableName(ctx, destPath)
		case ConflictOverwrite:
			// proceed
		}
	}

	if err := t.copyFile(ctx, src, destPath); err != nil {
		if t.cancelled() {
			return
		}
		t.recordOrAbort(src.Path, err, summary)
		return
	}
	summary.FilesOK = append(summary.FilesOK, src.Path)
	t.stats.FileDone()

	if t.Options.PreserveMode && src.Mode.Valid {
		_ = t.Destination.Chmod(ctx, fsops.File{Path: destPath}, src.Mode) // best-effort
	}
}

// recordOrAbort appends a per-file failure, and aborts the remainder
// of the current root (or the whole task) per §7's fatality rules.
func (t *Task) recordOrAbort(srcPath string, err error, summary *Summary) {
	summary.FilesFailed = append(summary.FilesFailed, FailedFile{Path: srcPath, Err: err})
	t.stats.AddError()
	kind := kindOf(err)
	if fsops.IsFatalForTask(kind) {
		t.failedReason = err
		return
	}
	if fsops.IsFatalForRoot(kind) {
		t.failedReason = err
	}
}

func kindOf(err error) fsops.ErrKind {
	var fe *fsops.Error
	if e, ok := err.(*fsops.Error); ok {
		fe = e
	}
	if fe == nil {
		return fsops.KindUnknown
	}
	return fe.Kind
}

// copyFile streams src into destPath in fixed-size chunks, updating
// progress via internal/progress and checking cancellation at every
// chunk boundary.
func (t *Task) copyFile(ctx context.Context, src fsops.File, destPath string) error {
	r, err := t.Source.OpenRead(ctx, src.Path)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := t.Destination.OpenWrite(ctx, destPath, src, r.Size())
	if err != nil {
		return err
	}

	pr := progress.NewReader(r, t.stats, t.Options.tickEvery(), t.OnProgress)
	buf := make([]byte, t.Options.chunkSize())
	var copyErr error
	for {
		if t.cancelled() {
			copyErr = context.Canceled
			break
		}
		n, rerr := pr.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				copyErr = werr
				break
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			copyErr = rerr
			break
		}
	}

	if copyErr != nil {
		_ = w.Close()
		_ = t.Destination.Remove(ctx, fsops.File{Path: destPath})
		return copyErr
	}
	return t.Destination.FinalizeWrite(ctx, w)
}

// nextAvailableName implements the rename conflict policy: "name
// (1).ext", "name (2).ext", ... first non-existing.
func (t *Task) nextAvailableName(ctx context.Context, destPath string) string {
	dir, base := path.Split(destPath)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; ; i++ {
		candidate := path.Join(dir, stemSuffixed(stem, i)+ext)
		exists, err := t.Destination.Exists(ctx, candidate)
		if err != nil || !exists {
			return candidate
		}
	}
}

func stemSuffixed(stem string, n int) string {
	return stem + " (" + strconv.Itoa(n) + ")"
}
