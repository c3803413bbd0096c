package fsops

import (
	"context"
	"io"
	"time"
)

// EndpointKind is the protocol spoken by an FS.
type EndpointKind string

// Supported endpoint kinds, matching the remote-URI grammar in §6.
const (
	KindLocal  EndpointKind = "local"
	KindSFTP   EndpointKind = "sftp"
	KindSCP    EndpointKind = "scp"
	KindFTP    EndpointKind = "ftp"
	KindFTPS   EndpointKind = "ftps"
	KindS3     EndpointKind = "s3"
	KindSMB    EndpointKind = "smb"
	KindWebDAV EndpointKind = "webdav"
	KindKube   EndpointKind = "kube"
	KindPipe   EndpointKind = "pipe"
)

// ConnectInfo is what a successful connect() returns: the endpoint's
// welcome metadata.
type ConnectInfo struct {
	Hostname string
	Pwd      string
}

// WriteHandle is returned by OpenWrite; its data must reach the backend
// only once FinalizeWrite is called.
type WriteHandle interface {
	io.WriteCloser
}

// ReadHandle is returned by OpenRead, with a size hint for progress
// reporting (0 if unknown).
type ReadHandle interface {
	io.ReadCloser
	Size() int64
}

// ExecResult is the outcome of FS.Exec.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// FS is the capability surface every backend adapter implements. All
// methods take a context so per-endpoint connect/operation timeouts (§5)
// can be enforced uniformly; a context deadline exceeded is surfaced as
// KindNetwork/NetworkTimeout.
type FS interface {
	// Connect establishes the session. Must succeed before any other op.
	Connect(ctx context.Context) (ConnectInfo, error)
	// Disconnect tears the session down. Idempotent, never fatal.
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
	Rename(ctx context.Context, from, to string) error
	Copy(ctx context.Context, from, to string) error
	Symlink(ctx context.Context, target, linkPath string) error
	Chmod(ctx context.Context, f File, mode Mode) error

	OpenRead(ctx context.Context, path string) (ReadHandle, error)
	OpenWrite(ctx context.Context, path string, meta File, sizeHint int64) (WriteHandle, error)
	FinalizeWrite(ctx context.Context, w WriteHandle) error

	Exec(ctx context.Context, cmdline string) (ExecResult, error)
}

// Endpoint describes a connected-or-not FS plus its descriptor, the
// "FsEndpoint" entity of §3.
type Endpoint struct {
	Kind     EndpointKind
	Host     string
	Port     int
	User     string
	Path     string
	Timeout  time.Duration
	RetryMax int

	// Credentials is opaque to the core; adapters type-assert it to their
	// own config struct.
	Credentials any

	FS FS
}

// DefaultTimeout is the default connect/operation timeout from §5.
const DefaultTimeout = 30 * time.Second

// Connected reports whether e has a live FS.
func (e *Endpoint) Connected() bool {
	return e.FS != nil && e.FS.IsConnected()
}
