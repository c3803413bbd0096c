// Package pipe provides the "pipe" FsOps adapter: a filesystem backed
// by shelling coreutils out to one local or remote command, the way a
// user might `ssh host cat file` by hand. Local mode uses os/exec;
// remote mode opens one golang.org/x/crypto/ssh session per operation,
// the same client backend/sftp and backend/scp already depend on.
package pipe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"path"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/uri"
)

func init() {
	fsops.Register(&fsops.RegInfo{Name: fsops.KindPipe, Description: "Piped shell (local or ssh)", NewFS: NewFS})
}

// FS is the pipe adapter. Every operation is a one-shot command, so FS
// implements fsops.BlockFS and is wrapped by fsops.RemoteBridged.
type FS struct {
	host string
	port int
	user string
	pass string
	pwd  string

	client *ssh.Client // nil in local mode
}

func NewFS(e *fsops.Endpoint) (fsops.FS, error) {
	creds, _ := e.Credentials.(uri.Credentials)
	return &fsops.RemoteBridged{Inner: &FS{
		host: e.Host,
		port: e.Port,
		user: creds.User,
		pass: creds.Password,
		pwd:  "/" + strings.TrimPrefix(e.Path, "/"),
	}}, nil
}

func (f *FS) Connect(ctx context.Context) (fsops.ConnectInfo, error) {
	if f.host == "" {
		return fsops.ConnectInfo{Hostname: "local", Pwd: f.pwd}, nil
	}
	port := f.port
	if port == 0 {
		port = 22
	}
	cfg := &ssh.ClientConfig{
		User:            f.user,
		Auth:            []ssh.AuthMethod{ssh.Password(f.pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         fsops.DefaultTimeout,
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(f.host, strconv.Itoa(port)), cfg)
	if err != nil {
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindAuth, "connect", f.host, err)
	}
	f.client = client
	return fsops.ConnectInfo{Hostname: f.host, Pwd: f.pwd}, nil
}

func (f *FS) Disconnect(ctx context.Context) error {
	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	if err != nil {
		return fsops.NewError(fsops.KindNetwork, "disconnect", f.host, err)
	}
	return nil
}

func (f *FS) IsConnected() bool {
	if f.host == "" {
		return true
	}
	return f.client != nil
}

func (f *FS) Pwd(ctx context.Context) (string, error) { return f.pwd, nil }

func (f *FS) abs(p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Clean(strings.TrimRight(f.pwd, "/") + "/" + p)
}

// run executes cmdline as "sh -c", locally or over SSH, feeding stdin
// and capturing stdout/stderr.
func (f *FS) run(ctx context.Context, cmdline string, stdin io.Reader) (stdout, stderr bytes.Buffer, err error) {
	if f.host == "" {
		cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
		cmd.Stdin = stdin
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err = cmd.Run()
		return
	}
	sess, sessErr := f.client.NewSession()
	if sessErr != nil {
		return stdout, stderr, sessErr
	}
	defer sess.Close()
	sess.Stdin = stdin
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	err = sess.Run(cmdline)
	return
}

func (f *FS) ChangeDir(ctx context.Context, dir string) (string, error) {
	abs := f.abs(dir)
	_, stderr, err := f.run(ctx, fmt.Sprintf("test -d %s", shQuote(abs)), nil)
	if err != nil {
		return "", fsops.NewError(fsops.KindNotDir, "change_dir", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	f.pwd = abs
	return abs, nil
}

func (f *FS) ListDir(ctx context.Context, dir string) ([]fsops.File, error) {
	abs := f.abs(dir)
	cmd := fmt.Sprintf("find %s -mindepth 1 -maxdepth 1 -printf '%%y\\t%%s\\t%%T@\\t%%p\\n'", shQuote(abs))
	out, stderr, err := f.run(ctx, cmd, nil)
	if err != nil {
		return nil, fsops.NewError(fsops.KindNotFound, "list_dir", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return parseFindOutput(out.String()), nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsops.File, error) {
	abs := f.abs(p)
	cmd := fmt.Sprintf("find %s -maxdepth 0 -printf '%%y\\t%%s\\t%%T@\\t%%p\\n'", shQuote(abs))
	out, stderr, err := f.run(ctx, cmd, nil)
	if err != nil {
		return fsops.File{}, fsops.NewError(fsops.KindNotFound, "stat", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	files := parseFindOutput(out.String())
	if len(files) == 0 {
		return fsops.File{}, fsops.NewError(fsops.KindNotFound, "stat", abs, nil)
	}
	return files[0], nil
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
	_, stderr, err := f.run(ctx, fmt.Sprintf("mkdir -p %s", shQuote(abs)), nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "mkdir", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, file fsops.File) error {
	cmd := fmt.Sprintf("rm -f %s", shQuote(file.Path))
	if file.Kind == fsops.KindDirectory {
		cmd = fmt.Sprintf("rmdir %s", shQuote(file.Path))
	}
	_, stderr, err := f.run(ctx, cmd, nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "remove", file.Path, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	abs := f.abs(p)
	_, stderr, err := f.run(ctx, fmt.Sprintf("rm -rf %s", shQuote(abs)), nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "remove_dir_all", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Rename(ctx context.Context, from, to string) error {
	_, stderr, err := f.run(ctx, fmt.Sprintf("mv %s %s", shQuote(f.abs(from)), shQuote(f.abs(to))), nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "rename", from, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Copy(ctx context.Context, from, to string) error {
	_, stderr, err := f.run(ctx, fmt.Sprintf("cp -a %s %s", shQuote(f.abs(from)), shQuote(f.abs(to))), nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "copy", from, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Symlink(ctx context.Context, target, linkPath string) error {
	_, stderr, err := f.run(ctx, fmt.Sprintf("ln -s %s %s", shQuote(target), shQuote(f.abs(linkPath))), nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "symlink", linkPath, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Chmod(ctx context.Context, file fsops.File, mode fsops.Mode) error {
	if !mode.Valid {
		return fsops.NewError(fsops.KindBadConfig, "chmod", file.Path, nil)
	}
	_, stderr, err := f.run(ctx, fmt.Sprintf("chmod %s %s", strconv.FormatUint(uint64(mode.Perm), 8), shQuote(file.Path)), nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "chmod", file.Path, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

// Download implements fsops.BlockFS: "cat path" streamed straight to w.
func (f *FS) Download(ctx context.Context, p string, w io.Writer) error {
	abs := f.abs(p)
	if f.host == "" {
		cmd := exec.CommandContext(ctx, "cat", abs)
		cmd.Stdout = w
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fsops.NewError(fsops.KindIO, "download", abs, fmt.Errorf("%w: %s", err, stderr.String()))
		}
		return nil
	}
	sess, err := f.client.NewSession()
	if err != nil {
		return fsops.NewError(fsops.KindIO, "download", abs, err)
	}
	defer sess.Close()
	sess.Stdout = w
	var stderr bytes.Buffer
	sess.Stderr = &stderr
	if err := sess.Run(fmt.Sprintf("cat %s", shQuote(abs))); err != nil {
		return fsops.NewError(fsops.KindIO, "download", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

// Upload implements fsops.BlockFS: "cat > path" fed from r.
func (f *FS) Upload(ctx context.Context, p string, r io.Reader, meta fsops.File, size int64) error {
	abs := f.abs(p)
	_, stderr, err := f.run(ctx, fmt.Sprintf("cat > %s", shQuote(abs)), r)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "upload", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Exec(ctx context.Context, cmdline string) (fsops.ExecResult, error) {
	stdout, stderr, err := f.run(ctx, cmdline, nil)
	res := fsops.ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		res.ExitCode = 1
		return res, fsops.NewError(fsops.KindIO, "exec", cmdline, err)
	}
	return res, nil
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func parseFindOutput(out string) []fsops.File {
	var files []fsops.File
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 4)
		if len(fields) != 4 {
			continue
		}
		kind := fsops.KindRegular
		switch fields[0] {
		case "d":
			kind = fsops.KindDirectory
		case "l":
			kind = fsops.KindSymlink
		}
		size, _ := strconv.ParseInt(fields[1], 10, 64)
		files = append(files, fsops.NewFile(fields[3], kind, size))
	}
	return files
}
