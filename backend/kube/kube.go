// Package kube provides the Kubernetes pod FsOps adapter: files live
// inside a container's filesystem, reached via "kubectl exec"-style
// remotecommand streams ("cat path" over stdout for get, "cat > path"
// over stdin for put) using
// k8s.io/client-go. No example repo in the retrieval pack exercises
// client-go directly; this follows the library's own documented
// Exec/PortForward idiom (see DESIGN.md).
package kube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/uri"
)

func init() {
	fsops.Register(&fsops.RegInfo{Name: fsops.KindKube, Description: "Kubernetes pod filesystem", NewFS: NewFS})
}

// FS is the kube adapter. Every operation shells out to the pod's
// coreutils (test, find, mkdir, rm, rmdir, mv, cp, ln, chmod, cat) over
// an exec stream, so FS
// implements fsops.BlockFS and is wrapped by fsops.RemoteBridged for
// read/write streaming.
type FS struct {
	kubeconfigPath string
	namespace      string
	pod            string
	container      string
	pwd            string

	cfg    *rest.Config
	client *kubernetes.Clientset
}

// endpoint path grammar: /namespace/pod[:container]/abs/path
func NewFS(e *fsops.Endpoint) (fsops.FS, error) {
	creds, _ := e.Credentials.(uri.Credentials)
	_ = creds // kube auth comes from kubeconfig, not URI credentials
	parts := strings.SplitN(strings.TrimPrefix(e.Path, "/"), "/", 3)
	if len(parts) < 2 {
		return nil, fsops.NewError(fsops.KindBadConfig, "new_fs", e.Path, fmt.Errorf("expected /namespace/pod[:container]/path"))
	}
	ns, podSpec := parts[0], parts[1]
	startPath := "/"
	if len(parts) == 3 {
		startPath = "/" + parts[2]
	}
	pod, container := podSpec, ""
	if i := strings.IndexByte(podSpec, ':'); i >= 0 {
		pod, container = podSpec[:i], podSpec[i+1:]
	}
	return &fsops.RemoteBridged{Inner: &FS{
		kubeconfigPath: e.Host, // host slot repurposed to carry a kubeconfig path override
		namespace:      ns,
		pod:            pod,
		container:      container,
		pwd:            startPath,
	}}, nil
}

func (f *FS) Connect(ctx context.Context) (fsops.ConnectInfo, error) {
	var cfg *rest.Config
	var err error
	if f.kubeconfigPath != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", f.kubeconfigPath)
	} else {
		cfg, err = rest.InClusterConfig()
		if err != nil {
			cfg, err = clientcmd.BuildConfigFromFlags("", clientcmd.NewDefaultClientConfigLoadingRules().GetDefaultFilename())
		}
	}
	if err != nil {
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindBadConfig, "connect", f.kubeconfigPath, err)
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindBadConfig, "connect", "", err)
	}
	f.cfg = cfg
	f.client = cs
	if _, err := f.client.CoreV1().Pods(f.namespace).Get(ctx, f.pod, metav1.GetOptions{}); err != nil {
		return fsops.ConnectInfo{}, fsops.NewError(fsops.KindNotFound, "connect", f.pod, err)
	}
	return fsops.ConnectInfo{Hostname: f.namespace + "/" + f.pod, Pwd: f.pwd}, nil
}

func (f *FS) Disconnect(ctx context.Context) error { return nil }
func (f *FS) IsConnected() bool                    { return f.client != nil }
func (f *FS) Pwd(ctx context.Context) (string, error) { return f.pwd, nil }

func (f *FS) abs(p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Clean(strings.TrimRight(f.pwd, "/") + "/" + p)
}

// exec runs command inside the pod's container, feeding it stdin when
// non-nil, and returns its stdout and stderr.
func (f *FS) exec(ctx context.Context, command []string, stdin io.Reader) (stdout, stderr bytes.Buffer, err error) {
	req := f.client.CoreV1().RESTClient().Post().
		Resource("pods").Name(f.pod).Namespace(f.namespace).SubResource("exec")
	req.VersionedParams(&corev1.PodExecOptions{
		Container: f.container,
		Command:   command,
		Stdin:     stdin != nil,
		Stdout:    true,
		Stderr:    true,
	}, scheme.ParameterCodec)
	exec, execErr := remotecommand.NewSPDYExecutor(f.cfg, "POST", req.URL())
	if execErr != nil {
		return stdout, stderr, execErr
	}
	err = exec.StreamWithContext(ctx, remotecommand.StreamOptions{Stdin: stdin, Stdout: &stdout, Stderr: &stderr})
	return stdout, stderr, err
}

func (f *FS) ChangeDir(ctx context.Context, dir string) (string, error) {
	abs := f.abs(dir)
	_, stderr, err := f.exec(ctx, []string{"test", "-d", abs}, nil)
	if err != nil {
		return "", fsops.NewError(fsops.KindNotDir, "change_dir", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	f.pwd = abs
	return abs, nil
}

func (f *FS) ListDir(ctx context.Context, dir string) ([]fsops.File, error) {
	abs := f.abs(dir)
	out, stderr, err := f.exec(ctx, []string{"find", abs, "-mindepth", "1", "-maxdepth", "1", "-printf", "%y\t%s\t%T@\t%p\n"}, nil)
	if err != nil {
		return nil, fsops.NewError(fsops.KindNotFound, "list_dir", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return parseFindOutput(out.String()), nil
}

func (f *FS) Stat(ctx context.Context, p string) (fsops.File, error) {
	abs := f.abs(p)
	out, stderr, err := f.exec(ctx, []string{"find", abs, "-maxdepth", "0", "-printf", "%y\t%s\t%T@\t%p\n"}, nil)
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
	_, stderr, err := f.exec(ctx, []string{"mkdir", "-p", abs}, nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "mkdir", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, file fsops.File) error {
	args := []string{"rm", "-f", file.Path}
	if file.Kind == fsops.KindDirectory {
		args = []string{"rmdir", file.Path}
	}
	_, stderr, err := f.exec(ctx, args, nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "remove", file.Path, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, p string) error {
	abs := f.abs(p)
	_, stderr, err := f.exec(ctx, []string{"rm", "-rf", abs}, nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "remove_dir_all", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Rename(ctx context.Context, from, to string) error {
	_, stderr, err := f.exec(ctx, []string{"mv", f.abs(from), f.abs(to)}, nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "rename", from, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Copy(ctx context.Context, from, to string) error {
	_, stderr, err := f.exec(ctx, []string{"cp", "-a", f.abs(from), f.abs(to)}, nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "copy", from, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Symlink(ctx context.Context, target, linkPath string) error {
	_, stderr, err := f.exec(ctx, []string{"ln", "-s", target, f.abs(linkPath)}, nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "symlink", linkPath, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Chmod(ctx context.Context, file fsops.File, mode fsops.Mode) error {
	if !mode.Valid {
		return fsops.NewError(fsops.KindBadConfig, "chmod", file.Path, nil)
	}
	_, stderr, err := f.exec(ctx, []string{"chmod", strconv.FormatUint(uint64(mode.Perm), 8), file.Path}, nil)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "chmod", file.Path, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

// Download implements fsops.BlockFS: "cat path" streamed to stdout.
func (f *FS) Download(ctx context.Context, p string, w io.Writer) error {
	abs := f.abs(p)
	req := f.client.CoreV1().RESTClient().Post().
		Resource("pods").Name(f.pod).Namespace(f.namespace).SubResource("exec")
	req.VersionedParams(&corev1.PodExecOptions{
		Container: f.container, Command: []string{"cat", abs}, Stdout: true, Stderr: true,
	}, scheme.ParameterCodec)
	exec, err := remotecommand.NewSPDYExecutor(f.cfg, "POST", req.URL())
	if err != nil {
		return fsops.NewError(fsops.KindIO, "download", abs, err)
	}
	var stderr bytes.Buffer
	if err := exec.StreamWithContext(ctx, remotecommand.StreamOptions{Stdout: w, Stderr: &stderr}); err != nil {
		return fsops.NewError(fsops.KindIO, "download", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

// Upload implements fsops.BlockFS: "cat > path" fed from stdin.
func (f *FS) Upload(ctx context.Context, p string, r io.Reader, meta fsops.File, size int64) error {
	abs := f.abs(p)
	_, stderr, err := f.exec(ctx, []string{"sh", "-c", "cat > " + shellQuote(abs)}, r)
	if err != nil {
		return fsops.NewError(fsops.KindIO, "upload", abs, fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (f *FS) Exec(ctx context.Context, cmdline string) (fsops.ExecResult, error) {
	stdout, stderr, err := f.exec(ctx, []string{"sh", "-c", cmdline}, nil)
	res := fsops.ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		res.ExitCode = 1
		return res, fsops.NewError(fsops.KindIO, "exec", cmdline, err)
	}
	return res, nil
}

func shellQuote(s string) string {
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
