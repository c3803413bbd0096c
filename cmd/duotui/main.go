// Command duotui is the thin binary wiring §6's CLI surface onto the
// engine library: it is the only place allowed to touch argv, the
// process environment, and (through ui.Renderer) the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/duotui/duotui/action"
	"github.com/duotui/duotui/browser"
	"github.com/duotui/duotui/eventloop"
	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/applog"
	"github.com/duotui/duotui/internal/config"
	"github.com/duotui/duotui/internal/uri"
	"github.com/duotui/duotui/pane"

	_ "github.com/duotui/duotui/backend/ftp"
	_ "github.com/duotui/duotui/backend/kube"
	_ "github.com/duotui/duotui/backend/localfs"
	_ "github.com/duotui/duotui/backend/pipe"
	_ "github.com/duotui/duotui/backend/s3"
	_ "github.com/duotui/duotui/backend/scp"
	_ "github.com/duotui/duotui/backend/sftp"
	_ "github.com/duotui/duotui/backend/smb"
	_ "github.com/duotui/duotui/backend/webdav"
)

// Exit codes per spec.md §6.
const (
	exitOK        = 0
	exitError     = 1
	exitBadArgs   = 2
	exitInterrupt = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	flags := pflag.NewFlagSet("duotui", pflag.ContinueOnError)
	password := flags.StringP("password", "P", "", "remote password")
	configDir := flags.StringP("config-dir", "c", defaultConfigDir(), "config directory")
	theme := flags.StringP("theme", "T", "", "theme name override")
	bookmark := flags.StringP("bookmark", "b", "", "bookmark name to load")
	tickMs := flags.IntP("ticks", "t", 0, "event loop tick in milliseconds (0: use config default)")
	quiet := flags.BoolP("quiet", "q", false, "quiet logging")
	verbose := flags.BoolP("verbose", "v", false, "verbose logging")
	_ = flags.BoolP("update", "u", false, "check for updates") // self-update stays out of scope (§1)

	if err := flags.Parse(argv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadArgs
	}

	cfg, bookmarks, _, err := config.Load(config.Dir(*configDir))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return exitError
	}
	_ = theme // theme palette is consumed by the (out-of-scope) renderer, not here

	level := applog.LevelInfo
	if *quiet {
		level = applog.LevelError
	} else if *verbose {
		level = applog.LevelDebug
	}
	if err := applog.Configure(applog.Options{
		Path:  filepath.Join(*configDir, "duotui.log"),
		Level: level,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "configure logging:", err)
		return exitError
	}

	remoteArg := ""
	if flags.NArg() > 0 {
		remoteArg = flags.Arg(0)
	} else if *bookmark != "" {
		for _, bm := range bookmarks.Bookmarks {
			if bm.Name == *bookmark {
				remoteArg = bookmarkURI(bm)
				break
			}
		}
		if remoteArg == "" {
			fmt.Fprintf(os.Stderr, "unknown bookmark %q\n", *bookmark)
			return exitBadArgs
		}
	} else {
		fmt.Fprintln(os.Stderr, "usage: duotui [remote-uri] [flags]")
		return exitBadArgs
	}

	remoteEndpoint, err := buildEndpoint(remoteArg, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse remote uri:", err)
		return exitBadArgs
	}

	localFS, err := fsops.NewFS(&fsops.Endpoint{Kind: fsops.KindLocal, Timeout: fsops.DefaultTimeout})
	if err != nil {
		fmt.Fprintln(os.Stderr, "init local fs:", err)
		return exitError
	}
	localEndpoint := &fsops.Endpoint{Kind: fsops.KindLocal, FS: localFS, Timeout: fsops.DefaultTimeout}

	localPane := pane.New(localEndpoint, ".", cfg.FileFmtTemplate, "local")
	remotePane := pane.New(remoteEndpoint, remoteEndpoint.Path, cfg.FileFmtTemplate, remoteEndpoint.Host)

	ctx, cancel := context.WithTimeout(context.Background(), fsops.DefaultTimeout)
	defer cancel()
	if err := localPane.Connect(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "connect local:", err)
		return exitError
	}
	if err := remotePane.Connect(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "connect remote:", err)
		return exitError
	}
	if err := localPane.Reload(ctx); err != nil {
		applog.Warnf("initial local listing: %v", err)
	}
	if err := remotePane.Reload(ctx); err != nil {
		applog.Warnf("initial remote listing: %v", err)
	}

	b := browser.New(localPane, remotePane)
	dispatcher := &action.Dispatcher{
		Browser: b,
		Opener:  defaultOpener,
		Editor:  defaultEditor,
	}

	renderer := newHeadlessRenderer() // concrete TUI rendering stays out of scope (§1)
	loop := eventloop.New(renderer, dispatcher, b)
	if *tickMs > 0 {
		loop.Tick = time.Duration(*tickMs) * time.Millisecond
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loop.Run(runCtx); err != nil {
		if runCtx.Err() != nil {
			return exitInterrupt
		}
		fmt.Fprintln(os.Stderr, "event loop:", err)
		return exitError
	}
	return exitOK
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "duotui")
}

func buildEndpoint(raw, password string) (*fsops.Endpoint, error) {
	parsed, err := uri.Parse(raw)
	if err != nil {
		return nil, err
	}
	if password != "" {
		parsed.Password = password
	}
	ep := parsed.ToEndpoint()
	fs, err := fsops.NewFS(ep)
	if err != nil {
		return nil, err
	}
	ep.FS = fs
	return ep, nil
}

func bookmarkURI(bm config.Bookmark) string {
	pass, _ := bm.Password()
	auth := bm.User
	if pass != "" {
		auth += ":" + pass
	}
	if auth != "" {
		auth += "@"
	}
	return fmt.Sprintf("%s://%s%s:%d%s", bm.Kind, auth, bm.Host, bm.Port, bm.Path)
}

func defaultOpener(path string) error { return execVisual("open", path) }
func defaultEditor(path string) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	return execVisual(editor, path)
}
