package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/duotui/duotui/browser"
	"github.com/duotui/duotui/ui"
)

// lineRenderer is a minimal ui.Renderer over stdin/stdout: a single
// background goroutine scans stdin into a channel, and PollInput reads
// from it with a timeout. Concrete full-screen TUI rendering is out of
// scope (§1); this exists only so cmd/duotui has something real to
// drive the event loop with.
type lineRenderer struct {
	lines chan string
	eof   chan struct{}
}

func newHeadlessRenderer() *lineRenderer {
	r := &lineRenderer{lines: make(chan string), eof: make(chan struct{})}
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			r.lines <- scanner.Text()
		}
		close(r.eof)
	}()
	return r
}

func (r *lineRenderer) PollInput(timeout time.Duration) (ui.Msg, bool) {
	select {
	case line := <-r.lines:
		return ui.KeyMsg{Key: line}, true
	case <-r.eof:
		return ui.KeyMsg{Key: "ctrl+c"}, true
	case <-time.After(timeout):
		return nil, false
	}
}

func (r *lineRenderer) Render(state any) {
	b, ok := state.(*browser.Browser)
	if !ok {
		return
	}
	active := b.ActivePane()
	fmt.Fprintf(os.Stdout, "[%s] %s (%d entries)\n", active.Label, active.Explorer.Wrkdir, len(active.Explorer.Files))
}

func (r *lineRenderer) Close() error { return nil }

// execVisual runs name on path with the controlling terminal inherited,
// the boundary Open/Edit hand off to (§1: terminal embedding and
// external viewers stay thin adapters, never reimplemented).
func execVisual(name, path string) error {
	cmd := exec.Command(name, path)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	return cmd.Run()
}
