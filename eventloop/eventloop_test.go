package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotui/duotui/action"
	"github.com/duotui/duotui/browser"
	"github.com/duotui/duotui/fsops"
	"github.com/duotui/duotui/internal/fakefs"
	"github.com/duotui/duotui/pane"
	"github.com/duotui/duotui/transfer"
	"github.com/duotui/duotui/ui"
)

// scriptedRenderer feeds a fixed sequence of inputs (then blocks/ctrl+c)
// and counts Render calls.
type scriptedRenderer struct {
	mu       sync.Mutex
	inputs   []ui.Msg
	idx      int
	renders  int
	closed   bool
}

func (r *scriptedRenderer) PollInput(timeout time.Duration) (ui.Msg, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idx >= len(r.inputs) {
		return nil, false
	}
	m := r.inputs[r.idx]
	r.idx++
	return m, true
}

func (r *scriptedRenderer) Render(state any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders++
}

func (r *scriptedRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func newTestBrowser(t *testing.T) *browser.Browser {
	t.Helper()
	local := pane.New(&fsops.Endpoint{Kind: fsops.KindLocal, FS: fakefs.New()}, "/", "", "local")
	remote := pane.New(&fsops.Endpoint{Kind: fsops.KindSFTP, FS: fakefs.New()}, "/", "", "remote")
	require.NoError(t, local.Connect(context.Background()))
	require.NoError(t, remote.Connect(context.Background()))
	return browser.New(local, remote)
}

func TestRunQuitsOnCtrlC(t *testing.T) {
	b := newTestBrowser(t)
	r := &scriptedRenderer{inputs: []ui.Msg{ui.KeyMsg{Key: "ctrl+c"}}}
	loop := New(r, &action.Dispatcher{Browser: b}, b)
	loop.Tick = 2 * time.Millisecond

	err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, r.closed)
}

func TestInitialTickRendersOnceThenStaysClean(t *testing.T) {
	b := newTestBrowser(t)
	r := &scriptedRenderer{}
	loop := New(r, &action.Dispatcher{Browser: b}, b)
	loop.Tick = 2 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := loop.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, r.renders, "no further input arrived, so only the forced initial render should fire")
}

func TestTabKeyTogglesActivePane(t *testing.T) {
	b := newTestBrowser(t)
	r := &scriptedRenderer{inputs: []ui.Msg{ui.KeyMsg{Key: "tab"}, ui.KeyMsg{Key: "ctrl+c"}}}
	loop := New(r, &action.Dispatcher{Browser: b}, b)
	loop.Tick = 2 * time.Millisecond

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, browser.TabRemote, b.ActiveTab)
}

func TestPostDropsWhenQueueFull(t *testing.T) {
	b := newTestBrowser(t)
	loop := New(&scriptedRenderer{}, &action.Dispatcher{Browser: b}, b)
	for i := 0; i < msgQueueSize+10; i++ {
		loop.Post(ui.KeyMsg{Key: "noop"})
	}
	assert.Len(t, loop.msgs, msgQueueSize, "channel must stay bounded, excess messages dropped")
}

func TestRunTransferPostsDoneMsgAndReloadsBothPanes(t *testing.T) {
	b := newTestBrowser(t)
	srcFake := b.Local.Endpoint.FS.(*fakefs.FS)
	srcFake.PutFile("/a.txt", []byte("hi"))

	loop := New(&scriptedRenderer{}, &action.Dispatcher{Browser: b}, b)
	task := transfer.NewTask(b.Local.Endpoint.FS, b.Remote.Endpoint.FS, []fsops.File{fsops.NewFile("/a.txt", fsops.KindRegular, 2)}, transfer.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	loop.RunTransfer(ctx, task)

	require.Eventually(t, func() bool {
		return task.State() == transfer.StateSucceeded
	}, time.Second, time.Millisecond)

	var done TransferDoneMsg
	require.Eventually(t, func() bool {
		select {
		case msg := <-loop.msgs:
			if d, ok := msg.(TransferDoneMsg); ok {
				done = d
				return true
			}
			return false // a ProgressMsg may precede the completion message
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	assert.Equal(t, task, done.Task)
}
