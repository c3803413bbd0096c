// Package eventloop implements the single-threaded cooperative tick
// loop of spec.md §4.7: poll input, drain background messages, handle
// them, render if dirty, sleep to the next tick boundary. Key handling
// covers quit and tab toggling only; the loop holds a Dispatcher but
// does not call it.
package eventloop

import (
	"context"
	"time"

	"github.com/duotui/duotui/action"
	"github.com/duotui/duotui/browser"
	"github.com/duotui/duotui/internal/applog"
	"github.com/duotui/duotui/internal/progress"
	"github.com/duotui/duotui/transfer"
	"github.com/duotui/duotui/ui"
)

// DefaultTick is the 16ms tick boundary named in §5.
const DefaultTick = 16 * time.Millisecond

// msgQueueSize bounds the background-message channel so draining never
// blocks past the tick boundary (SPEC_FULL §4.7 ADD).
const msgQueueSize = 256

// ProgressMsg carries a transfer progress snapshot onto the queue.
type ProgressMsg struct {
	Task *transfer.Task
}

// TransferDoneMsg announces a finished TransferTask.
type TransferDoneMsg struct {
	Task    *transfer.Task
	Summary transfer.Summary
}

// QuitMsg requests event-loop exit.
type QuitMsg struct{ Err error }

// Loop owns the queue and drives Renderer/Dispatcher/Browser for one
// process lifetime.
type Loop struct {
	Renderer   ui.Renderer
	Dispatcher *action.Dispatcher
	Browser    *browser.Browser
	Tick       time.Duration

	msgs  chan ui.Msg
	dirty bool
}

// New builds a Loop with a bounded message queue.
func New(r ui.Renderer, d *action.Dispatcher, b *browser.Browser) *Loop {
	return &Loop{
		Renderer:   r,
		Dispatcher: d,
		Browser:    b,
		Tick:       DefaultTick,
		msgs:       make(chan ui.Msg, msgQueueSize),
		dirty:      true, // force an initial render
	}
}

// Post enqueues a background message (progress tick, transfer
// completion) without blocking; the message is dropped and logged if
// the queue is full, per the bounded-channel contract.
func (l *Loop) Post(msg ui.Msg) {
	select {
	case l.msgs <- msg:
	default:
		applog.WithFields(map[string]any{"queue": "eventloop"}).Warn("dropped message: queue full")
	}
}

// Run drives the tick loop until ctx is cancelled or a QuitMsg arrives.
// It returns the exit error (nil on a clean quit), per §6's exit codes
// 0/1/2/130 — the caller (cmd/duotui) maps the returned error to a code.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Renderer.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tickStart := time.Now()

		// (a) poll terminal input with a short timeout, leaving
		// headroom in the 16ms budget for draining + routing + render.
		if msg, ok := l.Renderer.PollInput(l.Tick / 2); ok {
			if quit, err := l.handle(ctx, msg); quit {
				return err
			}
		}

		// (b) drain the background-message queue without blocking
		// past the tick boundary.
	drain:
		for {
			select {
			case msg := <-l.msgs:
				if quit, err := l.handle(ctx, msg); quit {
					return err
				}
			default:
				break drain
			}
		}

		// (d) render only if something changed this tick.
		if l.dirty {
			l.Renderer.Render(l.Browser)
			l.dirty = false
		}

		// (e) sleep to the next tick boundary.
		elapsed := time.Since(tickStart)
		if remaining := l.Tick - elapsed; remaining > 0 {
			select {
			case <-time.After(remaining):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// handle applies one message to the loop's Browser state and reports
// whether the loop should exit.
func (l *Loop) handle(ctx context.Context, msg ui.Msg) (quit bool, err error) {
	switch m := msg.(type) {
	case QuitMsg:
		return true, m.Err

	case ui.ResizeMsg:
		l.dirty = true
		return false, nil

	case ui.KeyMsg:
		l.dirty = true
		return l.handleKey(ctx, m)

	case ProgressMsg:
		l.dirty = true
		return false, nil

	case TransferDoneMsg:
		l.dirty = true
		if err := l.Browser.ActivePane().Reload(ctx); err != nil {
			applog.Errorf("reload after transfer: %v", err)
		}
		if err := l.Browser.OppositePane().Reload(ctx); err != nil {
			applog.Errorf("reload after transfer: %v", err)
		}
		return false, nil

	default:
		return false, nil
	}
}

// handleKey is the concrete input->intent mapping: ctrl+c and esc quit,
// tab toggles the Browser tab, and every other key is ignored. No key is
// routed to the Dispatcher, and there is no key-binding table.
func (l *Loop) handleKey(ctx context.Context, key ui.KeyMsg) (quit bool, err error) {
	switch key.Key {
	case "ctrl+c", "esc":
		return true, nil
	case "tab":
		l.Browser.ToggleTab()
		return false, nil
	}
	return false, nil
}

// RunTransfer starts task on a worker goroutine (§5's worker-thread
// offload contract: exclusive endpoint borrow, single-producer bounded
// channel back to the loop) and posts a TransferDoneMsg on completion.
func (l *Loop) RunTransfer(ctx context.Context, task *transfer.Task) {
	task.OnProgress = func(progress.Snapshot) { l.Post(ProgressMsg{Task: task}) }
	go func() {
		summary := task.Run(ctx)
		l.Post(TransferDoneMsg{Task: task, Summary: summary})
	}()
}
