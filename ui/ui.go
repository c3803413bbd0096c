// Package ui is the render/input boundary EventLoop drives. Per §1's
// scope note, TUI widgets themselves stay out of this repo; ui only
// defines the interfaces a concrete terminal front-end would satisfy.
package ui

import "time"

// Msg is an abstract input event decoded from the terminal, or a
// background message (progress tick, transfer completion) injected
// onto the event loop's queue.
type Msg interface{}

// KeyMsg is a decoded keypress.
type KeyMsg struct {
	Key  string
	Rune rune
}

// ResizeMsg reports a terminal resize.
type ResizeMsg struct {
	Width, Height int
}

// Renderer is the terminal-facing boundary: EventLoop calls Render once
// per dirty tick and never writes to the terminal itself (§5: "the
// terminal is a process-wide singleton; only the EventLoop writes to
// it" — in practice, only through this interface).
type Renderer interface {
	// PollInput waits up to timeout for the next input event, or
	// returns nil, false if none arrived.
	PollInput(timeout time.Duration) (Msg, bool)

	// Render draws the given Browser/TransferTask snapshot. The
	// concrete type of state is left to the caller's view-model; ui
	// never depends on browser/transfer to avoid an import cycle back
	// into the engine packages.
	Render(state any)

	// Close releases the terminal (restores cooked mode, etc).
	Close() error
}
