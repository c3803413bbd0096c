// Package browser pairs two Panes (local and remote) behind the
// active/opposite routing axis that keeps every upstream operation
// symmetric regardless of which side is "local".
package browser

import (
	"context"

	"github.com/duotui/duotui/explorer"
	"github.com/duotui/duotui/pane"
)

// Tab is the active tab in the dual-pane browser.
type Tab int

const (
	TabLocal Tab = iota
	TabRemote
	TabFindLocal
	TabFindRemote
)

// Browser owns both panes plus the active-tab/found/sync_browsing state.
type Browser struct {
	Local  *pane.Pane
	Remote *pane.Pane

	ActiveTab    Tab
	Found        *explorer.Explorer // set only while a Find tab is active
	SyncBrowsing bool
}

// New builds a Browser over already-constructed panes.
func New(local, remote *pane.Pane) *Browser {
	return &Browser{Local: local, Remote: remote, ActiveTab: TabLocal}
}

// ActivePane returns local for Local/FindLocal, remote for Remote/FindRemote.
func (b *Browser) ActivePane() *pane.Pane {
	if b.ActiveTab == TabRemote || b.ActiveTab == TabFindRemote {
		return b.Remote
	}
	return b.Local
}

// OppositePane mirrors ActivePane.
func (b *Browser) OppositePane() *pane.Pane {
	if b.ActiveTab == TabRemote || b.ActiveTab == TabFindRemote {
		return b.Local
	}
	return b.Remote
}

// IsFindTab reports whether the active tab is a search-results tab.
func (b *Browser) IsFindTab() bool {
	return b.ActiveTab == TabFindLocal || b.ActiveTab == TabFindRemote
}

// SelectionSource returns the Explorer selection operates against: the
// found Explorer on a Find tab, otherwise the active pane's own.
// Operations still route their FsOps calls through ActivePane().
func (b *Browser) SelectionSource() *explorer.Explorer {
	if b.IsFindTab() && b.Found != nil {
		return b.Found
	}
	return b.ActivePane().Explorer
}

// ToggleTab flips Local<->Remote, or exits a Find tab back to its
// non-find counterpart.
func (b *Browser) ToggleTab() {
	switch b.ActiveTab {
	case TabLocal:
		b.ActiveTab = TabRemote
	case TabRemote:
		b.ActiveTab = TabLocal
	case TabFindLocal:
		b.ActiveTab = TabLocal
		b.Found = nil
	case TabFindRemote:
		b.ActiveTab = TabRemote
		b.Found = nil
	}
}

// SwitchTo sets the active tab directly. Switching into a Find tab
// without first calling EnterFind is a programmer error: Found would
// be nil and SelectionSource would fall through to ActivePane, which
// silently breaks the Find-tab invariant in §3 — callers use EnterFind.
func (b *Browser) SwitchTo(tab Tab) {
	b.ActiveTab = tab
}

// EnterFind switches to the Find tab matching the currently active
// pane and installs found as its result set, maintaining the §3
// invariant `active_tab ∈ {FindLocal, FindRemote} ⇒ found.is_some()`.
func (b *Browser) EnterFind(found *explorer.Explorer) {
	b.Found = found
	if b.ActiveTab == TabRemote || b.ActiveTab == TabFindRemote {
		b.ActiveTab = TabFindRemote
	} else {
		b.ActiveTab = TabFindLocal
	}
}

// SyncCd performs Cd on the active pane and, when SyncBrowsing is on
// and the active tab isn't a Find tab, mirrors the same relative move
// on the opposite pane. A failure mirroring onto the opposite pane is
// reported but never rolled back and never turns SyncBrowsing off
// (§4.4); the caller (ActionDispatcher) is responsible for logging
// oppositeErr.
func (b *Browser) SyncCd(ctx context.Context, rel string) (oppositeErr error, err error) {
	active := b.ActivePane()
	if err := active.Cd(ctx, rel); err != nil {
		return nil, err
	}
	if !b.SyncBrowsing || b.IsFindTab() {
		return nil, nil
	}
	opposite := b.OppositePane()
	if !opposite.Connected {
		// Open question resolved in DESIGN.md: log and continue.
		return errNotConnected{}, nil
	}
	return opposite.Cd(ctx, rel), nil
}

type errNotConnected struct{}

func (errNotConnected) Error() string { return "opposite pane not connected" }
