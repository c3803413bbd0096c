// Package pane owns one side of the dual-pane browser: an FsOps
// endpoint and its Explorer, connected flag and label.
package pane

import (
	"context"

	"github.com/duotui/duotui/explorer"
	"github.com/duotui/duotui/fsops"
)

// Pane is one side of the Browser.
type Pane struct {
	Endpoint  *fsops.Endpoint
	Explorer  *explorer.Explorer
	Connected bool
	Label     string
}

// New builds a disconnected Pane for endpoint, rooted at wrkdir.
func New(endpoint *fsops.Endpoint, wrkdir, fmtTemplate, label string) *Pane {
	return &Pane{
		Endpoint: endpoint,
		Explorer: explorer.New(wrkdir, fmtTemplate),
		Label:    label,
	}
}

// Connect opens the pane's endpoint and seeds Explorer.Wrkdir from the
// connect welcome metadata.
func (p *Pane) Connect(ctx context.Context) error {
	info, err := p.Endpoint.FS.Connect(ctx)
	if err != nil {
		return err
	}
	p.Connected = true
	p.Label = info.Hostname
	if info.Pwd != "" {
		p.Explorer.Wrkdir = info.Pwd
	}
	return nil
}

// Disconnect tears the endpoint down; idempotent.
func (p *Pane) Disconnect(ctx context.Context) error {
	if !p.Connected {
		return nil
	}
	err := p.Endpoint.FS.Disconnect(ctx)
	p.Connected = false
	return err
}

// Reload lists the current wrkdir and feeds it to Explorer.SetFiles.
func (p *Pane) Reload(ctx context.Context) error {
	files, err := p.Endpoint.FS.ListDir(ctx, p.Explorer.Wrkdir)
	if err != nil {
		return err
	}
	p.Explorer.SetFiles(files)
	p.Explorer.CacheListing(p.Explorer.Wrkdir, files)
	return nil
}

// ToAbsPath joins p against the explorer's wrkdir if relative.
func (p *Pane) ToAbsPath(rel string) string {
	return p.Explorer.ToAbsPath(rel)
}

// Cd changes directory on the endpoint and updates the Explorer, per
// §4.3: change_dir on the FS, then reload.
func (p *Pane) Cd(ctx context.Context, dir string) error {
	abs := p.ToAbsPath(dir)
	newWd, err := p.Endpoint.FS.ChangeDir(ctx, abs)
	if err != nil {
		return err
	}
	p.Explorer.Cd(newWd)
	return p.Reload(ctx)
}
