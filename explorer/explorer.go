// Package explorer is the per-pane directory view: current directory,
// cached listing, sort/filter/hidden policy, selection, transfer
// queue and navigation history. It is pure in-memory state with no
// knowledge of any particular backend — the teacher's vfs package
// plays the analogous caching role (a directory-entry cache keyed by
// path, refreshed on demand), which this package generalizes from
// FUSE-attribute caching to TUI listing/sort/format state.
package explorer

import (
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	gocache "github.com/patrickmn/go-cache"

	"github.com/duotui/duotui/fsops"
)

// SortBy is the listing's primary sort key.
type SortBy int

const (
	SortByName SortBy = iota
	SortByMTime
	SortBySize
	SortByCreation
)

// SortDir is ascending or descending.
type SortDir int

const (
	SortAsc SortDir = iota
	SortDesc
)

// GroupDirs controls where directories land relative to files.
type GroupDirs int

const (
	GroupFirst GroupDirs = iota
	GroupLast
	GroupNone
)

// listingCacheTTL bounds how long a list_dir result is reused without a
// reload, avoiding a PROPFIND/ListObjectsV2 round trip on every render.
const listingCacheTTL = 2 * time.Second

// Explorer is one pane's directory view.
type Explorer struct {
	Wrkdir        string
	Files         []fsops.File
	SortBy        SortBy
	SortDir       SortDir
	ShowHidden    bool
	GroupDirs     GroupDirs
	FmtTemplate   string
	Selection     map[int]bool
	TransferQueue []fsops.File
	History       []string
	SelectedIndex int

	cache *gocache.Cache
}

// New builds an Explorer rooted at wrkdir with the given format template.
func New(wrkdir, fmtTemplate string) *Explorer {
	return &Explorer{
		Wrkdir:      wrkdir,
		FmtTemplate: fmtTemplate,
		GroupDirs:   GroupFirst,
		Selection:   map[int]bool{},
		cache:       gocache.New(listingCacheTTL, listingCacheTTL*2),
	}
}

// CacheListing stores a list_dir result for dir, letting a caller avoid
// re-listing on every render tick.
func (e *Explorer) CacheListing(dir string, files []fsops.File) {
	e.cache.Set(dir, files, gocache.DefaultExpiration)
}

// CachedListing returns a cached listing for dir, if still fresh.
func (e *Explorer) CachedListing(dir string) ([]fsops.File, bool) {
	v, ok := e.cache.Get(dir)
	if !ok {
		return nil, false
	}
	files, ok := v.([]fsops.File)
	return files, ok
}

// SetFiles normalizes, filters and sorts a fresh listing, then clamps
// SelectedIndex into range — the contract §4.2 requires after every
// list_dir refresh.
func (e *Explorer) SetFiles(files []fsops.File) {
	filtered := files[:0:0]
	for _, f := range files {
		if !e.ShowHidden && strings.HasPrefix(f.Name, ".") {
			continue
		}
		filtered = append(filtered, f)
	}
	sortFiles(filtered, e.SortBy, e.SortDir, e.GroupDirs)
	e.Files = filtered
	e.Selection = map[int]bool{}
	if e.SelectedIndex >= len(e.Files) {
		e.SelectedIndex = len(e.Files) - 1
	}
	if e.SelectedIndex < 0 {
		e.SelectedIndex = 0
	}
}

// sortFiles applies §4.2's order: group, then primary key, then a
// stable name-ascending tiebreak.
func sortFiles(files []fsops.File, by SortBy, dir SortDir, group GroupDirs) {
	less := func(i, j int) bool {
		a, b := files[i], files[j]
		if group != GroupNone {
			ad, bd := a.Kind == fsops.KindDirectory, b.Kind == fsops.KindDirectory
			if ad != bd {
				if group == GroupFirst {
					return ad
				}
				return bd
			}
		}
		primary := comparePrimary(a, b, by)
		if primary != 0 {
			if dir == SortDesc {
				return primary > 0
			}
			return primary < 0
		}
		return a.Name < b.Name
	}
	sort.SliceStable(files, less)
}

// comparePrimary returns <0, 0, >0 for a<b, a==b, a>b on the chosen key.
func comparePrimary(a, b fsops.File, by SortBy) int {
	switch by {
	case SortBySize:
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		default:
			return 0
		}
	case SortByMTime, SortByCreation:
		ta, tb := a.ModTime, b.ModTime
		if by == SortByCreation {
			ta, tb = a.ChgTime, b.ChgTime
		}
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		default:
			return 0
		}
	default: // SortByName
		return strings.Compare(a.Name, b.Name)
	}
}

// Cd pushes the current wrkdir onto History and sets the new one,
// returning the previous value.
func (e *Explorer) Cd(newDir string) (previous string) {
	previous = e.Wrkdir
	e.History = append(e.History, e.Wrkdir)
	e.Wrkdir = newDir
	return previous
}

// Pop pops the history stack; ok is false when empty.
func (e *Explorer) Pop() (dir string, ok bool) {
	if len(e.History) == 0 {
		return "", false
	}
	last := len(e.History) - 1
	dir = e.History[last]
	e.History = e.History[:last]
	e.Wrkdir = dir
	return dir, true
}

// Select sets the single-selection index.
func (e *Explorer) Select(index int) {
	if index < 0 || index >= len(e.Files) {
		return
	}
	e.SelectedIndex = index
}

// ToggleQueue toggles one index in the multi-selection set.
func (e *Explorer) ToggleQueue(index int) {
	if index < 0 || index >= len(e.Files) {
		return
	}
	if e.Selection[index] {
		delete(e.Selection, index)
	} else {
		e.Selection[index] = true
	}
}

// SelectedFiles returns every file currently in Selection, falling
// back to the single SelectedIndex when Selection is empty.
func (e *Explorer) SelectedFiles() []fsops.File {
	if len(e.Selection) == 0 {
		if e.SelectedIndex < len(e.Files) {
			return []fsops.File{e.Files[e.SelectedIndex]}
		}
		return nil
	}
	out := make([]fsops.File, 0, len(e.Selection))
	for i := range e.Selection {
		if i < len(e.Files) {
			out = append(out, e.Files[i])
		}
	}
	return out
}

// EnqueueTransfer appends files to TransferQueue, skipping duplicates
// by path (the supplemented queue feature named in SPEC_FULL.md).
func (e *Explorer) EnqueueTransfer(files ...fsops.File) {
	seen := make(map[string]bool, len(e.TransferQueue))
	for _, f := range e.TransferQueue {
		seen[f.Path] = true
	}
	for _, f := range files {
		if !seen[f.Path] {
			e.TransferQueue = append(e.TransferQueue, f)
			seen[f.Path] = true
		}
	}
}

// DequeueTransfer removes files matching path p from TransferQueue.
func (e *Explorer) DequeueTransfer(p string) {
	out := e.TransferQueue[:0]
	for _, f := range e.TransferQueue {
		if f.Path != p {
			out = append(out, f)
		}
	}
	e.TransferQueue = out
}

// Format renders one row for f per e.FmtTemplate. Tokens:
// {NAME} {SIZE} {MTIME} {USER} {GROUP} {MODE} {PATH} {SYMLINK}
// {EXTENSION}, each optionally carrying a width specifier
// ({NAME:<40}, {SIZE:>10}). Unknown tokens render literally.
func (e *Explorer) Format(f fsops.File) string {
	return formatTemplate(e.FmtTemplate, f)
}

func formatTemplate(tmpl string, f fsops.File) string {
	var out strings.Builder
	i := 0
	for i < len(tmpl) {
		if tmpl[i] != '{' {
			out.WriteByte(tmpl[i])
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			out.WriteString(tmpl[i:])
			break
		}
		token := tmpl[i+1 : i+end]
		out.WriteString(renderToken(token, f))
		i += end + 1
	}
	return out.String()
}

func renderToken(token string, f fsops.File) string {
	name, spec := token, ""
	if idx := strings.IndexByte(token, ':'); idx >= 0 {
		name, spec = token[:idx], token[idx+1:]
	}
	var value string
	switch name {
	case "NAME":
		value = f.Name
	case "SIZE":
		if f.Kind == fsops.KindDirectory {
			value = "<DIR>"
		} else {
			value = strconv.FormatInt(f.Size, 10)
		}
	case "MTIME":
		if f.HasTime {
			value = f.ModTime.Format("2006-01-02 15:04")
		}
	case "USER":
		if f.HasOwner {
			value = strconv.FormatUint(uint64(f.UID), 10)
		}
	case "GROUP":
		if f.HasOwner {
			value = strconv.FormatUint(uint64(f.GID), 10)
		}
	case "MODE":
		if f.Mode.Valid {
			value = modeString(f.Mode)
		}
	case "PATH":
		value = f.Path
	case "SYMLINK":
		value = f.SymlinkTarget
	case "EXTENSION":
		value = f.Extension()
	default:
		return "{" + token + "}"
	}
	return applyWidth(value, spec)
}

// applyWidth pads/truncates value per a "<N" (left-align) or ">N"
// (right-align) width spec, measuring display width with go-runewidth
// so CJK/wide glyphs still line up in a monospace terminal column.
func applyWidth(value, spec string) string {
	if spec == "" {
		return value
	}
	align := spec[0]
	if align != '<' && align != '>' {
		return value
	}
	width, err := strconv.Atoi(spec[1:])
	if err != nil {
		return value
	}
	w := runewidth.StringWidth(value)
	if w >= width {
		return runewidth.Truncate(value, width, "")
	}
	pad := strings.Repeat(" ", width-w)
	if align == '<' {
		return value + pad
	}
	return pad + value
}

func modeString(m fsops.Mode) string {
	const rwx = "rwxrwxrwx"
	var b strings.Builder
	for i := 0; i < 9; i++ {
		if m.Perm&(1<<(8-i)) != 0 {
			b.WriteByte(rwx[i])
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ToAbsPath joins p against Wrkdir if relative, normalizing . and ..
func (e *Explorer) ToAbsPath(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Clean(path.Join(e.Wrkdir, p))
}
