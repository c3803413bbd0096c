package fsops

import (
	"fmt"
	"sync"
)

// NewFSFunc constructs a disconnected FS for one endpoint kind. Adapters
// register one of these from an init() func, mirroring the teacher's
// backend registration convention (fs.RegInfo{Name, NewFs} / fs.Register).
type NewFSFunc func(e *Endpoint) (FS, error)

// RegInfo describes one registered backend.
type RegInfo struct {
	Name        EndpointKind
	Description string
	NewFS       NewFSFunc
}

var (
	registryMu sync.RWMutex
	registry   = map[EndpointKind]*RegInfo{}
)

// Register adds a backend to the registry. Called from each backend
// package's init(); panics on duplicate registration (a programmer error,
// never a runtime condition).
func Register(info *RegInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[info.Name]; dup {
		panic(fmt.Sprintf("fsops: backend %q registered twice", info.Name))
	}
	registry[info.Name] = info
}

// NewFS looks up the registered backend for e.Kind and constructs its FS.
func NewFS(e *Endpoint) (FS, error) {
	registryMu.RLock()
	info, ok := registry[e.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, NewError(KindBadConfig, "new_fs", string(e.Kind), fmt.Errorf("unknown endpoint kind %q", e.Kind))
	}
	return info.NewFS(e)
}

// Registered lists the currently registered endpoint kinds, used by the
// URI parser and CLI help text.
func Registered() []EndpointKind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]EndpointKind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}
