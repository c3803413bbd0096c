package fsops

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind classifies an Error the way §7 of the design names them — never
// by concrete Go type, so callers can switch on Kind across backends.
type ErrKind int

// Error kinds.
const (
	KindUnknown ErrKind = iota
	KindAuth
	KindNetwork
	KindProtocol
	KindPermission
	KindNotFound
	KindExists
	KindNotDir
	KindDirNotEmpty
	KindNoSpace
	KindIO
	KindUnsupported
	KindCancelled
	KindBadConfig
	KindNotConnected
)

func (k ErrKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindExists:
		return "exists"
	case KindNotDir:
		return "not_dir"
	case KindDirNotEmpty:
		return "dir_not_empty"
	case KindNoSpace:
		return "no_space"
	case KindIO:
		return "io"
	case KindUnsupported:
		return "unsupported"
	case KindCancelled:
		return "cancelled"
	case KindBadConfig:
		return "bad_config"
	case KindNotConnected:
		return "not_connected"
	default:
		return "unknown"
	}
}

// NetworkSub further classifies a KindNetwork error.
type NetworkSub int

// Network sub-kinds.
const (
	NetworkNone NetworkSub = iota
	NetworkTimeout
	NetworkConnectionClosed
	NetworkDNS
)

// Error is the single concrete error type every FsOps call returns.
type Error struct {
	Kind    ErrKind
	NetSub  NetworkSub
	Op      string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
	if e.Kind == KindNetwork && e.NetSub != NetworkNone {
		msg = fmt.Sprintf("%s (%v)", msg, e.NetSub)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap lets callers use stdlib errors.Is/As against the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error, wrapping cause with the op/path context via
// github.com/pkg/errors so a later %+v still prints a stack trace.
// A cause that is (or wraps) context.DeadlineExceeded overrides kind
// with KindNetwork/NetworkTimeout.
func NewError(kind ErrKind, op, path string, cause error) *Error {
	var wrapped error
	sub := NetworkNone
	if cause != nil {
		wrapped = errors.Wrapf(cause, "%s %s", op, path)
		if errors.Is(cause, context.DeadlineExceeded) {
			kind, sub = KindNetwork, NetworkTimeout
		}
	}
	return &Error{Kind: kind, NetSub: sub, Op: op, Path: path, Err: wrapped}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrKind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// IsFatalForRoot reports whether kind aborts the remainder of the current
// transfer root, per §4.5/§7: Network, Cancelled, NoSpace.
func IsFatalForRoot(kind ErrKind) bool {
	switch kind {
	case KindNetwork, KindCancelled, KindNoSpace:
		return true
	default:
		return false
	}
}

// IsFatalForTask reports whether kind aborts the entire TransferTask,
// per §7: Auth, NotConnected.
func IsFatalForTask(kind ErrKind) bool {
	switch kind {
	case KindAuth, KindNotConnected:
		return true
	default:
		return false
	}
}
