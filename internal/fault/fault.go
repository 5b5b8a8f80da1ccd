// Package fault defines the closed error taxonomy shared by the storage,
// sync and cache layers. Callers match on Kind with errors.As or IsKind
// instead of comparing ad-hoc error strings.
package fault

import "errors"

// Kind classifies a failure.
type Kind int

const (
	// StorageInit means the local database failed to open or was blocked
	// by another open connection. Terminal for this session's persistence.
	StorageInit Kind = iota
	// StorageOp means a single put/get/delete failed after a successful
	// init. The store stays usable for subsequent operations.
	StorageOp
	// Sync means a network failure or non-200 response during a pull from
	// the server. Partial application is possible; nothing is rolled back.
	Sync
	// CacheFetch means both the cache and the network failed for a
	// resource. The cache layer resolves this internally with a
	// placeholder response; the kind exists for logging and install-time
	// precache failures.
	CacheFetch
)

func (k Kind) String() string {
	switch k {
	case StorageInit:
		return "storage-init"
	case StorageOp:
		return "storage-op"
	case Sync:
		return "sync"
	case CacheFetch:
		return "cache-fetch"
	}
	return "unknown"
}

// Error is a tagged failure with an optional wrapped cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

// New wraps cause (which may be nil) into a tagged Error.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf extracts the Kind from err if it is (or wraps) a fault.Error.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is (or wraps) a fault.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
