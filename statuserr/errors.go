// Package statuserr defines the error taxonomy shared by the kv, smt, and
// store packages. Every failure that crosses a package boundary in this
// module is one of the kinds below, so callers can branch on Kind rather
// than on package-specific sentinel values.
package statuserr

import "fmt"

// Kind classifies a failure into one of the categories the state store
// contract distinguishes.
type Kind int

const (
	// NotFound means a key is absent. Not an exceptional condition.
	NotFound Kind = iota
	// InvalidInput means malformed caller input: wrong key length, a
	// malformed proof, a duplicate query key, an empty snapshot stack.
	InvalidInput
	// InvalidState means an operation was attempted against state that
	// does not support it: prevRoot mismatch, missing diff record, a
	// closed store.
	InvalidState
	// RootMismatch means a commit's checkRoot guard failed.
	RootMismatch
	// StorageError wraps a failure from the underlying KV engine.
	StorageError
	// Corruption means the on-disk data violates the content-address
	// invariant or a reachable node is missing. Fatal; never recovered
	// from speculatively.
	Corruption
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case InvalidState:
		return "invalid_state"
	case RootMismatch:
		return "root_mismatch"
	case StorageError:
		return "storage_error"
	case Corruption:
		return "corruption"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the concrete error type returned across package boundaries in
// this module.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, statuserr.ErrNotFound) work by comparing Kind to
// the Kind of a target *Error, such as one of the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error of the given kind, carrying cause as the
// underlying error.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// sentinels usable with errors.Is(err, statuserr.ErrNotFound) etc.
var (
	ErrNotFound      = &Error{Kind: NotFound, Message: "not found"}
	ErrInvalidInput  = &Error{Kind: InvalidInput, Message: "invalid input"}
	ErrInvalidState  = &Error{Kind: InvalidState, Message: "invalid state"}
	ErrRootMismatch  = &Error{Kind: RootMismatch, Message: "root mismatch"}
	ErrStorageError  = &Error{Kind: StorageError, Message: "storage error"}
	ErrCorruption    = &Error{Kind: Corruption, Message: "corruption"}
)

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// as is a tiny local copy of errors.As for a single concrete type, so this
// package does not need to import "errors" just for that one call site used
// by KindOf; kept private since callers should use errors.Is/As directly.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
