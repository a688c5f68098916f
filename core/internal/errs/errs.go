// Package errs holds the error kinds raised while compiling an AQL query.
package errs

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Kind classifies a compile failure.
type Kind int

const (
	// KindUnsupportedFeature is raised for valid AQL the compiler does not implement.
	KindUnsupportedFeature Kind = iota + 1

	// KindInvalidQuery is raised for queries that are impossible against the
	// reference model.
	KindInvalidQuery

	// KindInternal marks broken invariants inside the compiler or the type catalog.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedFeature:
		return "unsupported_feature"
	case KindInvalidQuery:
		return "invalid_query"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the single error type of the compiler pipeline.
type Error struct {
	Kind Kind
	Msg  string

	// Path is the offending AQL fragment rendered back to text, if known.
	Path string

	// Stack is set when the error was recovered from a runtime panic.
	Stack []byte `json:"-"`
}

func (e *Error) Error() string {
	if e.Path != "" {
		return e.Msg + ": " + e.Path
	}
	return e.Msg
}

// Is lets errors.Is match on the kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Kind == e.Kind
}

// WithPath returns a copy of e carrying the rendered path.
func (e *Error) WithPath(path string) *Error {
	ne := *e
	ne.Path = path
	return &ne
}

func Unsupported(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnsupportedFeature, Msg: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidQuery, Msg: fmt.Sprintf(format, args...)}
}

func Internal(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Msg: fmt.Sprintf(format, args...)}
}

// Sentinels usable with errors.Is.
var (
	ErrUnsupportedFeature = &Error{Kind: KindUnsupportedFeature}
	ErrInvalidQuery       = &Error{Kind: KindInvalidQuery}
	ErrInternal           = &Error{Kind: KindInternal}
)

// KindOf returns the kind of err; errors that did not come from the compiler
// are reported as internal.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Recover converts a panic carrying an *Error (or anything else) into a
// returned error. Other panics keep the stack of the panicking goroutine.
// Use as: defer errs.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	switch v := r.(type) {
	case *Error:
		*err = v
	case error:
		*err = &Error{Kind: KindInternal, Msg: v.Error(), Stack: debug.Stack()}
	default:
		*err = &Error{Kind: KindInternal, Msg: fmt.Sprint(v), Stack: debug.Stack()}
	}
}

// StackOf returns the recovered stack carried by err, if any.
func StackOf(err error) []byte {
	var e *Error
	if errors.As(err, &e) {
		return e.Stack
	}
	return nil
}
