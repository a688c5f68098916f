package core

import (
	"errors"

	"github.com/ehrbase/aqlengine/core/internal/errs"
)

// Error is returned for every compile failure. Msg describes the problem,
// Path holds the offending AQL fragment when known.
type Error = errs.Error

// ErrorKind tells whether the query used an unsupported feature, was invalid
// or hit a bug in the compiler.
type ErrorKind = errs.Kind

const (
	KindUnsupportedFeature = errs.KindUnsupportedFeature
	KindInvalidQuery       = errs.KindInvalidQuery
	KindInternal           = errs.KindInternal
)

// Use with errors.Is.
var (
	ErrUnsupportedFeature = errs.ErrUnsupportedFeature
	ErrInvalidQuery       = errs.ErrInvalidQuery
	ErrInternal           = errs.ErrInternal
)

// KindOf returns the kind of a compile error. Errors from outside the
// compiler count as internal.
func KindOf(err error) ErrorKind {
	return errs.KindOf(err)
}

// wrapError makes sure every error leaving the engine is an *Error.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.Internal("%s", err.Error())
}
