// Package apperr holds the error kinds shared by the pricing and order
// lifecycle modules. Callers wrap a sentinel with detail
// (fmt.Errorf("%w: ...", apperr.ErrInvalidRequest)) and match with errors.Is.
package apperr

import "errors"

type Kind string

const (
	KindInternal               Kind = "Internal"
	KindInvalidCoordinate      Kind = "InvalidCoordinate"
	KindInvalidRequest         Kind = "InvalidRequest"
	KindOutOfServiceArea       Kind = "OutOfServiceArea"
	KindInvalidTransition      Kind = "InvalidTransition"
	KindMissingPrecondition    Kind = "MissingPrecondition"
	KindInvalidState           Kind = "InvalidState"
	KindNotFound               Kind = "NotFound"
	KindInvalidSignature       Kind = "InvalidSignature"
	KindConcurrentModification Kind = "ConcurrentModification"
)

var (
	ErrInvalidCoordinate      = &kindError{kind: KindInvalidCoordinate, msg: "invalid coordinate"}
	ErrInvalidRequest         = &kindError{kind: KindInvalidRequest, msg: "invalid request"}
	ErrOutOfServiceArea       = &kindError{kind: KindOutOfServiceArea, msg: "outside service area"}
	ErrInvalidTransition      = &kindError{kind: KindInvalidTransition, msg: "invalid status transition"}
	ErrMissingPrecondition    = &kindError{kind: KindMissingPrecondition, msg: "missing transition precondition"}
	ErrInvalidState           = &kindError{kind: KindInvalidState, msg: "operation not allowed in current state"}
	ErrNotFound               = &kindError{kind: KindNotFound, msg: "not found"}
	ErrInvalidSignature       = &kindError{kind: KindInvalidSignature, msg: "invalid signature"}
	ErrConcurrentModification = &kindError{kind: KindConcurrentModification, msg: "concurrent modification"}
)

var sentinels = []*kindError{
	ErrInvalidCoordinate,
	ErrInvalidRequest,
	ErrOutOfServiceArea,
	ErrInvalidTransition,
	ErrMissingPrecondition,
	ErrInvalidState,
	ErrNotFound,
	ErrInvalidSignature,
	ErrConcurrentModification,
}

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

// KindOf returns the kind of the first sentinel found in err's chain,
// or KindInternal for anything else.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.kind
		}
	}
	return KindInternal
}

// Retryable reports whether the caller may re-read state and reissue.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
