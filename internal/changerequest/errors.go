package changerequest

import "github.com/go-faster/errors"

// Kind classifies workflow failures for the transport layer.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidType         = &Error{Kind: KindValidation, Message: "invalid change request type"}
	ErrInvalidStatus       = &Error{Kind: KindValidation, Message: "invalid change request status"}
	ErrInvalidReturnTarget = &Error{Kind: KindValidation, Message: "returnTo must be ProjectManager or SubPMO"}
	ErrReasonRequired      = &Error{Kind: KindValidation, Message: "rejection reason is required"}
	ErrUnauthorized        = &Error{Kind: KindAuthorization, Message: "actor is not allowed to perform this action"}
	ErrTerminalState       = &Error{Kind: KindConflict, Message: "change request is already closed"}
	ErrInvalidTransition   = &Error{Kind: KindConflict, Message: "transition is not allowed from the current status"}
)

// KindOf extracts the workflow error kind from err, if any.
func KindOf(err error) (Kind, bool) {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Kind, true
	}
	return 0, false
}
