package apperr

import "errors"

type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuth            Kind = "auth"
	KindConflict        Kind = "conflict"
	KindNotFound        Kind = "not_found"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindUnavailable     Kind = "unavailable"
	KindArchive         Kind = "archive"
)

func (k Kind) String() string { return string(k) }

// Error carries a user-facing message and the kind used to pick a status code.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrAuth            = &Error{Kind: KindAuth}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrPayloadTooLarge = &Error{Kind: KindPayloadTooLarge}
	ErrUnavailable     = &Error{Kind: KindUnavailable}
	ErrArchive         = &Error{Kind: KindArchive}
)

func Validation(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }
func Auth(msg string) error       { return &Error{Kind: KindAuth, Msg: msg} }
func Conflict(msg string) error   { return &Error{Kind: KindConflict, Msg: msg} }
func NotFound(msg string) error   { return &Error{Kind: KindNotFound, Msg: msg} }

func PayloadTooLarge(msg string) error { return &Error{Kind: KindPayloadTooLarge, Msg: msg} }

func Unavailable(msg string, err error) error {
	return &Error{Kind: KindUnavailable, Msg: msg, Err: err}
}

func Archive(msg string, err error) error {
	return &Error{Kind: KindArchive, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the user-facing message of err, falling back to def.
func Message(err error, def string) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return def
}

// Expected reports whether err is a user error that should not be logged as a fault.
func Expected(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindAuth, KindConflict, KindNotFound, KindPayloadTooLarge:
		return true
	default:
		return false
	}
}
