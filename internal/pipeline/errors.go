package pipeline

import (
	"github.com/pkg/errors"
)

// Kind classifies the errors that abort an invocation.
type Kind int

const (
	KindInternal Kind = iota
	KindUsage
	KindPermission
	KindPlatform
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindPermission:
		return "permission"
	case KindPlatform:
		return "platform"
	default:
		return "internal"
	}
}

// Error is a classified fatal error.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Cause() error  { return e.err }

func Usagef(format string, args ...any) error {
	return &Error{Kind: KindUsage, err: errors.Errorf(format, args...)}
}

func Permissionf(format string, args ...any) error {
	return &Error{Kind: KindPermission, err: errors.Errorf(format, args...)}
}

func Platformf(format string, args ...any) error {
	return &Error{Kind: KindPlatform, err: errors.Errorf(format, args...)}
}

// AsUsage classifies err as a usage error, keeping its message.
func AsUsage(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindUsage, err: err}
}

// KindOf returns the kind of the first Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
