package app

import (
	"github.com/pkg/errors"

	"github.com/moondance-labs/netports/internal/pipeline"
)

// Exit codes follow sysexits(3).
const (
	ExitOK       = 0
	ExitNoMatch  = 1 // --exit-code: conflicts found or bind failed
	ExitUsage    = 64
	ExitOSErr    = 71
	ExitNoPerm   = 77
	ExitPlatform = 78
)

// exitError ends the invocation with a specific code after the result has
// already been printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "exit status" }

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	switch pipeline.KindOf(err) {
	case pipeline.KindUsage:
		return ExitUsage
	case pipeline.KindPermission:
		return ExitNoPerm
	case pipeline.KindPlatform:
		return ExitPlatform
	default:
		return ExitOSErr
	}
}
