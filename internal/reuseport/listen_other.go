//go:build !linux

package reuseport

import (
	"context"
	"net"
	"runtime"

	"github.com/pkg/errors"
)

func Listen(context.Context, string, int, bool) (net.Listener, error) {
	return nil, errors.Errorf("SO_REUSEPORT probing is not supported on %s", runtime.GOOS)
}

func ErrnoName(err error) string {
	return ""
}
