// Package reuseport opens TCP listeners that share their port with SO_REUSEPORT.
package reuseport

import (
	"context"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// DefaultHold is how long Probe keeps its listener open.
const DefaultHold = 400 * time.Millisecond

// Probe binds host:port, keeps the listener open for hold so other tools can
// observe it, then closes it. Cancelling ctx shortens the hold.
func Probe(ctx context.Context, host string, port int, v6only bool, hold time.Duration) error {
	ln, err := Listen(ctx, host, port, v6only)
	if err != nil {
		return err
	}
	defer ln.Close()

	if hold <= 0 {
		return nil
	}
	t := time.NewTimer(hold)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	return nil
}

// Errno extracts the OS error number from a failed bind, if there is one.
func Errno(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}
