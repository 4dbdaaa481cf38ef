package reuseport

import (
	"context"
	"net"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Listen binds host:port with SO_REUSEPORT set. With v6only on an IPv6
// address the socket does not accept IPv4-mapped connections.
func Listen(ctx context.Context, host string, port int, v6only bool) (net.Listener, error) {
	lc := net.ListenConfig{Control: control(v6only)}
	return lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
}

func control(v6only bool) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			if serr != nil {
				serr = errors.Wrap(serr, "setsockopt SO_REUSEPORT")
				return
			}
			if v6only && strings.HasSuffix(network, "6") {
				if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); e != nil {
					serr = errors.Wrap(e, "setsockopt IPV6_V6ONLY")
				}
			}
		})
		if err != nil {
			return err
		}
		return serr
	}
}

// ErrnoName returns the symbolic name of the errno carried by err, such as
// "EADDRINUSE", or "" when err carries none.
func ErrnoName(err error) string {
	errno, ok := Errno(err)
	if !ok {
		return ""
	}
	return unix.ErrnoName(errno)
}
