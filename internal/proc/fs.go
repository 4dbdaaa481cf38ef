package proc

import (
	"io"

	"github.com/moondance-labs/netports/pkg/model"
)

// DefaultRoot is where procfs is normally mounted.
const DefaultRoot = "/proc"

// SelfNamespace selects the caller's own network namespace in OpenNetTable.
const SelfNamespace = 0

// FS abstracts the parts of /proc this tool reads, so tests can substitute a fake.
type FS interface {
	// PIDs lists the numerically named entries of the process root.
	PIDs() ([]int, error)

	// Exists reports whether the process has an entry in the process root.
	Exists(pid int) bool

	// FDs lists the names of the entries of /proc/<pid>/fd.
	FDs(pid int) ([]string, error)

	// Readlink resolves /proc/<pid>/fd/<fd>, e.g. "socket:[12345]".
	Readlink(pid int, fd string) (string, error)

	// Comm reads /proc/<pid>/comm without the trailing newline.
	Comm(pid int) (string, error)

	// Cmdline reads /proc/<pid>/cmdline split on NUL bytes.
	Cmdline(pid int) ([]string, error)

	// NetNS returns an opaque token naming the network namespace of pid.
	NetNS(pid int) (string, error)

	// OpenNetTable opens /proc/net/tcp{,6} for SelfNamespace, or
	// /proc/<pid>/net/tcp{,6} for the namespace of pid.
	OpenNetTable(pid int, family model.Family) (io.ReadCloser, error)
}
