package proc

import (
	"strings"
)

// Unknown is shown for a process whose name cannot be read.
const Unknown = "?"

// NameResolver turns pids into display names. It caches every answer, so one
// resolver must not outlive the invocation that created it. Not safe for
// concurrent use.
type NameResolver struct {
	fs    FS
	cache map[int]string
}

func NewNameResolver(fs FS) *NameResolver {
	return &NameResolver{fs: fs, cache: make(map[int]string)}
}

// Name prefers comm, then the command line with NULs turned into spaces.
func (n *NameResolver) Name(pid int) string {
	if name, ok := n.cache[pid]; ok {
		return name
	}
	name := n.lookup(pid)
	n.cache[pid] = name
	return name
}

func (n *NameResolver) lookup(pid int) string {
	if comm, err := n.fs.Comm(pid); err == nil {
		if comm = strings.TrimRight(comm, "\n"); comm != "" {
			return comm
		}
	}
	if args, err := n.fs.Cmdline(pid); err == nil {
		cmd := strings.TrimSpace(strings.ReplaceAll(strings.Join(args, " "), "\x00", " "))
		if cmd != "" {
			return cmd
		}
	}
	return Unknown
}

// NetNS returns the network namespace token of pid, or Unknown.
func (n *NameResolver) NetNS(pid int) string {
	ns, err := n.fs.NetNS(pid)
	if err != nil || ns == "" {
		return Unknown
	}
	return ns
}
