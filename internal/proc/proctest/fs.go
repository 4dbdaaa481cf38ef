// Package proctest provides an in-memory proc.FS for tests.
package proctest

import (
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/moondance-labs/netports/pkg/model"
)

// Process describes one fake /proc/<pid> entry.
type Process struct {
	Comm    string
	Cmdline []string
	NetNS   string
	// FDs maps descriptor names to their link targets, e.g. "3" -> "socket:[100]".
	FDs map[string]string
	// BrokenFDs are listed in fd/ but fail to resolve with the given error.
	BrokenFDs map[string]error
	// Unreadable makes fd/ listing fail with a permission error.
	Unreadable bool
	// Tables, when set, are served for /proc/<pid>/net/tcp{,6}.
	Tables map[model.Family]string
}

// FS is a map-backed proc.FS. Methods are safe for concurrent use.
type FS struct {
	mu     sync.Mutex
	procs  map[int]*Process
	tables map[model.Family]string
	// ListErr, when set, is returned by PIDs.
	ListErr error
}

func New() *FS {
	return &FS{
		procs:  make(map[int]*Process),
		tables: make(map[model.Family]string),
	}
}

// AddProcess registers p under pid and returns p for further setup.
func (f *FS) AddProcess(pid int, p *Process) *Process {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.FDs == nil {
		p.FDs = make(map[string]string)
	}
	f.procs[pid] = p
	return p
}

// SetTable sets the text of /proc/net/tcp or /proc/net/tcp6.
func (f *FS) SetTable(family model.Family, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[family] = text
}

func (f *FS) PIDs() ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	pids := make([]int, 0, len(f.procs))
	for pid := range f.procs {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids, nil
}

func (f *FS) Exists(pid int) bool {
	_, err := f.get(pid, "")
	return err == nil
}

func (f *FS) FDs(pid int) ([]string, error) {
	p, err := f.get(pid, "fd")
	if err != nil {
		return nil, err
	}
	if p.Unreadable {
		return nil, pathErr(pid, "fd", fs.ErrPermission)
	}
	fds := make([]string, 0, len(p.FDs)+len(p.BrokenFDs))
	for fd := range p.FDs {
		fds = append(fds, fd)
	}
	for fd := range p.BrokenFDs {
		if _, ok := p.FDs[fd]; !ok {
			fds = append(fds, fd)
		}
	}
	sort.Strings(fds)
	return fds, nil
}

func (f *FS) Readlink(pid int, fd string) (string, error) {
	p, err := f.get(pid, "fd/"+fd)
	if err != nil {
		return "", err
	}
	if err, ok := p.BrokenFDs[fd]; ok {
		return "", pathErr(pid, "fd/"+fd, err)
	}
	target, ok := p.FDs[fd]
	if !ok {
		return "", pathErr(pid, "fd/"+fd, fs.ErrNotExist)
	}
	return target, nil
}

func (f *FS) Comm(pid int) (string, error) {
	p, err := f.get(pid, "comm")
	if err != nil {
		return "", err
	}
	return p.Comm, nil
}

func (f *FS) Cmdline(pid int) ([]string, error) {
	p, err := f.get(pid, "cmdline")
	if err != nil {
		return nil, err
	}
	return p.Cmdline, nil
}

func (f *FS) NetNS(pid int) (string, error) {
	p, err := f.get(pid, "ns/net")
	if err != nil {
		return "", err
	}
	if p.NetNS == "" {
		return "", pathErr(pid, "ns/net", fs.ErrPermission)
	}
	return p.NetNS, nil
}

func (f *FS) OpenNetTable(pid int, family model.Family) (io.ReadCloser, error) {
	name := "net/tcp"
	if family == model.FamilyTCP6 {
		name = "net/tcp6"
	}
	if pid == 0 {
		f.mu.Lock()
		text, ok := f.tables[family]
		f.mu.Unlock()
		if !ok {
			return nil, &fs.PathError{Op: "open", Path: "/proc/" + name, Err: fs.ErrNotExist}
		}
		return io.NopCloser(strings.NewReader(text)), nil
	}

	p, err := f.get(pid, name)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if text, ok := p.Tables[family]; ok {
		return io.NopCloser(strings.NewReader(text)), nil
	}
	// Processes without their own tables share the global namespace.
	if text, ok := f.tables[family]; ok {
		return io.NopCloser(strings.NewReader(text)), nil
	}
	return nil, pathErr(pid, name, fs.ErrNotExist)
}

func (f *FS) get(pid int, name string) (*Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.procs[pid]
	if !ok {
		return nil, pathErr(pid, name, fs.ErrNotExist)
	}
	return p, nil
}

func pathErr(pid int, name string, err error) error {
	return &fs.PathError{Op: "open", Path: "/proc/" + strconv.Itoa(pid) + "/" + name, Err: err}
}

// Row renders one /proc/net/tcp line. Addresses are given in kernel hex.
func Row(slot int, local string, localPort uint16, remote string, remotePort uint16, state string, inode uint64) string {
	return fmt.Sprintf("%4d: %s:%04X %s:%04X %s 00000000:00000000 00:00000000 00000000  1000        0 %d 1 0000000000000000 100 0 0 10 0",
		slot, local, localPort, remote, remotePort, state, inode)
}

// Header is the first line of /proc/net/tcp.
const Header = "  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode"

// Table joins Header and rows into table text.
func Table(rows ...string) string {
	return Header + "\n" + strings.Join(rows, "\n") + "\n"
}

// Socket returns the fd link target of a socket inode.
func Socket(inode uint64) string {
	return "socket:[" + strconv.FormatUint(inode, 10) + "]"
}
