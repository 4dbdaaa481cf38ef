package proc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"

	"github.com/moondance-labs/netports/pkg/model"
)

// LiveFS reads a real procfs mount.
type LiveFS struct {
	root string
	fs   procfs.FS
}

// NewLiveFS opens the procfs mounted at root. It fails when root is not a
// readable directory, which means the host has no /proc to inspect.
func NewLiveFS(root string) (*LiveFS, error) {
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, errors.Wrapf(err, "open procfs at %s", root)
	}
	return &LiveFS{root: root, fs: fs}, nil
}

func (l *LiveFS) Root() string {
	return l.root
}

func (l *LiveFS) PIDs() ([]int, error) {
	procs, err := l.fs.AllProcs()
	if err != nil {
		return nil, err
	}
	pids := make([]int, 0, len(procs))
	for _, p := range procs {
		pids = append(pids, p.PID)
	}
	return pids, nil
}

func (l *LiveFS) Exists(pid int) bool {
	_, err := l.fs.Proc(pid)
	return err == nil
}

func (l *LiveFS) FDs(pid int) ([]string, error) {
	entries, err := os.ReadDir(l.path(pid, "fd"))
	if err != nil {
		return nil, err
	}
	fds := make([]string, 0, len(entries))
	for _, e := range entries {
		fds = append(fds, e.Name())
	}
	return fds, nil
}

func (l *LiveFS) Readlink(pid int, fd string) (string, error) {
	return os.Readlink(l.path(pid, "fd", fd))
}

func (l *LiveFS) Comm(pid int) (string, error) {
	p, err := l.fs.Proc(pid)
	if err != nil {
		return "", err
	}
	return p.Comm()
}

func (l *LiveFS) Cmdline(pid int) ([]string, error) {
	p, err := l.fs.Proc(pid)
	if err != nil {
		return nil, err
	}
	return p.CmdLine()
}

func (l *LiveFS) NetNS(pid int) (string, error) {
	p, err := l.fs.Proc(pid)
	if err != nil {
		return "", err
	}
	nss, err := p.Namespaces()
	if err != nil {
		return "", err
	}
	ns, ok := nss["net"]
	if !ok {
		return "", errors.Errorf("pid %d has no net namespace entry", pid)
	}
	return fmt.Sprintf("%s:[%d]", ns.Type, ns.Inode), nil
}

func (l *LiveFS) OpenNetTable(pid int, family model.Family) (io.ReadCloser, error) {
	name := "tcp"
	if family == model.FamilyTCP6 {
		name = "tcp6"
	}
	if pid == SelfNamespace {
		return os.Open(filepath.Join(l.root, "net", name))
	}
	return os.Open(l.path(pid, "net", name))
}

func (l *LiveFS) path(pid int, elem ...string) string {
	return filepath.Join(append([]string{l.root, strconv.Itoa(pid)}, elem...)...)
}
