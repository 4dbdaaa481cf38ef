package proc

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/moondance-labs/netports/pkg/model"
)

// DefaultConcurrency bounds the number of in-flight /proc reads per batch.
const DefaultConcurrency = 64

// InodeSet is a set of socket inodes.
type InodeSet map[uint64]struct{}

func NewInodeSet(inodes ...uint64) InodeSet {
	s := make(InodeSet, len(inodes))
	for _, i := range inodes {
		s[i] = struct{}{}
	}
	return s
}

func (s InodeSet) Add(inode uint64) { s[inode] = struct{}{} }

func (s InodeSet) Has(inode uint64) bool {
	_, ok := s[inode]
	return ok
}

func (s InodeSet) Sorted() []uint64 {
	out := make([]uint64, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Ownership maps a pid to the socket inodes it holds open. Pids without a
// matching socket are absent, never mapped to an empty set.
type Ownership map[int]InodeSet

// PIDs returns the owning pids in ascending order.
func (o Ownership) PIDs() []int {
	pids := make([]int, 0, len(o))
	for pid := range o {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

// Scanner reads socket tables and correlates socket inodes with the
// processes holding them.
type Scanner struct {
	fs    FS
	log   *zap.Logger
	limit int
}

type Option func(*Scanner)

func WithLogger(log *zap.Logger) Option {
	return func(s *Scanner) { s.log = log }
}

func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.limit = n
		}
	}
}

func NewScanner(fs FS, opts ...Option) *Scanner {
	s := &Scanner{fs: fs, log: zap.NewNop(), limit: DefaultConcurrency}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Tables reads the IPv4 table, plus IPv6 when include6 is set, of the
// namespace selected by pid (SelfNamespace for the caller's). A missing
// table reads as empty.
func (s *Scanner) Tables(pid int, include6 bool) []model.SocketRecord {
	rows := s.table(pid, model.FamilyTCP4)
	if include6 {
		rows = append(rows, s.table(pid, model.FamilyTCP6)...)
	}
	return rows
}

func (s *Scanner) table(pid int, family model.Family) []model.SocketRecord {
	f, err := s.fs.OpenNetTable(pid, family)
	if err != nil {
		s.log.Debug("socket table unavailable", zap.Int("pid", pid), zap.String("family", string(family)), zap.Error(err))
		return nil
	}
	defer f.Close()
	return ParseNetTable(f, family)
}

// Owners scans every process and returns which of them hold the target
// inodes. Processes that exit or deny access during the scan are skipped.
// The error is only set when the process list itself cannot be read.
func (s *Scanner) Owners(ctx context.Context, targets InodeSet) (Ownership, error) {
	pids, err := s.fs.PIDs()
	if err != nil {
		return nil, errors.Wrap(err, "list processes")
	}

	slots := make([]InodeSet, len(pids))
	g := new(errgroup.Group)
	g.SetLimit(s.limit)
	for i, pid := range pids {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			found, err := s.scan(pid, targets.Has)
			if err != nil {
				s.log.Debug("skipping process", zap.Int("pid", pid), zap.Error(err))
				return nil
			}
			slots[i] = found
			return nil
		})
	}
	_ = g.Wait()

	owners := make(Ownership)
	for i, found := range slots {
		if len(found) == 0 {
			continue
		}
		owners[pids[i]] = found
		for _, inode := range found.Sorted() {
			s.log.Debug("process owns socket", zap.Int("pid", pids[i]), zap.Uint64("inode", inode))
		}
	}
	return owners, ctx.Err()
}

// ProcessInodes returns every socket inode pid holds. An error means the
// descriptor table itself could not be listed (gone or permission denied).
func (s *Scanner) ProcessInodes(ctx context.Context, pid int) (InodeSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := s.scan(pid, func(uint64) bool { return true })
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = NewInodeSet()
	}
	return found, nil
}

func (s *Scanner) scan(pid int, keep func(uint64) bool) (InodeSet, error) {
	fds, err := s.fs.FDs(pid)
	if err != nil {
		return nil, err
	}

	links := make([]uint64, len(fds))
	g := new(errgroup.Group)
	g.SetLimit(s.limit)
	for i, fd := range fds {
		g.Go(func() error {
			target, err := s.fs.Readlink(pid, fd)
			if err != nil {
				return nil
			}
			if inode, ok := socketInode(target); ok {
				links[i] = inode
			}
			return nil
		})
	}
	_ = g.Wait()

	var found InodeSet
	for _, inode := range links {
		if inode == 0 || !keep(inode) {
			continue
		}
		if found == nil {
			found = NewInodeSet()
		}
		found.Add(inode)
	}
	return found, nil
}

// socketInode extracts N from a descriptor target of the form "socket:[N]".
func socketInode(target string) (uint64, bool) {
	if !strings.HasPrefix(target, "socket:[") || !strings.HasSuffix(target, "]") {
		return 0, false
	}
	inode, err := strconv.ParseUint(target[len("socket:["):len(target)-1], 10, 64)
	if err != nil {
		return 0, false
	}
	return inode, true
}
