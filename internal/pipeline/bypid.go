package pipeline

import (
	"context"
	"io/fs"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/moondance-labs/netports/internal/proc"
	"github.com/moondance-labs/netports/pkg/model"
)

// ByPID lists the LISTEN ports of each pid, in the order given. A pid that no
// longer exists is reported with no ports.
func (s *Session) ByPID(ctx context.Context, pids []int, include6 bool) (model.ByPIDResult, error) {
	if len(pids) == 0 {
		return model.ByPIDResult{}, Usagef("Provide PIDs via --pid/--pids or names via --names/--name.")
	}

	byInode := s.snapshot(include6)

	entries := make([]model.PIDPorts, 0, len(pids))
	for _, pid := range pids {
		inodes, err := s.requestedInodes(ctx, pid)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return model.ByPIDResult{}, err
			}
			s.log.Warn("failed to read fd dir", zap.Int("pid", pid), zap.Error(err))
			inodes = proc.NewInodeSet()
		}

		entries = append(entries, model.PIDPorts{
			PID:   pid,
			Name:  s.names.Name(pid),
			Ports: listenPorts(inodes, byInode),
		})

		for _, inode := range inodes.Sorted() {
			if r, ok := byInode[inode]; ok {
				s.log.Debug("socket",
					zap.Int("pid", pid),
					zap.String("family", string(r.Family)),
					zap.Uint64("inode", inode),
					zap.Uint16("port", r.LocalPort),
					zap.String("state", r.State))
			}
		}
	}
	return model.ByPIDResult{Entries: entries}, nil
}

// listenPorts returns the distinct local ports of the LISTEN records among inodes.
func listenPorts(inodes proc.InodeSet, byInode map[uint64]model.SocketRecord) []int {
	seen := make(map[int]bool)
	ports := []int{}
	for inode := range inodes {
		r, ok := byInode[inode]
		if !ok || !r.IsListen() {
			continue
		}
		if p := int(r.LocalPort); !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}
	sort.Ints(ports)
	return ports
}
