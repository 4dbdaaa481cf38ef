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

// ConflictsRequest selects whose listeners are compared. All scans every
// process; otherwise only PIDs are scanned.
type ConflictsRequest struct {
	All      bool
	PIDs     []int
	Include6 bool
}

// Conflicts reports the ports on which more than one process holds a
// LISTEN socket.
func (s *Session) Conflicts(ctx context.Context, req ConflictsRequest) (model.ConflictsResult, error) {
	if !req.All && len(req.PIDs) == 0 {
		return model.ConflictsResult{}, Usagef("Provide PIDs or names, or use --all.")
	}

	byInode := s.snapshot(req.Include6)

	var owners proc.Ownership
	if req.All {
		listening := proc.NewInodeSet()
		for inode, r := range byInode {
			if r.IsListen() {
				listening.Add(inode)
			}
		}
		var err error
		if owners, err = s.scanner.Owners(ctx, listening); err != nil {
			return model.ConflictsResult{}, err
		}
	} else {
		owners = make(proc.Ownership, len(req.PIDs))
		for _, pid := range req.PIDs {
			inodes, err := s.requestedInodes(ctx, pid)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					return model.ConflictsResult{}, err
				}
				s.log.Warn("failed to read fd dir", zap.Int("pid", pid), zap.Error(err))
				continue
			}
			if len(inodes) > 0 {
				owners[pid] = inodes
			}
		}
	}

	groups := GroupConflicts(byInode, owners)
	for i := range groups {
		g := &groups[i]
		for _, pid := range g.PIDs {
			g.Names[pid] = s.names.Name(pid)
			for _, inode := range owners[pid].Sorted() {
				if r := byInode[inode]; r.IsListen() && int(r.LocalPort) == g.Port {
					s.log.Debug("conflicting listener",
						zap.Int("pid", pid),
						zap.String("family", string(r.Family)),
						zap.Uint64("inode", inode),
						zap.Int("port", g.Port))
				}
			}
		}
	}
	return model.ConflictsResult{Conflicts: groups}, nil
}

// GroupConflicts groups the LISTEN records owned in owners by local port and
// keeps the ports held by more than one pid. Groups are ordered by port and
// pids ascend within a group. Names are left empty for the caller to fill.
func GroupConflicts(byInode map[uint64]model.SocketRecord, owners proc.Ownership) []model.ConflictGroup {
	byPort := make(map[int]map[int]struct{})
	for pid, inodes := range owners {
		for inode := range inodes {
			r, ok := byInode[inode]
			if !ok || !r.IsListen() {
				continue
			}
			port := int(r.LocalPort)
			if byPort[port] == nil {
				byPort[port] = make(map[int]struct{})
			}
			byPort[port][pid] = struct{}{}
		}
	}

	groups := []model.ConflictGroup{}
	for port, set := range byPort {
		if len(set) < 2 {
			continue
		}
		pids := make([]int, 0, len(set))
		for pid := range set {
			pids = append(pids, pid)
		}
		sort.Ints(pids)
		groups = append(groups, model.ConflictGroup{Port: port, PIDs: pids, Names: make(map[int]string, len(pids))})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Port < groups[j].Port })
	return groups
}
