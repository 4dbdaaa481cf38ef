package pipeline

import (
	"context"
	"io/fs"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/moondance-labs/netports/internal/proc"
	"github.com/moondance-labs/netports/pkg/model"
)

// ByPort lists the processes holding a LISTEN socket on port in the
// caller's network namespace.
func (s *Session) ByPort(ctx context.Context, port int, include6 bool) (model.ByPortResult, error) {
	if err := validPort(port); err != nil {
		return model.ByPortResult{}, err
	}
	refs, err := s.listenersOn(ctx, port, include6)
	if err != nil {
		return model.ByPortResult{}, err
	}
	return model.ByPortResult{Port: port, Listeners: refs}, nil
}

// listenersOn returns the owners of the LISTEN sockets on port, by pid.
func (s *Session) listenersOn(ctx context.Context, port int, include6 bool) ([]model.ProcessRef, error) {
	targets := proc.NewInodeSet()
	for _, r := range s.scanner.Tables(proc.SelfNamespace, include6) {
		if r.IsListen() && int(r.LocalPort) == port {
			targets.Add(r.Inode)
		}
	}

	refs := []model.ProcessRef{}
	if len(targets) == 0 {
		return refs, nil
	}

	owners, err := s.scanner.Owners(ctx, targets)
	if err != nil {
		return nil, err
	}
	for _, pid := range owners.PIDs() {
		refs = append(refs, model.ProcessRef{PID: pid, Name: s.names.Name(pid)})
	}
	return refs, nil
}

// snapshot reads the caller's socket tables once and indexes them by inode.
func (s *Session) snapshot(include6 bool) map[uint64]model.SocketRecord {
	rows := s.scanner.Tables(proc.SelfNamespace, include6)
	byInode := make(map[uint64]model.SocketRecord, len(rows))
	for _, r := range rows {
		byInode[r.Inode] = r
	}
	return byInode
}

// requestedInodes scans a pid the caller asked about by number or name.
// Permission denial is fatal here; a vanished process is returned as an
// fs.ErrNotExist error for the caller to decide.
func (s *Session) requestedInodes(ctx context.Context, pid int) (proc.InodeSet, error) {
	inodes, err := s.scanner.ProcessInodes(ctx, pid)
	switch {
	case err == nil:
		return inodes, nil
	case errors.Is(err, fs.ErrPermission):
		return nil, Permissionf("Permission denied reading sockets for PID %d. Try elevated privileges.", pid)
	case errors.Is(err, fs.ErrNotExist):
		s.log.Debug("requested process not found", zap.Int("pid", pid))
		return nil, errors.Wrapf(err, "PID %d not found", pid)
	default:
		return nil, errors.Wrapf(err, "Error reading sockets for PID %d", pid)
	}
}
