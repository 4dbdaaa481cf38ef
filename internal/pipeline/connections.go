package pipeline

import (
	"context"
	"io/fs"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/moondance-labs/netports/internal/proc"
	"github.com/moondance-labs/netports/pkg/model"
)

// Connections finds the direct TCP/IPv4 connections among pids. Each pid is
// matched against the socket table of its own network namespace.
func (s *Session) Connections(ctx context.Context, pids []int) (model.ConnectionsResult, error) {
	if len(pids) < 2 {
		return model.ConnectionsResult{}, Usagef("Provide at least two PIDs or names.")
	}
	pids = append([]int(nil), pids...)
	sort.Ints(pids)

	tables := make(map[string][]model.SocketRecord)
	conns := make(map[int][]model.ConnEntry, len(pids))
	nodes := make([]model.Node, 0, len(pids))
	namespaces := make(map[string]bool)

	for _, pid := range pids {
		if !s.fs.Exists(pid) {
			return model.ConnectionsResult{}, Usagef("PID %d not found (no /proc/%d).", pid, pid)
		}
		inodes, err := s.requestedInodes(ctx, pid)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return model.ConnectionsResult{}, Usagef("PID %d not found (no /proc/%d).", pid, pid)
			}
			return model.ConnectionsResult{}, err
		}

		ns := s.names.NetNS(pid)
		namespaces[ns] = true
		key := ns
		if ns == proc.Unknown {
			key = "pid:" + strconv.Itoa(pid)
		}
		rows, ok := tables[key]
		if !ok {
			rows = s.scanner.Tables(pid, false)
			tables[key] = rows
			s.log.Debug("read namespace socket table", zap.Int("pid", pid), zap.String("netns", ns), zap.Int("rows", len(rows)))
		}

		listeners, entries := splitOwned(rows, inodes)
		conns[pid] = entries
		nodes = append(nodes, model.Node{
			PID:         pid,
			Name:        s.names.Name(pid),
			NetNS:       ns,
			ListenersV4: listeners,
		})
	}

	edges := Correlate(pids, conns)
	return model.ConnectionsResult{
		Nodes:           nodes,
		Edges:           edges,
		SplitNamespaces: len(edges) == 0 && len(namespaces) > 1,
	}, nil
}

// splitOwned partitions the IPv4 records held in inodes into distinct
// listeners, sorted by address then port, and connection entries.
func splitOwned(rows []model.SocketRecord, inodes proc.InodeSet) ([]model.Listener, []model.ConnEntry) {
	listeners := []model.Listener{}
	var entries []model.ConnEntry
	seen := make(map[model.Listener]bool)

	for _, r := range rows {
		if r.Family != model.FamilyTCP4 || !inodes.Has(r.Inode) {
			continue
		}
		if r.IsListen() {
			l := model.Listener{IP: decodeIPv4(r.LocalAddr), Port: int(r.LocalPort)}
			if !seen[l] {
				seen[l] = true
				listeners = append(listeners, l)
			}
			continue
		}
		entries = append(entries, model.ConnEntry{
			Inode:      r.Inode,
			Protocol:   model.FamilyTCP4,
			StateHex:   r.State,
			State:      model.StateName(r.State),
			LocalIP:    decodeIPv4(r.LocalAddr),
			LocalPort:  int(r.LocalPort),
			RemoteIP:   decodeIPv4(r.RemoteAddr),
			RemotePort: int(r.RemotePort),
			LocalHex:   r.LocalAddr,
			RemoteHex:  r.RemoteAddr,
		})
	}

	sort.Slice(listeners, func(i, j int) bool {
		if listeners[i].IP != listeners[j].IP {
			return listeners[i].IP < listeners[j].IP
		}
		return listeners[i].Port < listeners[j].Port
	})
	return listeners, entries
}

type tuple struct {
	localHex   string
	localPort  int
	remoteHex  string
	remotePort int
}

func forward(e model.ConnEntry) tuple {
	return tuple{e.LocalHex, e.LocalPort, e.RemoteHex, e.RemotePort}
}

func mirrored(e model.ConnEntry) tuple {
	return tuple{e.RemoteHex, e.RemotePort, e.LocalHex, e.LocalPort}
}

type owned struct {
	pid   int
	entry model.ConnEntry
}

// Correlate pairs each connection entry with an entry of another pid whose
// endpoints are its mirror image. When several match, one where both sides
// are ESTABLISHED wins, else the first. A physical connection is reported
// once, keyed by its two inodes. pids fixes the visiting order.
func Correlate(pids []int, conns map[int][]model.ConnEntry) []model.Edge {
	index := make(map[tuple][]owned)
	for _, pid := range pids {
		for _, e := range conns[pid] {
			k := forward(e)
			index[k] = append(index[k], owned{pid, e})
		}
	}

	edges := []model.Edge{}
	seen := make(map[[2]uint64]bool)
	for _, aPID := range pids {
		for _, a := range conns[aPID] {
			var candidates []owned
			for _, c := range index[mirrored(a)] {
				if c.pid != aPID {
					candidates = append(candidates, c)
				}
			}
			if len(candidates) == 0 {
				continue
			}

			best := candidates[0]
			if a.StateHex == model.StateEstablished {
				for _, c := range candidates {
					if c.entry.StateHex == model.StateEstablished {
						best = c
						break
					}
				}
			}

			key := [2]uint64{a.Inode, best.entry.Inode}
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, model.Edge{APID: aPID, BPID: best.pid, A: a, B: best.entry})
		}
	}
	return edges
}

func decodeIPv4(raw string) string {
	ip, err := proc.DecodeIPv4(raw)
	if err != nil {
		return raw
	}
	return ip
}
