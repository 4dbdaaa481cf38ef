package pipeline

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/moondance-labs/netports/internal/proc"
	"github.com/moondance-labs/netports/internal/proc/proctest"
	"github.com/moondance-labs/netports/pkg/model"
)

const (
	any4      = "00000000"
	loopback4 = "0100007F"
	tenOne    = "0100000A" // 10.0.0.1
	tenTwo    = "0200000A" // 10.0.0.2
)

// newTestSession wires a Session over fs with a test logger.
func newTestSession(t *testing.T, fs *proctest.FS) *Session {
	return NewSession(fs, SessionConfig{Logger: zaptest.NewLogger(t), Concurrency: 4})
}

// conflictHost has two nodes sharing 30335, a third listener on its own port,
// and an accepted connection on 30335 held by an unrelated process.
func conflictHost() *proctest.FS {
	fs := proctest.New()
	fs.SetTable(model.FamilyTCP4, proctest.Table(
		proctest.Row(0, any4, 30335, any4, 0, model.StateListen, 1),
		proctest.Row(1, any4, 30335, any4, 0, model.StateListen, 2),
		proctest.Row(2, any4, 30333, any4, 0, model.StateListen, 3),
		proctest.Row(3, loopback4, 30335, loopback4, 40000, model.StateEstablished, 4),
		proctest.Row(4, loopback4, 9944, any4, 0, model.StateListen, 5),
	))
	fs.AddProcess(100, &proctest.Process{Comm: "tanssi-node", FDs: map[string]string{
		"3": proctest.Socket(1),
		"4": proctest.Socket(5),
	}})
	fs.AddProcess(200, &proctest.Process{Comm: "polkadot", FDs: map[string]string{
		"3": proctest.Socket(2),
	}})
	fs.AddProcess(300, &proctest.Process{Comm: "tanssi-relay", FDs: map[string]string{
		"3": proctest.Socket(3),
		"7": proctest.Socket(4),
	}})
	fs.AddProcess(400, &proctest.Process{Comm: "bash"})
	fs.AddProcess(500, &proctest.Process{Comm: "secret", Unreadable: true})
	return fs
}

func TestByPort(t *testing.T) {
	s := newTestSession(t, conflictHost())
	ctx := context.Background()

	res, err := s.ByPort(ctx, 30335, false)
	require.NoError(t, err)
	assert.Equal(t, model.ByPortResult{
		Port: 30335,
		Listeners: []model.ProcessRef{
			{PID: 100, Name: "tanssi-node"},
			{PID: 200, Name: "polkadot"},
		},
	}, res)

	res, err = s.ByPort(ctx, 1, false)
	require.NoError(t, err)
	assert.NotNil(t, res.Listeners)
	assert.Empty(t, res.Listeners)

	for _, port := range []int{0, -1, 65536} {
		_, err = s.ByPort(ctx, port, false)
		assert.Equal(t, KindUsage, KindOf(err), "port %d", port)
	}
}

func TestByPID(t *testing.T) {
	s := newTestSession(t, conflictHost())
	ctx := context.Background()

	res, err := s.ByPID(ctx, []int{100, 400, 999}, false)
	require.NoError(t, err)
	assert.Equal(t, []model.PIDPorts{
		{PID: 100, Name: "tanssi-node", Ports: []int{9944, 30335}},
		{PID: 400, Name: "bash", Ports: []int{}},
		{PID: 999, Name: "?", Ports: []int{}},
	}, res.Entries)

	_, err = s.ByPID(ctx, []int{100, 500}, false)
	assert.Equal(t, KindPermission, KindOf(err))

	_, err = s.ByPID(ctx, nil, false)
	assert.Equal(t, KindUsage, KindOf(err))
}

func TestConflictsAll(t *testing.T) {
	s := newTestSession(t, conflictHost())

	res, err := s.Conflicts(context.Background(), ConflictsRequest{All: true})
	require.NoError(t, err)
	assert.Equal(t, []model.ConflictGroup{{
		Port:  30335,
		PIDs:  []int{100, 200},
		Names: map[int]string{100: "tanssi-node", 200: "polkadot"},
	}}, res.Conflicts)
}

func TestConflictsExplicit(t *testing.T) {
	s := newTestSession(t, conflictHost())
	ctx := context.Background()

	res, err := s.Conflicts(ctx, ConflictsRequest{PIDs: []int{100, 200, 300, 999}})
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, 30335, res.Conflicts[0].Port)
	assert.Equal(t, []int{100, 200}, res.Conflicts[0].PIDs, "the established socket of 300 is not a listener")

	res, err = s.Conflicts(ctx, ConflictsRequest{PIDs: []int{100, 300}})
	require.NoError(t, err)
	assert.NotNil(t, res.Conflicts)
	assert.Empty(t, res.Conflicts)

	_, err = s.Conflicts(ctx, ConflictsRequest{PIDs: []int{100, 500}})
	assert.Equal(t, KindPermission, KindOf(err))

	_, err = s.Conflicts(ctx, ConflictsRequest{})
	assert.Equal(t, KindUsage, KindOf(err))
}

func TestGroupConflictsDeterministic(t *testing.T) {
	byInode := map[uint64]model.SocketRecord{
		1: {Inode: 1, LocalPort: 9000, State: model.StateListen},
		2: {Inode: 2, LocalPort: 9000, State: model.StateListen},
		3: {Inode: 3, LocalPort: 80, State: model.StateListen},
		4: {Inode: 4, LocalPort: 80, State: model.StateListen},
		5: {Inode: 5, LocalPort: 80, State: model.StateListen},
		6: {Inode: 6, LocalPort: 443, State: model.StateListen},
		7: {Inode: 7, LocalPort: 443, State: model.StateEstablished},
	}
	owners := proc.Ownership{
		30: proc.NewInodeSet(1, 5),
		10: proc.NewInodeSet(2, 3),
		20: proc.NewInodeSet(4, 6),
		40: proc.NewInodeSet(7),
	}

	first := GroupConflicts(byInode, owners)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, GroupConflicts(byInode, owners))
	}

	require.Len(t, first, 2)
	assert.Equal(t, 80, first[0].Port)
	assert.Equal(t, []int{10, 20, 30}, first[0].PIDs)
	assert.Equal(t, 9000, first[1].Port)
	assert.Equal(t, []int{10, 30}, first[1].PIDs)
}

// countingFS records how often each namespace table is opened.
type countingFS struct {
	*proctest.FS
	mu    sync.Mutex
	opens map[int]int
}

func (c *countingFS) OpenNetTable(pid int, family model.Family) (io.ReadCloser, error) {
	c.mu.Lock()
	c.opens[pid]++
	c.mu.Unlock()
	return c.FS.OpenNetTable(pid, family)
}

// connectedPair returns a host where 100 and 200 hold both ends of
// 10.0.0.1:4000 <-> 10.0.0.2:5000. 200 also holds a stale mirrored row
// (inode 23) listed before its established one.
func connectedPair() *proctest.FS {
	fs := proctest.New()
	fs.SetTable(model.FamilyTCP4, proctest.Table(
		proctest.Row(0, any4, 30335, any4, 0, model.StateListen, 10),
		proctest.Row(1, tenOne, 4000, tenTwo, 5000, model.StateEstablished, 11),
		proctest.Row(2, tenTwo, 5000, tenOne, 4000, "08", 23),
		proctest.Row(3, tenTwo, 5000, tenOne, 4000, model.StateEstablished, 22),
		proctest.Row(4, any4, 30335, any4, 0, model.StateListen, 20),
		proctest.Row(5, loopback4, 30335, any4, 0, model.StateListen, 12),
	))
	fs.AddProcess(100, &proctest.Process{Comm: "node-a", NetNS: "net:[4026531992]", FDs: map[string]string{
		"3": proctest.Socket(10),
		"4": proctest.Socket(11),
		"5": proctest.Socket(12),
	}})
	fs.AddProcess(200, &proctest.Process{Comm: "node-b", NetNS: "net:[4026531992]", FDs: map[string]string{
		"3": proctest.Socket(20),
		"4": proctest.Socket(22),
		"5": proctest.Socket(23),
	}})
	fs.AddProcess(300, &proctest.Process{Comm: "idle", NetNS: "net:[4026531992]"})
	return fs
}

func TestConnections(t *testing.T) {
	s := newTestSession(t, connectedPair())

	res, err := s.Connections(context.Background(), []int{200, 100})
	require.NoError(t, err)

	require.Len(t, res.Nodes, 2)
	assert.Equal(t, model.Node{
		PID:   100,
		Name:  "node-a",
		NetNS: "net:[4026531992]",
		ListenersV4: []model.Listener{
			{IP: "0.0.0.0", Port: 30335},
			{IP: "127.0.0.1", Port: 30335},
		},
	}, res.Nodes[0])
	assert.Equal(t, 200, res.Nodes[1].PID)

	pairs := 0
	for _, e := range res.Edges {
		if e.A.Inode == 11 && e.B.Inode == 22 || e.A.Inode == 22 && e.B.Inode == 11 {
			pairs++
		}
	}
	assert.Equal(t, 1, pairs, "each inode pair is reported once")

	edge := res.Edges[0]
	assert.Equal(t, 100, edge.APID)
	assert.Equal(t, 200, edge.BPID)
	assert.Equal(t, uint64(11), edge.A.Inode)
	assert.Equal(t, uint64(22), edge.B.Inode, "the established candidate wins over the stale one")
	assert.Equal(t, "10.0.0.1", edge.A.LocalIP)
	assert.Equal(t, 4000, edge.A.LocalPort)
	assert.Equal(t, "10.0.0.2", edge.A.RemoteIP)
	assert.Equal(t, 5000, edge.A.RemotePort)
	assert.Equal(t, "ESTABLISHED", edge.A.State)
	assert.False(t, res.SplitNamespaces)
}

func TestConnectionsSingleEdgeDeterministic(t *testing.T) {
	fs := proctest.New()
	fs.SetTable(model.FamilyTCP4, proctest.Table(
		proctest.Row(0, tenOne, 4000, tenTwo, 5000, model.StateEstablished, 11),
		proctest.Row(1, tenTwo, 5000, tenOne, 4000, model.StateEstablished, 22),
	))
	fs.AddProcess(1, &proctest.Process{Comm: "a", NetNS: "net:[1]", FDs: map[string]string{"3": proctest.Socket(11)}})
	fs.AddProcess(2, &proctest.Process{Comm: "b", NetNS: "net:[1]", FDs: map[string]string{"3": proctest.Socket(22)}})

	first, err := newTestSession(t, fs).Connections(context.Background(), []int{1, 2})
	require.NoError(t, err)
	require.Len(t, first.Edges, 1)
	assert.Equal(t, 1, first.Edges[0].APID)
	assert.Equal(t, 2, first.Edges[0].BPID)

	second, err := newTestSession(t, fs).Connections(context.Background(), []int{2, 1})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConnectionsReadsEachNamespaceOnce(t *testing.T) {
	fs := &countingFS{FS: connectedPair(), opens: make(map[int]int)}
	s := NewSession(fs, SessionConfig{Logger: zaptest.NewLogger(t)})

	_, err := s.Connections(context.Background(), []int{100, 200, 300})
	require.NoError(t, err)

	total := 0
	for _, n := range fs.opens {
		total += n
	}
	assert.Equal(t, 1, total)
}

func TestConnectionsSplitNamespaces(t *testing.T) {
	fs := proctest.New()
	empty := map[model.Family]string{model.FamilyTCP4: proctest.Table()}
	fs.AddProcess(1, &proctest.Process{Comm: "a", NetNS: "net:[1]", Tables: empty})
	fs.AddProcess(2, &proctest.Process{Comm: "b", NetNS: "net:[2]", Tables: empty})

	res, err := newTestSession(t, fs).Connections(context.Background(), []int{1, 2})
	require.NoError(t, err)
	assert.Empty(t, res.Edges)
	assert.True(t, res.SplitNamespaces)
}

func TestConnectionsErrors(t *testing.T) {
	fs := connectedPair()
	fs.AddProcess(500, &proctest.Process{Comm: "secret", Unreadable: true})
	s := newTestSession(t, fs)
	ctx := context.Background()

	_, err := s.Connections(ctx, []int{100})
	assert.Equal(t, KindUsage, KindOf(err))

	_, err = s.Connections(ctx, []int{100, 999})
	assert.Equal(t, KindUsage, KindOf(err))
	assert.EqualError(t, err, "PID 999 not found (no /proc/999).")

	_, err = s.Connections(ctx, []int{100, 500})
	assert.Equal(t, KindPermission, KindOf(err))
}

func TestCorrelateSkipsSamePID(t *testing.T) {
	a := model.ConnEntry{Inode: 1, StateHex: "01", LocalHex: tenOne, LocalPort: 1, RemoteHex: tenOne, RemotePort: 2}
	b := model.ConnEntry{Inode: 2, StateHex: "01", LocalHex: tenOne, LocalPort: 2, RemoteHex: tenOne, RemotePort: 1}

	edges := Correlate([]int{7, 8}, map[int][]model.ConnEntry{7: {a, b}})
	assert.Empty(t, edges, "a loopback connection inside one process is not an edge")
}

func TestCollectPIDs(t *testing.T) {
	s := newTestSession(t, conflictHost())
	pids, err := s.CollectPIDs([]int{400}, []string{"polkadot", "tanssi-node"})
	require.NoError(t, err)
	assert.Equal(t, []int{100, 200, 400}, pids)
}
