package model

// Command tags one operation's result.
type Command string

const (
	CommandByPort             Command = "by-port"
	CommandByPID              Command = "by-pid"
	CommandCheckConflicts     Command = "check-conflicts"
	CommandProbeReusePort     Command = "probe-reuseport"
	CommandConnectionsBetween Command = "connections-between"
)

// Result is the closed set of operation results. Presentation code switches on
// the concrete type; the unexported method keeps other packages from adding cases.
type Result interface {
	Command() Command
	result()
}

type ProcessRef struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`
}

type ByPortResult struct {
	Port      int          `json:"port"`
	Listeners []ProcessRef `json:"listeners"`
}

type PIDPorts struct {
	PID   int    `json:"pid"`
	Name  string `json:"name"`
	Ports []int  `json:"ports"`
}

type ByPIDResult struct {
	Entries []PIDPorts `json:"entries"`
}

// ConflictGroup is a port LISTENed by more than one process.
type ConflictGroup struct {
	Port  int            `json:"port"`
	PIDs  []int          `json:"pids"`
	Names map[int]string `json:"names"`
}

type ConflictsResult struct {
	Conflicts []ConflictGroup `json:"conflicts"`
}

// ProbeError carries the OS error of a failed bind.
type ProbeError struct {
	Code    string `json:"code,omitempty"`
	Errno   int    `json:"errno,omitempty"`
	Message string `json:"message"`
}

type ProbeResult struct {
	Port     int          `json:"port"`
	Host     string       `json:"host"`
	IPv6Only bool         `json:"ipv6Only"`
	HoldMS   int64        `json:"holdMs"`
	Before   []ProcessRef `json:"before"`
	Bound    bool         `json:"bound"`
	Error    *ProbeError  `json:"error,omitempty"`
}

type Node struct {
	PID         int        `json:"pid"`
	Name        string     `json:"name"`
	NetNS       string     `json:"netns"`
	ListenersV4 []Listener `json:"listeners_v4"`
}

// Edge is a live connection whose two ends are held by APID and BPID.
type Edge struct {
	APID int       `json:"aPid"`
	BPID int       `json:"bPid"`
	A    ConnEntry `json:"a"`
	B    ConnEntry `json:"b"`
}

type ConnectionsResult struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	// SplitNamespaces is set when no edge was found and the nodes live in
	// more than one network namespace.
	SplitNamespaces bool `json:"splitNamespaces,omitempty"`
}

func (ByPortResult) Command() Command      { return CommandByPort }
func (ByPIDResult) Command() Command       { return CommandByPID }
func (ConflictsResult) Command() Command   { return CommandCheckConflicts }
func (ProbeResult) Command() Command       { return CommandProbeReusePort }
func (ConnectionsResult) Command() Command { return CommandConnectionsBetween }

func (ByPortResult) result()      {}
func (ByPIDResult) result()       {}
func (ConflictsResult) result()   {}
func (ProbeResult) result()       {}
func (ConnectionsResult) result() {}
