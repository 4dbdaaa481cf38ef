package model

// Family is the address family of a socket table.
type Family string

const (
	FamilyTCP4 Family = "tcp4"
	FamilyTCP6 Family = "tcp6"
)

// Kernel TCP state codes as printed in /proc/net/tcp (include/net/tcp_states.h).
const (
	StateEstablished = "01"
	StateListen      = "0A"
)

var stateNames = map[string]string{
	"01": "ESTABLISHED",
	"02": "SYN_SENT",
	"03": "SYN_RECV",
	"04": "FIN_WAIT1",
	"05": "FIN_WAIT2",
	"06": "TIME_WAIT",
	"07": "CLOSE",
	"08": "CLOSE_WAIT",
	"09": "LAST_ACK",
	"0A": "LISTEN",
	"0B": "CLOSING",
	"0C": "NEW_SYN_RECV",
}

// StateName returns the symbolic name of a kernel state code, or the code itself.
func StateName(code string) string {
	if s, ok := stateNames[code]; ok {
		return s
	}
	return code
}

// SocketRecord is one row of a kernel socket table.
// Addresses keep the kernel's raw hex encoding (little-endian per 32-bit word).
type SocketRecord struct {
	Inode      uint64
	LocalAddr  string
	LocalPort  uint16
	RemoteAddr string
	RemotePort uint16
	State      string
	Family     Family
}

func (r SocketRecord) IsListen() bool {
	return r.State == StateListen
}

func (r SocketRecord) IsEstablished() bool {
	return r.State == StateEstablished
}

type Listener struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// ConnEntry is a non-listening IPv4 socket held by a process.
type ConnEntry struct {
	Inode      uint64 `json:"inode"`
	Protocol   Family `json:"protocol"`
	StateHex   string `json:"stateHex"`
	State      string `json:"state"`
	LocalIP    string `json:"localIp"`
	LocalPort  int    `json:"localPort"`
	RemoteIP   string `json:"remIp"`
	RemotePort int    `json:"remPort"`
	LocalHex   string `json:"localHex"`
	RemoteHex  string `json:"remHex"`
}
