package proc

import (
	"bufio"
	"encoding/hex"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/moondance-labs/netports/pkg/model"
)

// /proc/net/tcp{,6} column layout:
// sl local_address rem_address st tx_queue:rx_queue tr:tm->when retrnsmt uid timeout inode ...
const (
	fieldLocal  = 1
	fieldRemote = 2
	fieldState  = 3
	fieldInode  = 9
	minFields   = 10

	ipv4HexLen = 8
	ipv6HexLen = 32
)

// ParseNetTable parses the text of /proc/net/tcp or /proc/net/tcp6. The first
// line is a header. Lines that do not parse are dropped; the kernel may add
// columns at the end, which are ignored. Line length is not bounded, so one
// oversized line is dropped on its own without ending the read.
func ParseNetTable(r io.Reader, family model.Family) []model.SocketRecord {
	var out []model.SocketRecord

	br := bufio.NewReader(r)
	for n := 0; ; n++ {
		line, err := br.ReadString('\n')
		if n > 0 && line != "" {
			if rec, ok := parseNetLine(line, family); ok {
				out = append(out, rec)
			}
		}
		if err != nil {
			break
		}
	}
	return out
}

func parseNetLine(line string, family model.Family) (model.SocketRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) < minFields {
		return model.SocketRecord{}, false
	}

	localAddr, localPort, ok := splitEndpoint(fields[fieldLocal], family)
	if !ok {
		return model.SocketRecord{}, false
	}
	remoteAddr, remotePort, ok := splitEndpoint(fields[fieldRemote], family)
	if !ok {
		return model.SocketRecord{}, false
	}

	state := strings.ToUpper(fields[fieldState])
	if len(state) != 2 || !isHex(state) {
		return model.SocketRecord{}, false
	}

	inode, err := strconv.ParseUint(fields[fieldInode], 10, 64)
	if err != nil {
		return model.SocketRecord{}, false
	}

	return model.SocketRecord{
		Inode:      inode,
		LocalAddr:  localAddr,
		LocalPort:  localPort,
		RemoteAddr: remoteAddr,
		RemotePort: remotePort,
		State:      state,
		Family:     family,
	}, true
}

// splitEndpoint splits "0100007F:1F90" on its last colon.
func splitEndpoint(raw string, family model.Family) (string, uint16, bool) {
	i := strings.LastIndex(raw, ":")
	if i < 0 {
		return "", 0, false
	}
	addr := strings.ToUpper(raw[:i])

	want := ipv4HexLen
	if family == model.FamilyTCP6 {
		want = ipv6HexLen
	}
	if len(addr) != want || !isHex(addr) {
		return "", 0, false
	}

	port, err := strconv.ParseUint(raw[i+1:], 16, 16)
	if err != nil {
		return "", 0, false
	}
	return addr, uint16(port), true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return s != ""
}

// DecodeIPv4 turns the kernel's little-endian hex ("0100007F") into "127.0.0.1".
func DecodeIPv4(raw string) (string, error) {
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != 4 {
		return "", errors.Errorf("invalid IPv4 hex %q", raw)
	}
	return net.IPv4(b[3], b[2], b[1], b[0]).String(), nil
}

// DecodeIPv6 decodes a tcp6 address, stored as four little-endian 32-bit words.
func DecodeIPv6(raw string) (string, error) {
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != 16 {
		return "", errors.Errorf("invalid IPv6 hex %q", raw)
	}
	ip := make(net.IP, 16)
	for i := 0; i < 4; i++ {
		ip[i*4+0] = b[i*4+3]
		ip[i*4+1] = b[i*4+2]
		ip[i*4+2] = b[i*4+1]
		ip[i*4+3] = b[i*4+0]
	}
	return ip.String(), nil
}

// DecodeAddr decodes a record address according to its family.
func DecodeAddr(raw string, family model.Family) (string, error) {
	if family == model.FamilyTCP6 {
		return DecodeIPv6(raw)
	}
	return DecodeIPv4(raw)
}
